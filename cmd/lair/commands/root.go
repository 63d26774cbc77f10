package commands

import (
	"errors"
	"fmt"

	"github.com/dyluth/lair/internal/api"
	"github.com/dyluth/lair/internal/config"
	"github.com/dyluth/lair/internal/printer"
	"github.com/dyluth/lair/pkg/devicebus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// cliEnv holds the environment defaults for the global flags.
type cliEnv struct {
	Server string `env:"LAIR_SERVER" envDefault:"http://localhost:8080"`
	config.Runtime
}

var (
	serverURL    string
	redisURL     string
	instanceName string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lair",
	Short: "Lair - escape room puzzle orchestrator",
	Long: `Lair drives the puzzles of an escape room installation.

The orchestrator daemon listens to the device bus (Redis Pub/Sub), runs one
puzzle at a time and streams its state to the room displays. This CLI is the
operator's remote control: it starts and resets puzzles through the HTTP API,
rehearses device events without hardware and follows the update stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	var defaults cliEnv
	if err := config.ParseEnv(&defaults); err != nil {
		// Malformed variables fall back to the built-in defaults.
		defaults = cliEnv{
			Server:  "http://localhost:8080",
			Runtime: config.Runtime{InstanceName: "default-lair", RedisURL: "redis://localhost:6379"},
		}
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaults.Server, "Orchestrator API base URL (env LAIR_SERVER)")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis-url", defaults.RedisURL, "Redis URL of the device bus (env REDIS_URL)")
	rootCmd.PersistentFlags().StringVarP(&instanceName, "name", "n", defaults.InstanceName, "Orchestrator instance name (env LAIR_INSTANCE_NAME)")
}

func apiClient() *api.Client {
	return api.NewClient(serverURL)
}

// apiError turns a client error into the printer's formatted error.
func apiError(action string, err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return printer.Error(
			fmt.Sprintf("%s failed", action),
			apiErr.Message,
			[]string{"List the configured puzzles:\n  lair puzzles"},
		)
	}
	return printer.ErrorWithContext(
		"orchestrator not reachable",
		err.Error(),
		map[string]string{"Server": serverURL},
		[]string{
			"Start the orchestrator daemon:\n  orchestrator",
			"Point the CLI at it:\n  lair --server http://<host>:<port> ...",
		},
	)
}

func busClient(topics devicebus.Topics) (*devicebus.Client, error) {
	if err := config.ValidateInstanceName(instanceName); err != nil {
		return nil, printer.Error(
			"invalid instance name",
			err.Error(),
			[]string{"Pass the orchestrator's LAIR_INSTANCE_NAME with --name"},
		)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, printer.Error(
			"invalid Redis URL",
			fmt.Sprintf("Could not parse %q: %v", redisURL, err),
			[]string{"Use the form redis://host:port"},
		)
	}
	client, err := devicebus.NewClient(opts, instanceName, topics)
	if err != nil {
		return nil, fmt.Errorf("failed to create device bus client: %w", err)
	}
	return client, nil
}
