package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/lair/internal/printer"
	"github.com/dyluth/lair/internal/watch"
	"github.com/dyluth/lair/pkg/devicebus"
	"github.com/spf13/cobra"
)

var watchOutputFormat string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream puzzle updates in real time",
	Long: `Stream every observer update the orchestrator mirrors to Redis.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch the default instance
  lair watch

  # Watch a specific instance
  lair watch --name room-b

  # Record a rehearsal
  lair watch --output=json > rehearsal.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	outputFormat, err := watch.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	client, err := busClient(devicebus.DefaultTopics())
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Verify Redis connectivity
	if err := client.Ping(ctx); err != nil {
		return printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", redisURL),
			map[string]string{"Instance": instanceName},
			[]string{"Check the orchestrator's REDIS_URL and pass the same value with --redis-url"},
		)
	}

	if outputFormat == watch.OutputFormatDefault {
		printer.Step("Watching instance '%s' (Ctrl+C to stop)\n", instanceName)
	}
	return watch.StreamUpdates(ctx, client, outputFormat, os.Stdout)
}
