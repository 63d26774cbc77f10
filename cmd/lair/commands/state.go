package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/lair/internal/printer"
	"github.com/dyluth/lair/internal/watch"
	"github.com/spf13/cobra"
)

var stateOutputFormat string

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the active puzzle's state",
	Long: `Show the snapshot of the active puzzle, exactly as a newly connected
display would receive it.

Output Formats:
  default - Aligned field list
  json    - The raw snapshot`,
	Args: cobra.NoArgs,
	RunE: runState,
}

func init() {
	stateCmd.Flags().StringVarP(&stateOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(stateCmd)
}

func runState(cmd *cobra.Command, args []string) error {
	format, err := watch.ParseOutputFormat(stateOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", stateOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	snapshot, err := apiClient().State(context.Background())
	if err != nil {
		return apiError("state", err)
	}

	if format == watch.OutputFormatJSON {
		return printer.JSON(snapshot)
	}
	printer.State(snapshot)
	return nil
}
