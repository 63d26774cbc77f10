package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dyluth/lair/internal/api"
	"github.com/dyluth/lair/internal/printer"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start <puzzle-id>",
	Short: "Activate a puzzle",
	Long: `Activate a puzzle and initialize it from its first round.

Starting the puzzle that is already active restarts it. Devices receive
P<id>Start on the outbound topic.`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Deactivate the active puzzle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl("stop", apiClient().Stop)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the active puzzle",
	Long:  `Reset the active puzzle to its restart point. A solved puzzle stays solved.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl("reset", apiClient().Reset)
	},
}

var timerExpiredCmd = &cobra.Command{
	Use:   "timer-expired",
	Short: "Report that the room timer ran out",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl("timer-expired", apiClient().TimerExpired)
	},
}

var puzzlesCmd = &cobra.Command{
	Use:   "puzzles",
	Short: "List the configured puzzles",
	Args:  cobra.NoArgs,
	RunE:  runPuzzles,
}

func init() {
	rootCmd.AddCommand(startCmd, stopCmd, resetCmd, timerExpiredCmd, puzzlesCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil || id < 1 {
		return printer.Error(
			"invalid puzzle id",
			fmt.Sprintf("%q is not a puzzle id.", args[0]),
			[]string{"Puzzle ids are positive integers:\n  lair start 3"},
		)
	}

	status, err := apiClient().Start(context.Background(), id)
	if err != nil {
		return apiError("start", err)
	}
	printer.Success("Puzzle %d started\n", status.ActivePuzzle)
	return nil
}

func runControl(action string, call func(context.Context) (api.StatusResponse, error)) error {
	status, err := call(context.Background())
	if err != nil {
		return apiError(action, err)
	}
	if status.ActivePuzzle == 0 {
		printer.Success("%s done, no puzzle active\n", action)
		return nil
	}
	printer.Success("%s done, puzzle %d active\n", action, status.ActivePuzzle)
	return nil
}

func runPuzzles(cmd *cobra.Command, args []string) error {
	resp, err := apiClient().Puzzles(context.Background())
	if err != nil {
		return apiError("puzzles", err)
	}

	for _, id := range resp.Puzzles {
		if id == resp.ActivePuzzle {
			printer.Success("P%d (active)\n", id)
			continue
		}
		printer.Printf("  P%d\n", id)
	}
	return nil
}
