package commands

import (
	"github.com/dyluth/lair/internal/printer"
	"github.com/dyluth/lair/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
	initDir   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default lair configuration",
	Long: `Write the default installation configuration.

Creates:
  • lair.yml - Puzzle configuration with the built-in installation tables
  • lair.env - Runtime environment for the orchestrator daemon

Use --force to overwrite existing files.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite existing lair.yml and lair.env")
	initCmd.Flags().StringVarP(&initDir, "dir", "d", ".", "Directory to write the files into")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	created, err := scaffold.Initialize(initDir, forceInit)
	if err != nil {
		return printer.Error("initialization failed", err.Error(), nil)
	}

	scaffold.PrintSuccess(created)
	return nil
}
