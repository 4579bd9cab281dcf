package commands

import (
	"fmt"

	"github.com/dyluth/autumn/internal/printer"
	"github.com/dyluth/autumn/internal/scaffold"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new autumn project",
	Long: `Initialize a new autumn project in the current directory.

Creates:
  • autumn.yml - Project configuration file
  • templates/webserver.rs - Code template the Backend Developer starts from
  • web_server/Cargo.toml - Cargo project the generated backend is built in

Use --force to reinitialize an existing project (WARNING: overwrites existing configuration).`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Force reinitialization (overwrites autumn.yml and templates)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if !forceInit {
		if err := scaffold.CheckExisting("."); err != nil {
			return printer.Error("project already initialized", err.Error(), nil)
		}
	}

	created, err := scaffold.Initialize(".", forceInit)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess(created)
	return nil
}
