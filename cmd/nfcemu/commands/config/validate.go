package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nfcemu/nfcemu/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the nfcemu configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  nfcemu config validate

  # Validate specific config file
  nfcemu config validate --config /etc/nfcemu/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.Register.Backing == "mmap" && cfg.Register.SnapshotPath == "" {
		warnings = append(warnings, "mmap register backing configured with no snapshot_path; state will not persist across restarts")
	}
	if !cfg.Console.Enabled {
		warnings = append(warnings, "operator console disabled; the controller can only be driven through the register block")
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Register backing: %s\n", cfg.Register.Backing)
	fmt.Printf("  Console listen:    %s\n", cfg.Console.Listen)
	fmt.Printf("  Endpoints:         %d\n", len(cfg.Endpoints))
	fmt.Printf("  Log level:         %s\n", cfg.Logging.Level)

	return nil
}
