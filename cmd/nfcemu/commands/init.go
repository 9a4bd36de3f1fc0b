package commands

import (
	"fmt"

	"github.com/nfcemu/nfcemu/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample nfcemu configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/nfcemu/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  nfcemu init

  # Initialize with custom path
  nfcemu init --config /etc/nfcemu/config.yaml

  # Force overwrite existing config
  nfcemu init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		// Use custom path
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		// Use default path
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to add or adjust remote endpoints")
	fmt.Println("  2. Start the emulator with: nfcemu start")
	fmt.Printf("  3. Or specify custom config: nfcemu start --config %s\n", configPath)

	return nil
}
