// Package cli wires configuration, storage, the engine and the network
// layer into the factory-server commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/factorysim/internal/platform/config"
)

var (
	// Global flags
	configPath  string
	profileName string
)

// NewRootCommand creates the root command for the CLI.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "factory-server",
		Short: "Factory simulation server",
		Long: `factory-server runs the factory simulation: crafting queue, facility
production, fuel and power, research.

Examples:
  factory-server serve --config configs/config.yaml
  factory-server simulate --seconds 300 --frame 16ms --scenario starter
  factory-server catalog --section recipes`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to config file (default: ./config.yaml, ./configs, /etc/factorysim)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "default",
		"Base profile: default, stress, low-resource")

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewSimulateCommand())
	rootCmd.AddCommand(NewCatalogCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	base, ok := config.Profile(profileName)
	if !ok {
		return nil, fmt.Errorf("unknown profile %q", profileName)
	}
	return config.LoadProfile(configPath, base)
}
