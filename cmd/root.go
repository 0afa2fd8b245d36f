package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/linguanet/linguanet-go/cmd/check"
	"github.com/linguanet/linguanet-go/cmd/migrate"
	"github.com/linguanet/linguanet-go/cmd/status"
	"github.com/linguanet/linguanet-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "linguanet-migrate",
		Short:   "LinguaNet v2 to v3 migration CLI",
		Version: fmt.Sprintf("%s (built %s)", settings.Version, settings.BuildDate),
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		migrate.Command(settings),
		check.Command(settings),
		status.Command(settings),
	}

	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	// The config flag is consumed in main before the configuration is
	// loaded; it is declared here so help and validation know about it.
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
