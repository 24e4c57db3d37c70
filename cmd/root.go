// Package cmd wires the leadgate command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	configcmd "github.com/australis-energy/leadgate/cmd/config"
	"github.com/australis-energy/leadgate/cmd/geo"
	"github.com/australis-energy/leadgate/cmd/notify"
	"github.com/australis-energy/leadgate/cmd/serve"
	"github.com/australis-energy/leadgate/cmd/version"
	"github.com/australis-energy/leadgate/internal/buildinfo"
	"github.com/australis-energy/leadgate/internal/conf"
	"github.com/australis-energy/leadgate/internal/logger"
	"github.com/australis-energy/leadgate/internal/runtime"
)

// RootCommand creates and returns the root command. Settings are loaded in
// PersistentPreRunE so every subcommand shares one runtime context.
func RootCommand(build *buildinfo.Info) *cobra.Command {
	var (
		configFile string
		debug      bool
		rt         runtime.Context
	)

	rootCmd := &cobra.Command{
		Use:          "leadgate",
		Short:        "Form submission and geoservices gateway",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: search ./, ~/.config/leadgate, /etc/leadgate)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	versionCmd := version.Command(build)
	configCmd := configcmd.Command()

	rootCmd.AddCommand(
		serve.Command(&rt),
		notify.Command(&rt),
		geo.Command(&rt),
		configCmd,
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version and config run without loaded settings
		for c := cmd; c != nil; c = c.Parent() {
			if c == versionCmd || c == configCmd {
				return nil
			}
		}

		settings, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		if debug {
			settings.Debug = true
		}

		ctx, err := runtime.New(settings, build)
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		rt = *ctx

		log := rt.Logger("main")
		for _, w := range settings.Warnings {
			log.Warn("configuration warning", logger.String("detail", w))
		}
		return nil
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if rt.Settings == nil {
			return nil
		}
		return rt.Close()
	}

	return rootCmd
}
