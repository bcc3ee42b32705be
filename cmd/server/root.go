package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sakif/library-catalog/internal/config"
)

// app carries what every command needs: the viper instance the flags are
// bound to and the --config path.
type app struct {
	v          *viper.Viper
	configFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "catalog",
		Short:         "Server-rendered library catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default ./catalog.yaml, or CATALOG_CONFIG_FILE)")
	// Bind errors only happen for unknown flag names, which are fixed at compile time.
	cobra.CheckErr(config.BindFlags(a.v, root.PersistentFlags()))

	root.AddCommand(newServeCmd(a), newSeedCmd(a))
	return root
}

// load reads the configuration and builds the logger it asks for.
//
// slog.NewTextHandler outputs human-readable logs to stdout.
// Log levels (from least to most severe): Debug → Info → Warn → Error.
func (a *app) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}
