package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/postgresengine"
	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/querymeta"
	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/querymeta/metaconfig"
)

// app holds what the subcommands share, it is populated before any subcommand runs.
type app struct {
	config   *viper.Viper
	registry *querymeta.Registry
	logger   *zap.Logger
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "querymeta",
		Short: "Query metadata for event store repository operations",
		Long: `querymeta lists the query comments registered for repository operations,
renders the SQL the event store generates for them, and runs those queries against PostgreSQL.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(configPath, verbose)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log the executed SQL and operational details")

	rootCmd.AddCommand(newOperationsCmd(a))
	rootCmd.AddCommand(newRenderCmd(a))
	rootCmd.AddCommand(newQueryCmd(a))

	return rootCmd
}

func (a *app) init(configPath string, verbose bool) error {
	config, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	registry, err := metaconfig.FromViper(config)
	if err != nil {
		return err
	}

	logger, err := newZapLogger(verbose)
	if err != nil {
		return err
	}

	a.config = config
	a.registry = registry
	a.logger = logger.With(zap.String("service", "querymeta"))

	return nil
}

func (a *app) eventStoreOptions() []postgresengine.Option {
	return []postgresengine.Option{
		postgresengine.WithTableName(a.config.GetString(keyDatabaseTable)),
		postgresengine.WithQueryMeta(a.registry),
		postgresengine.WithLogger(&zapLogger{lg: a.logger.Sugar()}),
	}
}
