package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix = "QUERYMETA"

	keyDatabaseDSN   = "database.dsn"
	keyDatabaseTable = "database.table"

	defaultDatabaseDSN   = "postgres://localhost:5432/eventstore?sslmode=disable"
	defaultDatabaseTable = "events"
)

// loadConfig reads the optional YAML file at path. Every key can be overridden by an environment variable,
// e.g. QUERYMETA_DATABASE_DSN for database.dsn.
func loadConfig(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(keyDatabaseDSN, defaultDatabaseDSN)
	v.SetDefault(keyDatabaseTable, defaultDatabaseTable)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		return v, nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return v, nil
}
