package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matthewbaird/bridgepanel/internal/config"
	"github.com/matthewbaird/bridgepanel/internal/logging"
	"github.com/matthewbaird/bridgepanel/internal/schema"
	"github.com/matthewbaird/bridgepanel/internal/store"
)

// App carries the flag values shared by every subcommand.
type App struct {
	ConfigPath string
	DSN        string
	LogLevel   string
	LogFormat  string
	SchemaPath string
}

func newRootCmd() *cobra.Command {
	app := &App{}
	cmd := &cobra.Command{
		Use:           "bridgepanel",
		Short:         "Settings panels for hub bridge devices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := cmd.PersistentFlags()
	f.StringVar(&app.ConfigPath, "config", "bridgepanel.toml", "path to the TOML config file")
	f.StringVar(&app.DSN, "db", "", "SQLite DSN (overrides config and DATABASE_URL)")
	f.StringVar(&app.LogLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&app.LogFormat, "log-format", "", "json or console")
	f.StringVar(&app.SchemaPath, "schema", "", "CUE file replacing the builtin panel definitions")

	cmd.AddCommand(newServeCmd(app), newSchemaCmd(app), newDeviceCmd(app))
	return cmd
}

// config resolves defaults, the config file, the environment and finally
// the flags that were set on the command line.
func (a *App) config(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database.DSN = a.DSN
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.LogLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = a.LogFormat
	}
	if flags.Changed("schema") {
		cfg.Panel.SchemaPath = a.SchemaPath
	}
	return cfg, nil
}

func (a *App) logger(cfg config.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	return log, nil
}

func loadDefinitions(cfg config.Config) (*schema.Definitions, error) {
	if cfg.Panel.SchemaPath != "" {
		return schema.LoadFile(cfg.Panel.SchemaPath)
	}
	return schema.Load()
}

func openStore(ctx context.Context, cfg config.Config) (*store.SQLiteStore, error) {
	s, err := store.OpenSQLite(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return s, nil
}
