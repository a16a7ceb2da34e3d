package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matthewbaird/bridgepanel/internal/server"
)

func newServeCmd(app *App) *cobra.Command {
	var (
		addr        string
		settleDelay string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the settings panels over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.config(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("settle-delay") {
				if err := cfg.Panel.SettleDelay.UnmarshalText([]byte(settleDelay)); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := app.logger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			defs, err := loadDefinitions(cfg)
			if err != nil {
				return err
			}
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			log.Info("database ready", zap.String("dsn", cfg.Database.DSN))

			srv, err := server.New(server.Config{
				Addr:  cfg.Server.Addr,
				Store: st,
				Defs:  defs,
				Panel: cfg.Panel,
				Log:   log,
			})
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config and PORT)")
	cmd.Flags().StringVar(&settleDelay, "settle-delay", "", "wait between snapshot save and gateway reload, e.g. 3s")
	return cmd
}
