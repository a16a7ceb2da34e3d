package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/bridgepanel/internal/panel"
	"github.com/matthewbaird/bridgepanel/internal/types"
)

func newDeviceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Inspect and seed the device store",
	}
	cmd.AddCommand(newDevicePutCmd(app), newDeviceSetVarCmd(app))
	return cmd
}

func newDevicePutCmd(app *App) *cobra.Command {
	var e types.Entity
	cmd := &cobra.Command{
		Use:   "put <id>",
		Short: "Create or replace a device descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !panel.ValidEntityID(args[0]) {
				return fmt.Errorf("invalid device id %q: use letters, digits and underscores", args[0])
			}
			cfg, err := app.config(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			e.ID = args[0]
			if err := st.PutEntity(cmd.Context(), e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "device %s saved\n", e.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&e.Name, "name", "", "device name")
	cmd.Flags().StringVar(&e.NetworkAddress, "ip", "", "hub network address")
	cmd.Flags().BoolVar(&e.Disabled, "disabled", false, "mark the device disabled")
	return cmd
}

func newDeviceSetVarCmd(app *App) *cobra.Command {
	var serviceID string
	cmd := &cobra.Command{
		Use:   "set-var <id> <key> <value>",
		Short: "Set a device state variable, e.g. the remote device list",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.config(cmd)
			if err != nil {
				return err
			}
			if serviceID == "" {
				defs, err := loadDefinitions(cfg)
				if err != nil {
					return err
				}
				serviceID = defs.Namespace
			}
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.SetValue(cmd.Context(), args[0], serviceID, args[1], args[2]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s.%s = %q\n", args[0], serviceID, args[1], args[2])
			return nil
		},
	}
	cmd.Flags().StringVar(&serviceID, "service", "", "service id (defaults to the panel namespace)")
	return cmd
}
