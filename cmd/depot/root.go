package main

import (
	"github.com/spf13/cobra"

	"depot/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var jsonOutput bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "depot",
		Short: "Depot is a multi-tenant file store with content dedup and per-user quotas",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				cmd.PrintErrln(warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newMigrateCmd(cfg, &jsonOutput),
		newConfigCmd(cfg),
		newLoginCmd(cfg),
		newLogoutCmd(cfg),
		newWhoamiCmd(cfg, &jsonOutput),
		newUploadCmd(cfg, &jsonOutput),
		newLsCmd(cfg, &jsonOutput),
		newGetCmd(cfg),
		newRmCmd(cfg, &jsonOutput),
		newShareCmd(cfg, &jsonOutput),
		newUnshareCmd(cfg, &jsonOutput),
		newShareWithCmd(cfg, &jsonOutput),
		newSharedCmd(cfg, &jsonOutput),
		newFolderCmd(cfg, &jsonOutput),
		newAdminCmd(cfg, &jsonOutput),
	)

	return cmd
}
