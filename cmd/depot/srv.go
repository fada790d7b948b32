package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"depot/internal/blobstore"
	"depot/internal/config"
	"depot/internal/server"
	"depot/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the depot API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			logger.Info("opening blob store", "root", cfg.BlobRoot)
			blobs, err := blobstore.NewLocalCAS(cfg.BlobRoot)
			if err != nil {
				return err
			}

			enabled, err := st.CountEnabledUsers(cmd.Context())
			if err != nil {
				return err
			}
			if enabled == 0 {
				logger.Warn("no enabled users; provision one with `depot admin user add`")
			} else {
				logger.Info("users provisioned", "enabled", enabled)
			}

			srv := server.New(addr, st, blobs, cfg, logger)
			return srv.ListenAndServe()
		},
	}
}
