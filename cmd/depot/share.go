package main

import (
	"github.com/spf13/cobra"

	"depot/internal/api"
	"depot/internal/config"
	"depot/internal/format"
)

func newShareCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "share <file-id>",
		Short: "Create a public download link for one of your files",
		Args:  requireExactlyArgs(1, "file id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Share(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("%s\n", resp.URL)
			})
		},
	}
}

func newUnshareCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "unshare <file-id>",
		Short: "Revoke the public link for one of your files",
		Args:  requireExactlyArgs(1, "file id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Unshare(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				if resp.Revoked == 0 {
					return writePlain("no active link for %s\n", args[0])
				}
				return writePlain("revoked public link for %s\n", args[0])
			})
		},
	}
}

func newShareWithCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "share-with <file-id> <username>",
		Short: "Share one of your files privately with another user",
		Args:  requireExactlyArgs(2, "file id and username are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Grant(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("shared %s with %s\n", resp.FileID, resp.SharedWith)
			})
		},
	}
}

func newSharedCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "shared",
		Short: "List files other users shared with you",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				entries, err := client.ListShared(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(entries)
				}
				if len(entries) == 0 {
					return writePlain("nothing shared with you\n")
				}
				for _, entry := range entries {
					err := writePlain("%s  %10s  %-20s  from %s (%s)\n",
						entry.File.ID, format.MB(entry.File.SizeBytes), entry.File.Filename,
						entry.SharedBy, formatTimestamp(entry.SharedAt))
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
