package main

import (
	"github.com/spf13/cobra"

	"depot/internal/api"
	"depot/internal/config"
)

func newFolderCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folder",
		Short: "Manage folders",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <name>",
			Short: "Create a folder",
			Args:  requireExactlyArgs(1, "folder name is required"),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withClient(cfg, func(client *api.Client) error {
					resp, err := client.CreateFolder(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if *jsonOutput {
						return writeJSON(resp)
					}
					return writePlain("created folder %s\n", args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List folders",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withClient(cfg, func(client *api.Client) error {
					resp, err := client.ListFiles(cmd.Context())
					if err != nil {
						return err
					}
					if *jsonOutput {
						names := make([]string, 0, len(resp.Groups))
						for _, group := range resp.Groups {
							if group.Name != "" {
								names = append(names, group.Name)
							}
						}
						return writeJSON(names)
					}
					for _, group := range resp.Groups {
						if group.Name == "" {
							continue
						}
						if err := writePlain("%s (%d files)\n", group.Name, len(group.Files)); err != nil {
							return err
						}
					}
					return nil
				})
			},
		},
	)

	return cmd
}
