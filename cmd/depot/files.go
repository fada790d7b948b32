package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"depot/internal/api"
	"depot/internal/config"
)

func newUploadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload one or more files",
		Args:  requireAtLeastArgs(1, "at least one file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]api.UploadFile, 0, len(args))
			handles := make([]*os.File, 0, len(args))
			defer func() {
				for _, f := range handles {
					_ = f.Close()
				}
			}()
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				handles = append(handles, f)
				items = append(items, api.UploadFile{Filename: filepath.Base(path), Content: f})
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Upload(cmd.Context(), items, folder)
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(resp)
				}

				for _, result := range resp.Results {
					switch result.Status {
					case api.UploadStatusStored:
						if err := writePlain("stored    %s (%s)\n", result.Filename, result.File.ID); err != nil {
							return err
						}
					case api.UploadStatusDuplicate:
						if err := writePlain("duplicate %s (%s, not charged)\n", result.Filename, result.File.ID); err != nil {
							return err
						}
					default:
						if err := writePlain("failed    %s: %s\n", result.Filename, result.Error); err != nil {
							return err
						}
					}
				}
				return writePlain("%d uploaded, %d skipped by quota\n", resp.Uploaded, resp.Skipped)
			})
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "place uploads in a folder")
	return cmd
}

func newLsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List your files grouped by folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ListFiles(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeFileGroups(resp.Groups)
			})
		},
	}
}

func newGetCmd(cfg *config.Config) *cobra.Command {
	var output string
	var asToken bool

	cmd := &cobra.Command{
		Use:   "get <file-id>",
		Short: "Download one file, or a public link with --token",
		Args:  requireExactlyArgs(1, "file id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			fetch := func(client *api.Client, w io.Writer) (string, error) {
				if asToken {
					return client.DownloadShared(cmd.Context(), args[0], w)
				}
				return client.Download(cmd.Context(), args[0], w)
			}

			return withClient(cfg, func(client *api.Client) error {
				if output == "-" {
					_, err := fetch(client, os.Stdout)
					return err
				}

				tmp, err := os.CreateTemp(filepath.Dir(defaultIfEmpty(output, ".")), ".depot-get-*")
				if err != nil {
					return err
				}
				defer os.Remove(tmp.Name())

				filename, err := fetch(client, tmp)
				if closeErr := tmp.Close(); err == nil {
					err = closeErr
				}
				if err != nil {
					return err
				}

				target := output
				if target == "" {
					target = filename
				}
				if target == "" {
					target = args[0]
				}
				if err := os.Rename(tmp.Name(), target); err != nil {
					return err
				}
				return writePlain("wrote %s\n", target)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (- for stdout)")
	cmd.Flags().BoolVar(&asToken, "token", false, "treat the argument as a public share token")
	return cmd
}

func newRmCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <file-id>",
		Short: "Delete one of your files",
		Args:  requireExactlyArgs(1, "file id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				if err := client.DeleteFile(cmd.Context(), args[0]); err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(map[string]any{"deleted": args[0]})
				}
				return writePlain("deleted %s\n", args[0])
			})
		},
	}
}

func defaultIfEmpty(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
