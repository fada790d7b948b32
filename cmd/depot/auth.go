package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"depot/internal/api"
	"depot/internal/config"
	"depot/internal/format"
)

func newLoginCmd(cfg *config.Config) *cobra.Command {
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and store a session token",
		Args:  requireExactlyArgs(1, "username is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				// Check reachability before prompting for a password.
				if err := client.Ping(cmd.Context()); err != nil {
					return fmt.Errorf("server unreachable at %s: %w", cfg.APIURL, err)
				}

				password, err := readPassword(passwordStdin)
				if err != nil {
					return err
				}

				resp, err := client.Login(cmd.Context(), args[0], password)
				if err != nil {
					return err
				}
				if err := saveSessionToken(resp.Token); err != nil {
					return fmt.Errorf("store session: %w", err)
				}
				return writePlain("logged in as %s (session expires %s)\n",
					resp.Username, formatTimestamp(resp.ExpiresAt))
			})
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	return cmd
}

func newLogoutCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withClient(cfg, func(client *api.Client) error {
				return client.Logout(cmd.Context())
			})
			if err != nil {
				return err
			}
			if err := clearSessionToken(); err != nil {
				return err
			}
			return writePlain("logged out\n")
		},
	}
}

func newWhoamiCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current user and storage usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				usage, err := client.Usage(cmd.Context())
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(usage)
				}

				lines := []string{
					fmt.Sprintf("user: %s (%s)", usage.Username, usage.Role),
					fmt.Sprintf("usage: %s / %s (%s)", usage.UsedDisplay, usage.QuotaDisplay, usage.UsedPercent),
					fmt.Sprintf("files: %d (%d duplicates)", usage.FileCount, usage.DuplicateCount),
				}
				if usage.SavedBytes > 0 {
					lines = append(lines, fmt.Sprintf("saved by dedup: %s", format.MB(usage.SavedBytes)))
				}
				return writePlain("%s\n", strings.Join(lines, "\n"))
			})
		},
	}
}

func readPassword(fromStdin bool) (string, error) {
	if fromStdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
