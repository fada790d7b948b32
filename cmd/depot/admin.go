package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"depot/internal/api"
	internalauth "depot/internal/auth"
	"depot/internal/config"
	"depot/internal/format"
	"depot/internal/store"
)

func newAdminCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands",
	}

	cmd.AddCommand(newAdminUserCmd(cfg, jsonOutput))
	cmd.AddCommand(newAdminGCCmd(cfg, jsonOutput))
	return cmd
}

// Admin user commands operate directly on the database so the first
// admin can be provisioned before any session exists.
func newAdminUserCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Provision and manage user accounts",
	}
	cmd.AddCommand(newAdminUserAddCmd(cfg, jsonOutput))
	cmd.AddCommand(newAdminUserListCmd(cfg, jsonOutput))
	cmd.AddCommand(newAdminUserSetDisabledCmd(cfg, jsonOutput, "disable", "Disable one user", true))
	cmd.AddCommand(newAdminUserSetDisabledCmd(cfg, jsonOutput, "enable", "Enable one user", false))
	cmd.AddCommand(newAdminUserQuotaCmd(cfg, jsonOutput))
	cmd.AddCommand(newAdminUserDeleteCmd(cfg, jsonOutput))
	cmd.AddCommand(newAdminUserImportCmd(cfg, jsonOutput))
	return cmd
}

func newAdminUserAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		passwordStdin bool
		role          string
		quotaBytes    int64
	)

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create one user account",
		Args:  requireExactlyArgs(1, "username is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !passwordStdin {
				return fmt.Errorf("--password-stdin is required")
			}
			if role != store.UserRoleAdmin && role != store.UserRoleMember {
				return fmt.Errorf("role must be %q or %q", store.UserRoleAdmin, store.UserRoleMember)
			}

			username, err := internalauth.NormalizeUsername(args[0])
			if err != nil {
				return err
			}

			passwordBytes, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			passwordHash, err := internalauth.HashPassword(strings.TrimSpace(string(passwordBytes)))
			if err != nil {
				return err
			}

			if quotaBytes <= 0 {
				quotaBytes = cfg.Storage.QuotaBytes
			}

			return withAdminStore(cfg, func(st *store.Store) error {
				created, err := st.CreateUser(cmd.Context(), username, passwordHash, role, quotaBytes, time.Now().UTC())
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(created)
				}
				return writePlain("created %s user %s (%s, quota %s)\n",
					created.Role, created.Username, created.ID, format.MB(created.StorageQuota))
			})
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	cmd.Flags().StringVar(&role, "role", store.UserRoleMember, "account role (admin or member)")
	cmd.Flags().Int64Var(&quotaBytes, "quota-bytes", 0, "storage quota in bytes (default: configured quota)")
	return cmd
}

func newAdminUserListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List provisioned users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdminStore(cfg, func(st *store.Store) error {
				users, err := st.ListUsers(cmd.Context())
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(map[string]any{"count": len(users), "users": users})
				}
				if len(users) == 0 {
					return writePlain("no users provisioned\n")
				}
				if err := writePlain("USERNAME\tROLE\tSTATUS\tUSED\tQUOTA\tID\n"); err != nil {
					return err
				}
				for _, user := range users {
					status := "enabled"
					if user.Disabled {
						status = "disabled"
					}
					err := writePlain("%s\t%s\t%s\t%s\t%s\t%s\n",
						user.Username, user.Role, status,
						format.MB(user.StorageUsed), format.MB(user.StorageQuota), user.ID)
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newAdminUserSetDisabledCmd(cfg *config.Config, jsonOutput *bool, name, short string, disabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <username>",
		Short: short,
		Args:  requireExactlyArgs(1, "username is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := internalauth.NormalizeUsername(args[0])
			if err != nil {
				return err
			}

			return withAdminStore(cfg, func(st *store.Store) error {
				updated, err := st.SetUserDisabled(cmd.Context(), username, disabled, time.Now().UTC())
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(updated)
				}
				action := "enabled"
				if disabled {
					action = "disabled"
				}
				return writePlain("%s user %s\n", action, updated.Username)
			})
		},
	}
}

func newAdminUserQuotaCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "quota <username> <bytes>",
		Short: "Set one user's storage quota",
		Args:  requireExactlyArgs(2, "username and quota bytes are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := internalauth.NormalizeUsername(args[0])
			if err != nil {
				return err
			}
			var quotaBytes int64
			if _, err := fmt.Sscanf(args[1], "%d", &quotaBytes); err != nil || quotaBytes <= 0 {
				return fmt.Errorf("quota must be a positive byte count")
			}

			return withAdminStore(cfg, func(st *store.Store) error {
				updated, err := st.SetUserQuota(cmd.Context(), username, quotaBytes, time.Now().UTC())
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(updated)
				}
				return writePlain("set quota for %s to %s\n", updated.Username, format.MB(updated.StorageQuota))
			})
		},
	}
}

func newAdminUserDeleteCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <username>",
		Aliases: []string{"rm"},
		Short:   "Delete one user account",
		Args:    requireExactlyArgs(1, "username is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := internalauth.NormalizeUsername(args[0])
			if err != nil {
				return err
			}

			return withAdminStore(cfg, func(st *store.Store) error {
				deleted, err := st.DeleteUser(cmd.Context(), username)
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("user %s not found", username)
				}

				if *jsonOutput {
					return writeJSON(map[string]any{"deleted": username})
				}
				return writePlain("deleted user %s\n", username)
			})
		},
	}
}

// userManifest is the YAML shape accepted by `admin user import`.
type userManifest struct {
	Users []userManifestEntry `yaml:"users"`
}

type userManifestEntry struct {
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Role       string `yaml:"role"`
	QuotaBytes int64  `yaml:"quota_bytes"`
}

func newAdminUserImportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <manifest.yaml>",
		Short: "Bulk-provision users from a YAML manifest",
		Args:  requireExactlyArgs(1, "manifest path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var manifest userManifest
			if err := yaml.Unmarshal(data, &manifest); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			if len(manifest.Users) == 0 {
				return fmt.Errorf("%s lists no users", args[0])
			}

			return withAdminStore(cfg, func(st *store.Store) error {
				created, skipped, err := importUsers(cmd.Context(), st, cfg, manifest)
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(map[string]any{"created": created, "skipped": skipped})
				}
				return writePlain("created %d users, skipped %d existing\n", created, skipped)
			})
		},
	}
	return cmd
}

func importUsers(ctx context.Context, st *store.Store, cfg *config.Config, manifest userManifest) (created, skipped int, err error) {
	now := time.Now().UTC()
	for _, entry := range manifest.Users {
		username, err := internalauth.NormalizeUsername(entry.Username)
		if err != nil {
			return created, skipped, fmt.Errorf("user %q: %w", entry.Username, err)
		}

		exists, err := st.UserExists(ctx, username)
		if err != nil {
			return created, skipped, err
		}
		if exists {
			skipped++
			continue
		}

		role := entry.Role
		if role == "" {
			role = store.UserRoleMember
		}
		if role != store.UserRoleAdmin && role != store.UserRoleMember {
			return created, skipped, fmt.Errorf("user %q: unknown role %q", username, role)
		}

		quotaBytes := entry.QuotaBytes
		if quotaBytes <= 0 {
			quotaBytes = cfg.Storage.QuotaBytes
		}

		passwordHash, err := internalauth.HashPassword(entry.Password)
		if err != nil {
			return created, skipped, fmt.Errorf("user %q: %w", username, err)
		}

		if _, err := st.CreateUser(ctx, username, passwordHash, role, quotaBytes, now); err != nil {
			return created, skipped, fmt.Errorf("user %q: %w", username, err)
		}
		created++
	}
	return created, skipped, nil
}

func newAdminGCCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		dryRun bool
		apply  bool
	)

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Garbage-collect orphaned blobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !apply && !dryRun {
				dryRun = true
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.AdminGC(cmd.Context(), !apply)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				mode := "applied"
				if resp.DryRun {
					mode = "dry run"
				}
				return writePlain("%s: scanned=%d orphans=%d removed=%d reclaimed=%s\n",
					mode, resp.ScannedBlobs, resp.OrphanBlobs, resp.RemovedBlobs, format.MB(resp.ReclaimedBytes))
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report orphans without deleting")
	cmd.Flags().BoolVar(&apply, "apply", false, "delete orphaned blobs")
	return cmd
}

func withAdminStore(cfg *config.Config, fn func(*store.Store) error) error {
	if cfg == nil || cfg.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}
