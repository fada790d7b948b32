package main

import (
	"context"
	"path/filepath"
	"testing"

	"depot/internal/config"
	"depot/internal/store"
)

func testAdminStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "depot.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestImportUsersCreatesAndSkips(t *testing.T) {
	st := testAdminStore(t)
	cfg := config.Default()
	ctx := context.Background()

	manifest := userManifest{Users: []userManifestEntry{
		{Username: "Alice", Password: "correcthorse", Role: "admin", QuotaBytes: 1 << 20},
		{Username: "bob", Password: "batterystaple"},
	}}

	created, skipped, err := importUsers(ctx, st, &cfg, manifest)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if created != 2 || skipped != 0 {
		t.Fatalf("expected 2 created, got created=%d skipped=%d", created, skipped)
	}

	alice, err := st.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get alice: %v", err)
	}
	if alice.Role != store.UserRoleAdmin {
		t.Fatalf("expected admin role, got %q", alice.Role)
	}
	if alice.StorageQuota != 1<<20 {
		t.Fatalf("expected manifest quota, got %d", alice.StorageQuota)
	}

	bob, err := st.GetUserByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("get bob: %v", err)
	}
	if bob.Role != store.UserRoleMember {
		t.Fatalf("expected member default role, got %q", bob.Role)
	}
	if bob.StorageQuota != cfg.Storage.QuotaBytes {
		t.Fatalf("expected configured default quota, got %d", bob.StorageQuota)
	}

	// Re-import skips the existing accounts without error.
	created, skipped, err = importUsers(ctx, st, &cfg, manifest)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if created != 0 || skipped != 2 {
		t.Fatalf("expected 2 skipped, got created=%d skipped=%d", created, skipped)
	}
}

func TestImportUsersRejectsBadEntries(t *testing.T) {
	st := testAdminStore(t)
	cfg := config.Default()
	ctx := context.Background()

	_, _, err := importUsers(ctx, st, &cfg, userManifest{Users: []userManifestEntry{
		{Username: "carol", Password: "short"},
	}})
	if err == nil {
		t.Fatal("expected error for short password")
	}

	_, _, err = importUsers(ctx, st, &cfg, userManifest{Users: []userManifestEntry{
		{Username: "carol", Password: "longenoughpw", Role: "superuser"},
	}})
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
}
