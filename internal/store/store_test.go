package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"depot/internal/models"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// testUser provisions an account with the given quota.
func testUser(t *testing.T, st *Store, username string, quotaBytes int64) *models.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	user, err := st.CreateUser(context.Background(), username, "x-not-a-real-hash", UserRoleMember, quotaBytes, now)
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func TestCreateAndGetUser(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	testUser(t, st, "alice", 10<<20)

	got, err := st.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected user, got nil")
	}
	if got.StorageQuota != 10<<20 {
		t.Fatalf("expected quota %d, got %d", 10<<20, got.StorageQuota)
	}
	if got.StorageUsed != 0 {
		t.Fatalf("expected zero usage, got %d", got.StorageUsed)
	}
	if got.Role != UserRoleMember {
		t.Fatalf("expected member role, got %q", got.Role)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	testUser(t, st, "alice", 1000)

	_, err := st.CreateUser(ctx, "ALICE", "x", UserRoleMember, 1000, now)
	if err != ErrUserExists {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestSetUserQuotaAndDisable(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	testUser(t, st, "bob", 1000)

	updated, err := st.SetUserQuota(ctx, "bob", 5000, now)
	if err != nil {
		t.Fatalf("set quota: %v", err)
	}
	if updated.StorageQuota != 5000 {
		t.Fatalf("expected quota 5000, got %d", updated.StorageQuota)
	}

	disabled, err := st.SetUserDisabled(ctx, "bob", true, now)
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if !disabled.Disabled {
		t.Fatal("expected disabled account")
	}

	missing, err := st.SetUserQuota(ctx, "nobody", 1, now)
	if err != nil {
		t.Fatalf("set quota missing: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown user")
	}
}

func TestSessionLifecycle(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	user := testUser(t, st, "carol", 1000)

	if err := st.CreateSession(ctx, user.ID, "hash-1", now.Add(time.Hour), now); err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, err := st.GetUserBySessionTokenHash(ctx, "hash-1", now)
	if err != nil {
		t.Fatalf("lookup session: %v", err)
	}
	if got == nil || got.Username != "carol" {
		t.Fatalf("expected carol, got %+v", got)
	}

	expired, err := st.GetUserBySessionTokenHash(ctx, "hash-1", now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("lookup expired: %v", err)
	}
	if expired != nil {
		t.Fatal("expected nil for expired session")
	}

	if err := st.RevokeSessionByTokenHash(ctx, "hash-1", now); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := st.GetUserBySessionTokenHash(ctx, "hash-1", now)
	if err != nil {
		t.Fatalf("lookup revoked: %v", err)
	}
	if revoked != nil {
		t.Fatal("expected nil for revoked session")
	}
}

func TestFormatTimeOrdersLexically(t *testing.T) {
	base := time.Date(2026, 8, 26, 10, 0, 5, 0, time.UTC)
	times := []time.Time{
		base.Add(-time.Second),
		base.Add(-500 * time.Millisecond),
		base,
		base.Add(500 * time.Millisecond),
		base.Add(time.Second),
	}
	for i := 1; i < len(times); i++ {
		prev, next := formatTime(times[i-1]), formatTime(times[i])
		if prev >= next {
			t.Fatalf("expected %q < %q", prev, next)
		}
	}
	for _, ts := range times {
		parsed, err := parseTime(formatTime(ts))
		if err != nil {
			t.Fatalf("parse %q: %v", formatTime(ts), err)
		}
		if !parsed.Equal(ts) {
			t.Fatalf("round trip changed %v to %v", ts, parsed)
		}
	}
}

func TestSessionSubsecondExpiry(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 26, 10, 0, 5, 0, time.UTC)

	// Expiry lands mid-second; the stored timestamp must still compare
	// after an integral-second now.
	user := testUser(t, st, "erin", 1000)
	if err := st.CreateSession(ctx, user.ID, "hash-3", now.Add(500*time.Millisecond), now); err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, err := st.GetUserBySessionTokenHash(ctx, "hash-3", now)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got == nil {
		t.Fatal("session expiring within the second must still be valid")
	}

	after, err := st.GetUserBySessionTokenHash(ctx, "hash-3", now.Add(time.Second))
	if err != nil {
		t.Fatalf("lookup after expiry: %v", err)
	}
	if after != nil {
		t.Fatal("expected nil once the expiry has passed")
	}
}

func TestSessionRejectsDisabledUser(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user := testUser(t, st, "dave", 1000)
	if err := st.CreateSession(ctx, user.ID, "hash-2", now.Add(time.Hour), now); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := st.SetUserDisabled(ctx, "dave", true, now); err != nil {
		t.Fatalf("disable: %v", err)
	}

	got, err := st.GetUserBySessionTokenHash(ctx, "hash-2", now)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for disabled account")
	}
}
