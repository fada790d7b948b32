package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"
)

func TestStagePromoteOpenDelete(t *testing.T) {
	cas, err := NewLocalCAS(t.TempDir())
	if err != nil {
		t.Fatalf("new local cas: %v", err)
	}
	ctx := context.Background()

	staged, err := cas.Stage(ctx, bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	wantDigest := sha256.Sum256([]byte("hello"))
	if staged.SHA256 != hex.EncodeToString(wantDigest[:]) {
		t.Fatalf("unexpected digest %q", staged.SHA256)
	}
	if staged.SizeBytes != 5 {
		t.Fatalf("expected size 5, got %d", staged.SizeBytes)
	}

	// Staged content must not be visible before promotion.
	if ok, err := cas.Exists(ctx, staged.SHA256); err != nil || ok {
		t.Fatalf("exists before promote: ok=%v err=%v", ok, err)
	}

	if err := cas.Promote(ctx, staged); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if ok, err := cas.Exists(ctx, staged.SHA256); err != nil || !ok {
		t.Fatalf("exists after promote: ok=%v err=%v", ok, err)
	}

	rc, err := cas.Open(ctx, staged.SHA256)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected hello, got %q", string(data))
	}

	if err := cas.Delete(ctx, staged.SHA256); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := cas.Delete(ctx, staged.SHA256); err != nil {
		t.Fatalf("delete missing should be noop: %v", err)
	}
	if _, err := cas.Open(ctx, staged.SHA256); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPromoteIdempotentForIdenticalContent(t *testing.T) {
	cas, err := NewLocalCAS(t.TempDir())
	if err != nil {
		t.Fatalf("new local cas: %v", err)
	}
	ctx := context.Background()

	first, err := cas.Stage(ctx, bytes.NewBufferString("same bytes"))
	if err != nil {
		t.Fatalf("stage first: %v", err)
	}
	second, err := cas.Stage(ctx, bytes.NewBufferString("same bytes"))
	if err != nil {
		t.Fatalf("stage second: %v", err)
	}
	if first.SHA256 != second.SHA256 {
		t.Fatalf("digests differ: %s vs %s", first.SHA256, second.SHA256)
	}

	if err := cas.Promote(ctx, first); err != nil {
		t.Fatalf("promote first: %v", err)
	}
	if err := cas.Promote(ctx, second); err != nil {
		t.Fatalf("promote second should be noop: %v", err)
	}

	count := 0
	err = cas.Walk(ctx, func(digest string, size int64) error {
		count++
		if digest != first.SHA256 {
			t.Fatalf("unexpected digest %q", digest)
		}
		if size != int64(len("same bytes")) {
			t.Fatalf("unexpected size %d", size)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one blob, got %d", count)
	}
}

func TestDiscardRemovesStagedContent(t *testing.T) {
	cas, err := NewLocalCAS(t.TempDir())
	if err != nil {
		t.Fatalf("new local cas: %v", err)
	}
	ctx := context.Background()

	staged, err := cas.Stage(ctx, bytes.NewBufferString("quota rejected"))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	cas.Discard(staged)

	if ok, err := cas.Exists(ctx, staged.SHA256); err != nil || ok {
		t.Fatalf("discarded content must not be published: ok=%v err=%v", ok, err)
	}
	// Promote after discard must fail rather than publish nothing.
	if err := cas.Promote(ctx, staged); err == nil {
		t.Fatal("expected promote after discard to fail")
	}
}

func TestInvalidDigestRejected(t *testing.T) {
	cas, err := NewLocalCAS(t.TempDir())
	if err != nil {
		t.Fatalf("new local cas: %v", err)
	}
	if _, err := cas.Open(context.Background(), "../../etc/passwd"); err == nil {
		t.Fatal("expected invalid digest error")
	}
	if _, err := cas.Exists(context.Background(), "ABCD"); err == nil {
		t.Fatal("expected invalid digest error")
	}
}
