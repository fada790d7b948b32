package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no blob exists for a digest.
var ErrNotFound = errors.New("blob not found")

// Staged is content that has been spooled and hashed but not yet published
// under its content address. A Staged blob is invisible to Exists/Open until
// Promote succeeds.
type Staged struct {
	SHA256    string
	SizeBytes int64

	tmpPath string
}

// BlobStore is the content-addressed byte medium behind the file catalog.
//
// Digests are lowercase hex SHA-256 over the full content. Promote and
// Delete are idempotent: promoting an already-present digest and deleting a
// missing one are both successes, which makes concurrent writers of
// identical content safe.
type BlobStore interface {
	// Stage spools r to temporary storage, computing digest and size.
	Stage(ctx context.Context, r io.Reader) (*Staged, error)
	// Promote publishes staged content under its digest. No-op if the
	// digest is already present. The staged temp file is consumed.
	Promote(ctx context.Context, staged *Staged) error
	// Discard drops staged content that will not be promoted.
	Discard(staged *Staged)

	Exists(ctx context.Context, digest string) (bool, error)
	Open(ctx context.Context, digest string) (io.ReadCloser, error)
	// Delete removes a published blob. Callers must have confirmed zero
	// remaining catalog references for the digest.
	Delete(ctx context.Context, digest string) error

	// Walk visits every published digest, for orphan sweeps.
	Walk(ctx context.Context, fn func(digest string, sizeBytes int64) error) error
}
