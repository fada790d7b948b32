package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const casAlgorithmPrefix = "sha256"

var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// LocalCAS stores blob bytes in a local content-addressed tree rooted at a
// dedicated directory: <root>/sha256/ab/cd/<digest>.
type LocalCAS struct {
	root string
}

var _ BlobStore = (*LocalCAS)(nil)

// NewLocalCAS creates a local CAS rooted at root.
func NewLocalCAS(root string) (*LocalCAS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, err
	}
	return &LocalCAS{root: abs}, nil
}

// Stage spools r to the tmp area while hashing. Nothing becomes visible
// under the content address until Promote.
func (c *LocalCAS) Stage(ctx context.Context, r io.Reader) (*Staged, error) {
	if c == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Join(c.root, "tmp"), "stage-*")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}

	return &Staged{
		SHA256:    hex.EncodeToString(h.Sum(nil)),
		SizeBytes: n,
		tmpPath:   tmpPath,
	}, nil
}

// Promote publishes staged content under its digest via atomic rename, so a
// partially written blob is never observable. Already-present digests win;
// the staged copy is discarded.
func (c *LocalCAS) Promote(ctx context.Context, staged *Staged) error {
	if c == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if staged == nil || staged.tmpPath == "" {
		return fmt.Errorf("staged blob is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dst, err := c.pathFromDigest(staged.SHA256)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	if _, err := os.Stat(dst); err == nil {
		c.Discard(staged)
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.Rename(staged.tmpPath, dst); err != nil {
		// A concurrent writer of identical bytes may have won the rename.
		if _, statErr := os.Stat(dst); statErr == nil {
			c.Discard(staged)
			return nil
		}
		return err
	}
	staged.tmpPath = ""
	return nil
}

// Discard removes the staged temp file, if any.
func (c *LocalCAS) Discard(staged *Staged) {
	if staged == nil || staged.tmpPath == "" {
		return
	}
	_ = os.Remove(staged.tmpPath)
	staged.tmpPath = ""
}

// Exists reports whether a blob with the digest is published.
func (c *LocalCAS) Exists(ctx context.Context, digest string) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := c.pathFromDigest(digest)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Open returns a reader for the blob content.
func (c *LocalCAS) Open(ctx context.Context, digest string) (io.ReadCloser, error) {
	if c == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.pathFromDigest(digest)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Delete removes a published blob. Missing blobs are ignored.
func (c *LocalCAS) Delete(ctx context.Context, digest string) error {
	if c == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := c.pathFromDigest(digest)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Walk visits every published digest under the CAS root.
func (c *LocalCAS) Walk(ctx context.Context, fn func(digest string, sizeBytes int64) error) error {
	if c == nil {
		return fmt.Errorf("blob store is not configured")
	}
	base := filepath.Join(c.root, casAlgorithmPrefix)
	return filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		digest := d.Name()
		if !digestPattern.MatchString(digest) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(digest, info.Size())
	})
}

func (c *LocalCAS) pathFromDigest(digest string) (string, error) {
	digest = strings.ToLower(strings.TrimSpace(digest))
	if !digestPattern.MatchString(digest) {
		return "", fmt.Errorf("invalid content digest")
	}
	return filepath.Join(c.root, casAlgorithmPrefix, digest[0:2], digest[2:4], digest), nil
}
