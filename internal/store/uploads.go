package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"depot/internal/models"
)

// UploadParams describes one incoming file to record.
type UploadParams struct {
	Username    string
	Filename    string
	SizeBytes   int64
	ContentHash string
	Folder      string
	Now         time.Time
}

// CreateUpload records one upload atomically: it detects whether the user
// already holds the content, charges the quota only for first copies, runs
// persist to publish the blob, and inserts the file record. All of it
// commits or none of it does; a failed persist leaves no charge and no
// record.
//
// The store holds a single connection, so every read in the decision runs
// on the transaction itself and concurrent uploads serialize here.
func (s *Store) CreateUpload(ctx context.Context, p UploadParams, persist func(ctx context.Context) error) (*models.File, error) {
	p.Username = strings.TrimSpace(strings.ToLower(p.Username))
	p.ContentHash = strings.ToLower(strings.TrimSpace(p.ContentHash))
	if p.Username == "" {
		return nil, fmt.Errorf("uploader is required")
	}
	if strings.TrimSpace(p.Filename) == "" {
		return nil, fmt.Errorf("filename is required")
	}
	if p.ContentHash == "" {
		return nil, fmt.Errorf("content hash is required")
	}
	if p.SizeBytes < 0 {
		return nil, fmt.Errorf("size must be >= 0")
	}

	fileID, err := GenerateFileID(func(id string) (bool, error) {
		return s.fileIDExists(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var one int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM files WHERE uploader = ? AND file_hash = ? LIMIT 1",
		p.Username, p.ContentHash).Scan(&one)
	isDuplicate := err == nil
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	err = nil

	if !isDuplicate {
		if err = chargeQuotaTx(ctx, tx, p.Username, p.SizeBytes); err != nil {
			return nil, err
		}
	}

	if persist != nil {
		if err = persist(ctx); err != nil {
			return nil, err
		}
	}

	duplicateInt := 0
	if isDuplicate {
		duplicateInt = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO files (id, filename, uploader, size, file_hash, is_duplicate, folder, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, fileID, p.Filename, p.Username, p.SizeBytes, p.ContentHash, duplicateInt,
		nullIfEmpty(p.Folder), formatTime(p.Now))
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return &models.File{
		ID:          fileID,
		Filename:    p.Filename,
		Uploader:    p.Username,
		SizeBytes:   p.SizeBytes,
		ContentHash: p.ContentHash,
		IsDuplicate: isDuplicate,
		Folder:      p.Folder,
		UploadedAt:  p.Now.UTC(),
	}, nil
}

// DeleteUpload removes one owned file record atomically: it refuses to
// delete a quota-charged original while the owner still holds duplicate
// copies, refunds the quota for originals, and cascades the file's public
// links and private grants. It returns the deleted record and the number
// of records still referencing the content afterwards; a zero remainder
// means the caller should attempt ReclaimIfUnreferenced.
func (s *Store) DeleteUpload(ctx context.Context, fileID, owner string) (*models.File, int64, error) {
	owner = strings.TrimSpace(strings.ToLower(owner))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = ? AND uploader = ?`, fileID, owner)
	file, err := scanFile(row)
	if err != nil {
		return nil, 0, err
	}
	if file == nil {
		err = ErrNotFound
		return nil, 0, err
	}

	if !file.IsDuplicate {
		var duplicates int64
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM files
			WHERE uploader = ? AND file_hash = ? AND is_duplicate = 1
		`, owner, file.ContentHash).Scan(&duplicates)
		if err != nil {
			return nil, 0, err
		}
		if duplicates > 0 {
			err = ErrDependentDuplicates
			return nil, 0, err
		}
		if err = refundQuotaTx(ctx, tx, owner, file.SizeBytes); err != nil {
			return nil, 0, err
		}
	}

	if err = deleteSharesForFileTx(ctx, tx, fileID); err != nil {
		return nil, 0, err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM files WHERE id = ?", fileID); err != nil {
		return nil, 0, err
	}

	if err = tx.Commit(); err != nil {
		return nil, 0, err
	}

	remaining, err := s.CountReferences(ctx, file.ContentHash)
	if err != nil {
		return nil, 0, err
	}
	return file, remaining, nil
}

// ReclaimIfUnreferenced re-checks the reference count for one content
// hash and runs reclaim while the transaction is still open. The store's
// single connection serializes the transaction against upload
// transactions, so a same-content upload cannot commit a new reference
// between the count and the blob removal. Returns whether reclaim ran.
func (s *Store) ReclaimIfUnreferenced(ctx context.Context, contentHash string, reclaim func(ctx context.Context) error) (bool, error) {
	contentHash = strings.ToLower(strings.TrimSpace(contentHash))
	if contentHash == "" {
		return false, fmt.Errorf("content hash is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var refs int64
	if err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE file_hash = ?", contentHash).Scan(&refs); err != nil {
		return false, err
	}
	if refs > 0 {
		_ = tx.Rollback()
		return false, nil
	}

	if reclaim != nil {
		if err = reclaim(ctx); err != nil {
			return false, err
		}
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
