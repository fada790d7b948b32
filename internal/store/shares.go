package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"depot/internal/models"
)

const shareColumns = "id, file_id, share_token, created_by, created_at, is_active, download_count"

// CreateShare creates a public tokenized link for one file. If the file
// already has an active link the existing one is returned and the supplied
// token is ignored.
func (s *Store) CreateShare(ctx context.Context, fileID, token, createdBy string, now time.Time) (*models.Share, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("share token is required")
	}

	existing, err := s.GetActiveShareByFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	shareID, err := GenerateID("sh", func(id string) (bool, error) {
		return s.shareIDExists(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shares (id, file_id, share_token, created_by, created_at, is_active, download_count)
		VALUES (?, ?, ?, ?, ?, 1, 0)
	`, shareID, fileID, token, createdBy, formatTime(now))
	if err != nil {
		return nil, err
	}

	return &models.Share{
		ID:        shareID,
		FileID:    fileID,
		Token:     token,
		CreatedBy: createdBy,
		CreatedAt: now.UTC(),
		Active:    true,
	}, nil
}

// GetShareByToken returns one public link by token, active or not.
func (s *Store) GetShareByToken(ctx context.Context, token string) (*models.Share, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE share_token = ? LIMIT 1`, token)
	return scanShare(row)
}

// GetActiveShareByFile returns the file's active public link, or nil.
func (s *Store) GetActiveShareByFile(ctx context.Context, fileID string) (*models.Share, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE file_id = ? AND is_active = 1 LIMIT 1`, fileID)
	return scanShare(row)
}

// DeactivateSharesForFile revokes all active public links for one file.
// Returns the number of links revoked.
func (s *Store) DeactivateSharesForFile(ctx context.Context, fileID string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE shares SET is_active = 0 WHERE file_id = ? AND is_active = 1", fileID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// IncrementDownloadCount bumps one link's download counter.
func (s *Store) IncrementDownloadCount(ctx context.Context, shareID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE shares SET download_count = download_count + 1 WHERE id = ?", shareID)
	return err
}

// CreateGrant shares one file privately with another user. Granting the
// same file to the same user twice is a no-op returning the existing grant.
func (s *Store) CreateGrant(ctx context.Context, fileID, sharedBy, sharedWith string, now time.Time) (*models.SharedFile, error) {
	grantID, err := GenerateID("gr", func(id string) (bool, error) {
		return s.grantIDExists(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shared_files (id, file_id, shared_by, shared_with, shared_at)
		VALUES (?, ?, ?, ?, ?)
	`, grantID, fileID, sharedBy, sharedWith, formatTime(now))
	if err != nil {
		if isUniqueConstraintError(err) {
			return s.getGrant(ctx, fileID, sharedWith)
		}
		return nil, err
	}

	return &models.SharedFile{
		ID:         grantID,
		FileID:     fileID,
		SharedBy:   sharedBy,
		SharedWith: sharedWith,
		SharedAt:   now.UTC(),
	}, nil
}

// HasGrant reports whether a file is privately shared with the user.
func (s *Store) HasGrant(ctx context.Context, fileID, sharedWith string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM shared_files WHERE file_id = ? AND shared_with = ? LIMIT 1",
		fileID, sharedWith).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SharedEntry is one inbound private grant joined with its file record.
type SharedEntry struct {
	File     models.File `json:"file"`
	SharedBy string      `json:"shared_by"`
	SharedAt time.Time   `json:"shared_at"`
}

// ListSharedWithUser lists files other users have privately shared with
// the given user, newest grant first.
func (s *Store) ListSharedWithUser(ctx context.Context, username string) ([]SharedEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.filename, f.uploader, f.size, f.file_hash, f.is_duplicate, f.folder, f.uploaded_at,
		       sf.shared_by, sf.shared_at
		FROM shared_files sf
		JOIN files f ON f.id = sf.file_id
		WHERE sf.shared_with = ?
		ORDER BY sf.shared_at DESC, sf.id ASC
	`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []SharedEntry{}
	for rows.Next() {
		var entry SharedEntry
		var isDuplicate int
		var folder sql.NullString
		var uploadedAt, sharedAt string
		err := rows.Scan(&entry.File.ID, &entry.File.Filename, &entry.File.Uploader,
			&entry.File.SizeBytes, &entry.File.ContentHash, &isDuplicate, &folder,
			&uploadedAt, &entry.SharedBy, &sharedAt)
		if err != nil {
			return nil, err
		}
		entry.File.IsDuplicate = isDuplicate != 0
		entry.File.Folder = folder.String
		if entry.File.UploadedAt, err = parseTime(uploadedAt); err != nil {
			return nil, err
		}
		if entry.SharedAt, err = parseTime(sharedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) getGrant(ctx context.Context, fileID, sharedWith string) (*models.SharedFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, file_id, shared_by, shared_with, shared_at
		FROM shared_files
		WHERE file_id = ? AND shared_with = ?
		LIMIT 1
	`, fileID, sharedWith)

	var grant models.SharedFile
	var sharedAt string
	err := row.Scan(&grant.ID, &grant.FileID, &grant.SharedBy, &grant.SharedWith, &sharedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if grant.SharedAt, err = parseTime(sharedAt); err != nil {
		return nil, err
	}
	return &grant, nil
}

func (s *Store) shareIDExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM shares WHERE id = ? LIMIT 1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) grantIDExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM shared_files WHERE id = ? LIMIT 1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// deleteSharesForFileTx removes all public links and private grants for
// one file inside the deletion transaction.
func deleteSharesForFileTx(ctx context.Context, tx *sql.Tx, fileID string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM shares WHERE file_id = ?", fileID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM shared_files WHERE file_id = ?", fileID)
	return err
}

func scanShare(scanner interface {
	Scan(dest ...any) error
}) (*models.Share, error) {
	var share models.Share
	var active int
	var createdAt string
	err := scanner.Scan(&share.ID, &share.FileID, &share.Token, &share.CreatedBy,
		&createdAt, &active, &share.DownloadCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	share.Active = active != 0

	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	share.CreatedAt = parsed
	return &share, nil
}
