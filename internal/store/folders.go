package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"depot/internal/models"
)

const folderColumns = "id, name, owner, created_at"

// CreateFolder creates one named folder for an owner. Folder names are
// unique per owner.
func (s *Store) CreateFolder(ctx context.Context, name, owner string, now time.Time) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("folder name is required")
	}
	if strings.TrimSpace(owner) == "" {
		return nil, fmt.Errorf("folder owner is required")
	}

	folderID, err := GenerateFolderID(func(id string) (bool, error) {
		return s.folderIDExists(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO folders (id, name, owner, created_at)
		VALUES (?, ?, ?, ?)
	`, folderID, name, owner, formatTime(now))
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrFolderExists
		}
		return nil, err
	}

	return &models.Folder{ID: folderID, Name: name, Owner: owner, CreatedAt: now.UTC()}, nil
}

// GetFolderByName returns one owner's folder by name, or nil if missing.
func (s *Store) GetFolderByName(ctx context.Context, owner, name string) (*models.Folder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE owner = ? AND name = ? LIMIT 1`, owner, name)
	return scanFolder(row)
}

// ListFolders returns one owner's folders sorted by name.
func (s *Store) ListFolders(ctx context.Context, owner string) ([]models.Folder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE owner = ? ORDER BY name ASC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		if folder != nil {
			folders = append(folders, *folder)
		}
	}
	return folders, rows.Err()
}

func (s *Store) folderIDExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM folders WHERE id = ? LIMIT 1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanFolder(scanner interface {
	Scan(dest ...any) error
}) (*models.Folder, error) {
	var folder models.Folder
	var createdAt string
	err := scanner.Scan(&folder.ID, &folder.Name, &folder.Owner, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	folder.CreatedAt = parsed
	return &folder, nil
}
