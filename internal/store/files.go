package store

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"depot/internal/models"
)

const fileColumns = "id, filename, uploader, size, file_hash, is_duplicate, folder, uploaded_at"

// GetFile returns one file record by id, or nil if missing.
func (s *Store) GetFile(ctx context.Context, id string) (*models.File, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	return scanFile(row)
}

// GetFileOwned returns one file record by id scoped to its uploader, or nil
// if missing or owned by someone else.
func (s *Store) GetFileOwned(ctx context.Context, id, owner string) (*models.File, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ? AND uploader = ?`, id, owner)
	return scanFile(row)
}

// HasPriorUpload reports whether the user already holds a record for the
// content hash. Duplicate-for-user is a per-(user, hash) property,
// independent of other users' uploads.
func (s *Store) HasPriorUpload(ctx context.Context, username, hash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM files WHERE uploader = ? AND file_hash = ? LIMIT 1",
		username, strings.ToLower(hash)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountReferences counts file records holding the hash across all users.
// A zero result makes the blob eligible for removal.
func (s *Store) CountReferences(ctx context.Context, hash string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE file_hash = ?", strings.ToLower(hash)).Scan(&count)
	return count, err
}

// CountUserDuplicates counts the user's duplicate records for the hash,
// gating deletion order of the charged original.
func (s *Store) CountUserDuplicates(ctx context.Context, username, hash string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE uploader = ? AND file_hash = ? AND is_duplicate = 1",
		username, strings.ToLower(hash)).Scan(&count)
	return count, err
}

// ListFilesByUploader lists one user's records ordered by upload time.
func (s *Store) ListFilesByUploader(ctx context.Context, username string) ([]models.File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE uploader = ? ORDER BY uploaded_at ASC, id ASC`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []models.File{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		if file != nil {
			files = append(files, *file)
		}
	}
	return files, rows.Err()
}

// FileGroup is one folder's worth of a grouped listing. The default group
// (files with no folder) has an empty Name.
type FileGroup struct {
	Name  string        `json:"name"`
	Files []models.File `json:"files"`
}

// ListFilesGrouped returns one user's records grouped by folder: the
// default group first, then named folders in lexicographic order. Folders
// the user created but has not populated appear with an empty file list.
func (s *Store) ListFilesGrouped(ctx context.Context, username string) ([]FileGroup, error) {
	files, err := s.ListFilesByUploader(ctx, username)
	if err != nil {
		return nil, err
	}
	folders, err := s.ListFolders(ctx, username)
	if err != nil {
		return nil, err
	}

	byName := map[string][]models.File{"": {}}
	for _, folder := range folders {
		if _, ok := byName[folder.Name]; !ok {
			byName[folder.Name] = []models.File{}
		}
	}
	for _, file := range files {
		byName[file.Folder] = append(byName[file.Folder], file)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	groups := make([]FileGroup, 0, len(byName))
	groups = append(groups, FileGroup{Name: "", Files: byName[""]})
	for _, name := range names {
		groups = append(groups, FileGroup{Name: name, Files: byName[name]})
	}
	return groups, nil
}

func (s *Store) fileIDExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM files WHERE id = ? LIMIT 1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanFile(scanner interface {
	Scan(dest ...any) error
}) (*models.File, error) {
	var file models.File
	var isDuplicate int
	var folder sql.NullString
	var uploadedAt string

	err := scanner.Scan(&file.ID, &file.Filename, &file.Uploader, &file.SizeBytes,
		&file.ContentHash, &isDuplicate, &folder, &uploadedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	file.IsDuplicate = isDuplicate != 0
	file.Folder = folder.String

	parsed, err := parseTime(uploadedAt)
	if err != nil {
		return nil, err
	}
	file.UploadedAt = parsed
	return &file, nil
}
