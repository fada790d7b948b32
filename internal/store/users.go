package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"depot/internal/models"
)

const (
	UserRoleAdmin  = "admin"
	UserRoleMember = "member"
)

const userColumns = "id, username, password_hash, role, disabled, storage_quota, storage_used, created_at, updated_at"

// CreateUser provisions one account with its storage quota.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash, role string, quotaBytes int64, now time.Time) (*models.User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, fmt.Errorf("password hash is required")
	}
	if role == "" {
		role = UserRoleMember
	}
	if quotaBytes < 0 {
		return nil, fmt.Errorf("storage quota must be >= 0")
	}

	userID, err := GenerateID("us", func(id string) (bool, error) {
		return s.userIDExists(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, disabled, storage_quota, storage_used, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, 0, ?, ?)
	`, userID, username, passwordHash, role, quotaBytes, formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	return &models.User{
		ID:           userID,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		StorageQuota: quotaBytes,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}, nil
}

// GetUserByUsername returns one account by normalized username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ? LIMIT 1`, username)
	return scanUser(row)
}

// ListUsers returns all accounts sorted by username.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		if user == nil {
			continue
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// UserExists reports whether a username is provisioned.
func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE username = ? LIMIT 1", username).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetUserDisabled updates one account's disabled state by username.
func (s *Store) SetUserDisabled(ctx context.Context, username string, disabled bool, now time.Time) (*models.User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	disabledInt := 0
	if disabled {
		disabledInt = 1
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET disabled = ?, updated_at = ? WHERE username = ?
	`, disabledInt, formatTime(now), username)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}
	return s.GetUserByUsername(ctx, username)
}

// SetUserQuota updates one account's storage quota ceiling.
func (s *Store) SetUserQuota(ctx context.Context, username string, quotaBytes int64, now time.Time) (*models.User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if quotaBytes < 0 {
		return nil, fmt.Errorf("storage quota must be >= 0")
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET storage_quota = ?, updated_at = ? WHERE username = ?
	`, quotaBytes, formatTime(now), username)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}
	return s.GetUserByUsername(ctx, username)
}

// DeleteUser deletes one account by username.
func (s *Store) DeleteUser(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" {
		return false, fmt.Errorf("username is required")
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CountEnabledUsers returns the number of non-disabled accounts.
func (s *Store) CountEnabledUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE disabled = 0").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UsageStats summarizes one owner's storage accounting.
type UsageStats struct {
	QuotaBytes     int64 `json:"quota_bytes"`
	UsedBytes      int64 `json:"used_bytes"`
	FileCount      int64 `json:"file_count"`
	DuplicateCount int64 `json:"duplicate_count"`
	// LogicalBytes is the pre-dedup total: the sum of sizes over all of
	// the owner's file rows, duplicates included.
	LogicalBytes int64 `json:"logical_bytes"`
	// SavedBytes is LogicalBytes minus UsedBytes.
	SavedBytes int64 `json:"saved_bytes"`
}

// GetUsage returns one owner's quota counters and dedup savings.
func (s *Store) GetUsage(ctx context.Context, username string) (*UsageStats, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}

	stats := UsageStats{QuotaBytes: user.StorageQuota, UsedBytes: user.StorageUsed}
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN is_duplicate = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(size), 0)
		FROM files
		WHERE uploader = ?
	`, user.Username).Scan(&stats.FileCount, &stats.DuplicateCount, &stats.LogicalBytes)
	if err != nil {
		return nil, err
	}
	stats.SavedBytes = stats.LogicalBytes - stats.UsedBytes
	if stats.SavedBytes < 0 {
		stats.SavedBytes = 0
	}
	return &stats, nil
}

// chargeQuotaTx atomically checks and increments storage_used inside tx.
// A rejected charge returns *QuotaError and leaves the row untouched.
func chargeQuotaTx(ctx context.Context, tx *sql.Tx, username string, sizeBytes int64) error {
	var quota, used int64
	err := tx.QueryRowContext(ctx, "SELECT storage_quota, storage_used FROM users WHERE username = ?", username).Scan(&quota, &used)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if used+sizeBytes > quota {
		return &QuotaError{UsedBytes: used, QuotaBytes: quota, RequestBytes: sizeBytes}
	}

	_, err = tx.ExecContext(ctx, "UPDATE users SET storage_used = storage_used + ? WHERE username = ?", sizeBytes, username)
	return err
}

// refundQuotaTx decrements storage_used inside tx, clamped at zero.
func refundQuotaTx(ctx context.Context, tx *sql.Tx, username string, sizeBytes int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET storage_used = MAX(storage_used - ?, 0)
		WHERE username = ?
	`, sizeBytes, username)
	return err
}

func (s *Store) userIDExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ? LIMIT 1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanUser(scanner interface {
	Scan(dest ...any) error
}) (*models.User, error) {
	var user models.User
	var disabled int
	var createdAt, updatedAt string
	err := scanner.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &disabled,
		&user.StorageQuota, &user.StorageUsed, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	user.Disabled = disabled != 0

	parsedCreated, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	parsedUpdated, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = parsedCreated
	user.UpdatedAt = parsedUpdated
	return &user, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
