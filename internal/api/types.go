package api

import (
	"time"

	"depot/internal/models"
)

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// LoginRequest carries credentials for session login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns the session token and account summary.
type LoginResponse struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UsageResponse summarizes the caller's storage accounting.
type UsageResponse struct {
	Username       string `json:"username"`
	Role           string `json:"role"`
	QuotaBytes     int64  `json:"quota_bytes"`
	UsedBytes      int64  `json:"used_bytes"`
	FileCount      int64  `json:"file_count"`
	DuplicateCount int64  `json:"duplicate_count"`
	LogicalBytes   int64  `json:"logical_bytes"`
	SavedBytes     int64  `json:"saved_bytes"`
	UsedDisplay    string `json:"used_display"`
	QuotaDisplay   string `json:"quota_display"`
	UsedPercent    string `json:"used_percent"`
}

// Upload result statuses.
const (
	UploadStatusStored    = "stored"
	UploadStatusDuplicate = "duplicate"
	UploadStatusFailed    = "failed"
)

// UploadResult reports the outcome for one file of a batch upload.
type UploadResult struct {
	Filename string       `json:"filename"`
	Status   string       `json:"status"`
	Error    string       `json:"error,omitempty"`
	File     *models.File `json:"file,omitempty"`
}

// UploadBatchResponse reports aggregate counts for one upload batch.
// Uploaded counts every recorded file, duplicates included; Skipped
// counts files rejected by the storage quota.
type UploadBatchResponse struct {
	Uploaded int            `json:"uploaded"`
	Skipped  int            `json:"skipped"`
	Results  []UploadResult `json:"results"`
}

// FileGroup is one folder's worth of a grouped listing. The unfoldered
// group has an empty Name and always comes first.
type FileGroup struct {
	Name  string        `json:"name"`
	Files []models.File `json:"files"`
}

// ListFilesResponse is the grouped file listing.
type ListFilesResponse struct {
	Groups []FileGroup `json:"groups"`
}

// FolderCreateRequest names a new folder.
type FolderCreateRequest struct {
	Name string `json:"name"`
}

// ShareResponse describes a public tokenized link.
type ShareResponse struct {
	FileID        string    `json:"file_id"`
	Token         string    `json:"token"`
	URL           string    `json:"url"`
	Active        bool      `json:"active"`
	DownloadCount int64     `json:"download_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// UnshareResponse reports how many links were revoked.
type UnshareResponse struct {
	Revoked int64 `json:"revoked"`
}

// GrantRequest names the user a file is privately shared with.
type GrantRequest struct {
	Username string `json:"username"`
}

// GrantResponse confirms a private grant.
type GrantResponse struct {
	FileID     string    `json:"file_id"`
	SharedWith string    `json:"shared_with"`
	SharedAt   time.Time `json:"shared_at"`
}

// SharedEntry is one inbound private grant.
type SharedEntry struct {
	File     models.File `json:"file"`
	SharedBy string      `json:"shared_by"`
	SharedAt time.Time   `json:"shared_at"`
}

// GCResponse reports one orphan blob sweep.
type GCResponse struct {
	DryRun         bool     `json:"dry_run"`
	ScannedBlobs   int      `json:"scanned_blobs"`
	OrphanBlobs    int      `json:"orphan_blobs"`
	RemovedBlobs   int      `json:"removed_blobs"`
	ReclaimedBytes int64    `json:"reclaimed_bytes"`
	Orphans        []string `json:"orphans,omitempty"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status string `json:"status"`
}
