package models

import "time"

// Share is a public tokenized link to one file.
type Share struct {
	ID            string    `json:"id"`
	FileID        string    `json:"file_id"`
	Token         string    `json:"token"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	Active        bool      `json:"active"`
	DownloadCount int64     `json:"download_count"`
}

// SharedFile is a private grant of one file to another user.
type SharedFile struct {
	ID         string    `json:"id"`
	FileID     string    `json:"file_id"`
	SharedBy   string    `json:"shared_by"`
	SharedWith string    `json:"shared_with"`
	SharedAt   time.Time `json:"shared_at"`
}
