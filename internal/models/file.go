package models

import "time"

// File is one logical upload event. Many File rows may reference the same
// content hash; blob liveness is the count of rows holding a given hash.
type File struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Uploader    string    `json:"uploader"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentHash string    `json:"content_hash"`
	IsDuplicate bool      `json:"is_duplicate"`
	Folder      string    `json:"folder,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
