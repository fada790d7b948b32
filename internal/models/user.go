package models

import "time"

// User is a provisioned account with its storage accounting counters.
//
// StorageUsed tracks bytes charged for non-duplicate uploads only; it is
// mutated exclusively inside upload and delete transactions.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Disabled     bool      `json:"disabled"`
	StorageQuota int64     `json:"storage_quota"`
	StorageUsed  int64     `json:"storage_used"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
