package models

import "time"

// Folder is a purely organizational container scoped to one owner.
// It does not affect dedup or quota accounting.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}
