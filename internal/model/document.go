package model

import "time"

// Document statuses derived from the soft-delete timestamp.
const (
	StatusActive  = "active"
	StatusTrashed = "trashed"
)

// Document represents one stored file revision in the system.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
//
// ID, Hash, Version and FilePath are write-once: they are assigned at upload
// and never change for the lifetime of the record.
type Document struct {
	ID  string `json:"id"`
	UID int64  `json:"uid"`

	Description    string `json:"description"`
	Category       string `json:"category"`
	Classification string `json:"classification"`
	Reference      string `json:"reference"`
	Comment        string `json:"comment"`

	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
	Hash     string `json:"hash"`
	Version  int    `json:"version"`

	Tags     []string       `json:"tags"`
	Metadata map[string]any `json:"metadata"`

	OwnerID string  `json:"owner_id"`
	TeamID  *string `json:"team_id,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Trashed reports whether the document is soft-deleted.
func (d *Document) Trashed() bool {
	return d.DeletedAt != nil
}

// Status returns the derived lifecycle status of the document.
func (d *Document) Status() string {
	if d.Trashed() {
		return StatusTrashed
	}
	return StatusActive
}
