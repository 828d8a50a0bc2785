package model

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Rollback record statuses.
const (
	RollbackPending   = "pending"
	RollbackCompleted = "completed"
	RollbackFailed    = "failed"
)

// FileChange is one entry in a rollback record's file change list.
type FileChange struct {
	Path       string `json:"path"`
	ChangeType string `json:"change_type"` // added, removed, modified
	Lines      int    `json:"lines"`
}

// RollbackRecord is the append-only audit entry for a restore operation.
// Records are created pending, move to completed or failed, and are never
// deleted.
type RollbackRecord struct {
	gorm.Model
	ID            string `gorm:"primaryKey;uuid;not null"`
	ContentID     string `gorm:"uuid;not null;index"`
	FromVersionID string `gorm:"uuid;not null"` // previously active version
	ToVersionID   string `gorm:"uuid;not null"` // version restored to
	NewVersionID  string `gorm:"uuid"`          // version created by the restore
	Initiator     string `gorm:"not null"`
	Reason        string
	Status        string `gorm:"not null;default:'pending';index"`
	FileChanges   string // JSON list of FileChange
	ErrorMessage  string
	CompletedAt   *time.Time
}

func (RollbackRecord) TableName() string {
	return "rollback_records"
}

func (r *RollbackRecord) FileChangeList() ([]FileChange, error) {
	changes := make([]FileChange, 0)
	if r.FileChanges == "" {
		return changes, nil
	}
	if err := json.Unmarshal([]byte(r.FileChanges), &changes); err != nil {
		return nil, err
	}
	return changes, nil
}

func (r *RollbackRecord) SetFileChanges(changes []FileChange) error {
	data, err := json.Marshal(changes)
	if err != nil {
		return err
	}
	r.FileChanges = string(data)
	return nil
}
