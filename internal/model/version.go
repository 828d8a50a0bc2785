package model

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Version statuses. A version moves forward through these only via the
// approval or rollback services, never directly.
const (
	StatusDraft      = "draft"
	StatusPending    = "pending"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusActive     = "active"
	StatusRolledBack = "rolled_back"
)

// Approval statuses kept separate from the version status so a fully
// approved version can be held before activation.
const (
	ApprovalNone     = ""
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Version is an immutable snapshot of content or theme configuration.
// Content never changes after creation; only the status/approval fields and
// the denormalized export/restore counters do.
type Version struct {
	gorm.Model
	ID              string `gorm:"primaryKey;uuid;not null"`
	ContentID       string `gorm:"uuid;not null;index"`
	BranchID        string `gorm:"uuid;not null;index"`
	ParentVersionID string `gorm:"uuid;index"` // empty for lineage roots
	Content         string `gorm:"not null"`   // compressed snapshot blob
	Compression     string // codec used for Content: none, gzip, lz4, brotli
	Changelog       string
	Tags            string `gorm:"default:'[]'"` // JSON array of strings
	Status          string `gorm:"not null;default:'draft';index"`
	ApprovalStatus  string `gorm:"index"`
	CurrentStep     int    `gorm:"default:0"` // 0 when no workflow is in flight
	CreatedBy       string `gorm:"not null"`
	RestoredFromID  string `gorm:"uuid"` // set when this version was created by a rollback
	IsActive        bool   `gorm:"not null;default:false;index"`

	ExportCount    int64
	LastExportedAt *time.Time
	ExportSize     int64
	RestoreCount   int64
	LastRestoredAt *time.Time
}

func (Version) TableName() string {
	return "versions"
}

// TagList decodes the JSON tag set. A corrupted column yields an empty list
// rather than an error; tags are advisory metadata.
func (v *Version) TagList() []string {
	tags := make([]string, 0)
	if v.Tags != "" {
		_ = json.Unmarshal([]byte(v.Tags), &tags)
	}
	return tags
}

func (v *Version) HasTag(tag string) bool {
	for _, t := range v.TagList() {
		if t == tag {
			return true
		}
	}
	return false
}

// Branch is a named lineage root. Every version belongs to exactly one
// branch; parenting across branches is rejected by the version service.
type Branch struct {
	gorm.Model
	ID        string `gorm:"primaryKey;uuid;not null"`
	ContentID string `gorm:"uuid;not null;index"`
	Name      string `gorm:"not null"`
	IsDefault bool   `gorm:"not null;default:false"`
}

func (Branch) TableName() string {
	return "branches"
}
