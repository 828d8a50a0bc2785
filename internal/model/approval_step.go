package model

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Step decisions.
const (
	DecisionPending  = "pending"
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// ApprovalStep is one ordered gate in a version's approval workflow.
// Step N can only be decided after step N-1 is approved; a rejection at any
// step is terminal for the version's approval cycle.
type ApprovalStep struct {
	gorm.Model
	VersionID    string `gorm:"uuid;not null;uniqueIndex:idx_version_step,priority:1"`
	StepOrder    int    `gorm:"not null;uniqueIndex:idx_version_step,priority:2"`
	RequiredRole string `gorm:"not null"`
	MinApprovals int    `gorm:"default:1"`
	NotBefore    *time.Time
	NotAfter     *time.Time
	Decision     string `gorm:"not null;default:'pending'"`
	DecidedBy    string
	DecidedAt    *time.Time
	Approvals    int    `gorm:"default:0"`           // recorded approvals for MinApprovals rules
	ApprovedBy   string `gorm:"not null;default:'[]'"` // JSON list of approver ids, one entry per counted approval
}

func (ApprovalStep) TableName() string {
	return "approval_steps"
}

// ApproverList decodes the recorded approver ids. A corrupted column yields
// an empty list.
func (s *ApprovalStep) ApproverList() []string {
	ids := make([]string, 0)
	if s.ApprovedBy != "" {
		_ = json.Unmarshal([]byte(s.ApprovedBy), &ids)
	}
	return ids
}

// HasApprover reports whether id already counted toward this step.
func (s *ApprovalStep) HasApprover(id string) bool {
	for _, a := range s.ApproverList() {
		if a == id {
			return true
		}
	}
	return false
}

// AddApprover appends id to the recorded approver list.
func (s *ApprovalStep) AddApprover(id string) {
	encoded, err := json.Marshal(append(s.ApproverList(), id))
	if err != nil {
		return
	}
	s.ApprovedBy = string(encoded)
}
