package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/emrgen/revision/internal/model"
)

var (
	// ErrVersionNotFound is returned when a version id resolves to nothing.
	ErrVersionNotFound = errors.New("version not found")
	// ErrBranchNotFound is returned when a branch id resolves to nothing.
	ErrBranchNotFound = errors.New("branch not found")
	// ErrNoActiveVersion is returned when a content has no active version.
	ErrNoActiveVersion = errors.New("no active version for content")
	// ErrRollbackRecordNotFound is returned when a rollback record id
	// resolves to nothing.
	ErrRollbackRecordNotFound = errors.New("rollback record not found")
	// ErrStepNotFound is returned when an approval step is missing.
	ErrStepNotFound = errors.New("approval step not found")
	// ErrDuplicateApprover is returned when an approver already counted
	// toward a step tries to approve it again.
	ErrDuplicateApprover = errors.New("approver already counted on step")
	// ErrStatNotFound is returned when no cached comparison stat exists
	// for a version pair.
	ErrStatNotFound = errors.New("comparison stat not found")
)

// VersionFilter narrows ListVersions. Zero values mean "any".
type VersionFilter struct {
	ContentID string
	BranchID  string
	Status    string
	Tag       string
}

type Store interface {
	VersionStore
	ApprovalStore
	RollbackStore
	ComparisonStatStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type VersionStore interface {
	// CreateBranch creates a new branch.
	CreateBranch(ctx context.Context, branch *model.Branch) error
	// GetBranch retrieves a branch by ID.
	GetBranch(ctx context.Context, id uuid.UUID) (*model.Branch, error)
	// GetDefaultBranch retrieves the default branch for a content.
	GetDefaultBranch(ctx context.Context, contentID uuid.UUID) (*model.Branch, error)
	// CreateVersion creates a new immutable version row.
	CreateVersion(ctx context.Context, version *model.Version) error
	// GetVersion retrieves a version by ID.
	GetVersion(ctx context.Context, id uuid.UUID) (*model.Version, error)
	// ListVersionsForContent retrieves all versions of a content, newest first.
	ListVersionsForContent(ctx context.Context, contentID uuid.UUID) ([]*model.Version, error)
	// ListVersions retrieves versions matching the filter, newest first.
	// Every call re-queries; there is no cursor to replay.
	ListVersions(ctx context.Context, filter VersionFilter) ([]*model.Version, error)
	// GetActiveVersion retrieves the single active version of a content.
	GetActiveVersion(ctx context.Context, contentID uuid.UUID) (*model.Version, error)
	// SubmitVersion flips a draft or rejected version to pending with the
	// given first step. Returns the number of rows moved (0 or 1).
	SubmitVersion(ctx context.Context, id uuid.UUID, firstStep int) (int64, error)
	// SetVersionApproval records the approval outcome on the version row.
	SetVersionApproval(ctx context.Context, id uuid.UUID, approvalStatus string, currentStep int, status string) error
	// DeactivateVersions clears the active flag for a content, moving the
	// previously active version to the given status. Returns rows changed.
	DeactivateVersions(ctx context.Context, contentID uuid.UUID, status string) (int64, error)
	// ActivateVersion sets the active flag on a version if and only if it
	// is not already active. Returns rows changed (the CAS outcome).
	ActivateVersion(ctx context.Context, id uuid.UUID) (int64, error)
	// BumpExportStats updates the denormalized export counters.
	BumpExportStats(ctx context.Context, id uuid.UUID, size int64, at time.Time) error
	// BumpRestoreStats updates the denormalized restore counters.
	BumpRestoreStats(ctx context.Context, id uuid.UUID, at time.Time) error
	// EraseVersions hard-deletes version rows. Only the cleanup job uses it.
	EraseVersions(ctx context.Context, ids []uuid.UUID) error
	// ListContentIDs retrieves the distinct content ids with versions.
	ListContentIDs(ctx context.Context) ([]string, error)
}

type ApprovalStore interface {
	// CreateApprovalSteps inserts a version's workflow steps.
	CreateApprovalSteps(ctx context.Context, steps []*model.ApprovalStep) error
	// ListApprovalSteps retrieves a version's steps in order.
	ListApprovalSteps(ctx context.Context, versionID uuid.UUID) ([]*model.ApprovalStep, error)
	// GetApprovalStep retrieves one step by (version, order).
	GetApprovalStep(ctx context.Context, versionID uuid.UUID, order int) (*model.ApprovalStep, error)
	// ResolveApprovalStep decides a pending step. The UPDATE's WHERE clause
	// is the compare-and-swap: it matches only while the step is still
	// pending, so exactly one concurrent caller gets rows == 1. An approving
	// decidedBy already on the step's approver list gets
	// ErrDuplicateApprover.
	ResolveApprovalStep(ctx context.Context, versionID uuid.UUID, order int, decision, decidedBy string, at time.Time) (int64, error)
	// AddStepApproval records one approval on a still-pending step without
	// resolving it (multi-approver steps). Returns rows changed; a decidedBy
	// already on the approver list gets ErrDuplicateApprover.
	AddStepApproval(ctx context.Context, versionID uuid.UUID, order int, decidedBy string) (int64, error)
	// DeleteApprovalSteps removes a version's steps before resubmission.
	DeleteApprovalSteps(ctx context.Context, versionID uuid.UUID) error
}

type RollbackStore interface {
	// CreateRollbackRecord appends a new audit record.
	CreateRollbackRecord(ctx context.Context, record *model.RollbackRecord) error
	// UpdateRollbackRecord updates a record's status fields.
	UpdateRollbackRecord(ctx context.Context, record *model.RollbackRecord) error
	// GetRollbackRecord retrieves a record by ID.
	GetRollbackRecord(ctx context.Context, id uuid.UUID) (*model.RollbackRecord, error)
	// ListRollbackRecords retrieves a content's records, newest first.
	ListRollbackRecords(ctx context.Context, contentID uuid.UUID) ([]*model.RollbackRecord, error)
}

type ComparisonStatStore interface {
	// GetComparisonStat retrieves the cached stat for an ordered pair.
	GetComparisonStat(ctx context.Context, version1ID, version2ID uuid.UUID) (*model.ComparisonStat, error)
	// SaveComparisonStat upserts the cached stat for an ordered pair.
	SaveComparisonStat(ctx context.Context, stat *model.ComparisonStat) error
	// DeleteComparisonStatsBefore prunes stats computed before the cutoff.
	DeleteComparisonStatsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// DeleteComparisonStatsForVersions prunes stats touching the versions.
	DeleteComparisonStatsForVersions(ctx context.Context, ids []uuid.UUID) error
}
