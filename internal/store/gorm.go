package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emrgen/revision/internal/model"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func (g *GormStore) CreateBranch(ctx context.Context, branch *model.Branch) error {
	return g.db.WithContext(ctx).Create(branch).Error
}

func (g *GormStore) GetBranch(ctx context.Context, id uuid.UUID) (*model.Branch, error) {
	var branch model.Branch
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(&branch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBranchNotFound
	}
	return &branch, err
}

func (g *GormStore) GetDefaultBranch(ctx context.Context, contentID uuid.UUID) (*model.Branch, error) {
	var branch model.Branch
	err := g.db.WithContext(ctx).
		Where("content_id = ? AND is_default = ?", contentID.String(), true).
		First(&branch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBranchNotFound
	}
	return &branch, err
}

func (g *GormStore) CreateVersion(ctx context.Context, version *model.Version) error {
	return g.db.WithContext(ctx).Create(version).Error
}

func (g *GormStore) GetVersion(ctx context.Context, id uuid.UUID) (*model.Version, error) {
	var version model.Version
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVersionNotFound
	}
	return &version, err
}

func (g *GormStore) ListVersionsForContent(ctx context.Context, contentID uuid.UUID) ([]*model.Version, error) {
	var versions []*model.Version
	err := g.db.WithContext(ctx).
		Where("content_id = ?", contentID.String()).
		Order("created_at desc").
		Find(&versions).Error
	return versions, err
}

func (g *GormStore) ListVersions(ctx context.Context, filter VersionFilter) ([]*model.Version, error) {
	q := g.db.WithContext(ctx).Model(&model.Version{})
	if filter.ContentID != "" {
		q = q.Where("content_id = ?", filter.ContentID)
	}
	if filter.BranchID != "" {
		q = q.Where("branch_id = ?", filter.BranchID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var versions []*model.Version
	if err := q.Order("created_at desc").Find(&versions).Error; err != nil {
		return nil, err
	}

	// tags live in a JSON column; filter after the query
	if filter.Tag != "" {
		tagged := versions[:0]
		for _, v := range versions {
			if v.HasTag(filter.Tag) {
				tagged = append(tagged, v)
			}
		}
		versions = tagged
	}

	return versions, nil
}

func (g *GormStore) GetActiveVersion(ctx context.Context, contentID uuid.UUID) (*model.Version, error) {
	var version model.Version
	err := g.db.WithContext(ctx).
		Where("content_id = ? AND is_active = ?", contentID.String(), true).
		First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveVersion
	}
	return &version, err
}

func (g *GormStore) SubmitVersion(ctx context.Context, id uuid.UUID, firstStep int) (int64, error) {
	res := g.db.WithContext(ctx).Model(&model.Version{}).
		Where("id = ? AND status IN ?", id.String(), []string{model.StatusDraft, model.StatusRejected}).
		Updates(map[string]interface{}{
			"status":          model.StatusPending,
			"approval_status": model.ApprovalPending,
			"current_step":    firstStep,
		})
	return res.RowsAffected, res.Error
}

func (g *GormStore) SetVersionApproval(ctx context.Context, id uuid.UUID, approvalStatus string, currentStep int, status string) error {
	return g.db.WithContext(ctx).Model(&model.Version{}).
		Where("id = ?", id.String()).
		Updates(map[string]interface{}{
			"approval_status": approvalStatus,
			"current_step":    currentStep,
			"status":          status,
		}).Error
}

func (g *GormStore) DeactivateVersions(ctx context.Context, contentID uuid.UUID, status string) (int64, error) {
	res := g.db.WithContext(ctx).Model(&model.Version{}).
		Where("content_id = ? AND is_active = ?", contentID.String(), true).
		Updates(map[string]interface{}{
			"is_active": false,
			"status":    status,
		})
	return res.RowsAffected, res.Error
}

// ActivateVersion is the compare-and-swap on the active pointer: the update
// matches only while the row is inactive, so of two concurrent activations
// exactly one reports a row changed.
func (g *GormStore) ActivateVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	res := g.db.WithContext(ctx).Model(&model.Version{}).
		Where("id = ? AND is_active = ?", id.String(), false).
		Updates(map[string]interface{}{
			"is_active": true,
			"status":    model.StatusActive,
		})
	return res.RowsAffected, res.Error
}

func (g *GormStore) BumpExportStats(ctx context.Context, id uuid.UUID, size int64, at time.Time) error {
	return g.db.WithContext(ctx).Model(&model.Version{}).
		Where("id = ?", id.String()).
		Updates(map[string]interface{}{
			"export_count":     gorm.Expr("export_count + 1"),
			"last_exported_at": at,
			"export_size":      size,
		}).Error
}

func (g *GormStore) BumpRestoreStats(ctx context.Context, id uuid.UUID, at time.Time) error {
	return g.db.WithContext(ctx).Model(&model.Version{}).
		Where("id = ?", id.String()).
		Updates(map[string]interface{}{
			"restore_count":    gorm.Expr("restore_count + 1"),
			"last_restored_at": at,
		}).Error
}

func (g *GormStore) EraseVersions(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}
	return g.db.WithContext(ctx).Unscoped().Where("id IN ?", keys).Delete(&model.Version{}).Error
}

func (g *GormStore) ListContentIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := g.db.WithContext(ctx).Model(&model.Version{}).
		Distinct("content_id").
		Pluck("content_id", &ids).Error
	return ids, err
}

func (g *GormStore) CreateApprovalSteps(ctx context.Context, steps []*model.ApprovalStep) error {
	return g.db.WithContext(ctx).Create(steps).Error
}

func (g *GormStore) ListApprovalSteps(ctx context.Context, versionID uuid.UUID) ([]*model.ApprovalStep, error) {
	var steps []*model.ApprovalStep
	err := g.db.WithContext(ctx).
		Where("version_id = ?", versionID.String()).
		Order("step_order asc").
		Find(&steps).Error
	return steps, err
}

func (g *GormStore) GetApprovalStep(ctx context.Context, versionID uuid.UUID, order int) (*model.ApprovalStep, error) {
	var step model.ApprovalStep
	err := g.db.WithContext(ctx).
		Where("version_id = ? AND step_order = ?", versionID.String(), order).
		First(&step).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStepNotFound
	}
	return &step, err
}

func (g *GormStore) ResolveApprovalStep(ctx context.Context, versionID uuid.UUID, order int, decision, decidedBy string, at time.Time) (int64, error) {
	var rows int64
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		step, err := pendingStep(tx, versionID, order)
		if err != nil {
			return err
		}
		if step == nil {
			return nil
		}

		updates := map[string]interface{}{
			"decision":   decision,
			"decided_by": decidedBy,
			"decided_at": at,
		}
		if decision == model.DecisionApproved {
			if step.HasApprover(decidedBy) {
				return ErrDuplicateApprover
			}
			step.AddApprover(decidedBy)
			updates["approvals"] = step.Approvals + 1
			updates["approved_by"] = step.ApprovedBy
		}

		res := tx.Model(&model.ApprovalStep{}).
			Where("version_id = ? AND step_order = ? AND decision = ? AND approvals = ?",
				versionID.String(), order, model.DecisionPending, step.Approvals).
			Updates(updates)
		rows = res.RowsAffected
		return res.Error
	})
	return rows, err
}

func (g *GormStore) AddStepApproval(ctx context.Context, versionID uuid.UUID, order int, decidedBy string) (int64, error) {
	var rows int64
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		step, err := pendingStep(tx, versionID, order)
		if err != nil {
			return err
		}
		if step == nil {
			return nil
		}
		if step.HasApprover(decidedBy) {
			return ErrDuplicateApprover
		}
		step.AddApprover(decidedBy)

		res := tx.Model(&model.ApprovalStep{}).
			Where("version_id = ? AND step_order = ? AND decision = ? AND approvals = ?",
				versionID.String(), order, model.DecisionPending, step.Approvals).
			Updates(map[string]interface{}{
				"approvals":   step.Approvals + 1,
				"approved_by": step.ApprovedBy,
				"decided_by":  decidedBy,
			})
		rows = res.RowsAffected
		return res.Error
	})
	return rows, err
}

// pendingStep loads a step for a guarded counter update. A nil step without
// error means the step is gone or no longer pending, which the callers
// report as zero rows.
func pendingStep(tx *gorm.DB, versionID uuid.UUID, order int) (*model.ApprovalStep, error) {
	var step model.ApprovalStep
	err := tx.Where("version_id = ? AND step_order = ? AND decision = ?",
		versionID.String(), order, model.DecisionPending).
		First(&step).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &step, nil
}

func (g *GormStore) DeleteApprovalSteps(ctx context.Context, versionID uuid.UUID) error {
	return g.db.WithContext(ctx).Unscoped().
		Where("version_id = ?", versionID.String()).
		Delete(&model.ApprovalStep{}).Error
}

func (g *GormStore) CreateRollbackRecord(ctx context.Context, record *model.RollbackRecord) error {
	return g.db.WithContext(ctx).Create(record).Error
}

func (g *GormStore) UpdateRollbackRecord(ctx context.Context, record *model.RollbackRecord) error {
	return g.db.WithContext(ctx).Save(record).Error
}

func (g *GormStore) GetRollbackRecord(ctx context.Context, id uuid.UUID) (*model.RollbackRecord, error) {
	var record model.RollbackRecord
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRollbackRecordNotFound
	}
	return &record, err
}

func (g *GormStore) ListRollbackRecords(ctx context.Context, contentID uuid.UUID) ([]*model.RollbackRecord, error) {
	var records []*model.RollbackRecord
	err := g.db.WithContext(ctx).
		Where("content_id = ?", contentID.String()).
		Order("created_at desc").
		Find(&records).Error
	return records, err
}

func (g *GormStore) GetComparisonStat(ctx context.Context, version1ID, version2ID uuid.UUID) (*model.ComparisonStat, error) {
	var stat model.ComparisonStat
	err := g.db.WithContext(ctx).
		Where("version1_id = ? AND version2_id = ?", version1ID.String(), version2ID.String()).
		First(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStatNotFound
	}
	return &stat, err
}

func (g *GormStore) SaveComparisonStat(ctx context.Context, stat *model.ComparisonStat) error {
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "version1_id"}, {Name: "version2_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"files_added", "files_removed", "files_modified",
			"lines_added", "lines_removed", "report", "computed_at",
		}),
	}).Create(stat).Error
}

func (g *GormStore) DeleteComparisonStatsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := g.db.WithContext(ctx).Unscoped().
		Where("computed_at < ?", cutoff).
		Delete(&model.ComparisonStat{})
	return res.RowsAffected, res.Error
}

func (g *GormStore) DeleteComparisonStatsForVersions(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}
	return g.db.WithContext(ctx).Unscoped().
		Where("version1_id IN ? OR version2_id IN ?", keys, keys).
		Delete(&model.ComparisonStat{}).Error
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}
