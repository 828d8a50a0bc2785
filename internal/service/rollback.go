package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/emrgen/revision/internal/compare"
	"github.com/emrgen/revision/internal/model"
	"github.com/emrgen/revision/internal/queue"
	"github.com/emrgen/revision/internal/snapshot"
	"github.com/emrgen/revision/internal/store"
)

// NewRollbackService creates a new RollbackService.
func NewRollbackService(store store.Store, comparator *compare.Comparator, notifier queue.Notifier) *RollbackService {
	if notifier == nil {
		notifier = queue.NopNotifier{}
	}
	return &RollbackService{
		store:      store,
		comparator: comparator,
		notifier:   notifier,
	}
}

// RollbackService restores earlier versions. A rollback never rewrites
// history: it clones the target's content into a new version and flips the
// active pointer to the clone, leaving every existing version untouched.
type RollbackService struct {
	store      store.Store
	comparator *compare.Comparator
	notifier   queue.Notifier
}

// RollbackRequest carries the inputs for a restore.
type RollbackRequest struct {
	ContentID       string
	TargetVersionID string
	Initiator       string
	Reason          string
}

// RollbackPreview reports what a rollback would change, without changing
// anything.
type RollbackPreview struct {
	FromVersionID string
	ToVersionID   string
	FileChanges   []model.FileChange
	Stat          *compare.Stat
}

// PreviewRollback compares the content's active version against the rollback
// target. Nothing is written.
func (r *RollbackService) PreviewRollback(ctx context.Context, contentID, targetVersionID string) (*RollbackPreview, error) {
	from, target, err := r.resolve(ctx, contentID, targetVersionID)
	if err != nil {
		return nil, err
	}

	before, err := SnapshotOf(from)
	if err != nil {
		return nil, internal(err)
	}
	after, err := SnapshotOf(target)
	if err != nil {
		return nil, internal(err)
	}

	return &RollbackPreview{
		FromVersionID: from.ID,
		ToVersionID:   target.ID,
		FileChanges:   r.fileChanges(before, after),
		Stat:          r.comparator.Compare(before, after),
	}, nil
}

// RollbackToVersion restores a content to an earlier version. A new version
// is created carrying the target's content and the active pointer moves to
// it atomically; the previously active version is marked rolled back. Every
// attempt leaves an audit record, failed ones included. Of two concurrent
// rollbacks of the same content exactly one succeeds.
func (r *RollbackService) RollbackToVersion(ctx context.Context, request RollbackRequest) (*model.RollbackRecord, error) {
	if request.Initiator == "" {
		return nil, invalidArgument("initiator is required")
	}

	from, target, err := r.resolve(ctx, request.ContentID, request.TargetVersionID)
	if err != nil {
		return nil, err
	}

	// the diff is precomputed so the transaction only moves pointers
	before, err := SnapshotOf(from)
	if err != nil {
		return nil, internal(err)
	}
	after, err := SnapshotOf(target)
	if err != nil {
		return nil, internal(err)
	}
	changes := r.fileChanges(before, after)

	record := &model.RollbackRecord{
		ID:            uuid.New().String(),
		ContentID:     from.ContentID,
		FromVersionID: from.ID,
		ToVersionID:   target.ID,
		Initiator:     request.Initiator,
		Reason:        request.Reason,
		Status:        model.RollbackPending,
	}
	if err := record.SetFileChanges(changes); err != nil {
		return nil, internal(err)
	}
	// the record is written before the restore so a crash mid-way still
	// leaves a pending audit trail
	if err := r.store.CreateRollbackRecord(ctx, record); err != nil {
		return nil, internal(err)
	}

	restored := &model.Version{
		ID:              uuid.New().String(),
		ContentID:       target.ContentID,
		BranchID:        target.BranchID,
		ParentVersionID: from.ID,
		Content:         target.Content,
		Compression:     target.Compression,
		Changelog:       fmt.Sprintf("Rollback to version %s", target.ID),
		Tags:            "[]",
		Status:          model.StatusApproved,
		CreatedBy:       request.Initiator,
		RestoredFromID:  target.ID,
	}

	contentID := uuid.MustParse(from.ContentID)
	now := time.Now().UTC()
	err = r.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateVersion(ctx, restored); err != nil {
			return err
		}
		if _, err := tx.DeactivateVersions(ctx, contentID, model.StatusRolledBack); err != nil {
			return err
		}
		activated, err := tx.ActivateVersion(ctx, uuid.MustParse(restored.ID))
		if err != nil {
			return err
		}
		if activated == 0 {
			return conflict("rollback lost the race for the active pointer")
		}
		return tx.BumpRestoreStats(ctx, uuid.MustParse(target.ID), now)
	})
	if err != nil {
		record.Status = model.RollbackFailed
		record.ErrorMessage = err.Error()
		if uerr := r.store.UpdateRollbackRecord(ctx, record); uerr != nil {
			logrus.Errorf("marking rollback record %s failed: %v", record.ID, uerr)
		}
		if IsConflict(err) {
			return nil, err
		}
		return nil, internal(err)
	}

	record.Status = model.RollbackCompleted
	record.NewVersionID = restored.ID
	record.CompletedAt = &now
	if err := r.store.UpdateRollbackRecord(ctx, record); err != nil {
		return nil, internal(err)
	}

	r.publish(ctx, queue.Event{
		Kind:       queue.EventRollbackFinished,
		ContentID:  record.ContentID,
		VersionID:  restored.ID,
		RecordID:   record.ID,
		Actor:      request.Initiator,
		OccurredAt: now,
	})

	logrus.Infof("rolled back content %s from version %s to %s as version %s",
		record.ContentID, from.ID, target.ID, restored.ID)

	return record, nil
}

// GetRollbackRecord retrieves one audit record.
func (r *RollbackService) GetRollbackRecord(ctx context.Context, id string) (*model.RollbackRecord, error) {
	recordID, err := uuid.Parse(id)
	if err != nil {
		return nil, invalidArgument("rollback record id must be a valid uuid")
	}
	record, err := r.store.GetRollbackRecord(ctx, recordID)
	if err != nil {
		return nil, storeErr(err)
	}
	return record, nil
}

// ListRollbackHistory retrieves a content's audit records, newest first.
func (r *RollbackService) ListRollbackHistory(ctx context.Context, contentID string) ([]*model.RollbackRecord, error) {
	id, err := uuid.Parse(contentID)
	if err != nil {
		return nil, invalidArgument("content id must be a valid uuid")
	}
	records, err := r.store.ListRollbackRecords(ctx, id)
	if err != nil {
		return nil, internal(err)
	}
	return records, nil
}

// GetRollbackTargets lists the versions a content can be rolled back to.
// Targets stay on the active version's branch unless crossBranch is set.
func (r *RollbackService) GetRollbackTargets(ctx context.Context, contentID string, crossBranch bool) ([]*model.Version, error) {
	id, err := uuid.Parse(contentID)
	if err != nil {
		return nil, invalidArgument("content id must be a valid uuid")
	}

	active, err := r.store.GetActiveVersion(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	versions, err := r.store.ListVersionsForContent(ctx, id)
	if err != nil {
		return nil, internal(err)
	}

	targets := make([]*model.Version, 0, len(versions))
	for _, version := range versions {
		if version.IsActive {
			continue
		}
		if !crossBranch && version.BranchID != active.BranchID {
			continue
		}
		targets = append(targets, version)
	}
	return targets, nil
}

// resolve loads the active version and the rollback target, validating that
// the pair makes a legal restore.
func (r *RollbackService) resolve(ctx context.Context, contentID, targetVersionID string) (from, target *model.Version, err error) {
	id, err := uuid.Parse(contentID)
	if err != nil {
		return nil, nil, invalidArgument("content id must be a valid uuid")
	}
	targetID, err := uuid.Parse(targetVersionID)
	if err != nil {
		return nil, nil, invalidArgument("target version id must be a valid uuid")
	}

	target, err = r.store.GetVersion(ctx, targetID)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	if target.ContentID != id.String() {
		return nil, nil, invalidArgument("target version belongs to a different content")
	}
	if target.IsActive {
		return nil, nil, conflict(ErrAlreadyActive.Error())
	}

	from, err = r.store.GetActiveVersion(ctx, id)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	return from, target, nil
}

func (r *RollbackService) fileChanges(before, after *snapshot.Snapshot) []model.FileChange {
	tree := r.comparator.Tree(before, after)

	changes := make([]model.FileChange, 0, len(tree.Added)+len(tree.Removed)+len(tree.Modified))
	for _, path := range tree.Added {
		changes = append(changes, model.FileChange{
			Path:       path,
			ChangeType: "added",
			Lines:      r.comparator.FileLines(before, after, path),
		})
	}
	for _, path := range tree.Removed {
		changes = append(changes, model.FileChange{
			Path:       path,
			ChangeType: "removed",
			Lines:      r.comparator.FileLines(before, after, path),
		})
	}
	for _, path := range tree.Modified {
		changes = append(changes, model.FileChange{
			Path:       path,
			ChangeType: "modified",
			Lines:      r.comparator.FileLines(before, after, path),
		})
	}
	return changes
}

func (r *RollbackService) publish(ctx context.Context, event queue.Event) {
	if err := r.notifier.Publish(ctx, event); err != nil {
		logrus.Errorf("publishing %s event for record %s: %v", event.Kind, event.RecordID, err)
	}
}
