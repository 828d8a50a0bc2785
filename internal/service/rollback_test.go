package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/emrgen/revision/internal/compare"
	"github.com/emrgen/revision/internal/compress"
	"github.com/emrgen/revision/internal/model"
	"github.com/emrgen/revision/internal/queue"
	"github.com/emrgen/revision/internal/store"
)

// seedHistory creates two versions of one content and makes the second one
// active, so the first is a valid rollback target.
func seedHistory(t *testing.T, st store.Store, versions *VersionService) (contentID string, v1, v2 *model.Version) {
	ctx := context.TODO()
	contentID = uuid.New().String()

	v1, err := versions.CreateVersion(ctx, CreateVersionRequest{
		ContentID: contentID,
		Content: snapshotJSON(map[string]string{
			"style.css": "h1 { color: red }",
			"app.js":    "console.log(1)",
		}),
		CreatedBy: "alice",
	})
	assert.NoError(t, err)

	v2, err = versions.CreateVersion(ctx, CreateVersionRequest{
		ContentID:       contentID,
		ParentVersionID: v1.ID,
		Content: snapshotJSON(map[string]string{
			"style.css": "h1 { color: blue }\nh2 { color: gray }",
			"extra.js":  "boom()",
		}),
		CreatedBy: "alice",
	})
	assert.NoError(t, err)

	_, err = st.ActivateVersion(ctx, uuid.MustParse(v2.ID))
	assert.NoError(t, err)

	return contentID, v1, v2
}

func TestRollbackService_RollbackToVersion(t *testing.T) {
	st := testStore()
	versions := NewVersionService(st, compress.None)
	notifier := queue.NewChannelNotifier(8)
	rollbacks := NewRollbackService(st, compare.New(), notifier)
	ctx := context.TODO()

	contentID, v1, v2 := seedHistory(t, st, versions)

	record, err := rollbacks.RollbackToVersion(ctx, RollbackRequest{
		ContentID:       contentID,
		TargetVersionID: v1.ID,
		Initiator:       "bob",
		Reason:          "blue header broke the layout",
	})
	assert.NoError(t, err)
	assert.Equal(t, model.RollbackCompleted, record.Status)
	assert.Equal(t, v2.ID, record.FromVersionID)
	assert.Equal(t, v1.ID, record.ToVersionID)
	assert.NotEmpty(t, record.NewVersionID)
	assert.NotNil(t, record.CompletedAt)

	// the restore created a new active version cloning the target
	active, err := versions.GetActiveVersion(ctx, contentID)
	assert.NoError(t, err)
	assert.Equal(t, record.NewVersionID, active.ID)
	assert.Equal(t, v1.ID, active.RestoredFromID)
	assert.Equal(t, v2.ID, active.ParentVersionID)

	snap, err := SnapshotOf(active)
	assert.NoError(t, err)
	assert.Equal(t, "h1 { color: red }", snap.Files["style.css"].Body)

	// the previously active version is marked rolled back, not rewritten
	was, err := versions.GetVersion(ctx, v2.ID)
	assert.NoError(t, err)
	assert.False(t, was.IsActive)
	assert.Equal(t, model.StatusRolledBack, was.Status)

	// the target itself is untouched apart from its restore counters
	target, err := versions.GetVersion(ctx, v1.ID)
	assert.NoError(t, err)
	assert.False(t, target.IsActive)
	assert.Equal(t, int64(1), target.RestoreCount)
	assert.NotNil(t, target.LastRestoredAt)

	changes, err := record.FileChangeList()
	assert.NoError(t, err)
	byPath := make(map[string]model.FileChange, len(changes))
	for _, change := range changes {
		byPath[change.Path] = change
	}
	assert.Equal(t, "added", byPath["app.js"].ChangeType)
	assert.Equal(t, "removed", byPath["extra.js"].ChangeType)
	assert.Equal(t, "modified", byPath["style.css"].ChangeType)

	event := <-notifier.Events()
	assert.Equal(t, queue.EventRollbackFinished, event.Kind)
	assert.Equal(t, record.ID, event.RecordID)

	history, err := rollbacks.ListRollbackHistory(ctx, contentID)
	assert.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRollbackService_Preview(t *testing.T) {
	st := testStore()
	versions := NewVersionService(st, compress.None)
	rollbacks := NewRollbackService(st, compare.New(), nil)
	ctx := context.TODO()

	contentID, v1, v2 := seedHistory(t, st, versions)

	preview, err := rollbacks.PreviewRollback(ctx, contentID, v1.ID)
	assert.NoError(t, err)
	assert.Equal(t, v2.ID, preview.FromVersionID)
	assert.Equal(t, v1.ID, preview.ToVersionID)
	assert.Len(t, preview.FileChanges, 3)
	assert.Equal(t, 1, preview.Stat.FilesModified)

	// previewing writes nothing
	active, err := versions.GetActiveVersion(ctx, contentID)
	assert.NoError(t, err)
	assert.Equal(t, v2.ID, active.ID)

	history, err := rollbacks.ListRollbackHistory(ctx, contentID)
	assert.NoError(t, err)
	assert.Empty(t, history)
}

func TestRollbackService_Invalid(t *testing.T) {
	st := testStore()
	versions := NewVersionService(st, compress.None)
	rollbacks := NewRollbackService(st, compare.New(), nil)
	ctx := context.TODO()

	contentID, v1, v2 := seedHistory(t, st, versions)

	// rolling back to the active version is a conflict
	_, err := rollbacks.RollbackToVersion(ctx, RollbackRequest{
		ContentID:       contentID,
		TargetVersionID: v2.ID,
		Initiator:       "bob",
	})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	// a target from another content is rejected
	otherContent, otherV1, _ := seedHistory(t, st, versions)
	_, err = rollbacks.RollbackToVersion(ctx, RollbackRequest{
		ContentID:       contentID,
		TargetVersionID: otherV1.ID,
		Initiator:       "bob",
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_ = otherContent

	// a missing target leaves everything untouched
	_, err = rollbacks.RollbackToVersion(ctx, RollbackRequest{
		ContentID:       contentID,
		TargetVersionID: uuid.New().String(),
		Initiator:       "bob",
	})
	assert.Equal(t, codes.NotFound, status.Code(err))

	active, err := versions.GetActiveVersion(ctx, contentID)
	assert.NoError(t, err)
	assert.Equal(t, v2.ID, active.ID)

	history, err := rollbacks.ListRollbackHistory(ctx, contentID)
	assert.NoError(t, err)
	assert.Empty(t, history)

	_, err = rollbacks.RollbackToVersion(ctx, RollbackRequest{
		ContentID:       contentID,
		TargetVersionID: v1.ID,
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRollbackService_NoActiveVersion(t *testing.T) {
	st := testStore()
	versions := NewVersionService(st, compress.None)
	rollbacks := NewRollbackService(st, compare.New(), nil)
	ctx := context.TODO()

	contentID := uuid.New().String()
	v1, err := versions.CreateVersion(ctx, CreateVersionRequest{
		ContentID: contentID,
		Content:   snapshotJSON(nil),
		CreatedBy: "alice",
	})
	assert.NoError(t, err)

	_, err = rollbacks.RollbackToVersion(ctx, RollbackRequest{
		ContentID:       contentID,
		TargetVersionID: v1.ID,
		Initiator:       "bob",
	})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestRollbackService_GetRollbackTargets(t *testing.T) {
	st := testStore()
	versions := NewVersionService(st, compress.None)
	rollbacks := NewRollbackService(st, compare.New(), nil)
	ctx := context.TODO()

	contentID, v1, _ := seedHistory(t, st, versions)

	branch, err := versions.CreateBranch(ctx, contentID, "experiment", false)
	assert.NoError(t, err)
	v3, err := versions.CreateVersion(ctx, CreateVersionRequest{
		ContentID: contentID,
		BranchID:  branch.ID,
		Content:   snapshotJSON(map[string]string{"style.css": "h1 { color: green }"}),
		CreatedBy: "carol",
	})
	assert.NoError(t, err)

	// same branch only: the active version and the experiment branch drop out
	targets, err := rollbacks.GetRollbackTargets(ctx, contentID, false)
	assert.NoError(t, err)
	assert.Len(t, targets, 1)
	assert.Equal(t, v1.ID, targets[0].ID)

	targets, err = rollbacks.GetRollbackTargets(ctx, contentID, true)
	assert.NoError(t, err)
	assert.Len(t, targets, 2)
	ids := []string{targets[0].ID, targets[1].ID}
	assert.Contains(t, ids, v1.ID)
	assert.Contains(t, ids, v3.ID)
}
