package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/emrgen/revision/internal/compress"
	"github.com/emrgen/revision/internal/diff"
	"github.com/emrgen/revision/internal/model"
	"github.com/emrgen/revision/internal/snapshot"
	"github.com/emrgen/revision/internal/store"
)

// DefaultBranchName is the branch bootstrapped for a content on its first
// version when the caller does not name one.
const DefaultBranchName = "main"

// NewVersionService creates a new VersionService. compression names the
// codec applied to content blobs at rest.
func NewVersionService(store store.Store, compression string) *VersionService {
	return &VersionService{
		store:       store,
		compression: compression,
	}
}

// VersionService owns version and branch creation and all read paths over
// the version history.
type VersionService struct {
	store       store.Store
	compression string
}

// CreateVersionRequest carries the inputs for a new immutable version.
type CreateVersionRequest struct {
	ContentID       string
	BranchID        string // empty selects the content's default branch
	ParentVersionID string
	Content         []byte // snapshot JSON; copied, never referenced
	Changelog       string
	Tags            []string
	CreatedBy       string
}

// CreateVersion allocates a new immutable version. The content buffer is
// deep-copied through the snapshot codec, so later mutation of the caller's
// buffer cannot corrupt history. Cross-branch parenting is rejected.
func (v *VersionService) CreateVersion(ctx context.Context, request CreateVersionRequest) (*model.Version, error) {
	contentID, err := uuid.Parse(request.ContentID)
	if err != nil {
		return nil, invalidArgument("content id must be a valid uuid")
	}
	if request.CreatedBy == "" {
		return nil, invalidArgument("created_by is required")
	}

	// decoding validates the blob and re-encoding copies it
	snap, err := snapshot.Decode(request.Content)
	if err != nil {
		return nil, invalidArgument(fmt.Sprintf("content is not a valid snapshot: %v", err))
	}

	branch, err := v.resolveBranch(ctx, contentID, request.BranchID)
	if err != nil {
		return nil, err
	}

	if request.ParentVersionID != "" {
		parentID, err := uuid.Parse(request.ParentVersionID)
		if err != nil {
			return nil, invalidArgument("parent version id must be a valid uuid")
		}
		parent, err := v.store.GetVersion(ctx, parentID)
		if err != nil {
			return nil, storeErr(err)
		}
		if parent.ContentID != contentID.String() {
			return nil, invalidArgument(ErrContentMismatch.Error())
		}
		if parent.BranchID != branch.ID {
			return nil, invalidArgument(ErrCrossBranchParent.Error())
		}
	}

	content, err := v.encodeSnapshot(snap)
	if err != nil {
		return nil, internal(err)
	}

	tags := request.Tags
	if tags == nil {
		tags = make([]string, 0)
	}
	tagData, err := json.Marshal(tags)
	if err != nil {
		return nil, internal(err)
	}

	version := &model.Version{
		ID:              uuid.New().String(),
		ContentID:       contentID.String(),
		BranchID:        branch.ID,
		ParentVersionID: request.ParentVersionID,
		Content:         content,
		Compression:     v.compression,
		Changelog:       request.Changelog,
		Tags:            string(tagData),
		Status:          model.StatusDraft,
		CreatedBy:       request.CreatedBy,
	}

	if err := v.store.CreateVersion(ctx, version); err != nil {
		return nil, internal(err)
	}

	logrus.Infof("created version %s for content %s on branch %s", version.ID, version.ContentID, branch.Name)

	return version, nil
}

// GetVersion retrieves a version by id.
func (v *VersionService) GetVersion(ctx context.Context, id string) (*model.Version, error) {
	versionID, err := uuid.Parse(id)
	if err != nil {
		return nil, invalidArgument("version id must be a valid uuid")
	}

	version, err := v.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, storeErr(err)
	}
	return version, nil
}

// ListForContent retrieves all versions of a content, newest first.
func (v *VersionService) ListForContent(ctx context.Context, contentID string) ([]*model.Version, error) {
	id, err := uuid.Parse(contentID)
	if err != nil {
		return nil, invalidArgument("content id must be a valid uuid")
	}

	versions, err := v.store.ListVersionsForContent(ctx, id)
	if err != nil {
		return nil, internal(err)
	}
	return versions, nil
}

// ListVersions retrieves versions matching the filter, newest first. Each
// call re-queries the store.
func (v *VersionService) ListVersions(ctx context.Context, filter store.VersionFilter) ([]*model.Version, error) {
	versions, err := v.store.ListVersions(ctx, filter)
	if err != nil {
		return nil, internal(err)
	}
	return versions, nil
}

// GetActiveVersion retrieves the single active version of a content.
func (v *VersionService) GetActiveVersion(ctx context.Context, contentID string) (*model.Version, error) {
	id, err := uuid.Parse(contentID)
	if err != nil {
		return nil, invalidArgument("content id must be a valid uuid")
	}

	version, err := v.store.GetActiveVersion(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return version, nil
}

// CreateBranch creates a named lineage root for a content.
func (v *VersionService) CreateBranch(ctx context.Context, contentID, name string, isDefault bool) (*model.Branch, error) {
	id, err := uuid.Parse(contentID)
	if err != nil {
		return nil, invalidArgument("content id must be a valid uuid")
	}
	if name == "" {
		return nil, invalidArgument("branch name is required")
	}

	branch := &model.Branch{
		ID:        uuid.New().String(),
		ContentID: id.String(),
		Name:      name,
		IsDefault: isDefault,
	}
	if err := v.store.CreateBranch(ctx, branch); err != nil {
		return nil, internal(err)
	}
	return branch, nil
}

// TimelineEntry is one row of a content's version timeline.
type TimelineEntry struct {
	VersionID string `json:"version_id"`
	BranchID  string `json:"branch_id"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at"`
	Status    string `json:"status"`
	IsActive  bool   `json:"is_active"`
	Summary   string `json:"summary"`
}

// Timeline lists a content's versions newest first with a short
// human-readable summary per version.
func (v *VersionService) Timeline(ctx context.Context, contentID string) ([]TimelineEntry, error) {
	versions, err := v.ListForContent(ctx, contentID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*model.Version, len(versions))
	for _, version := range versions {
		byID[version.ID] = version
	}

	entries := make([]TimelineEntry, 0, len(versions))
	for _, version := range versions {
		entries = append(entries, TimelineEntry{
			VersionID: version.ID,
			BranchID:  version.BranchID,
			CreatedBy: version.CreatedBy,
			CreatedAt: version.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Status:    version.Status,
			IsActive:  version.IsActive,
			Summary:   summarize(version, byID[version.ParentVersionID]),
		})
	}
	return entries, nil
}

func summarize(version, parent *model.Version) string {
	switch {
	case version.RestoredFromID != "":
		return fmt.Sprintf("Rollback to version %s", version.RestoredFromID)
	case version.IsActive:
		return "Current active version"
	case version.ParentVersionID == "":
		return "Initial version"
	case version.Changelog != "":
		return version.Changelog
	}
	if parent != nil {
		if summary := fileChangeSummary(parent, version); summary != "" {
			return summary
		}
	}
	return "Revision"
}

// fileChangeSummary describes a version by its file-level delta against the
// parent. Returns "" when the delta cannot be computed or is empty.
func fileChangeSummary(parent, version *model.Version) string {
	before, err := SnapshotOf(parent)
	if err != nil {
		return ""
	}
	after, err := SnapshotOf(version)
	if err != nil {
		return ""
	}
	tree := diff.Tree(before.Manifest(), after.Manifest())
	switch {
	case len(tree.Added) > 0 || len(tree.Removed) > 0:
		return fmt.Sprintf("%d additions, %d removals", len(tree.Added), len(tree.Removed))
	case len(tree.Modified) > 0:
		return fmt.Sprintf("%d files modified", len(tree.Modified))
	}
	return ""
}

// CleanupOldVersions prunes a content's oldest non-active, untagged,
// non-restored versions beyond keep, together with their approval steps and
// cached comparison stats. Versions awaiting approval are never pruned.
// Returns the number of versions erased.
func (v *VersionService) CleanupOldVersions(ctx context.Context, contentID string, keep int) (int, error) {
	id, err := uuid.Parse(contentID)
	if err != nil {
		return 0, invalidArgument("content id must be a valid uuid")
	}
	if keep < 0 {
		return 0, invalidArgument("keep must not be negative")
	}

	versions, err := v.store.ListVersionsForContent(ctx, id)
	if err != nil {
		return 0, internal(err)
	}

	var prunable []uuid.UUID
	var kept int
	for _, version := range versions {
		if version.IsActive || version.Status == model.StatusPending ||
			version.RestoredFromID != "" || len(version.TagList()) > 0 {
			continue
		}
		if kept < keep {
			kept++
			continue
		}
		prunable = append(prunable, uuid.MustParse(version.ID))
	}

	if len(prunable) == 0 {
		return 0, nil
	}

	err = v.store.Transaction(ctx, func(tx store.Store) error {
		for _, versionID := range prunable {
			if err := tx.DeleteApprovalSteps(ctx, versionID); err != nil {
				return err
			}
		}
		if err := tx.DeleteComparisonStatsForVersions(ctx, prunable); err != nil {
			return err
		}
		return tx.EraseVersions(ctx, prunable)
	})
	if err != nil {
		return 0, internal(err)
	}

	logrus.Infof("pruned %d versions for content %s", len(prunable), contentID)

	return len(prunable), nil
}

func (v *VersionService) resolveBranch(ctx context.Context, contentID uuid.UUID, branchID string) (*model.Branch, error) {
	if branchID != "" {
		id, err := uuid.Parse(branchID)
		if err != nil {
			return nil, invalidArgument("branch id must be a valid uuid")
		}
		branch, err := v.store.GetBranch(ctx, id)
		if err != nil {
			return nil, storeErr(err)
		}
		if branch.ContentID != contentID.String() {
			return nil, invalidArgument("branch belongs to a different content")
		}
		return branch, nil
	}

	branch, err := v.store.GetDefaultBranch(ctx, contentID)
	if err == nil {
		return branch, nil
	}
	if err != store.ErrBranchNotFound {
		return nil, internal(err)
	}

	// first version of this content bootstraps the default branch
	branch = &model.Branch{
		ID:        uuid.New().String(),
		ContentID: contentID.String(),
		Name:      DefaultBranchName,
		IsDefault: true,
	}
	if err := v.store.CreateBranch(ctx, branch); err != nil {
		return nil, internal(err)
	}
	return branch, nil
}

func (v *VersionService) encodeSnapshot(snap *snapshot.Snapshot) (string, error) {
	data, err := snap.Encode()
	if err != nil {
		return "", err
	}

	codec, err := compress.ForName(v.compression)
	if err != nil {
		return "", err
	}
	encoded, err := codec.Encode(data)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// SnapshotOf decodes a version's content blob through its recorded codec.
func SnapshotOf(version *model.Version) (*snapshot.Snapshot, error) {
	codec, err := compress.ForName(version.Compression)
	if err != nil {
		return nil, err
	}
	data, err := codec.Decode([]byte(version.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupted, err)
	}
	snap, err := snapshot.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupted, err)
	}
	return snap, nil
}
