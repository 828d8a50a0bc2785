package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/emrgen/revision/internal/compress"
	"github.com/emrgen/revision/internal/model"
	"github.com/emrgen/revision/internal/queue"
)

func draftVersion(t *testing.T, versions *VersionService) *model.Version {
	version, err := versions.CreateVersion(context.TODO(), CreateVersionRequest{
		ContentID: uuid.New().String(),
		Content:   snapshotJSON(map[string]string{"style.css": "h1 {}"}),
		CreatedBy: "alice",
	})
	assert.NoError(t, err)
	return version
}

func TestApprovalService_Workflow(t *testing.T) {
	st := testStore()
	versions := NewVersionService(st, compress.None)
	approvals := NewApprovalService(st, nil)
	ctx := context.TODO()

	version := draftVersion(t, versions)

	submitted, err := approvals.SubmitForApproval(ctx, version.ID, []StepSpec{
		{RequiredRole: "editor"},
		{RequiredRole: "admin"},
	})
	assert.NoError(t, err)
	assert.Equal(t, model.StatusPending, submitted.Status)
	assert.Equal(t, 1, submitted.CurrentStep)

	// the second step cannot be decided before the first
	_, err = approvals.Decide(ctx, DecideRequest{
		VersionID: version.ID, StepOrder: 2, ApproverID: "carol", Role: "admin", Approve: true,
	})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	// wrong role is rejected
	_, err = approvals.Decide(ctx, DecideRequest{
		VersionID: version.ID, StepOrder: 1, ApproverID: "mallory", Role: "viewer", Approve: true,
	})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	outcome, err := approvals.Decide(ctx, DecideRequest{
		VersionID: version.ID, StepOrder: 1, ApproverID: "bob", Role: "editor", Approve: true,
	})
	assert.NoError(t, err)
	assert.True(t, outcome.Resolved)
	assert.False(t, outcome.Terminal)

	mid, err := versions.GetVersion(ctx, version.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusPending, mid.Status)
	assert.Equal(t, 2, mid.CurrentStep)

	// a decided step cannot be decided again
	_, err = approvals.Decide(ctx, DecideRequest{
		VersionID: version.ID, StepOrder: 1, ApproverID: "bob", Role: "editor", Approve: true,
	})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	outcome, err = approvals.Decide(ctx, DecideRequest{
		VersionID: version.ID, StepOrder: 2, ApproverID: "carol", Role: "admin", Approve: true,
	})
	assert.NoError(t, err)
	assert.True(t, outcome.Terminal)

	approved, err := versions.GetVersion(ctx, version.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)
	assert.Equal(t, model.ApprovalApproved, approved.ApprovalStatus)
	assert.Equal(t, 0, approved.CurrentStep)
}

func TestApprovalService_RejectionIsTerminal(t *testing.T) {
	st := testStore()
	versions := NewVersionService(st, compress.None)
	approvals := NewApprovalService(st, nil)
	ctx := context.TODO()

	version := draftVersion(t, versions)

	_, err := approvals.SubmitForApproval(ctx, version.ID, []StepSpec{
		{RequiredRole: "editor"},
		{RequiredRole: "admin"},
	})
	assert.NoError(t, err)

	outcome, err := approvals.Decide(ctx, DecideRequest{
		VersionID: version.ID, StepOrder: 1, ApproverID: "bob", Role: "editor", Approve: false,
	})
	assert.NoError(t, err)
	assert.True(t, outcome.Terminal)

	rejected, err := versions.GetVersion(ctx, version.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)
	assert.Equal(t, model.ApprovalRejected, rejected.ApprovalStatus)

	// no further decisions are accepted
	_, err = approvals.Decide(ctx, DecideRequest{
		VersionID: version.ID, StepOrder: 2, ApproverID: "carol", Role: "admin", Approve: true,
	})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	// a rejected version can be resubmitted with a fresh workflow
	resubmitted, err := approvals.SubmitForApproval(ctx, version.ID, []StepSpec{
		{RequiredRole: "editor"},
	})
	assert.NoError(t, err)
	assert.Equal(t, model.StatusPending, resubmitted.Status)
	assert.Equal(t, 1, resubmitted.CurrentStep)

	steps, err := approvals.ListSteps(ctx, version.ID)
	assert.NoError(t, err)
	assert.Len(t, steps, 1)
	assert.Equal(t, model.DecisionPending, steps[0].Decision)
}

func TestApprovalService_MinApprovals(t *testing.T) {
	st := testStore()
	versions := NewVersionService(st, compress.None)
	approvals := NewApprovalService(st, nil)
	ctx := context.TODO()

	version := draftVersion(t, versions)

	_, err := approvals.SubmitForApproval(ctx, version.ID, []StepSpec{
		{RequiredRole: "editor", MinApprovals: 2},
	})
	assert.NoError(t, err)

	outcome, err := approvals.Decide(ctx, DecideRequest{
		VersionID: version.ID, StepOrder: 1, ApproverID: "bob", Role: "editor", Approve: true,
	})
	assert.NoError(t, err)
	assert.False(t, outcome.Resolved)
	assert.Equal(t, 1, outcome.Step.Approvals)

	outcome, err = approvals.Decide(ctx, DecideRequest{
		VersionID: version.ID, StepOrder: 1, ApproverID: "carol", Role: "editor", Approve: true,
	})
	assert.NoError(t, err)
	assert.True(t, outcome.Terminal)
	assert.Equal(t, 2, outcome.Step.Approvals)
	assert.Equal(t, []string{"bob", "carol"}, outcome.Step.ApproverList())
}

func TestApprovalService_DuplicateApprover(t *testing.T) {
	st := testStore()
	versions := NewVersionService(st, compress.None)
	approvals := NewApprovalService(st, nil)
	ctx := context.TODO()

	version := draftVersion(t, versions)

	_, err := approvals.SubmitForApproval(ctx, version.ID, []StepSpec{
		{RequiredRole: "editor", MinApprovals: 2},
	})
	assert.NoError(t, err)

	outcome, err := approvals.Decide(ctx, DecideRequest{
		VersionID: version.ID, StepOrder: 1, ApproverID: "bob", Role: "editor", Approve: true,
	})
	assert.NoError(t, err)
	assert.False(t, outcome.Resolved)

	// one approver cannot satisfy the threshold alone
	_, err = approvals.Decide(ctx, DecideRequest{
		VersionID: version.ID, StepOrder: 1, ApproverID: "bob", Role: "editor", Approve: true,
	})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	fetched, err := approvals.ListSteps(ctx, version.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, fetched[0].Approvals)
	assert.Equal(t, []string{"bob"}, fetched[0].ApproverList())

	// a repeat approver can still reject the step
	outcome, err = approvals.Decide(ctx, DecideRequest{
		VersionID: version.ID, StepOrder: 1, ApproverID: "bob", Role: "editor", Approve: false,
	})
	assert.NoError(t, err)
	assert.True(t, outcome.Terminal)
}

func TestApprovalService_TimeWindow(t *testing.T) {
	st := testStore()
	versions := NewVersionService(st, compress.None)
	approvals := NewApprovalService(st, nil)
	ctx := context.TODO()

	version := draftVersion(t, versions)

	notBefore := time.Now().Add(time.Hour)
	_, err := approvals.SubmitForApproval(ctx, version.ID, []StepSpec{
		{RequiredRole: "editor", NotBefore: &notBefore},
	})
	assert.NoError(t, err)

	_, err = approvals.Decide(ctx, DecideRequest{
		VersionID: version.ID, StepOrder: 1, ApproverID: "bob", Role: "editor", Approve: true,
	})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestApprovalService_SubmitValidation(t *testing.T) {
	st := testStore()
	versions := NewVersionService(st, compress.None)
	approvals := NewApprovalService(st, nil)
	ctx := context.TODO()

	version := draftVersion(t, versions)

	_, err := approvals.SubmitForApproval(ctx, version.ID, nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = approvals.SubmitForApproval(ctx, version.ID, []StepSpec{{RequiredRole: ""}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	// already pending versions cannot be submitted again
	_, err = approvals.SubmitForApproval(ctx, version.ID, []StepSpec{{RequiredRole: "editor"}})
	assert.NoError(t, err)
	_, err = approvals.SubmitForApproval(ctx, version.ID, []StepSpec{{RequiredRole: "editor"}})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestApprovalService_Activate(t *testing.T) {
	st := testStore()
	versions := NewVersionService(st, compress.None)
	notifier := queue.NewChannelNotifier(8)
	approvals := NewApprovalService(st, notifier)
	ctx := context.TODO()

	version := draftVersion(t, versions)

	// drafts cannot be activated
	_, err := approvals.Activate(ctx, version.ID, "alice")
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = approvals.SubmitForApproval(ctx, version.ID, []StepSpec{{RequiredRole: "editor"}})
	assert.NoError(t, err)
	_, err = approvals.Decide(ctx, DecideRequest{
		VersionID: version.ID, StepOrder: 1, ApproverID: "bob", Role: "editor", Approve: true,
	})
	assert.NoError(t, err)

	active, err := approvals.Activate(ctx, version.ID, "alice")
	assert.NoError(t, err)
	assert.True(t, active.IsActive)
	assert.Equal(t, model.StatusActive, active.Status)

	// activating the active version again conflicts
	_, err = approvals.Activate(ctx, version.ID, "alice")
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	// decision and activation events were published
	kinds := make(map[string]int)
	for len(notifier.Events()) > 0 {
		event := <-notifier.Events()
		kinds[event.Kind]++
	}
	assert.Equal(t, 1, kinds[queue.EventDecisionRecorded])
	assert.Equal(t, 1, kinds[queue.EventVersionActivated])
}
