package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/emrgen/revision/internal/model"
	"github.com/emrgen/revision/internal/queue"
	"github.com/emrgen/revision/internal/rules"
	"github.com/emrgen/revision/internal/store"
)

// FirstStepOrder is the order of the first workflow step. Steps are
// numbered from 1 so that a zero CurrentStep means no workflow in flight.
const FirstStepOrder = 1

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(store store.Store, notifier queue.Notifier) *ApprovalService {
	if notifier == nil {
		notifier = queue.NopNotifier{}
	}
	return &ApprovalService{
		store:    store,
		notifier: notifier,
	}
}

// ApprovalService drives the approval workflow state machine: submission,
// ordered step decisions and activation of a fully approved version.
type ApprovalService struct {
	store    store.Store
	notifier queue.Notifier
}

// StepSpec describes one workflow step at submission time.
type StepSpec struct {
	RequiredRole string
	MinApprovals int
	NotBefore    *time.Time
	NotAfter     *time.Time
}

// SubmitForApproval moves a draft or previously rejected version into the
// pending state with the given workflow steps. Resubmission replaces any
// steps left over from an earlier cycle.
func (a *ApprovalService) SubmitForApproval(ctx context.Context, versionID string, steps []StepSpec) (*model.Version, error) {
	id, err := uuid.Parse(versionID)
	if err != nil {
		return nil, invalidArgument("version id must be a valid uuid")
	}
	if len(steps) == 0 {
		return nil, invalidArgument("at least one approval step is required")
	}
	for i, step := range steps {
		if step.RequiredRole == "" {
			return nil, invalidArgument(fmt.Sprintf("step %d: required role is empty", i+FirstStepOrder))
		}
		if step.NotBefore != nil && step.NotAfter != nil && step.NotAfter.Before(*step.NotBefore) {
			return nil, invalidArgument(fmt.Sprintf("step %d: time window ends before it starts", i+FirstStepOrder))
		}
	}

	version, err := a.store.GetVersion(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if version.Status != model.StatusDraft && version.Status != model.StatusRejected {
		return nil, conflict(fmt.Sprintf("version %s is %s, only draft or rejected versions can be submitted", versionID, version.Status))
	}

	rows := make([]*model.ApprovalStep, 0, len(steps))
	for i, step := range steps {
		min := step.MinApprovals
		if min < 1 {
			min = 1
		}
		rows = append(rows, &model.ApprovalStep{
			VersionID:    version.ID,
			StepOrder:    i + FirstStepOrder,
			RequiredRole: step.RequiredRole,
			MinApprovals: min,
			NotBefore:    step.NotBefore,
			NotAfter:     step.NotAfter,
			Decision:     model.DecisionPending,
			ApprovedBy:   "[]",
		})
	}

	err = a.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.DeleteApprovalSteps(ctx, id); err != nil {
			return err
		}
		if err := tx.CreateApprovalSteps(ctx, rows); err != nil {
			return err
		}
		moved, err := tx.SubmitVersion(ctx, id, FirstStepOrder)
		if err != nil {
			return err
		}
		if moved == 0 {
			// lost the race against a concurrent submission
			return conflict(fmt.Sprintf("version %s was submitted concurrently", versionID))
		}
		return nil
	})
	if err != nil {
		if IsConflict(err) {
			return nil, err
		}
		return nil, internal(err)
	}

	logrus.Infof("submitted version %s for approval with %d steps", versionID, len(steps))

	return a.store.GetVersion(ctx, id)
}

// DecideRequest carries one approver's verdict on one workflow step.
type DecideRequest struct {
	VersionID  string
	StepOrder  int
	ApproverID string
	Role       string
	Approve    bool
}

// DecisionOutcome reports what a decision did to the workflow.
type DecisionOutcome struct {
	Step *model.ApprovalStep
	// Resolved is false while a multi-approver step waits for more
	// approvals.
	Resolved bool
	// Terminal is true once the whole workflow finished, approved or
	// rejected.
	Terminal bool
}

// Decide applies one approver's verdict to the version's current step.
// Steps resolve strictly in order; a rejection at any step ends the cycle
// and returns the version to a resubmittable state. An approver counts at
// most once per step. Of two concurrent decisions on the same step exactly
// one wins.
func (a *ApprovalService) Decide(ctx context.Context, request DecideRequest) (*DecisionOutcome, error) {
	id, err := uuid.Parse(request.VersionID)
	if err != nil {
		return nil, invalidArgument("version id must be a valid uuid")
	}
	if request.ApproverID == "" {
		return nil, invalidArgument("approver id is required")
	}

	version, err := a.store.GetVersion(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if version.Status != model.StatusPending {
		return nil, conflict(fmt.Sprintf("version %s is %s, not awaiting approval", request.VersionID, version.Status))
	}
	if request.StepOrder != version.CurrentStep {
		return nil, conflict(fmt.Sprintf("step %d is not the current step, workflow is at step %d", request.StepOrder, version.CurrentStep))
	}

	step, err := a.store.GetApprovalStep(ctx, id, request.StepOrder)
	if err != nil {
		return nil, storeErr(err)
	}
	if step.Decision != model.DecisionPending {
		return nil, conflict(fmt.Sprintf("step %d is already %s", request.StepOrder, step.Decision))
	}
	if request.Approve && step.HasApprover(request.ApproverID) {
		return nil, conflict(fmt.Sprintf("approver %s already approved step %d", request.ApproverID, request.StepOrder))
	}

	now := time.Now().UTC()
	err = rules.Evaluate(rules.ForStep(step), rules.Decision{
		ApproverID:     request.ApproverID,
		Role:           request.Role,
		At:             now,
		PriorApprovals: step.Approvals,
		Approve:        request.Approve,
	})
	switch {
	case errors.Is(err, rules.ErrRoleMismatch):
		return nil, forbidden(err.Error())
	case errors.Is(err, rules.ErrOutsideWindow):
		return nil, conflict(err.Error())
	case errors.Is(err, rules.ErrMoreApprovalsNeeded):
		return a.recordPartialApproval(ctx, version, step, request)
	case err != nil:
		return nil, internal(err)
	}

	decision := model.DecisionRejected
	if request.Approve {
		decision = model.DecisionApproved
	}

	outcome := &DecisionOutcome{Resolved: true}
	err = a.store.Transaction(ctx, func(tx store.Store) error {
		resolved, err := tx.ResolveApprovalStep(ctx, id, request.StepOrder, decision, request.ApproverID, now)
		if err != nil {
			return err
		}
		if resolved == 0 {
			return conflict(fmt.Sprintf("step %d was decided concurrently", request.StepOrder))
		}

		if !request.Approve {
			outcome.Terminal = true
			return tx.SetVersionApproval(ctx, id, model.ApprovalRejected, 0, model.StatusRejected)
		}

		_, err = tx.GetApprovalStep(ctx, id, request.StepOrder+1)
		switch {
		case err == nil:
			return tx.SetVersionApproval(ctx, id, model.ApprovalPending, request.StepOrder+1, model.StatusPending)
		case errors.Is(err, store.ErrStepNotFound):
			outcome.Terminal = true
			return tx.SetVersionApproval(ctx, id, model.ApprovalApproved, 0, model.StatusApproved)
		default:
			return err
		}
	})
	if err != nil {
		if IsConflict(err) {
			return nil, err
		}
		if errors.Is(err, store.ErrDuplicateApprover) {
			return nil, conflict(fmt.Sprintf("approver %s already approved step %d", request.ApproverID, request.StepOrder))
		}
		return nil, internal(err)
	}

	step, err = a.store.GetApprovalStep(ctx, id, request.StepOrder)
	if err != nil {
		return nil, storeErr(err)
	}
	outcome.Step = step

	a.publish(ctx, queue.Event{
		Kind:       queue.EventDecisionRecorded,
		ContentID:  version.ContentID,
		VersionID:  version.ID,
		Decision:   decision,
		Actor:      request.ApproverID,
		OccurredAt: now,
	})

	logrus.Infof("version %s step %d %s by %s", version.ID, request.StepOrder, decision, request.ApproverID)

	return outcome, nil
}

// recordPartialApproval counts one approval on a multi-approver step that
// has not reached its threshold yet. The step stays pending.
func (a *ApprovalService) recordPartialApproval(ctx context.Context, version *model.Version, step *model.ApprovalStep, request DecideRequest) (*DecisionOutcome, error) {
	id := uuid.MustParse(version.ID)

	rows, err := a.store.AddStepApproval(ctx, id, request.StepOrder, request.ApproverID)
	if errors.Is(err, store.ErrDuplicateApprover) {
		return nil, conflict(fmt.Sprintf("approver %s already approved step %d", request.ApproverID, request.StepOrder))
	}
	if err != nil {
		return nil, internal(err)
	}
	if rows == 0 {
		return nil, conflict(fmt.Sprintf("step %d was decided concurrently", request.StepOrder))
	}

	a.publish(ctx, queue.Event{
		Kind:       queue.EventDecisionRecorded,
		ContentID:  version.ContentID,
		VersionID:  version.ID,
		Decision:   model.DecisionPending,
		Actor:      request.ApproverID,
		OccurredAt: time.Now().UTC(),
	})

	logrus.Infof("version %s step %d approval %d/%d by %s",
		version.ID, request.StepOrder, step.Approvals+1, step.MinApprovals, request.ApproverID)

	step, err = a.store.GetApprovalStep(ctx, id, request.StepOrder)
	if err != nil {
		return nil, storeErr(err)
	}

	return &DecisionOutcome{Step: step}, nil
}

// ListSteps retrieves a version's workflow steps in order.
func (a *ApprovalService) ListSteps(ctx context.Context, versionID string) ([]*model.ApprovalStep, error) {
	id, err := uuid.Parse(versionID)
	if err != nil {
		return nil, invalidArgument("version id must be a valid uuid")
	}
	steps, err := a.store.ListApprovalSteps(ctx, id)
	if err != nil {
		return nil, internal(err)
	}
	return steps, nil
}

// Activate makes a fully approved version the content's active one. The
// previously active version, if any, is superseded but keeps its approved
// standing. Of two concurrent activations of the same version exactly one
// succeeds.
func (a *ApprovalService) Activate(ctx context.Context, versionID, actor string) (*model.Version, error) {
	id, err := uuid.Parse(versionID)
	if err != nil {
		return nil, invalidArgument("version id must be a valid uuid")
	}

	version, err := a.store.GetVersion(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if version.IsActive {
		return nil, conflict(ErrAlreadyActive.Error())
	}
	if version.Status != model.StatusApproved {
		return nil, conflict(fmt.Sprintf("version %s is %s, only approved versions can be activated", versionID, version.Status))
	}

	contentID := uuid.MustParse(version.ContentID)
	err = a.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.DeactivateVersions(ctx, contentID, model.StatusApproved); err != nil {
			return err
		}
		activated, err := tx.ActivateVersion(ctx, id)
		if err != nil {
			return err
		}
		if activated == 0 {
			return conflict(fmt.Sprintf("version %s was activated concurrently", versionID))
		}
		return nil
	})
	if err != nil {
		if IsConflict(err) {
			return nil, err
		}
		return nil, internal(err)
	}

	a.publish(ctx, queue.Event{
		Kind:       queue.EventVersionActivated,
		ContentID:  version.ContentID,
		VersionID:  version.ID,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	})

	logrus.Infof("activated version %s for content %s", version.ID, version.ContentID)

	return a.store.GetVersion(ctx, id)
}

func (a *ApprovalService) publish(ctx context.Context, event queue.Event) {
	if err := a.notifier.Publish(ctx, event); err != nil {
		logrus.Errorf("publishing %s event for version %s: %v", event.Kind, event.VersionID, err)
	}
}
