package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/emrgen/revision/internal/model"
)

func TestEvaluate_RoleRequired(t *testing.T) {
	set := ForStep(&model.ApprovalStep{RequiredRole: "editor", MinApprovals: 1})

	err := Evaluate(set, Decision{Role: "editor", At: time.Now(), Approve: true})
	assert.NoError(t, err)

	err = Evaluate(set, Decision{Role: "viewer", At: time.Now(), Approve: true})
	assert.ErrorIs(t, err, ErrRoleMismatch)
}

func TestEvaluate_MinApprovals(t *testing.T) {
	set := ForStep(&model.ApprovalStep{RequiredRole: "editor", MinApprovals: 3})

	// first two approvals do not resolve the step
	err := Evaluate(set, Decision{Role: "editor", Approve: true, PriorApprovals: 0})
	assert.ErrorIs(t, err, ErrMoreApprovalsNeeded)

	err = Evaluate(set, Decision{Role: "editor", Approve: true, PriorApprovals: 1})
	assert.ErrorIs(t, err, ErrMoreApprovalsNeeded)

	// the third one does
	err = Evaluate(set, Decision{Role: "editor", Approve: true, PriorApprovals: 2})
	assert.NoError(t, err)

	// a rejection resolves regardless of the count
	err = Evaluate(set, Decision{Role: "editor", Approve: false, PriorApprovals: 0})
	assert.NoError(t, err)
}

func TestEvaluate_TimeWindow(t *testing.T) {
	notBefore := time.Now().Add(-time.Hour)
	notAfter := time.Now().Add(time.Hour)
	set := ForStep(&model.ApprovalStep{
		RequiredRole: "editor",
		MinApprovals: 1,
		NotBefore:    &notBefore,
		NotAfter:     &notAfter,
	})

	err := Evaluate(set, Decision{Role: "editor", At: time.Now(), Approve: true})
	assert.NoError(t, err)

	err = Evaluate(set, Decision{Role: "editor", At: notBefore.Add(-time.Minute), Approve: true})
	assert.ErrorIs(t, err, ErrOutsideWindow)

	err = Evaluate(set, Decision{Role: "editor", At: notAfter.Add(time.Minute), Approve: true})
	assert.ErrorIs(t, err, ErrOutsideWindow)
}

func TestEvaluate_WindowBeforeThreshold(t *testing.T) {
	notAfter := time.Now().Add(-time.Hour)
	set := ForStep(&model.ApprovalStep{
		RequiredRole: "editor",
		MinApprovals: 5,
		NotAfter:     &notAfter,
	})

	// an expired window wins over the pending approval count, so a late
	// approval is never recorded
	err := Evaluate(set, Decision{Role: "editor", At: time.Now(), Approve: true})
	assert.ErrorIs(t, err, ErrOutsideWindow)
}
