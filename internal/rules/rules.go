// Package rules evaluates approval transition rules. Rules are a closed set
// of tagged variants interpreted by Evaluate; there is no dynamic dispatch
// and no rule state outside the step row they are built from.
package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/emrgen/revision/internal/model"
)

var (
	// ErrRoleMismatch is returned when the approver does not hold the
	// step's required role.
	ErrRoleMismatch = errors.New("approver does not hold the required role")
	// ErrOutsideWindow is returned when the decision falls outside the
	// step's time window.
	ErrOutsideWindow = errors.New("decision is outside the allowed time window")
	// ErrMoreApprovalsNeeded is returned when a step needs further
	// approvals before it resolves.
	ErrMoreApprovalsNeeded = errors.New("step requires more approvals")
)

type Kind string

const (
	RoleRequired Kind = "role_required"
	MinApprovals Kind = "min_approvals"
	TimeWindow   Kind = "time_window"
)

// Rule is one transition-rule variant. Only the fields of its kind are
// meaningful.
type Rule struct {
	Kind      Kind
	Role      string
	Min       int
	NotBefore *time.Time
	NotAfter  *time.Time
}

// Decision is the input a rule set is evaluated against.
type Decision struct {
	ApproverID string
	Role       string
	At         time.Time
	// Approvals already recorded on the step, excluding this one.
	PriorApprovals int
	Approve        bool
}

// ForStep derives the rule set encoded on an approval step row.
func ForStep(step *model.ApprovalStep) []Rule {
	// MinApprovals goes last so a decision is fully validated before it
	// can count toward a still-pending step.
	set := []Rule{{Kind: RoleRequired, Role: step.RequiredRole}}
	if step.NotBefore != nil || step.NotAfter != nil {
		set = append(set, Rule{Kind: TimeWindow, NotBefore: step.NotBefore, NotAfter: step.NotAfter})
	}
	if step.MinApprovals > 1 {
		set = append(set, Rule{Kind: MinApprovals, Min: step.MinApprovals})
	}
	return set
}

// Evaluate checks a decision against a rule set. A nil error means the step
// may resolve with this decision; ErrMoreApprovalsNeeded means the decision
// is valid but the step stays pending.
func Evaluate(set []Rule, d Decision) error {
	for _, rule := range set {
		if err := evaluate(rule, d); err != nil {
			return err
		}
	}
	return nil
}

func evaluate(rule Rule, d Decision) error {
	switch rule.Kind {
	case RoleRequired:
		if rule.Role != "" && rule.Role != d.Role {
			return ErrRoleMismatch
		}
		return nil
	case MinApprovals:
		// rejections resolve the step regardless of the approval count
		if d.Approve && d.PriorApprovals+1 < rule.Min {
			return ErrMoreApprovalsNeeded
		}
		return nil
	case TimeWindow:
		if rule.NotBefore != nil && d.At.Before(*rule.NotBefore) {
			return ErrOutsideWindow
		}
		if rule.NotAfter != nil && d.At.After(*rule.NotAfter) {
			return ErrOutsideWindow
		}
		return nil
	default:
		return fmt.Errorf("unknown rule kind: %s", rule.Kind)
	}
}
