package workflow

import (
	"caseflow/pkg/models"
)

// allowedTransitions is the canonical forward transition table for manual
// status updates. Blocked steps are not manually startable: they must become
// Ready through recalculation or a manager override first. Same-state and
// backward transitions are rejected.
var allowedTransitions = map[models.StepStatus]map[models.StepStatus]bool{
	models.StepStatusReady: {
		models.StepStatusInProgress: true,
	},
	models.StepStatusInProgress: {
		models.StepStatusComplete: true,
	},
}

// ValidateTransition checks a manual status update against the transition
// table. Returns a validation error for an unknown target and a state error
// for a disallowed transition.
func ValidateTransition(current, target models.StepStatus) error {
	if !target.Valid() {
		return ValidationErrorf("unknown target status %q", target)
	}
	if current == target {
		return StateErrorf("step is already %s", current)
	}
	if !allowedTransitions[current][target] {
		return StateErrorf("cannot transition step from %s to %s", current, target)
	}
	return nil
}

// BootstrapStatus is the initial status assigned at plan generation: steps
// with no dependencies start Ready, everything else starts Blocked.
func BootstrapStatus(dependencyCount int) models.StepStatus {
	if dependencyCount == 0 {
		return models.StepStatusReady
	}
	return models.StepStatusBlocked
}

// Recalculate evaluates readiness over a case's full step set and returns the
// steps that should be promoted from Blocked to Ready: every non-overridden
// Blocked step whose dependencies are all Complete. Steps that are Ready,
// InProgress, or Complete are never touched, so statuses only move forward.
func Recalculate(steps []*models.WorkflowStep, deps []*models.WorkflowStepDependency) []*models.WorkflowStep {
	statusByID := make(map[int64]models.StepStatus, len(steps))
	for _, s := range steps {
		statusByID[s.ID] = s.Status
	}

	depsByStep := make(map[int64][]int64, len(steps))
	for _, d := range deps {
		depsByStep[d.StepID] = append(depsByStep[d.StepID], d.DependsOnStepID)
	}

	var promote []*models.WorkflowStep
	for _, s := range steps {
		if s.Status != models.StepStatusBlocked || s.IsReadinessOverridden {
			continue
		}
		satisfied := true
		for _, depID := range depsByStep[s.ID] {
			if statusByID[depID] != models.StepStatusComplete {
				satisfied = false
				break
			}
		}
		if satisfied {
			promote = append(promote, s)
		}
	}
	return promote
}
