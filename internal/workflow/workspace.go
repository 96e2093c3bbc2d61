package workflow

import (
	"sort"
	"time"

	"caseflow/pkg/models"
)

// WorkspaceOptions controls the task workspace projection.
type WorkspaceOptions struct {
	Now             time.Time
	DueSoonWindow   time.Duration
	IncludeComplete bool
}

// DefaultDueSoonWindow is used when the caller does not configure one.
const DefaultDueSoonWindow = 72 * time.Hour

// RankWorkspace produces the priority-ordered workspace view over the given
// steps. Sort key: status priority first (InProgress, then Ready or an
// override-pinned Blocked step, then plain Blocked), due-date urgency second
// (overdue, due soon, dated, undated), catalog sequence last for a
// deterministic order. Pure projection, no side effects.
func RankWorkspace(steps []*models.WorkflowStep, opts WorkspaceOptions) []*models.WorkspaceItem {
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	if opts.DueSoonWindow <= 0 {
		opts.DueSoonWindow = DefaultDueSoonWindow
	}

	items := make([]*models.WorkspaceItem, 0, len(steps))
	for _, s := range steps {
		if s.Status == models.StepStatusComplete && !opts.IncludeComplete {
			continue
		}
		items = append(items, &models.WorkspaceItem{
			Step:             s,
			UrgencyIndicator: urgencyFor(s, opts),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		ap, bp := statusPriority(a.Step), statusPriority(b.Step)
		if ap != bp {
			return ap < bp
		}
		au, bu := urgencyPriority(a.UrgencyIndicator), urgencyPriority(b.UrgencyIndicator)
		if au != bu {
			return au < bu
		}
		return a.Step.Sequence < b.Step.Sequence
	})

	for i, item := range items {
		item.PriorityRank = i + 1
	}
	return items
}

func statusPriority(s *models.WorkflowStep) int {
	switch {
	case s.Status == models.StepStatusInProgress:
		return 0
	case s.Status == models.StepStatusReady:
		return 1
	case s.Status == models.StepStatusBlocked && s.IsReadinessOverridden:
		return 1
	case s.Status == models.StepStatusBlocked:
		return 2
	default:
		return 3
	}
}

func urgencyFor(s *models.WorkflowStep, opts WorkspaceOptions) models.UrgencyIndicator {
	if s.DueDate == nil {
		return models.UrgencyNone
	}
	switch {
	case s.DueDate.Before(opts.Now):
		return models.UrgencyOverdue
	case s.DueDate.Sub(opts.Now) <= opts.DueSoonWindow:
		return models.UrgencyDueSoon
	default:
		return models.UrgencyNormal
	}
}

func urgencyPriority(u models.UrgencyIndicator) int {
	switch u {
	case models.UrgencyOverdue:
		return 0
	case models.UrgencyDueSoon:
		return 1
	case models.UrgencyNormal:
		return 2
	default:
		return 3
	}
}
