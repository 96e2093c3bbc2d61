package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"caseflow/internal/audit"
	"caseflow/internal/db/repositories"
	"caseflow/internal/logging"
	"caseflow/pkg/models"
)

// systemActorID marks audit events produced by background jobs rather than a
// request actor.
const systemActorID = 0

// OverdueSweeper periodically scans for incomplete steps past their due date
// and queues notifications for them. It only reads engine state; it never
// mutates step statuses.
type OverdueSweeper struct {
	repos    *repositories.Repositories
	sink     audit.Sink
	webhooks *WebhookService
	cron     *cron.Cron
	spec     string
}

func NewOverdueSweeper(repos *repositories.Repositories, sink audit.Sink, webhooks *WebhookService, spec string) *OverdueSweeper {
	if spec == "" {
		spec = "@hourly"
	}
	return &OverdueSweeper{
		repos:    repos,
		sink:     sink,
		webhooks: webhooks,
		cron:     cron.New(),
		spec:     spec,
	}
}

func (s *OverdueSweeper) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		if err := s.Sweep(context.Background()); err != nil {
			logging.Error("Overdue sweep failed: %v", err)
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	logging.Info("Overdue sweeper scheduled: %s", s.spec)
	return nil
}

func (s *OverdueSweeper) Stop() {
	s.cron.Stop()
}

// Sweep runs one pass over all overdue steps.
func (s *OverdueSweeper) Sweep(ctx context.Context) error {
	now := time.Now().UTC()
	overdue, err := s.repos.Steps.ListOverdue(ctx, now)
	if err != nil {
		return err
	}
	if len(overdue) == 0 {
		return nil
	}

	logging.Info("Overdue sweep found %d steps", len(overdue))
	for _, step := range overdue {
		event := audit.NewEvent(step.TenantID, step.CaseID, models.EventCaseNotificationQueued, systemActorID, models.JSONMap{
			"step_id":  step.ID,
			"step_key": step.StepKey,
			"due_date": step.DueDate.Format(time.RFC3339),
			"reason":   "step_overdue",
		})
		if err := s.sink.Record(ctx, nil, event); err != nil {
			logging.Error("Failed to queue overdue notification for step %d: %v", step.ID, err)
			continue
		}

		if s.webhooks != nil {
			if err := s.webhooks.NotifyCaseEvent(ctx, step.TenantID, "workflow_step_overdue", &CaseEventPayload{
				Event:     "workflow_step_overdue",
				Timestamp: now,
				CaseID:    step.CaseID,
				StepID:    step.ID,
				StepKey:   step.StepKey,
				Status:    string(step.Status),
			}); err != nil {
				logging.Error("Overdue webhook dispatch failed for step %d: %v", step.ID, err)
			}
		}
	}
	return nil
}
