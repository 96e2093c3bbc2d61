package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"caseflow/internal/audit"
	"caseflow/internal/auth"
	"caseflow/internal/db"
	"caseflow/internal/db/repositories"
	"caseflow/internal/logging"
	"caseflow/internal/workflow"
	"caseflow/pkg/models"
)

// PlanService is the case workflow plan engine: it generates the per-case
// step DAG from intake data, propagates readiness, applies manager overrides,
// and projects the task workspace. Every mutation runs under the case lock
// inside one sqlite transaction together with its audit rows.
type PlanService struct {
	repos         *repositories.Repositories
	access        *auth.Resolver
	sink          audit.Sink
	webhooks      *WebhookService
	locks         *caseLocks
	dueSoonWindow time.Duration
}

func NewPlanService(repos *repositories.Repositories, sink audit.Sink) *PlanService {
	return &PlanService{
		repos:         repos,
		access:        auth.NewResolver(repos),
		sink:          sink,
		locks:         newCaseLocks(),
		dueSoonWindow: workflow.DefaultDueSoonWindow,
	}
}

// WithWebhooks attaches the notification dispatcher used after commits.
func (s *PlanService) WithWebhooks(webhooks *WebhookService) *PlanService {
	s.webhooks = webhooks
	return s
}

// WithDueSoonWindow overrides the workspace due-soon window.
func (s *PlanService) WithDueSoonWindow(window time.Duration) *PlanService {
	if window > 0 {
		s.dueSoonWindow = window
	}
	return s
}

// GeneratePlan instantiates the step plan for a case from its completed
// intake and the tenant's active catalog. It is not idempotent by design:
// a second call fails with a conflict error and creates nothing.
func (s *PlanService) GeneratePlan(ctx context.Context, actor *models.User, caseID int64) ([]*models.WorkflowStep, error) {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(caseID)
	defer unlock()

	if _, err := s.requireRole(ctx, actor, c, "generatePlan", models.RoleManager); err != nil {
		return nil, err
	}

	if c.IntakeCompletedAt == nil || c.Intake == nil {
		return nil, workflow.StateErrorf("structured intake must be completed before plan generation")
	}

	existing, err := s.repos.Steps.CountByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, workflow.ConflictErrorf("plan already generated for case %d", caseID)
	}

	catalog, playbook, err := s.resolveCatalog(ctx, c.TenantID)
	if err != nil {
		return nil, err
	}

	plan, err := catalog.Instantiate(c.Intake)
	if err != nil {
		return nil, err
	}

	db.SQLiteWriteMutex.Lock()
	defer db.SQLiteWriteMutex.Unlock()

	tx, err := s.repos.BeginTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stepRepo := s.repos.Steps.WithTx(tx)
	depRepo := s.repos.StepDependencies.WithTx(tx)

	idByKey := make(map[string]int64, len(plan))
	dependencyCount := 0
	for _, p := range plan {
		created, err := stepRepo.Create(ctx, &models.WorkflowStep{
			CaseID:   caseID,
			TenantID: c.TenantID,
			StepKey:  p.Template.Key,
			Title:    p.Template.Title,
			Sequence: p.Template.Sequence,
			Status:   workflow.BootstrapStatus(len(p.DependsOn)),
		})
		if err != nil {
			return nil, err
		}
		idByKey[p.Template.Key] = created.ID
	}

	for _, p := range plan {
		for _, depKey := range p.DependsOn {
			if err := depRepo.Create(ctx, &models.WorkflowStepDependency{
				CaseID:          caseID,
				TenantID:        c.TenantID,
				StepID:          idByKey[p.Template.Key],
				DependsOnStepID: idByKey[depKey],
			}); err != nil {
				return nil, err
			}
			dependencyCount++
		}
	}

	if err := s.repos.Cases.WithTx(tx).UpdateStatus(ctx, caseID, models.CaseStatusActive); err != nil {
		return nil, err
	}

	if err := s.sink.Record(ctx, tx, audit.NewEvent(c.TenantID, caseID, models.EventCasePlanGenerated, actor.ID, models.JSONMap{
		"step_count":       len(plan),
		"dependency_count": dependencyCount,
		"catalog":          catalog.Name,
		"catalog_version":  catalog.Version,
	})); err != nil {
		return nil, err
	}

	if playbook != nil {
		if err := s.sink.Record(ctx, tx, audit.NewEvent(c.TenantID, caseID, models.EventPlaybookApplied, actor.ID, models.JSONMap{
			"playbook_id":      playbook.ID,
			"playbook_name":    playbook.Name,
			"playbook_version": playbook.Version,
		})); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logging.Info("Generated plan for case %d: %d steps, %d dependencies", caseID, len(plan), dependencyCount)
	return s.repos.Steps.ListByCase(ctx, caseID)
}

// UpdateTaskStatus applies a manual status transition to a step. Completing a
// step triggers readiness recalculation for the case so dependents unblock in
// the same transaction.
func (s *PlanService) UpdateTaskStatus(ctx context.Context, actor *models.User, stepID int64, target models.StepStatus) (*models.WorkflowStep, error) {
	step, err := s.getStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	c, err := s.getCase(ctx, step.CaseID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(c.ID)
	defer unlock()

	if _, err := s.requireRole(ctx, actor, c, "updateTaskStatus", models.RoleEditor); err != nil {
		return nil, err
	}

	// Re-read under the lock: a concurrent update may have moved the step.
	step, err = s.getStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if err := workflow.ValidateTransition(step.Status, target); err != nil {
		return nil, err
	}

	db.SQLiteWriteMutex.Lock()
	defer db.SQLiteWriteMutex.Unlock()

	tx, err := s.repos.BeginTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stepRepo := s.repos.Steps.WithTx(tx)
	if err := stepRepo.UpdateStatus(ctx, stepID, target); err != nil {
		return nil, err
	}

	if target == models.StepStatusComplete {
		if err := s.recalculateInTx(ctx, tx, actor, c); err != nil {
			return nil, err
		}
	}

	if err := s.sink.Record(ctx, tx, audit.NewEvent(c.TenantID, c.ID, models.EventWorkflowTaskStatusUpdated, actor.ID, models.JSONMap{
		"step_id":     stepID,
		"step_key":    step.StepKey,
		"from_status": string(step.Status),
		"to_status":   string(target),
	})); err != nil {
		return nil, err
	}

	if err := s.sink.Record(ctx, tx, audit.NewEvent(c.TenantID, c.ID, models.EventCaseNotificationQueued, actor.ID, models.JSONMap{
		"step_id":   stepID,
		"step_key":  step.StepKey,
		"to_status": string(target),
		"reason":    "task_status_updated",
	})); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.notifyTaskStatus(ctx, c, step, target, actor.ID)

	return s.repos.Steps.GetByID(ctx, stepID)
}

// RecalculateReadiness re-evaluates readiness for every non-overridden
// Blocked step of the case. Finding nothing to unblock is a no-op, not an
// error.
func (s *PlanService) RecalculateReadiness(ctx context.Context, actor *models.User, caseID int64) ([]*models.WorkflowStep, error) {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(caseID)
	defer unlock()

	if _, err := s.requireRole(ctx, actor, c, "recalculateReadiness", models.RoleEditor); err != nil {
		return nil, err
	}

	db.SQLiteWriteMutex.Lock()
	defer db.SQLiteWriteMutex.Unlock()

	tx, err := s.repos.BeginTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.recalculateInTx(ctx, tx, actor, c); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.repos.Steps.ListByCase(ctx, caseID)
}

// OverrideReadiness pins a step's status outside normal propagation. The pin
// is sticky: recalculation skips the step until a later explicit status
// update or override replaces it.
func (s *PlanService) OverrideReadiness(ctx context.Context, actor *models.User, stepID int64, target models.StepStatus, rationale string) (*models.WorkflowStep, error) {
	if strings.TrimSpace(rationale) == "" {
		return nil, workflow.ValidationErrorf("override rationale is required")
	}
	if !target.Valid() {
		return nil, workflow.ValidationErrorf("unknown target status %q", target)
	}

	step, err := s.getStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	c, err := s.getCase(ctx, step.CaseID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(c.ID)
	defer unlock()

	if _, err := s.requireRole(ctx, actor, c, "overrideReadiness", models.RoleManager); err != nil {
		return nil, err
	}

	step, err = s.getStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if step.IsReadinessOverridden && step.Status != target {
		return nil, workflow.ConflictErrorf("step %d is already overridden to %s", stepID, step.Status)
	}

	db.SQLiteWriteMutex.Lock()
	defer db.SQLiteWriteMutex.Unlock()

	tx, err := s.repos.BeginTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.repos.Steps.WithTx(tx).Override(ctx, stepID, target, rationale, actor.ID); err != nil {
		return nil, err
	}

	if err := s.sink.Record(ctx, tx, audit.NewEvent(c.TenantID, c.ID, models.EventCasePlanReadinessOverridden, actor.ID, models.JSONMap{
		"step_id":   stepID,
		"step_key":  step.StepKey,
		"to_status": string(target),
		"rationale": rationale,
	})); err != nil {
		return nil, err
	}

	// Forcing a step to Complete satisfies its dependents the same way a
	// normal completion does.
	if target == models.StepStatusComplete {
		if err := s.recalculateInTx(ctx, tx, actor, c); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logging.Info("Readiness override on step %d (%s) by user %d: %s", stepID, step.StepKey, actor.ID, target)
	return s.repos.Steps.GetByID(ctx, stepID)
}

// CompleteIntake stores the structured intake payload for a case. The intake
// can be revised until the plan exists; afterwards it is frozen, since the
// generated steps were derived from it.
func (s *PlanService) CompleteIntake(ctx context.Context, actor *models.User, caseID int64, intake *models.IntakeRecord) (*models.Case, error) {
	if intake == nil || strings.TrimSpace(intake.DeceasedName) == "" {
		return nil, workflow.ValidationErrorf("intake requires the deceased person's name")
	}

	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(caseID)
	defer unlock()

	if _, err := s.requireRole(ctx, actor, c, "completeIntake", models.RoleEditor); err != nil {
		return nil, err
	}

	existing, err := s.repos.Steps.CountByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, workflow.ConflictErrorf("intake is frozen once the plan for case %d exists", caseID)
	}

	db.SQLiteWriteMutex.Lock()
	defer db.SQLiteWriteMutex.Unlock()

	tx, err := s.repos.BeginTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.repos.Cases.WithTx(tx).CompleteIntake(ctx, caseID, intake); err != nil {
		return nil, err
	}

	if err := s.sink.Record(ctx, tx, audit.NewEvent(c.TenantID, caseID, models.EventCaseIntakeCompleted, actor.ID, models.JSONMap{
		"has_will":               intake.HasWill,
		"requires_legal_support": intake.RequiresLegalSupport,
	})); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.repos.Cases.GetByID(ctx, caseID)
}

// AssignCaseRole grants or replaces a user's role on a case. Only managers of
// the case (or tenant admins) may change membership, and members must belong
// to the case's tenant.
func (s *PlanService) AssignCaseRole(ctx context.Context, actor *models.User, caseID, userID int64, role models.CaseRole) error {
	if !role.Valid() {
		return workflow.ValidationErrorf("unknown case role %q, expected reader, editor, or manager", role)
	}

	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(caseID)
	defer unlock()

	if _, err := s.requireRole(ctx, actor, c, "assignCaseRole", models.RoleManager); err != nil {
		return err
	}

	target, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: user %d", workflow.ErrNotFound, userID)
		}
		return err
	}
	if target.TenantID != c.TenantID {
		return workflow.ValidationErrorf("user %d belongs to a different tenant", userID)
	}

	db.SQLiteWriteMutex.Lock()
	defer db.SQLiteWriteMutex.Unlock()

	tx, err := s.repos.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.repos.CaseMembers.WithTx(tx).Upsert(ctx, caseID, userID, role); err != nil {
		return err
	}

	if err := s.sink.Record(ctx, tx, audit.NewEvent(c.TenantID, caseID, models.EventCaseMemberRoleAssigned, actor.ID, models.JSONMap{
		"user_id": userID,
		"role":    string(role),
	})); err != nil {
		return err
	}

	return tx.Commit()
}

// SetTaskDueDate assigns or clears a step's due date.
func (s *PlanService) SetTaskDueDate(ctx context.Context, actor *models.User, stepID int64, due *time.Time) (*models.WorkflowStep, error) {
	step, err := s.getStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	c, err := s.getCase(ctx, step.CaseID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(c.ID)
	defer unlock()

	if _, err := s.requireRole(ctx, actor, c, "setTaskDueDate", models.RoleEditor); err != nil {
		return nil, err
	}

	db.SQLiteWriteMutex.Lock()
	defer db.SQLiteWriteMutex.Unlock()

	tx, err := s.repos.BeginTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.repos.Steps.WithTx(tx).SetDueDate(ctx, stepID, due); err != nil {
		return nil, err
	}

	metadata := models.JSONMap{
		"step_id":  stepID,
		"step_key": step.StepKey,
	}
	if due != nil {
		metadata["due_date"] = due.UTC().Format(time.RFC3339)
	}
	if err := s.sink.Record(ctx, tx, audit.NewEvent(c.TenantID, c.ID, models.EventWorkflowTaskDueDateSet, actor.ID, metadata)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.repos.Steps.GetByID(ctx, stepID)
}

// GetPlanSteps returns the case's current step list in catalog order.
func (s *PlanService) GetPlanSteps(ctx context.Context, actor *models.User, caseID int64) ([]*models.WorkflowStep, error) {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireRole(ctx, actor, c, "getPlanSteps", models.RoleReader); err != nil {
		return nil, err
	}
	return s.repos.Steps.ListByCase(ctx, caseID)
}

// GetTaskWorkspace returns the priority-ordered workspace projection.
func (s *PlanService) GetTaskWorkspace(ctx context.Context, actor *models.User, caseID int64, includeComplete bool) ([]*models.WorkspaceItem, error) {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireRole(ctx, actor, c, "getTaskWorkspace", models.RoleReader); err != nil {
		return nil, err
	}

	steps, err := s.repos.Steps.ListByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	return workflow.RankWorkspace(steps, workflow.WorkspaceOptions{
		Now:             time.Now().UTC(),
		DueSoonWindow:   s.dueSoonWindow,
		IncludeComplete: includeComplete,
	}), nil
}

// recalculateInTx promotes every eligible Blocked step to Ready and records
// one CasePlanReadinessRecalculated event for the pass.
func (s *PlanService) recalculateInTx(ctx context.Context, tx *sql.Tx, actor *models.User, c *models.Case) error {
	stepRepo := s.repos.Steps.WithTx(tx)

	steps, err := stepRepo.ListByCase(ctx, c.ID)
	if err != nil {
		return err
	}
	deps, err := s.repos.StepDependencies.WithTx(tx).ListByCase(ctx, c.ID)
	if err != nil {
		return err
	}

	promoted := workflow.Recalculate(steps, deps)
	promotedKeys := make([]string, 0, len(promoted))
	for _, step := range promoted {
		if err := stepRepo.PromoteToReady(ctx, step.ID); err != nil {
			return err
		}
		promotedKeys = append(promotedKeys, step.StepKey)
	}

	return s.sink.Record(ctx, tx, audit.NewEvent(c.TenantID, c.ID, models.EventCasePlanReadinessRecalculated, actor.ID, models.JSONMap{
		"promoted_count": len(promotedKeys),
		"promoted_keys":  promotedKeys,
	}))
}

func (s *PlanService) resolveCatalog(ctx context.Context, tenantID int64) (*workflow.Catalog, *models.Playbook, error) {
	playbook, err := s.repos.Playbooks.GetActiveByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workflow.DefaultCatalog(), nil, nil
		}
		return nil, nil, err
	}

	catalog, err := workflow.ParseCatalog([]byte(playbook.Template))
	if err != nil {
		return nil, nil, fmt.Errorf("active playbook %q is invalid: %w", playbook.Name, err)
	}
	return catalog, playbook, nil
}

// requireRole enforces access and records a CaseAccessDenied audit event on
// every denial. An audit write failure is logged but never masks the access
// error.
func (s *PlanService) requireRole(ctx context.Context, actor *models.User, c *models.Case, action string, required models.CaseRole) (models.CaseRole, error) {
	role, err := s.access.Require(ctx, actor, c, action, required)
	if err == nil {
		return role, nil
	}

	var accessErr *auth.CaseAccessError
	if errors.As(err, &accessErr) {
		event := audit.NewEvent(c.TenantID, c.ID, models.EventCaseAccessDenied, actor.ID, models.JSONMap{
			"attempted_action": accessErr.AttemptedAction,
			"required_role":    string(accessErr.RequiredRole),
			"actual_role":      string(accessErr.ActualRole),
			"reason_code":      accessErr.ReasonCode,
		})
		if auditErr := s.sink.Record(ctx, nil, event); auditErr != nil {
			logging.Error("Failed to record access-denied audit event for case %d: %v", c.ID, auditErr)
		}
	}
	return role, err
}

func (s *PlanService) notifyTaskStatus(ctx context.Context, c *models.Case, step *models.WorkflowStep, status models.StepStatus, actorID int64) {
	if s.webhooks == nil {
		return
	}
	if err := s.webhooks.NotifyCaseEvent(ctx, c.TenantID, "workflow_task_status_updated", &CaseEventPayload{
		Event:       "workflow_task_status_updated",
		Timestamp:   time.Now().UTC(),
		CaseID:      c.ID,
		StepID:      step.ID,
		StepKey:     step.StepKey,
		Status:      string(status),
		ActorUserID: actorID,
	}); err != nil {
		logging.Error("Webhook dispatch failed for case %d step %d: %v", c.ID, step.ID, err)
	}
}

func (s *PlanService) getCase(ctx context.Context, caseID int64) (*models.Case, error) {
	c, err := s.repos.Cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: case %d", workflow.ErrNotFound, caseID)
		}
		return nil, err
	}
	return c, nil
}

func (s *PlanService) getStep(ctx context.Context, stepID int64) (*models.WorkflowStep, error) {
	step, err := s.repos.Steps.GetByID(ctx, stepID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: step %d", workflow.ErrNotFound, stepID)
		}
		return nil, err
	}
	return step, nil
}
