package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/audit"
	"caseflow/internal/auth"
	"caseflow/internal/db"
	"caseflow/internal/db/repositories"
	"caseflow/internal/workflow"
	"caseflow/pkg/models"
)

type planFixture struct {
	ctx     context.Context
	repos   *repositories.Repositories
	svc     *PlanService
	tenant  *models.Tenant
	manager *models.User
	editor  *models.User
	reader  *models.User
	c       *models.Case
}

// newPlanFixture builds a migrated sqlite database with one tenant, a case
// with completed intake (will present, legal support required), and three
// members covering each role.
func newPlanFixture(t *testing.T) *planFixture {
	t.Helper()
	ctx := context.Background()

	database, err := db.NewTest(t)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	repos := repositories.New(database)
	svc := NewPlanService(repos, audit.NewRecorder(repos.AuditEvents))

	tenant, err := repos.Tenants.Create(ctx, "Meridian Estates", "meridian")
	require.NoError(t, err)

	manager, err := repos.Users.Create(ctx, tenant.ID, "manager", false, nil)
	require.NoError(t, err)
	editor, err := repos.Users.Create(ctx, tenant.ID, "editor", false, nil)
	require.NoError(t, err)
	reader, err := repos.Users.Create(ctx, tenant.ID, "reader", false, nil)
	require.NoError(t, err)

	c, err := repos.Cases.Create(ctx, tenant.ID, "Estate of J. Halloran", manager.ID)
	require.NoError(t, err)

	require.NoError(t, repos.CaseMembers.Upsert(ctx, c.ID, manager.ID, models.RoleManager))
	require.NoError(t, repos.CaseMembers.Upsert(ctx, c.ID, editor.ID, models.RoleEditor))
	require.NoError(t, repos.CaseMembers.Upsert(ctx, c.ID, reader.ID, models.RoleReader))

	require.NoError(t, repos.Cases.CompleteIntake(ctx, c.ID, &models.IntakeRecord{
		DeceasedName:         "J. Halloran",
		HasWill:              true,
		RequiresLegalSupport: true,
	}))

	c, err = repos.Cases.GetByID(ctx, c.ID)
	require.NoError(t, err)

	return &planFixture{
		ctx:     ctx,
		repos:   repos,
		svc:     svc,
		tenant:  tenant,
		manager: manager,
		editor:  editor,
		reader:  reader,
		c:       c,
	}
}

func (f *planFixture) generate(t *testing.T) []*models.WorkflowStep {
	t.Helper()
	steps, err := f.svc.GeneratePlan(f.ctx, f.manager, f.c.ID)
	require.NoError(t, err)
	return steps
}

func stepByKey(t *testing.T, steps []*models.WorkflowStep, key string) *models.WorkflowStep {
	t.Helper()
	for _, s := range steps {
		if s.StepKey == key {
			return s
		}
	}
	t.Fatalf("step %q not found", key)
	return nil
}

// complete walks a step through ready -> in_progress -> complete.
func (f *planFixture) complete(t *testing.T, actor *models.User, stepID int64) {
	t.Helper()
	_, err := f.svc.UpdateTaskStatus(f.ctx, actor, stepID, models.StepStatusInProgress)
	require.NoError(t, err)
	_, err = f.svc.UpdateTaskStatus(f.ctx, actor, stepID, models.StepStatusComplete)
	require.NoError(t, err)
}

func (f *planFixture) auditCount(t *testing.T, eventType string) int64 {
	t.Helper()
	count, err := f.repos.AuditEvents.CountByCaseAndType(f.ctx, f.c.ID, eventType)
	require.NoError(t, err)
	return count
}

func TestGeneratePlanBootstrapsStatuses(t *testing.T) {
	f := newPlanFixture(t)

	steps := f.generate(t)
	require.Len(t, steps, 5)

	assert.Equal(t, models.StepStatusReady, stepByKey(t, steps, workflow.StepCollectCivilRecords).Status)
	assert.Equal(t, models.StepStatusReady, stepByKey(t, steps, workflow.StepGatherEstateInventory).Status)
	assert.Equal(t, models.StepStatusBlocked, stepByKey(t, steps, workflow.StepSubmitSuccessionNotification).Status)
	assert.Equal(t, models.StepStatusBlocked, stepByKey(t, steps, workflow.StepValidateWill).Status)
	assert.Equal(t, models.StepStatusBlocked, stepByKey(t, steps, workflow.StepEngageLegalSupport).Status)

	deps, err := f.repos.StepDependencies.ListByCase(f.ctx, f.c.ID)
	require.NoError(t, err)
	assert.Len(t, deps, 4)

	c, err := f.repos.Cases.GetByID(f.ctx, f.c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusActive, c.Status)

	assert.EqualValues(t, 1, f.auditCount(t, models.EventCasePlanGenerated))
}

func TestGeneratePlanIsNotIdempotent(t *testing.T) {
	f := newPlanFixture(t)
	f.generate(t)

	_, err := f.svc.GeneratePlan(f.ctx, f.manager, f.c.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrConflict)

	steps, err := f.repos.Steps.ListByCase(f.ctx, f.c.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 5, "failed regeneration must not create steps")
	assert.EqualValues(t, 1, f.auditCount(t, models.EventCasePlanGenerated))
}

func TestGeneratePlanRequiresCompletedIntake(t *testing.T) {
	f := newPlanFixture(t)

	bare, err := f.repos.Cases.Create(f.ctx, f.tenant.ID, "Estate without intake", f.manager.ID)
	require.NoError(t, err)
	require.NoError(t, f.repos.CaseMembers.Upsert(f.ctx, bare.ID, f.manager.ID, models.RoleManager))

	_, err = f.svc.GeneratePlan(f.ctx, f.manager, bare.ID)
	assert.ErrorIs(t, err, workflow.ErrState)
}

func TestGeneratePlanUnknownCase(t *testing.T) {
	f := newPlanFixture(t)

	_, err := f.svc.GeneratePlan(f.ctx, f.manager, 9999)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestGeneratePlanDeniedForEditor(t *testing.T) {
	f := newPlanFixture(t)

	_, err := f.svc.GeneratePlan(f.ctx, f.editor, f.c.ID)
	require.Error(t, err)

	var accessErr *auth.CaseAccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, auth.ReasonRoleInsufficient, accessErr.ReasonCode)
	assert.Equal(t, models.RoleManager, accessErr.RequiredRole)
	assert.Equal(t, models.RoleEditor, accessErr.ActualRole)

	assert.EqualValues(t, 1, f.auditCount(t, models.EventCaseAccessDenied))

	count, err := f.repos.Steps.CountByCase(f.ctx, f.c.ID)
	require.NoError(t, err)
	assert.Zero(t, count, "denied generation must not create steps")
}

func TestGeneratePlanDeniedWithoutMembership(t *testing.T) {
	f := newPlanFixture(t)

	outsider, err := f.repos.Users.Create(f.ctx, f.tenant.ID, "outsider", false, nil)
	require.NoError(t, err)

	_, err = f.svc.GeneratePlan(f.ctx, outsider, f.c.ID)
	require.Error(t, err)

	var accessErr *auth.CaseAccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, auth.ReasonNoCaseAccess, accessErr.ReasonCode)
}

func TestTenantAdminActsAsManager(t *testing.T) {
	f := newPlanFixture(t)

	admin, err := f.repos.Users.Create(f.ctx, f.tenant.ID, "admin", true, nil)
	require.NoError(t, err)

	steps, err := f.svc.GeneratePlan(f.ctx, admin, f.c.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 5)
}

func TestCompletingPrerequisitesUnblocksDependents(t *testing.T) {
	f := newPlanFixture(t)
	steps := f.generate(t)

	collect := stepByKey(t, steps, workflow.StepCollectCivilRecords)
	gather := stepByKey(t, steps, workflow.StepGatherEstateInventory)

	f.complete(t, f.editor, collect.ID)

	// submit needs both prerequisites, so nothing unblocks yet.
	current, err := f.repos.Steps.ListByCase(f.ctx, f.c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusBlocked, stepByKey(t, current, workflow.StepSubmitSuccessionNotification).Status)

	f.complete(t, f.editor, gather.ID)

	current, err = f.repos.Steps.ListByCase(f.ctx, f.c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusReady, stepByKey(t, current, workflow.StepSubmitSuccessionNotification).Status)
	assert.Equal(t, models.StepStatusReady, stepByKey(t, current, workflow.StepValidateWill).Status)
	assert.Equal(t, models.StepStatusBlocked, stepByKey(t, current, workflow.StepEngageLegalSupport).Status,
		"legal support still waits on will validation")

	f.complete(t, f.editor, stepByKey(t, current, workflow.StepValidateWill).ID)

	current, err = f.repos.Steps.ListByCase(f.ctx, f.c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusReady, stepByKey(t, current, workflow.StepEngageLegalSupport).Status)
}

func TestUpdateTaskStatusRejectsInvalidTransitions(t *testing.T) {
	f := newPlanFixture(t)
	steps := f.generate(t)

	collect := stepByKey(t, steps, workflow.StepCollectCivilRecords)
	submit := stepByKey(t, steps, workflow.StepSubmitSuccessionNotification)

	_, err := f.svc.UpdateTaskStatus(f.ctx, f.editor, collect.ID, models.StepStatusComplete)
	assert.ErrorIs(t, err, workflow.ErrState, "ready cannot skip straight to complete")

	_, err = f.svc.UpdateTaskStatus(f.ctx, f.editor, submit.ID, models.StepStatusInProgress)
	assert.ErrorIs(t, err, workflow.ErrState, "blocked steps are not manually startable")

	_, err = f.svc.UpdateTaskStatus(f.ctx, f.editor, collect.ID, models.StepStatus("paused"))
	assert.ErrorIs(t, err, workflow.ErrValidation)

	after, err := f.repos.Steps.GetByID(f.ctx, collect.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusReady, after.Status, "rejected transitions must not persist")
}

func TestUpdateTaskStatusDeniedForReader(t *testing.T) {
	f := newPlanFixture(t)
	steps := f.generate(t)
	collect := stepByKey(t, steps, workflow.StepCollectCivilRecords)

	_, err := f.svc.UpdateTaskStatus(f.ctx, f.reader, collect.ID, models.StepStatusInProgress)
	var accessErr *auth.CaseAccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, models.RoleEditor, accessErr.RequiredRole)
	assert.EqualValues(t, 1, f.auditCount(t, models.EventCaseAccessDenied))
}

func TestOverrideReadiness(t *testing.T) {
	f := newPlanFixture(t)
	steps := f.generate(t)
	engage := stepByKey(t, steps, workflow.StepEngageLegalSupport)

	updated, err := f.svc.OverrideReadiness(f.ctx, f.manager, engage.ID, models.StepStatusReady, "counsel already retained by the family")
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusReady, updated.Status)
	assert.True(t, updated.IsReadinessOverridden)
	require.NotNil(t, updated.OverrideRationale)
	assert.Equal(t, "counsel already retained by the family", *updated.OverrideRationale)
	require.NotNil(t, updated.OverrideByUserID)
	assert.Equal(t, f.manager.ID, *updated.OverrideByUserID)
	assert.NotNil(t, updated.OverriddenAt)

	assert.EqualValues(t, 1, f.auditCount(t, models.EventCasePlanReadinessOverridden))
}

func TestOverrideRequiresRationale(t *testing.T) {
	f := newPlanFixture(t)
	steps := f.generate(t)
	engage := stepByKey(t, steps, workflow.StepEngageLegalSupport)

	_, err := f.svc.OverrideReadiness(f.ctx, f.manager, engage.ID, models.StepStatusReady, "   ")
	assert.ErrorIs(t, err, workflow.ErrValidation)
}

func TestOverrideDeniedForEditor(t *testing.T) {
	f := newPlanFixture(t)
	steps := f.generate(t)
	engage := stepByKey(t, steps, workflow.StepEngageLegalSupport)

	_, err := f.svc.OverrideReadiness(f.ctx, f.editor, engage.ID, models.StepStatusReady, "trying anyway")
	var accessErr *auth.CaseAccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, auth.ReasonRoleInsufficient, accessErr.ReasonCode)
	assert.Equal(t, models.RoleManager, accessErr.RequiredRole)
}

func TestOverrideConflictsWithExistingPin(t *testing.T) {
	f := newPlanFixture(t)
	steps := f.generate(t)
	engage := stepByKey(t, steps, workflow.StepEngageLegalSupport)

	_, err := f.svc.OverrideReadiness(f.ctx, f.manager, engage.ID, models.StepStatusReady, "counsel retained")
	require.NoError(t, err)

	_, err = f.svc.OverrideReadiness(f.ctx, f.manager, engage.ID, models.StepStatusBlocked, "changed my mind")
	assert.ErrorIs(t, err, workflow.ErrConflict)
}

func TestOverrideIsStickyThroughRecalculation(t *testing.T) {
	f := newPlanFixture(t)
	steps := f.generate(t)

	validate := stepByKey(t, steps, workflow.StepValidateWill)
	_, err := f.svc.OverrideReadiness(f.ctx, f.manager, validate.ID, models.StepStatusBlocked, "original will contested, hold validation")
	require.NoError(t, err)

	// Completing the prerequisite would normally promote validate-will.
	f.complete(t, f.editor, stepByKey(t, steps, workflow.StepGatherEstateInventory).ID)

	after, err := f.repos.Steps.GetByID(f.ctx, validate.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusBlocked, after.Status)
	assert.True(t, after.IsReadinessOverridden)

	_, err = f.svc.RecalculateReadiness(f.ctx, f.editor, f.c.ID)
	require.NoError(t, err)

	after, err = f.repos.Steps.GetByID(f.ctx, validate.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusBlocked, after.Status, "explicit recalculation must not clear the pin either")
}

func TestManualStatusUpdateClearsOverride(t *testing.T) {
	f := newPlanFixture(t)
	steps := f.generate(t)
	engage := stepByKey(t, steps, workflow.StepEngageLegalSupport)

	_, err := f.svc.OverrideReadiness(f.ctx, f.manager, engage.ID, models.StepStatusReady, "counsel retained")
	require.NoError(t, err)

	updated, err := f.svc.UpdateTaskStatus(f.ctx, f.editor, engage.ID, models.StepStatusInProgress)
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusInProgress, updated.Status)
	assert.False(t, updated.IsReadinessOverridden, "manual transition supersedes the pin")
	assert.Nil(t, updated.OverrideRationale)
	assert.Nil(t, updated.OverrideByUserID)
	assert.Nil(t, updated.OverriddenAt)
}

func TestOverrideToCompleteUnblocksDependents(t *testing.T) {
	f := newPlanFixture(t)
	steps := f.generate(t)

	validate := stepByKey(t, steps, workflow.StepValidateWill)
	engage := stepByKey(t, steps, workflow.StepEngageLegalSupport)
	require.Equal(t, models.StepStatusBlocked, engage.Status)

	_, err := f.svc.OverrideReadiness(f.ctx, f.manager, validate.ID, models.StepStatusComplete, "will validated out of band")
	require.NoError(t, err)

	after, err := f.repos.Steps.GetByID(f.ctx, engage.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusReady, after.Status,
		"forced completion must propagate to dependents")
	assert.EqualValues(t, 1, f.auditCount(t, models.EventCasePlanReadinessRecalculated))
}

func TestCompleteIntakeGuards(t *testing.T) {
	f := newPlanFixture(t)

	bare, err := f.repos.Cases.Create(f.ctx, f.tenant.ID, "Estate of M. Voss", f.manager.ID)
	require.NoError(t, err)
	require.NoError(t, f.repos.CaseMembers.Upsert(f.ctx, bare.ID, f.manager.ID, models.RoleManager))
	require.NoError(t, f.repos.CaseMembers.Upsert(f.ctx, bare.ID, f.reader.ID, models.RoleReader))

	intake := &models.IntakeRecord{DeceasedName: "M. Voss", HasWill: true}

	// Readers cannot complete intake.
	_, err = f.svc.CompleteIntake(f.ctx, f.reader, bare.ID, intake)
	var accessErr *auth.CaseAccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, models.RoleEditor, accessErr.RequiredRole)

	// Neither can a user from another tenant, even an admin.
	other, err := f.repos.Tenants.Create(f.ctx, "Other Agency", "other")
	require.NoError(t, err)
	stranger, err := f.repos.Users.Create(f.ctx, other.ID, "stranger", true, nil)
	require.NoError(t, err)
	_, err = f.svc.CompleteIntake(f.ctx, stranger, bare.ID, intake)
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, auth.ReasonNoCaseAccess, accessErr.ReasonCode)

	// A missing name is rejected before any access check.
	_, err = f.svc.CompleteIntake(f.ctx, f.manager, bare.ID, &models.IntakeRecord{})
	assert.ErrorIs(t, err, workflow.ErrValidation)

	updated, err := f.svc.CompleteIntake(f.ctx, f.manager, bare.ID, intake)
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusIntake, updated.Status)
	require.NotNil(t, updated.Intake)
	assert.Equal(t, "M. Voss", updated.Intake.DeceasedName)

	count, err := f.repos.AuditEvents.CountByCaseAndType(f.ctx, bare.ID, models.EventCaseIntakeCompleted)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestCompleteIntakeFrozenAfterPlanGeneration(t *testing.T) {
	f := newPlanFixture(t)
	f.generate(t)

	_, err := f.svc.CompleteIntake(f.ctx, f.manager, f.c.ID, &models.IntakeRecord{
		DeceasedName: "J. Halloran",
		HasWill:      false,
	})
	assert.ErrorIs(t, err, workflow.ErrConflict)

	c, err := f.repos.Cases.GetByID(f.ctx, f.c.ID)
	require.NoError(t, err)
	assert.True(t, c.Intake.HasWill, "rejected revision must not persist")
}

func TestAssignCaseRole(t *testing.T) {
	f := newPlanFixture(t)

	joiner, err := f.repos.Users.Create(f.ctx, f.tenant.ID, "joiner", false, nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.AssignCaseRole(f.ctx, f.manager, f.c.ID, joiner.ID, models.RoleEditor))

	member, err := f.repos.CaseMembers.GetByCaseAndUser(f.ctx, f.c.ID, joiner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, member.Role)
	assert.EqualValues(t, 1, f.auditCount(t, models.EventCaseMemberRoleAssigned))

	// Unknown roles and cross-tenant members are rejected.
	assert.ErrorIs(t, f.svc.AssignCaseRole(f.ctx, f.manager, f.c.ID, joiner.ID, models.CaseRole("owner")), workflow.ErrValidation)

	other, err := f.repos.Tenants.Create(f.ctx, "Other Agency", "other")
	require.NoError(t, err)
	stranger, err := f.repos.Users.Create(f.ctx, other.ID, "stranger", false, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.AssignCaseRole(f.ctx, f.manager, f.c.ID, stranger.ID, models.RoleReader), workflow.ErrValidation)
}

func TestAssignCaseRoleBlocksSelfEscalation(t *testing.T) {
	f := newPlanFixture(t)
	steps := f.generate(t)
	engage := stepByKey(t, steps, workflow.StepEngageLegalSupport)

	// A same-tenant user with no case access cannot grant themselves a role.
	outsider, err := f.repos.Users.Create(f.ctx, f.tenant.ID, "outsider", false, nil)
	require.NoError(t, err)

	err = f.svc.AssignCaseRole(f.ctx, outsider, f.c.ID, outsider.ID, models.RoleManager)
	var accessErr *auth.CaseAccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, auth.ReasonNoCaseAccess, accessErr.ReasonCode)

	_, err = f.repos.CaseMembers.GetByCaseAndUser(f.ctx, f.c.ID, outsider.ID)
	assert.Error(t, err, "denied assignment must not create a membership row")

	// Manager-gated operations remain closed to them.
	_, err = f.svc.OverrideReadiness(f.ctx, outsider, engage.ID, models.StepStatusReady, "trying anyway")
	require.ErrorAs(t, err, &accessErr)

	// Editors cannot change membership either.
	err = f.svc.AssignCaseRole(f.ctx, f.editor, f.c.ID, f.editor.ID, models.RoleManager)
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, auth.ReasonRoleInsufficient, accessErr.ReasonCode)
	assert.Equal(t, models.RoleManager, accessErr.RequiredRole)
}

func TestSetTaskDueDateGuards(t *testing.T) {
	f := newPlanFixture(t)
	steps := f.generate(t)
	collect := stepByKey(t, steps, workflow.StepCollectCivilRecords)

	due := time.Now().UTC().Add(96 * time.Hour).Truncate(time.Second)

	_, err := f.svc.SetTaskDueDate(f.ctx, f.reader, collect.ID, &due)
	var accessErr *auth.CaseAccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, models.RoleEditor, accessErr.RequiredRole)

	updated, err := f.svc.SetTaskDueDate(f.ctx, f.editor, collect.ID, &due)
	require.NoError(t, err)
	require.NotNil(t, updated.DueDate)
	assert.True(t, updated.DueDate.Equal(due))
	assert.EqualValues(t, 1, f.auditCount(t, models.EventWorkflowTaskDueDateSet))

	updated, err = f.svc.SetTaskDueDate(f.ctx, f.editor, collect.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.DueDate)
	assert.EqualValues(t, 2, f.auditCount(t, models.EventWorkflowTaskDueDateSet))
}

func TestRecalculateWithNothingToPromote(t *testing.T) {
	f := newPlanFixture(t)
	f.generate(t)

	steps, err := f.svc.RecalculateReadiness(f.ctx, f.editor, f.c.ID)
	require.NoError(t, err)
	require.Len(t, steps, 5)
	assert.Equal(t, models.StepStatusBlocked, stepByKey(t, steps, workflow.StepSubmitSuccessionNotification).Status)
}

func TestGetTaskWorkspaceRanking(t *testing.T) {
	f := newPlanFixture(t)
	steps := f.generate(t)

	collect := stepByKey(t, steps, workflow.StepCollectCivilRecords)
	gather := stepByKey(t, steps, workflow.StepGatherEstateInventory)

	// Start civil records; give estate inventory an overdue due date.
	_, err := f.svc.UpdateTaskStatus(f.ctx, f.editor, collect.ID, models.StepStatusInProgress)
	require.NoError(t, err)
	past := time.Now().UTC().Add(-24 * time.Hour)
	require.NoError(t, f.repos.Steps.SetDueDate(f.ctx, gather.ID, &past))

	items, err := f.svc.GetTaskWorkspace(f.ctx, f.reader, f.c.ID, false)
	require.NoError(t, err)
	require.Len(t, items, 5)

	assert.Equal(t, workflow.StepCollectCivilRecords, items[0].Step.StepKey,
		"in-progress outranks an overdue ready step")
	assert.Equal(t, workflow.StepGatherEstateInventory, items[1].Step.StepKey)
	assert.Equal(t, models.UrgencyOverdue, items[1].UrgencyIndicator)
	for i, item := range items {
		assert.Equal(t, i+1, item.PriorityRank)
	}
}

func TestGetTaskWorkspaceExcludesCompleteByDefault(t *testing.T) {
	f := newPlanFixture(t)
	steps := f.generate(t)
	f.complete(t, f.editor, stepByKey(t, steps, workflow.StepCollectCivilRecords).ID)

	items, err := f.svc.GetTaskWorkspace(f.ctx, f.reader, f.c.ID, false)
	require.NoError(t, err)
	assert.Len(t, items, 4)

	items, err = f.svc.GetTaskWorkspace(f.ctx, f.reader, f.c.ID, true)
	require.NoError(t, err)
	assert.Len(t, items, 5)
}

func TestGeneratePlanUsesActivePlaybook(t *testing.T) {
	f := newPlanFixture(t)

	template := `
name: expedited
steps:
  - key: notify-registry
    title: Notify the civil registry
    sequence: 10
  - key: close-out
    title: Close out the estate
    sequence: 20
    depends_on: [notify-registry]
`
	playbook, err := f.repos.Playbooks.Create(f.ctx, f.tenant.ID, "expedited", template, f.manager.ID)
	require.NoError(t, err)
	require.NoError(t, f.repos.Playbooks.SetActive(f.ctx, f.tenant.ID, playbook.ID))

	steps := f.generate(t)
	require.Len(t, steps, 2)
	assert.Equal(t, models.StepStatusReady, stepByKey(t, steps, "notify-registry").Status)
	assert.Equal(t, models.StepStatusBlocked, stepByKey(t, steps, "close-out").Status)

	assert.EqualValues(t, 1, f.auditCount(t, models.EventPlaybookApplied))
}

func TestAuditTrailCoversEveryMutation(t *testing.T) {
	f := newPlanFixture(t)
	steps := f.generate(t)

	f.complete(t, f.editor, stepByKey(t, steps, workflow.StepCollectCivilRecords).ID)
	_, err := f.svc.OverrideReadiness(f.ctx, f.manager, stepByKey(t, steps, workflow.StepEngageLegalSupport).ID,
		models.StepStatusReady, "counsel retained")
	require.NoError(t, err)

	assert.EqualValues(t, 1, f.auditCount(t, models.EventCasePlanGenerated))
	assert.EqualValues(t, 2, f.auditCount(t, models.EventWorkflowTaskStatusUpdated))
	assert.EqualValues(t, 2, f.auditCount(t, models.EventCaseNotificationQueued))
	assert.EqualValues(t, 1, f.auditCount(t, models.EventCasePlanReadinessRecalculated))
	assert.EqualValues(t, 1, f.auditCount(t, models.EventCasePlanReadinessOverridden))

	events, err := f.repos.AuditEvents.ListByCase(f.ctx, f.c.ID)
	require.NoError(t, err)
	seen := make(map[string]bool, len(events))
	for _, e := range events {
		assert.NotEmpty(t, e.EventID)
		assert.False(t, seen[e.EventID], "event ids must be unique")
		seen[e.EventID] = true
	}
}

func TestConcurrentCompletionsUnblockSharedDependent(t *testing.T) {
	f := newPlanFixture(t)
	steps := f.generate(t)

	collect := stepByKey(t, steps, workflow.StepCollectCivilRecords)
	gather := stepByKey(t, steps, workflow.StepGatherEstateInventory)

	for _, id := range []int64{collect.ID, gather.ID} {
		_, err := f.svc.UpdateTaskStatus(f.ctx, f.editor, id, models.StepStatusInProgress)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []int64{collect.ID, gather.ID} {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = f.svc.UpdateTaskStatus(f.ctx, f.editor, id, models.StepStatusComplete)
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	current, err := f.repos.Steps.ListByCase(f.ctx, f.c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusReady, stepByKey(t, current, workflow.StepSubmitSuccessionNotification).Status)
}

func TestGetPlanStepsDeniedAcrossTenants(t *testing.T) {
	f := newPlanFixture(t)
	f.generate(t)

	other, err := f.repos.Tenants.Create(f.ctx, "Other Agency", "other")
	require.NoError(t, err)
	stranger, err := f.repos.Users.Create(f.ctx, other.ID, "stranger", true, nil)
	require.NoError(t, err)

	_, err = f.svc.GetPlanSteps(f.ctx, stranger, f.c.ID)
	require.Error(t, err)
	var accessErr *auth.CaseAccessError
	require.True(t, errors.As(err, &accessErr))
	assert.Equal(t, auth.ReasonNoCaseAccess, accessErr.ReasonCode)
}
