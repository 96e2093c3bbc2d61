package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/db"
	"caseflow/pkg/models"
)

func newStepFixture(t *testing.T) (context.Context, *Repositories, *models.Case) {
	t.Helper()
	ctx := context.Background()

	database, err := db.NewTest(t)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	repos := New(database)
	tenant, err := repos.Tenants.Create(ctx, "Meridian Estates", "meridian")
	require.NoError(t, err)
	user, err := repos.Users.Create(ctx, tenant.ID, "manager", true, nil)
	require.NoError(t, err)
	c, err := repos.Cases.Create(ctx, tenant.ID, "Estate of J. Halloran", user.ID)
	require.NoError(t, err)
	return ctx, repos, c
}

func TestStepCreateAndGet(t *testing.T) {
	ctx, repos, c := newStepFixture(t)

	created, err := repos.Steps.Create(ctx, &models.WorkflowStep{
		CaseID:   c.ID,
		TenantID: c.TenantID,
		StepKey:  "collect-civil-records",
		Title:    "Collect civil records",
		Sequence: 10,
		Status:   models.StepStatusReady,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := repos.Steps.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "collect-civil-records", got.StepKey)
	assert.Equal(t, models.StepStatusReady, got.Status)
	assert.False(t, got.IsReadinessOverridden)
	assert.Nil(t, got.DueDate)
}

func TestStepUniquePerCase(t *testing.T) {
	ctx, repos, c := newStepFixture(t)

	step := &models.WorkflowStep{
		CaseID: c.ID, TenantID: c.TenantID, StepKey: "collect-civil-records",
		Title: "Collect civil records", Sequence: 10, Status: models.StepStatusReady,
	}
	_, err := repos.Steps.Create(ctx, step)
	require.NoError(t, err)

	_, err = repos.Steps.Create(ctx, step)
	assert.Error(t, err, "duplicate step key within one case must be rejected")
}

func TestStepListByCaseOrdersBySequence(t *testing.T) {
	ctx, repos, c := newStepFixture(t)

	for _, s := range []struct {
		key string
		seq int
	}{
		{"submit-succession-notification", 30},
		{"collect-civil-records", 10},
		{"gather-estate-inventory", 20},
	} {
		_, err := repos.Steps.Create(ctx, &models.WorkflowStep{
			CaseID: c.ID, TenantID: c.TenantID, StepKey: s.key,
			Title: s.key, Sequence: s.seq, Status: models.StepStatusBlocked,
		})
		require.NoError(t, err)
	}

	steps, err := repos.Steps.ListByCase(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "collect-civil-records", steps[0].StepKey)
	assert.Equal(t, "gather-estate-inventory", steps[1].StepKey)
	assert.Equal(t, "submit-succession-notification", steps[2].StepKey)
}

func TestStepOverrideAndClear(t *testing.T) {
	ctx, repos, c := newStepFixture(t)

	created, err := repos.Steps.Create(ctx, &models.WorkflowStep{
		CaseID: c.ID, TenantID: c.TenantID, StepKey: "engage-legal-support",
		Title: "Engage legal support", Sequence: 50, Status: models.StepStatusBlocked,
	})
	require.NoError(t, err)

	require.NoError(t, repos.Steps.Override(ctx, created.ID, models.StepStatusReady, "counsel retained", 7))

	got, err := repos.Steps.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusReady, got.Status)
	assert.True(t, got.IsReadinessOverridden)
	require.NotNil(t, got.OverrideRationale)
	assert.Equal(t, "counsel retained", *got.OverrideRationale)
	require.NotNil(t, got.OverrideByUserID)
	assert.EqualValues(t, 7, *got.OverrideByUserID)
	assert.NotNil(t, got.OverriddenAt)

	// A manual status update clears the pin.
	require.NoError(t, repos.Steps.UpdateStatus(ctx, created.ID, models.StepStatusInProgress))

	got, err = repos.Steps.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusInProgress, got.Status)
	assert.False(t, got.IsReadinessOverridden)
	assert.Nil(t, got.OverrideRationale)
	assert.Nil(t, got.OverrideByUserID)
	assert.Nil(t, got.OverriddenAt)
}

func TestPromoteToReadyGuards(t *testing.T) {
	ctx, repos, c := newStepFixture(t)

	blocked, err := repos.Steps.Create(ctx, &models.WorkflowStep{
		CaseID: c.ID, TenantID: c.TenantID, StepKey: "submit-succession-notification",
		Title: "Submit succession notification", Sequence: 30, Status: models.StepStatusBlocked,
	})
	require.NoError(t, err)

	require.NoError(t, repos.Steps.PromoteToReady(ctx, blocked.ID))
	got, err := repos.Steps.GetByID(ctx, blocked.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusReady, got.Status)

	// Promoting a non-blocked step is a no-op.
	inProgress, err := repos.Steps.Create(ctx, &models.WorkflowStep{
		CaseID: c.ID, TenantID: c.TenantID, StepKey: "collect-civil-records",
		Title: "Collect civil records", Sequence: 10, Status: models.StepStatusInProgress,
	})
	require.NoError(t, err)
	require.NoError(t, repos.Steps.PromoteToReady(ctx, inProgress.ID))
	got, err = repos.Steps.GetByID(ctx, inProgress.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusInProgress, got.Status)

	// An override-pinned blocked step stays pinned.
	pinned, err := repos.Steps.Create(ctx, &models.WorkflowStep{
		CaseID: c.ID, TenantID: c.TenantID, StepKey: "validate-will",
		Title: "Validate will", Sequence: 40, Status: models.StepStatusBlocked,
	})
	require.NoError(t, err)
	require.NoError(t, repos.Steps.Override(ctx, pinned.ID, models.StepStatusBlocked, "will contested", 7))
	require.NoError(t, repos.Steps.PromoteToReady(ctx, pinned.ID))
	got, err = repos.Steps.GetByID(ctx, pinned.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusBlocked, got.Status)
	assert.True(t, got.IsReadinessOverridden)
}

func TestStepDueDateRoundTrip(t *testing.T) {
	ctx, repos, c := newStepFixture(t)

	created, err := repos.Steps.Create(ctx, &models.WorkflowStep{
		CaseID: c.ID, TenantID: c.TenantID, StepKey: "collect-civil-records",
		Title: "Collect civil records", Sequence: 10, Status: models.StepStatusReady,
	})
	require.NoError(t, err)

	due := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)
	require.NoError(t, repos.Steps.SetDueDate(ctx, created.ID, &due))

	got, err := repos.Steps.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DueDate)
	assert.True(t, got.DueDate.Equal(due))

	require.NoError(t, repos.Steps.SetDueDate(ctx, created.ID, nil))
	got, err = repos.Steps.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DueDate)
}

func TestStepGetByIDNotFound(t *testing.T) {
	ctx, repos, _ := newStepFixture(t)

	_, err := repos.Steps.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListOverdue(t *testing.T) {
	ctx, repos, c := newStepFixture(t)

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	overdue, err := repos.Steps.Create(ctx, &models.WorkflowStep{
		CaseID: c.ID, TenantID: c.TenantID, StepKey: "collect-civil-records",
		Title: "Collect civil records", Sequence: 10,
		Status: models.StepStatusReady, DueDate: &past,
	})
	require.NoError(t, err)
	_, err = repos.Steps.Create(ctx, &models.WorkflowStep{
		CaseID: c.ID, TenantID: c.TenantID, StepKey: "gather-estate-inventory",
		Title: "Gather estate inventory", Sequence: 20,
		Status: models.StepStatusReady, DueDate: &future,
	})
	require.NoError(t, err)
	_, err = repos.Steps.Create(ctx, &models.WorkflowStep{
		CaseID: c.ID, TenantID: c.TenantID, StepKey: "submit-succession-notification",
		Title: "Submit succession notification", Sequence: 30,
		Status: models.StepStatusComplete, DueDate: &past,
	})
	require.NoError(t, err)

	steps, err := repos.Steps.ListOverdue(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, overdue.ID, steps[0].ID)
}
