package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/reconcile"
	"github.com/XM-LEES/cutrix/internal/cutting/repository"
	"github.com/XM-LEES/cutrix/internal/cutting/testutil"
)

func TestOrderRepository_Conflict(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	order := testutil.SeedOrder(t, db, "PO-1")
	found, err := repos.Order.FindByNumber(ctx, "PO-1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	assert.Len(t, found.Items, 3)

	dup := testutil.SampleOrder("PO-1")
	assert.ErrorIs(t, repos.Order.Create(ctx, dup), repository.ErrConflict)

	_, err = repos.Order.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPlanRepository_ReconcileAndCascade(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	order := testutil.SeedOrder(t, db, "PO-1")
	plan := &entity.Plan{ID: entity.NewID(), Name: "计划", OrderID: order.ID, Status: entity.PlanStatusPending}
	require.NoError(t, repos.Plan.Create(ctx, plan))

	engine := reconcile.NewEngine(repos.Plan, zap.NewNop(), 2)
	spec := reconcile.LayoutSpec{Colors: []string{"red", "blue"}, PlannedLayers: 10, Ratios: map[string]float64{"M": 2, "L": 1}}
	report, err := engine.Reconcile(ctx, plan.ID, []reconcile.LayoutSpec{spec})
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomeSuccess, report.Outcome())
	assert.Equal(t, 2, report.TasksCreated)

	// 再次提交同样的内容不产生变化
	spec.LayoutID = report.LayoutIDs[0]
	again, err := engine.Reconcile(ctx, plan.ID, []reconcile.LayoutSpec{spec})
	require.NoError(t, err)
	assert.False(t, again.Changed())

	full, err := repos.Plan.FindByID(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, full.Layouts, 1)
	assert.Len(t, full.Layouts[0].Ratios, 2)
	assert.Len(t, full.Layouts[0].Tasks, 2)
	require.NotNil(t, full.Order)
	assert.Len(t, full.Order.Items, 3)

	tasks, err := repos.Plan.ListTasks(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	require.NoError(t, repos.Plan.Delete(ctx, plan.ID))
	_, err = repos.Plan.FindTask(ctx, tasks[0].ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repos.Plan.FindLayout(ctx, full.Layouts[0].ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_CountByRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	for _, u := range []entity.User{
		{ID: entity.NewID(), Name: "a", Role: "admin", IsActive: true},
		{ID: entity.NewID(), Name: "w1", Role: "worker", IsActive: true},
		{ID: entity.NewID(), Name: "w2", Role: "worker", IsActive: true},
	} {
		u := u
		require.NoError(t, repos.User.Create(ctx, &u))
	}

	counts, err := repos.User.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["admin"])
	assert.Equal(t, 2, counts["worker"])
}
