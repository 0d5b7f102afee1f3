package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/memstore"
	"github.com/XM-LEES/cutrix/internal/cutting/reconcile"
)

var _ reconcile.Store = (*memstore.PlanStore)(nil)

func strp(s string) *string { return &s }

func setup(t *testing.T) (*memstore.Store, *reconcile.Engine, string) {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	order := &entity.Order{
		OrderNumber: "PO-001",
		StyleNumber: "ST-01",
		Items: []entity.OrderItem{
			{Color: "red", Size: "S", Quantity: 10},
			{Color: "red", Size: "M", Quantity: 10},
		},
	}
	require.NoError(t, store.Orders.Create(ctx, order))
	plan := &entity.Plan{Name: "plan", OrderID: order.ID, Status: entity.PlanStatusPending}
	require.NoError(t, store.Plans.Create(ctx, plan))
	store.ResetWrites()
	return store, reconcile.NewEngine(store.Plans, zap.NewNop(), 4), plan.ID
}

func validSpec(name string, colors ...string) reconcile.LayoutSpec {
	return reconcile.LayoutSpec{
		Name:          strp(name),
		Colors:        colors,
		PlannedLayers: 5,
		Ratios:        map[string]float64{"S": 1, "M": 1},
	}
}

func TestReconcileEmptyColorsPartialFailure(t *testing.T) {
	store, engine, planID := setup(t)
	ctx := context.Background()

	report, err := engine.Reconcile(ctx, planID, []reconcile.LayoutSpec{
		{Name: strp("empty"), Colors: []string{}, PlannedLayers: 5, Ratios: map[string]float64{"S": 1}},
		validSpec("ok", "red"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.LayoutsCreated)
	assert.Equal(t, 1, report.TasksCreated)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, 0, report.Warnings[0].SpecIndex)
	assert.Equal(t, reconcile.WarningValidation, report.Warnings[0].Kind)
	assert.Equal(t, reconcile.OutcomePartialFailure, report.Outcome())
	assert.Empty(t, report.LayoutIDs[0])
	assert.NotEmpty(t, report.LayoutIDs[1])

	layouts, err := store.Plans.ListLayouts(ctx, planID)
	require.NoError(t, err)
	require.Len(t, layouts, 1)
	assert.Equal(t, "ok", layouts[0].Name)
}

func TestReconcileValidationRules(t *testing.T) {
	_, engine, planID := setup(t)

	specs := []reconcile.LayoutSpec{
		{Colors: []string{"red"}, PlannedLayers: 0, Ratios: map[string]float64{"S": 1}},
		{Colors: []string{"red"}, PlannedLayers: 3, Ratios: map[string]float64{"S": 0}},
		{Colors: []string{"red", "red"}, PlannedLayers: 3, Ratios: map[string]float64{"S": 1}},
		{Colors: []string{" "}, PlannedLayers: 3, Ratios: map[string]float64{"S": 1}},
		{Colors: []string{"red"}, PlannedLayers: 3, Ratios: map[string]float64{"S": 2, "M": -1}},
		{LayoutID: "nope", Colors: []string{"red"}, PlannedLayers: 3, Ratios: map[string]float64{"S": 1}},
	}
	report, err := engine.Reconcile(context.Background(), planID, specs)
	require.NoError(t, err)

	require.Len(t, report.Warnings, len(specs))
	want := []error{
		reconcile.ErrNoLayers,
		reconcile.ErrRatioSum,
		reconcile.ErrDuplicateColor,
		reconcile.ErrBlankColor,
		reconcile.ErrNegativeRatio,
		reconcile.ErrUnknownLayout,
	}
	for i, w := range report.Warnings {
		assert.Equal(t, i, w.SpecIndex)
		assert.Equal(t, reconcile.WarningValidation, w.Kind)
		assert.Contains(t, w.Message, want[i].Error())
	}
	assert.Zero(t, report.LayoutsCreated)
	assert.False(t, report.Changed())
}

func TestReconcileIdempotent(t *testing.T) {
	store, engine, planID := setup(t)
	ctx := context.Background()

	first, err := engine.Reconcile(ctx, planID, []reconcile.LayoutSpec{validSpec("A", "red", "blue")})
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomeSuccess, first.Outcome())
	assert.Equal(t, 2, first.TasksCreated)

	spec := validSpec("A", "red", "blue")
	spec.LayoutID = first.LayoutIDs[0]
	store.ResetWrites()

	second, err := engine.Reconcile(ctx, planID, []reconcile.LayoutSpec{spec})
	require.NoError(t, err)
	assert.False(t, second.Changed())
	assert.Equal(t, 2, second.TasksKept)
	assert.Empty(t, second.Warnings)
	assert.Zero(t, store.Writes())
}

func TestReconcilePerColorDiff(t *testing.T) {
	store, engine, planID := setup(t)
	ctx := context.Background()

	first, err := engine.Reconcile(ctx, planID, []reconcile.LayoutSpec{validSpec("A", "red", "blue")})
	require.NoError(t, err)
	layoutID := first.LayoutIDs[0]

	before, err := store.Plans.FindLayout(ctx, layoutID)
	require.NoError(t, err)
	ids := map[string]string{}
	for _, task := range before.Tasks {
		ids[task.Color] = task.ID
	}

	// red 保留，blue 删除，green 新建，层数从5改为8
	spec := reconcile.LayoutSpec{
		LayoutID:      layoutID,
		Note:          strp("改版"),
		Colors:        []string{"red", "green"},
		PlannedLayers: 8,
		Ratios:        map[string]float64{"S": 2, "M": 0},
	}
	report, err := engine.Reconcile(ctx, planID, []reconcile.LayoutSpec{spec})
	require.NoError(t, err)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, 1, report.LayoutsUpdated)
	assert.Equal(t, 1, report.TasksUpdated)
	assert.Equal(t, 1, report.TasksCreated)
	assert.Equal(t, 1, report.TasksDeleted)

	after, err := store.Plans.FindLayout(ctx, layoutID)
	require.NoError(t, err)
	assert.Equal(t, "A", after.Name)
	assert.Equal(t, "改版", after.Note)
	require.Len(t, after.Ratios, 1)
	assert.Equal(t, "S", after.Ratios[0].Size)
	assert.Equal(t, 2.0, after.Ratios[0].Ratio)

	got := map[string]entity.Task{}
	for _, task := range after.Tasks {
		got[task.Color] = task
	}
	require.Len(t, got, 2)
	assert.Equal(t, ids["red"], got["red"].ID)
	assert.Equal(t, 8, got["red"].PlannedLayers)
	assert.Equal(t, 8, got["green"].PlannedLayers)
	_, hasBlue := got["blue"]
	assert.False(t, hasBlue)
}

func TestReconcileDropsDuplicateStoredTasks(t *testing.T) {
	store, engine, planID := setup(t)
	ctx := context.Background()

	first, err := engine.Reconcile(ctx, planID, []reconcile.LayoutSpec{validSpec("A", "red")})
	require.NoError(t, err)
	layoutID := first.LayoutIDs[0]
	store.Plans.SeedTask(entity.Task{LayoutID: layoutID, Color: "red", PlannedLayers: 5, Status: entity.TaskStatusPending})

	spec := validSpec("A", "red")
	spec.LayoutID = layoutID
	report, err := engine.Reconcile(ctx, planID, []reconcile.LayoutSpec{spec})
	require.NoError(t, err)
	assert.Equal(t, 1, report.TasksDeleted)
	assert.Equal(t, 1, report.TasksKept)

	tasks, err := store.Plans.ListTasks(ctx, planID)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestReconcileDeletesUnreferencedLayouts(t *testing.T) {
	store, engine, planID := setup(t)
	ctx := context.Background()

	first, err := engine.Reconcile(ctx, planID, []reconcile.LayoutSpec{
		validSpec("A", "red"),
		validSpec("B", "red", "blue"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, first.LayoutsCreated)

	keep := validSpec("A", "red")
	keep.LayoutID = first.LayoutIDs[0]
	report, err := engine.Reconcile(ctx, planID, []reconcile.LayoutSpec{keep})
	require.NoError(t, err)
	assert.Equal(t, 1, report.LayoutsDeleted)
	assert.Equal(t, 2, report.TasksDeleted)
	assert.Equal(t, 0, report.LayoutsUpdated)

	layouts, err := store.Plans.ListLayouts(ctx, planID)
	require.NoError(t, err)
	require.Len(t, layouts, 1)
	assert.Equal(t, first.LayoutIDs[0], layouts[0].ID)

	_, err = store.Plans.FindLayout(ctx, first.LayoutIDs[1])
	assert.Error(t, err)
}

func TestReconcilePersistenceFailureContinues(t *testing.T) {
	store, engine, planID := setup(t)
	store.SetFault(func(op string, v any) error {
		if task, ok := v.(*entity.Task); ok && op == "CreateTask" && task.Color == "blue" {
			return errors.New("connection reset")
		}
		return nil
	})

	report, err := engine.Reconcile(context.Background(), planID, []reconcile.LayoutSpec{
		validSpec("A", "blue"),
		validSpec("B", "red"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.LayoutsCreated)
	assert.Equal(t, 1, report.TasksCreated)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, reconcile.WarningPersistence, report.Warnings[0].Kind)
	assert.Equal(t, 0, report.Warnings[0].SpecIndex)
	assert.Contains(t, report.Warnings[0].Message, "connection reset")
	assert.Equal(t, reconcile.OutcomePartialFailure, report.Outcome())
}

func TestReconcileLoadFailure(t *testing.T) {
	store, engine, planID := setup(t)
	store.SetFault(func(op string, v any) error {
		if op == "ListLayouts" {
			return errors.New("db down")
		}
		return nil
	})
	_, err := engine.Reconcile(context.Background(), planID, []reconcile.LayoutSpec{validSpec("A", "red")})
	assert.Error(t, err)
	assert.Zero(t, store.Writes())
}

func TestReconcileManyLayoutsInParallel(t *testing.T) {
	store, engine, planID := setup(t)

	var specs []reconcile.LayoutSpec
	for i := 0; i < 20; i++ {
		specs = append(specs, validSpec(fmt.Sprintf("L%02d", i), "red", "blue"))
	}
	report, err := engine.Reconcile(context.Background(), planID, specs)
	require.NoError(t, err)
	assert.Equal(t, 20, report.LayoutsCreated)
	assert.Equal(t, 40, report.TasksCreated)

	seen := map[string]bool{}
	for _, id := range report.LayoutIDs {
		require.NotEmpty(t, id)
		seen[id] = true
	}
	assert.Len(t, seen, 20)

	tasks, err := store.Plans.ListTasks(context.Background(), planID)
	require.NoError(t, err)
	assert.Len(t, tasks, 40)
}

func TestReconcileRejectsRatiosWithoutSupply(t *testing.T) {
	store, engine, planID := setup(t)

	ratios := []map[string]float64{
		{" ": 2},
		{"": 1, "S": 1},
		{"S": math.NaN()},
		{"S": math.Inf(1)},
		{"S": 1e7},
		{"S": 0.00001},
	}
	want := []error{
		reconcile.ErrBlankSize,
		reconcile.ErrBlankSize,
		reconcile.ErrInvalidRatio,
		reconcile.ErrInvalidRatio,
		reconcile.ErrInvalidRatio,
		reconcile.ErrRatioSum,
	}
	var specs []reconcile.LayoutSpec
	for _, r := range ratios {
		specs = append(specs, reconcile.LayoutSpec{Colors: []string{"red"}, PlannedLayers: 5, Ratios: r})
	}

	report, err := engine.Reconcile(context.Background(), planID, specs)
	require.NoError(t, err)
	require.Len(t, report.Warnings, len(specs))
	for i, w := range report.Warnings {
		assert.Equal(t, i, w.SpecIndex)
		assert.Equal(t, reconcile.WarningValidation, w.Kind)
		assert.Contains(t, w.Message, want[i].Error())
	}
	assert.Equal(t, reconcile.OutcomePartialFailure, report.Outcome())
	assert.Zero(t, report.LayoutsCreated)
	assert.Zero(t, store.Writes())
}

func TestReconcileRatiosRoundedToStoredPrecision(t *testing.T) {
	store, engine, planID := setup(t)
	ctx := context.Background()

	spec := reconcile.LayoutSpec{
		Colors:        []string{"red"},
		PlannedLayers: 3,
		Ratios:        map[string]float64{"S": 1.0 / 3, "M": 2},
	}
	first, err := engine.Reconcile(ctx, planID, []reconcile.LayoutSpec{spec})
	require.NoError(t, err)
	require.Empty(t, first.Warnings)

	layout, err := store.Plans.FindLayout(ctx, first.LayoutIDs[0])
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"S": 0.3333, "M": 2}, layout.RatioMap())

	// numeric(10,4) 读回的值与取整后的提交值相同，不应视为变化
	spec.LayoutID = first.LayoutIDs[0]
	store.ResetWrites()
	second, err := engine.Reconcile(ctx, planID, []reconcile.LayoutSpec{spec})
	require.NoError(t, err)
	assert.False(t, second.Changed())
	assert.Zero(t, store.Writes())
}

// seedAB 建立版型 A(red, blue) 和 B(red)，返回两个版型ID
func seedAB(t *testing.T, store *memstore.Store, engine *reconcile.Engine, planID string) (string, string) {
	t.Helper()
	first, err := engine.Reconcile(context.Background(), planID, []reconcile.LayoutSpec{
		validSpec("A", "red", "blue"),
		validSpec("B", "red"),
	})
	require.NoError(t, err)
	require.Empty(t, first.Warnings)
	store.ResetWrites()
	return first.LayoutIDs[0], first.LayoutIDs[1]
}

func layoutTasks(t *testing.T, store *memstore.Store, layoutID string) map[string]entity.Task {
	t.Helper()
	layout, err := store.Plans.FindLayout(context.Background(), layoutID)
	require.NoError(t, err)
	got := map[string]entity.Task{}
	for _, task := range layout.Tasks {
		got[task.Color] = task
	}
	return got
}

func TestReconcileDeleteFailureKeepsLayout(t *testing.T) {
	store, engine, planID := setup(t)
	ctx := context.Background()
	idA, idB := seedAB(t, store, engine, planID)

	store.SetFault(func(op string, v any) error {
		if op == "DeleteLayout" && v == idB {
			return errors.New("lock timeout")
		}
		return nil
	})

	keep := validSpec("A", "red", "blue")
	keep.LayoutID = idA
	report, err := engine.Reconcile(ctx, planID, []reconcile.LayoutSpec{keep, validSpec("C", "red")})
	require.NoError(t, err)

	require.Len(t, report.Warnings, 1)
	w := report.Warnings[0]
	assert.Equal(t, -1, w.SpecIndex)
	assert.Equal(t, reconcile.WarningPersistence, w.Kind)
	assert.Equal(t, idB, w.LayoutID)
	assert.Equal(t, "B", w.LayoutName)
	assert.Contains(t, w.Message, "lock timeout")
	assert.Equal(t, reconcile.OutcomePartialFailure, report.Outcome())

	assert.Zero(t, report.LayoutsDeleted)
	assert.Zero(t, report.TasksDeleted)
	assert.Equal(t, 1, report.LayoutsCreated)
	assert.Equal(t, 1, report.TasksCreated)
	assert.Equal(t, 2, report.TasksKept)

	layouts, err := store.Plans.ListLayouts(ctx, planID)
	require.NoError(t, err)
	assert.Len(t, layouts, 3)
}

func TestReconcileUpdateFailures(t *testing.T) {
	boom := errors.New("write failed")

	cases := []struct {
		name string
		// spec A 的修改；B 同时把层数改为 8
		editA func(spec *reconcile.LayoutSpec)
		fault func(idA string) memstore.Fault

		layoutsUpdated int
		tasksUpdated   int
		tasksCreated   int
		tasksDeleted   int
		tasksKept      int
		message        string
		wantA          map[string]int // 颜色 -> A 中任务的计划层数
	}{
		{
			name: "UpdateLayout",
			editA: func(spec *reconcile.LayoutSpec) {
				spec.Note = strp("改版")
				spec.PlannedLayers = 8
			},
			fault: func(idA string) memstore.Fault {
				return func(op string, v any) error {
					if l, ok := v.(*entity.Layout); ok && op == "UpdateLayout" && l.ID == idA {
						return boom
					}
					return nil
				}
			},
			layoutsUpdated: 1,
			tasksUpdated:   1,
			message:        "更新版型失败",
			wantA:          map[string]int{"red": 5, "blue": 5},
		},
		{
			name: "ReplaceRatios",
			editA: func(spec *reconcile.LayoutSpec) {
				spec.Note = strp("改版")
				spec.Ratios = map[string]float64{"S": 3}
				spec.PlannedLayers = 8
			},
			fault: func(idA string) memstore.Fault {
				return func(op string, v any) error {
					if op == "ReplaceRatios" && v == idA {
						return boom
					}
					return nil
				}
			},
			// A 的备注已写入，计入更新
			layoutsUpdated: 2,
			tasksUpdated:   1,
			message:        "保存尺码比例失败",
			wantA:          map[string]int{"red": 5, "blue": 5},
		},
		{
			name: "UpdateTask",
			editA: func(spec *reconcile.LayoutSpec) {
				spec.PlannedLayers = 8
			},
			fault: func(string) memstore.Fault {
				return func(op string, v any) error {
					if task, ok := v.(*entity.Task); ok && op == "UpdateTask" && task.Color == "blue" {
						return boom
					}
					return nil
				}
			},
			// A 的 red 和 B 的 red 都已更新
			layoutsUpdated: 2,
			tasksUpdated:   2,
			message:        "更新任务(blue)失败",
			wantA:          map[string]int{"red": 8, "blue": 5},
		},
		{
			name: "DeleteTask",
			editA: func(spec *reconcile.LayoutSpec) {
				spec.Colors = []string{"red"}
			},
			fault: func(string) memstore.Fault {
				return func(op string, v any) error {
					if op == "DeleteTask" {
						return boom
					}
					return nil
				}
			},
			layoutsUpdated: 1,
			tasksUpdated:   1,
			tasksKept:      1,
			message:        "删除任务(blue)失败",
			wantA:          map[string]int{"red": 5, "blue": 5},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, engine, planID := setup(t)
			ctx := context.Background()
			idA, idB := seedAB(t, store, engine, planID)

			specA := validSpec("A", "red", "blue")
			specA.LayoutID = idA
			tc.editA(&specA)
			specB := validSpec("B", "red")
			specB.LayoutID = idB
			specB.PlannedLayers = 8

			store.SetFault(tc.fault(idA))
			report, err := engine.Reconcile(ctx, planID, []reconcile.LayoutSpec{specA, specB})
			require.NoError(t, err)
			store.SetFault(nil)

			require.Len(t, report.Warnings, 1)
			w := report.Warnings[0]
			assert.Equal(t, 0, w.SpecIndex)
			assert.Equal(t, idA, w.LayoutID)
			assert.Equal(t, reconcile.WarningPersistence, w.Kind)
			assert.Contains(t, w.Message, tc.message)
			assert.Contains(t, w.Message, "write failed")
			assert.Equal(t, reconcile.OutcomePartialFailure, report.Outcome())

			assert.Equal(t, tc.layoutsUpdated, report.LayoutsUpdated)
			assert.Equal(t, tc.tasksUpdated, report.TasksUpdated)
			assert.Equal(t, tc.tasksCreated, report.TasksCreated)
			assert.Equal(t, tc.tasksDeleted, report.TasksDeleted)
			assert.Equal(t, tc.tasksKept, report.TasksKept)
			assert.Equal(t, []string{idA, idB}, report.LayoutIDs)

			// 其他版型照常应用
			assert.Equal(t, 8, layoutTasks(t, store, idB)["red"].PlannedLayers)

			gotA := layoutTasks(t, store, idA)
			require.Len(t, gotA, len(tc.wantA))
			for color, layers := range tc.wantA {
				assert.Equal(t, layers, gotA[color].PlannedLayers, color)
			}
		})
	}
}
