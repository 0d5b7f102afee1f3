// Package reconcile 把期望的版型/任务集合与已持久化的集合对齐。
//
// 一次运行分三步：删除未被引用的版型、逐项校验、逐项应用。单个版型失败只记录警告，
// 不会中断整次运行。不同版型之间没有数据依赖，应用阶段可以并行。
package reconcile

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
)

// Store 引擎需要的持久化操作
// ListLayouts 需要预加载 Ratios 和 Tasks；DeleteLayout 需要级联删除比例和任务
type Store interface {
	ListLayouts(ctx context.Context, planID string) ([]entity.Layout, error)
	CreateLayout(ctx context.Context, layout *entity.Layout) error
	UpdateLayout(ctx context.Context, layout *entity.Layout) error
	DeleteLayout(ctx context.Context, id string) error
	ReplaceRatios(ctx context.Context, layoutID string, ratios []entity.SizeRatio) error
	CreateTask(ctx context.Context, task *entity.Task) error
	UpdateTask(ctx context.Context, task *entity.Task) error
	DeleteTask(ctx context.Context, id string) error
}

// DefaultParallelism 默认并行处理的版型数
const DefaultParallelism = 4

// Engine 版型对齐引擎
type Engine struct {
	store       Store
	logger      *zap.Logger
	parallelism int
}

// NewEngine 创建引擎，parallelism <= 0 时使用默认值
func NewEngine(store Store, logger *zap.Logger, parallelism int) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	return &Engine{store: store, logger: logger, parallelism: parallelism}
}

type specResult struct {
	layoutID       string
	layoutsCreated int
	layoutsUpdated int
	tasksCreated   int
	tasksUpdated   int
	tasksDeleted   int
	tasksKept      int
	warning        *Warning
}

func (r *specResult) fail(index int, spec *LayoutSpec, kind WarningKind, err error) {
	w := &Warning{SpecIndex: index, LayoutID: spec.LayoutID, Kind: kind, Message: err.Error()}
	if spec.Name != nil {
		w.LayoutName = *spec.Name
	}
	if r.layoutID != "" {
		w.LayoutID = r.layoutID
	}
	r.warning = w
}

// Reconcile 将计划的版型集合对齐到 specs。只有加载已有版型失败时返回 error，
// 其余失败都进入 Report.Warnings
func (e *Engine) Reconcile(ctx context.Context, planID string, specs []LayoutSpec) (*Report, error) {
	existing, err := e.store.ListLayouts(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("加载计划版型失败: %w", err)
	}

	byID := make(map[string]*entity.Layout, len(existing))
	for i := range existing {
		byID[existing[i].ID] = &existing[i]
	}

	report := &Report{PlanID: planID, LayoutIDs: make([]string, len(specs))}

	// 提交项引用的版型；同一ID出现多次时只认第一次
	claimed := make(map[string]int, len(specs))
	for i := range specs {
		if id := specs[i].LayoutID; id != "" {
			if _, ok := claimed[id]; !ok {
				claimed[id] = i
			}
		}
	}

	// 删除阶段
	for i := range existing {
		l := &existing[i]
		if _, ok := claimed[l.ID]; ok {
			continue
		}
		if err := e.store.DeleteLayout(ctx, l.ID); err != nil {
			e.logger.Warn("删除版型失败", zap.String("plan_id", planID), zap.String("layout_id", l.ID), zap.Error(err))
			report.Warnings = append(report.Warnings, Warning{
				SpecIndex:  -1,
				LayoutID:   l.ID,
				LayoutName: l.Name,
				Kind:       WarningPersistence,
				Message:    err.Error(),
			})
			continue
		}
		report.LayoutsDeleted++
		report.TasksDeleted += len(l.Tasks)
	}

	// 校验 + 应用阶段
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(e.parallelism)

	for i := range specs {
		i := i
		spec := &specs[i]
		g.Go(func() error {
			res := &specResult{}
			if err := ctx.Err(); err != nil {
				res.fail(i, spec, WarningPersistence, err)
			} else if err := e.check(spec, i, byID, claimed); err != nil {
				res.fail(i, spec, WarningValidation, err)
			} else if spec.LayoutID != "" {
				e.applyUpdate(ctx, i, spec, byID[spec.LayoutID], res)
			} else {
				e.applyCreate(ctx, planID, i, spec, res)
			}

			mu.Lock()
			defer mu.Unlock()
			report.merge(res)
			report.LayoutIDs[i] = res.layoutID
			return nil
		})
	}
	_ = g.Wait()

	report.sortWarnings()
	e.logger.Info("版型对齐完成",
		zap.String("plan_id", planID),
		zap.Int("layouts_created", report.LayoutsCreated),
		zap.Int("layouts_updated", report.LayoutsUpdated),
		zap.Int("layouts_deleted", report.LayoutsDeleted),
		zap.Int("tasks_created", report.TasksCreated),
		zap.Int("tasks_updated", report.TasksUpdated),
		zap.Int("tasks_deleted", report.TasksDeleted),
		zap.Int("warnings", len(report.Warnings)),
	)
	return report, nil
}

func (e *Engine) check(spec *LayoutSpec, index int, byID map[string]*entity.Layout, claimed map[string]int) error {
	if spec.LayoutID != "" {
		if _, ok := byID[spec.LayoutID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownLayout, spec.LayoutID)
		}
		if claimed[spec.LayoutID] != index {
			return fmt.Errorf("%w: %s", ErrDuplicateLayout, spec.LayoutID)
		}
	}
	return spec.Validate()
}

func ratioRows(layoutID string, ratios map[string]float64) []entity.SizeRatio {
	rows := make([]entity.SizeRatio, 0, len(ratios))
	for _, size := range sortedSizes(ratios) {
		rows = append(rows, entity.SizeRatio{
			ID:       entity.NewID(),
			LayoutID: layoutID,
			Size:     size,
			Ratio:    ratios[size],
		})
	}
	return rows
}

func newTask(layoutID, color string, layers int) *entity.Task {
	return &entity.Task{
		ID:            entity.NewID(),
		LayoutID:      layoutID,
		Color:         color,
		PlannedLayers: layers,
		Status:        entity.TaskStatusPending,
	}
}

// applyCreate 新建版型 -> 写入比例 -> 每个颜色一个任务
func (e *Engine) applyCreate(ctx context.Context, planID string, index int, spec *LayoutSpec, res *specResult) {
	layout := &entity.Layout{
		ID:     entity.NewID(),
		PlanID: planID,
		Name:   fmt.Sprintf("版型%d", index+1),
	}
	if spec.Name != nil && *spec.Name != "" {
		layout.Name = *spec.Name
	}
	if spec.Note != nil {
		layout.Note = *spec.Note
	}

	if err := e.store.CreateLayout(ctx, layout); err != nil {
		res.fail(index, spec, WarningPersistence, fmt.Errorf("创建版型失败: %w", err))
		return
	}
	res.layoutID = layout.ID
	res.layoutsCreated++

	if err := e.store.ReplaceRatios(ctx, layout.ID, ratioRows(layout.ID, spec.PositiveRatios())); err != nil {
		res.fail(index, spec, WarningPersistence, fmt.Errorf("保存尺码比例失败: %w", err))
		return
	}

	for _, color := range spec.NormalizedColors() {
		if err := e.store.CreateTask(ctx, newTask(layout.ID, color, spec.PlannedLayers)); err != nil {
			res.fail(index, spec, WarningPersistence, fmt.Errorf("创建任务(%s)失败: %w", color, err))
			return
		}
		res.tasksCreated++
	}
}

// applyUpdate 更新名称/备注 -> 比例整体替换 -> 按颜色对比任务（保留/更新/新建/删除）
func (e *Engine) applyUpdate(ctx context.Context, index int, spec *LayoutSpec, current *entity.Layout, res *specResult) {
	res.layoutID = current.ID
	changed := false

	next := *current
	if spec.Name != nil && *spec.Name != "" && *spec.Name != current.Name {
		next.Name = *spec.Name
		changed = true
	}
	if spec.Note != nil && *spec.Note != current.Note {
		next.Note = *spec.Note
		changed = true
	}
	if changed {
		next.Ratios, next.Tasks = nil, nil
		if err := e.store.UpdateLayout(ctx, &next); err != nil {
			res.fail(index, spec, WarningPersistence, fmt.Errorf("更新版型失败: %w", err))
			return
		}
	}

	ratios := spec.PositiveRatios()
	if !sameRatios(ratios, current.RatioMap()) {
		if err := e.store.ReplaceRatios(ctx, current.ID, ratioRows(current.ID, ratios)); err != nil {
			res.fail(index, spec, WarningPersistence, fmt.Errorf("保存尺码比例失败: %w", err))
			e.markUpdated(res, changed)
			return
		}
		changed = true
	}

	if err := e.diffTasks(ctx, current, spec, res); err != nil {
		res.fail(index, spec, WarningPersistence, err)
	}
	e.markUpdated(res, changed || res.tasksCreated+res.tasksUpdated+res.tasksDeleted > 0)
}

func (e *Engine) markUpdated(res *specResult, changed bool) {
	if changed {
		res.layoutsUpdated = 1
	}
}

// diffTasks 以颜色为键对比任务，保留任务ID和已完成层数
func (e *Engine) diffTasks(ctx context.Context, current *entity.Layout, spec *LayoutSpec, res *specResult) error {
	existing := make(map[string]*entity.Task, len(current.Tasks))
	var extras []*entity.Task
	for i := range current.Tasks {
		t := &current.Tasks[i]
		if _, dup := existing[t.Color]; dup {
			extras = append(extras, t)
			continue
		}
		existing[t.Color] = t
	}

	wanted := make(map[string]bool, len(spec.Colors))
	for _, color := range spec.NormalizedColors() {
		wanted[color] = true
		t, ok := existing[color]
		switch {
		case !ok:
			if err := e.store.CreateTask(ctx, newTask(current.ID, color, spec.PlannedLayers)); err != nil {
				return fmt.Errorf("创建任务(%s)失败: %w", color, err)
			}
			res.tasksCreated++
		case t.PlannedLayers != spec.PlannedLayers:
			updated := *t
			updated.PlannedLayers = spec.PlannedLayers
			updated.Status = entity.DeriveTaskStatus(updated.PlannedLayers, updated.CompletedLayers)
			if err := e.store.UpdateTask(ctx, &updated); err != nil {
				return fmt.Errorf("更新任务(%s)失败: %w", color, err)
			}
			res.tasksUpdated++
		default:
			res.tasksKept++
		}
	}

	for color, t := range existing {
		if !wanted[color] {
			extras = append(extras, t)
		}
	}
	for _, t := range extras {
		if err := e.store.DeleteTask(ctx, t.ID); err != nil {
			return fmt.Errorf("删除任务(%s)失败: %w", t.Color, err)
		}
		res.tasksDeleted++
	}
	return nil
}
