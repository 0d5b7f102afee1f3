package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/lifecycle"
	"github.com/XM-LEES/cutrix/internal/cutting/lock"
	"github.com/XM-LEES/cutrix/internal/cutting/matrix"
	"github.com/XM-LEES/cutrix/internal/cutting/policy"
	"github.com/XM-LEES/cutrix/internal/cutting/reconcile"
)

const defaultLockTTL = 30 * time.Second

// PlanService 生产计划：权限 -> 状态 -> 版型对齐 -> 可选发布
type PlanService struct {
	plans    PlanStore
	orders   OrderStore
	engine   *reconcile.Engine
	locker   lock.Locker
	lockTTL  time.Duration
	notifier Notifier
	logger   *zap.Logger
	reads    singleflight.Group

	// 计划结构每次变更后递增，矩阵读取按代合并
	genMu sync.Mutex
	gens  map[string]uint64
}

func NewPlanService(plans PlanStore, orders OrderStore, locker lock.Locker, notifier Notifier, logger *zap.Logger, opts Options) *PlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	return &PlanService{
		plans:    plans,
		orders:   orders,
		engine:   reconcile.NewEngine(plans, logger.Named("reconcile"), opts.Parallelism),
		locker:   locker,
		lockTTL:  opts.LockTTL,
		notifier: notifier,
		logger:   logger.Named("plan"),
		gens:     make(map[string]uint64),
	}
}

func (s *PlanService) generation(planID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[planID]
}

// bump 在版型/任务写入后调用，之后开始的矩阵读取不会复用变更前的结果
func (s *PlanService) bump(planID string) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.gens[planID]++
}

// CreatePlanInput 创建计划
type CreatePlanInput struct {
	OrderID            string                 `json:"order_id" binding:"required"`
	Name               string                 `json:"plan_name"`
	Note               string                 `json:"note"`
	PlannedPublishDate *time.Time             `json:"planned_publish_date"`
	PlannedFinishDate  *time.Time             `json:"planned_finish_date"`
	Layouts            []reconcile.LayoutSpec `json:"layouts"`
}

// PlanResult 创建/编辑的结果
type PlanResult struct {
	Plan           *entity.Plan      `json:"plan"`
	Report         *reconcile.Report `json:"report,omitempty"`
	Outcome        reconcile.Outcome `json:"outcome"`
	PublishOffered bool              `json:"publish_offered"`
}

// PlanSummary 列表项
type PlanSummary struct {
	entity.Plan
	StatusLabel string  `json:"status_label"`
	Progress    float64 `json:"progress"`
	TaskCount   int     `json:"task_count"`
}

func summarize(p entity.Plan) PlanSummary {
	return PlanSummary{
		Plan:        p,
		StatusLabel: lifecycle.StatusLabel(p.Status),
		Progress:    p.Progress(),
		TaskCount:   len(p.Tasks()),
	}
}

// CreatePlan 创建计划，可同时提交一组版型
func (s *PlanService) CreatePlan(ctx context.Context, actor Actor, input CreatePlanInput) (*PlanResult, error) {
	if err := checkPermission(actor, policy.PlanCreate); err != nil {
		return nil, err
	}
	if len(input.Layouts) > 0 {
		if err := checkPermission(actor, policy.LayoutCreate); err != nil {
			return nil, err
		}
		if err := checkPermission(actor, policy.TaskCreate); err != nil {
			return nil, err
		}
	}
	if input.PlannedPublishDate != nil && input.PlannedFinishDate != nil &&
		input.PlannedFinishDate.Before(*input.PlannedPublishDate) {
		return nil, invalid("计划完成日期不能早于计划发布日期")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, fmt.Errorf("查找订单失败: %w", err)
	}

	release, err := s.locker.Acquire(ctx, lock.OrderKey(order.ID), s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	// 一个订单只允许一个计划；plans.order_id 上另有唯一索引
	existing, err := s.plans.FindByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("查询订单计划失败: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrPlanExists
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = order.OrderNumber + " 的生产计划"
	}
	plan := &entity.Plan{
		ID:                 entity.NewID(),
		Name:               name,
		OrderID:            order.ID,
		Status:             entity.PlanStatusPending,
		PlannedPublishDate: input.PlannedPublishDate,
		PlannedFinishDate:  input.PlannedFinishDate,
		Note:               input.Note,
	}
	if err := s.plans.Create(ctx, plan); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrPlanExists
		}
		return nil, fmt.Errorf("创建计划失败: %w", err)
	}
	s.logger.Info("计划已创建", zap.String("plan_id", plan.ID), zap.String("order_id", order.ID), zap.String("actor", actor.ID))

	result := &PlanResult{Outcome: reconcile.OutcomeNeedsEditing}
	if len(input.Layouts) > 0 {
		report, err := s.engine.Reconcile(ctx, plan.ID, input.Layouts)
		if err != nil {
			// 计划已创建，版型需要后续编辑
			s.logger.Warn("创建计划时写入版型失败", zap.String("plan_id", plan.ID), zap.Error(err))
		} else {
			result.Report = report
			if report.LayoutsCreated > 0 {
				result.Outcome = report.Outcome()
			}
			result.PublishOffered = report.TasksCreated > 0 && policy.Allowed(actor.Role, policy.PlanPublish)
		}
	}

	s.bump(plan.ID)
	s.notifier.PlanChanged(plan.ID, "create")
	if result.Plan, err = s.plans.FindByID(ctx, plan.ID); err != nil {
		return nil, fmt.Errorf("读取计划失败: %w", err)
	}
	return result, nil
}

// EditPlan 结构编辑：只允许待发布状态，状态不符时不做任何写操作
func (s *PlanService) EditPlan(ctx context.Context, actor Actor, planID string, layouts []reconcile.LayoutSpec) (*PlanResult, error) {
	if err := checkPermission(actor, policy.PlanUpdate); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, lock.PlanKey(planID), s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()
	defer s.bump(planID)

	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("查找计划失败: %w", err)
	}
	if _, err := lifecycle.Validate(plan.Status, lifecycle.ActionEdit); err != nil {
		return nil, err
	}

	report, err := s.engine.Reconcile(ctx, planID, layouts)
	if err != nil {
		return nil, fmt.Errorf("版型对齐失败: %w", err)
	}
	if report.Changed() {
		s.notifier.PlanChanged(planID, "edit")
	}

	result := &PlanResult{
		Report:         report,
		Outcome:        report.Outcome(),
		PublishOffered: report.TasksCreated > 0 && policy.Allowed(actor.Role, policy.PlanPublish),
	}
	if result.Plan, err = s.plans.FindByID(ctx, planID); err != nil {
		return nil, fmt.Errorf("读取计划失败: %w", err)
	}
	return result, nil
}

// transition 加锁 -> 读取 -> 校验 -> 更新状态
func (s *PlanService) transition(ctx context.Context, actor Actor, planID string, perm policy.Permission, action lifecycle.Action) (*entity.Plan, error) {
	if err := checkPermission(actor, perm); err != nil {
		return nil, err
	}
	release, err := s.locker.Acquire(ctx, lock.PlanKey(planID), s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("查找计划失败: %w", err)
	}

	var next entity.PlanStatus
	if action == lifecycle.ActionPublish {
		next, err = lifecycle.ValidatePublish(plan)
	} else {
		next, err = lifecycle.Validate(plan.Status, action)
	}
	if err != nil {
		return nil, err
	}

	plan.Status = next
	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("更新计划状态失败: %w", err)
	}
	s.logger.Info("计划状态变更",
		zap.String("plan_id", planID),
		zap.String("action", string(action)),
		zap.String("status", string(next)),
		zap.String("actor", actor.ID))
	s.notifier.PlanChanged(planID, string(action))
	return plan, nil
}

// Publish 发布：pending -> in_progress，需要至少一个可生产的任务
func (s *PlanService) Publish(ctx context.Context, actor Actor, planID string) (*entity.Plan, error) {
	return s.transition(ctx, actor, planID, policy.PlanPublish, lifecycle.ActionPublish)
}

// Freeze 冻结：completed -> frozen
func (s *PlanService) Freeze(ctx context.Context, actor Actor, planID string) (*entity.Plan, error) {
	return s.transition(ctx, actor, planID, policy.PlanFreeze, lifecycle.ActionFreeze)
}

// Delete 删除计划（任意状态），级联删除版型、比例、任务
func (s *PlanService) Delete(ctx context.Context, actor Actor, planID string) error {
	if err := checkPermission(actor, policy.PlanDelete); err != nil {
		return err
	}
	release, err := s.locker.Acquire(ctx, lock.PlanKey(planID), s.lockTTL)
	if err != nil {
		return err
	}
	defer release()
	defer s.bump(planID)

	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return fmt.Errorf("查找计划失败: %w", err)
	}
	if _, err := lifecycle.Validate(plan.Status, lifecycle.ActionDelete); err != nil {
		return err
	}
	if err := s.plans.Delete(ctx, planID); err != nil {
		return fmt.Errorf("删除计划失败: %w", err)
	}
	s.logger.Info("计划已删除", zap.String("plan_id", planID), zap.String("actor", actor.ID))
	s.notifier.PlanChanged(planID, "delete")
	return nil
}

// Get 计划详情（含版型、比例、任务）
func (s *PlanService) Get(ctx context.Context, actor Actor, planID string) (*PlanSummary, error) {
	if err := checkPermission(actor, policy.PlanRead); err != nil {
		return nil, err
	}
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("查找计划失败: %w", err)
	}
	summary := summarize(*plan)
	return &summary, nil
}

// List 计划列表
func (s *PlanService) List(ctx context.Context, actor Actor, filter entity.PlanFilter) ([]PlanSummary, int64, error) {
	if err := checkPermission(actor, policy.PlanRead); err != nil {
		return nil, 0, err
	}
	plans, total, err := s.plans.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("查询计划失败: %w", err)
	}
	out := make([]PlanSummary, 0, len(plans))
	for _, p := range plans {
		out = append(out, summarize(p))
	}
	return out, total, nil
}

// ListByOrder 订单下的计划
func (s *PlanService) ListByOrder(ctx context.Context, actor Actor, orderID string) ([]PlanSummary, error) {
	plans, _, err := s.List(ctx, actor, entity.PlanFilter{OrderID: orderID, PageSize: 200})
	return plans, err
}

// UpdateNote 修改备注，任意状态均可（不属于结构编辑）
func (s *PlanService) UpdateNote(ctx context.Context, actor Actor, planID, note string) (*entity.Plan, error) {
	if err := checkPermission(actor, policy.PlanUpdate); err != nil {
		return nil, err
	}
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("查找计划失败: %w", err)
	}
	plan.Note = note
	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("更新计划备注失败: %w", err)
	}
	return plan, nil
}

// Tasks 计划下的任务（工人查看）
func (s *PlanService) Tasks(ctx context.Context, actor Actor, planID string) ([]entity.Task, error) {
	if err := checkPermission(actor, policy.TaskRead); err != nil {
		return nil, err
	}
	if _, err := s.plans.FindByID(ctx, planID); err != nil {
		return nil, fmt.Errorf("查找计划失败: %w", err)
	}
	return s.plans.ListTasks(ctx, planID)
}

// Matrices 需求/产量对比；并发的相同读取合并为一次
func (s *PlanService) Matrices(ctx context.Context, actor Actor, planID string) (*matrix.Matrices, error) {
	if err := checkPermission(actor, policy.PlanRead); err != nil {
		return nil, err
	}
	key := fmt.Sprintf("matrix:%s:%d", planID, s.generation(planID))
	// 共享的读取不跟随单个调用方取消
	shared := context.WithoutCancel(ctx)
	ch := s.reads.DoChan(key, func() (interface{}, error) {
		plan, err := s.plans.FindByID(shared, planID)
		if err != nil {
			return nil, fmt.Errorf("查找计划失败: %w", err)
		}
		var items []entity.OrderItem
		if plan.Order != nil {
			items = plan.Order.Items
		}
		return matrix.Build(items, plan.Layouts, plan.Tasks()), nil
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Val.(*matrix.Matrices), nil
}

// ProgressResult 登记进度结果
type ProgressResult struct {
	Task          *entity.Task      `json:"task"`
	PlanID        string            `json:"plan_id"`
	PlanStatus    entity.PlanStatus `json:"plan_status"`
	PlanCompleted bool              `json:"plan_completed"`
}

// RecordProgress 登记任务完成层数（由日志汇总得到的外部值）。
// 层数不允许减少；计划全部任务完成后自动进入 completed
func (s *PlanService) RecordProgress(ctx context.Context, actor Actor, taskID string, completed int) (*ProgressResult, error) {
	if err := checkPermission(actor, policy.LogCreate); err != nil {
		return nil, err
	}
	if completed < 0 {
		return nil, invalid("完成层数不能为负数")
	}

	task, err := s.plans.FindTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("查找任务失败: %w", err)
	}
	layout, err := s.plans.FindLayout(ctx, task.LayoutID)
	if err != nil {
		return nil, fmt.Errorf("查找版型失败: %w", err)
	}

	release, err := s.locker.Acquire(ctx, lock.PlanKey(layout.PlanID), s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	plan, err := s.plans.FindByID(ctx, layout.PlanID)
	if err != nil {
		return nil, fmt.Errorf("查找计划失败: %w", err)
	}
	if _, err := lifecycle.Validate(plan.Status, lifecycle.ActionRecord); err != nil {
		return nil, err
	}

	// 锁内重新读取，避免覆盖并发登记
	if task, err = s.plans.FindTask(ctx, taskID); err != nil {
		return nil, fmt.Errorf("查找任务失败: %w", err)
	}
	if completed < task.CompletedLayers {
		return nil, invalid(fmt.Sprintf("完成层数不能减少（当前 %d）", task.CompletedLayers))
	}

	task.CompletedLayers = completed
	task.Status = entity.DeriveTaskStatus(task.PlannedLayers, completed)
	if err := s.plans.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("更新任务进度失败: %w", err)
	}

	result := &ProgressResult{Task: task, PlanID: plan.ID, PlanStatus: plan.Status}

	tasks, err := s.plans.ListTasks(ctx, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("查询计划任务失败: %w", err)
	}
	if allCompleted(tasks) {
		next, err := lifecycle.Validate(plan.Status, lifecycle.ActionComplete)
		if err != nil {
			return nil, err
		}
		plan.Status = next
		if err := s.plans.Update(ctx, plan); err != nil {
			return nil, fmt.Errorf("更新计划状态失败: %w", err)
		}
		result.PlanStatus = next
		result.PlanCompleted = true
		s.logger.Info("计划全部任务完成", zap.String("plan_id", plan.ID))
		s.notifier.PlanChanged(plan.ID, string(lifecycle.ActionComplete))
		return result, nil
	}

	s.notifier.PlanChanged(plan.ID, "progress")
	return result, nil
}

func allCompleted(tasks []entity.Task) bool {
	if len(tasks) == 0 {
		return false
	}
	for _, t := range tasks {
		if entity.DeriveTaskStatus(t.PlannedLayers, t.CompletedLayers) != entity.TaskStatusCompleted {
			return false
		}
	}
	return true
}

// IsTransitionError 判断是否为状态错误
func IsTransitionError(err error) bool {
	var te *lifecycle.TransitionError
	return errors.As(err, &te)
}
