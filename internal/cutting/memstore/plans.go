package memstore

import (
	"context"
	"strings"
	"time"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/repository"
)

// PlanStore 计划、版型、尺码比例、任务
type PlanStore struct {
	st *state
}

// assembleLayout 组装版型的比例和任务；调用方需持有读锁
func (s *PlanStore) assembleLayout(l entity.Layout) entity.Layout {
	l.Ratios = append([]entity.SizeRatio(nil), s.st.ratios[l.ID]...)
	l.Tasks = nil
	var ids []string
	for id, t := range s.st.tasks {
		if t.LayoutID == l.ID {
			ids = append(ids, id)
		}
	}
	s.st.sortByCreated(ids)
	for _, id := range ids {
		l.Tasks = append(l.Tasks, s.st.tasks[id])
	}
	return l
}

func (s *PlanStore) layoutsOf(planID string) []entity.Layout {
	var ids []string
	for id, l := range s.st.layouts {
		if l.PlanID == planID {
			ids = append(ids, id)
		}
	}
	s.st.sortByCreated(ids)
	out := make([]entity.Layout, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.assembleLayout(s.st.layouts[id]))
	}
	return out
}

func (s *PlanStore) assemblePlan(p entity.Plan, withOrder bool) entity.Plan {
	p.Layouts = s.layoutsOf(p.ID)
	p.Order = nil
	if o, ok := s.st.orders[p.OrderID]; ok {
		if !withOrder {
			o.Items = nil
		}
		p.Order = copyOrder(o)
	}
	return p
}

// ============================================================
// 计划
// ============================================================

// Create 创建计划（不含版型）
func (s *PlanStore) Create(ctx context.Context, plan *entity.Plan) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.write("CreatePlan", plan); err != nil {
		return err
	}
	if plan.ID == "" {
		plan.ID = entity.NewID()
	}
	if _, ok := s.st.plans[plan.ID]; ok {
		return repository.ErrConflict
	}
	if _, ok := s.st.orders[plan.OrderID]; !ok {
		return repository.ErrValidation
	}
	for _, p := range s.st.plans {
		if p.OrderID == plan.OrderID {
			return repository.ErrConflict
		}
	}
	now := time.Now()
	plan.CreatedAt, plan.UpdatedAt = now, now
	p := *plan
	p.Order, p.Layouts = nil, nil
	s.st.plans[p.ID] = p
	s.st.stamp(p.ID)
	return nil
}

// FindByID 查找计划（含订单明细、版型、比例、任务）
func (s *PlanStore) FindByID(ctx context.Context, id string) (*entity.Plan, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	if err := s.st.read("FindPlan", id); err != nil {
		return nil, err
	}
	p, ok := s.st.plans[id]
	if !ok {
		return nil, errNotFound
	}
	full := s.assemblePlan(p, true)
	return &full, nil
}

// FindByOrder 订单下的计划
func (s *PlanStore) FindByOrder(ctx context.Context, orderID string) ([]entity.Plan, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	var ids []string
	for id, p := range s.st.plans {
		if p.OrderID == orderID {
			ids = append(ids, id)
		}
	}
	s.st.sortByCreated(ids)
	out := make([]entity.Plan, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.st.plans[id])
	}
	return out, nil
}

// List 计划列表，按创建时间倒序
func (s *PlanStore) List(ctx context.Context, filter entity.PlanFilter) ([]entity.Plan, int64, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	kw := strings.ToLower(filter.Keyword)
	var ids []string
	for id, p := range s.st.plans {
		if filter.OrderID != "" && p.OrderID != filter.OrderID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if kw != "" && !strings.Contains(strings.ToLower(p.Name), kw) {
			continue
		}
		ids = append(ids, id)
	}
	s.st.sortByCreated(ids)
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}

	start, end := page(len(ids), filter.Page, filter.PageSize)
	out := make([]entity.Plan, 0, end-start)
	for _, id := range ids[start:end] {
		out = append(out, s.assemblePlan(s.st.plans[id], false))
	}
	return out, int64(len(ids)), nil
}

// Update 更新计划字段
func (s *PlanStore) Update(ctx context.Context, plan *entity.Plan) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.write("UpdatePlan", plan); err != nil {
		return err
	}
	cur, ok := s.st.plans[plan.ID]
	if !ok {
		return errNotFound
	}
	next := *plan
	next.Order, next.Layouts = nil, nil
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now()
	s.st.plans[plan.ID] = next
	return nil
}

// Delete 删除计划，级联删除版型、比例、任务
func (s *PlanStore) Delete(ctx context.Context, id string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.write("DeletePlan", id); err != nil {
		return err
	}
	if _, ok := s.st.plans[id]; !ok {
		return errNotFound
	}
	for lid, l := range s.st.layouts {
		if l.PlanID == id {
			s.dropLayout(lid)
		}
	}
	delete(s.st.plans, id)
	return nil
}

// ============================================================
// 版型
// ============================================================

// ListLayouts 计划下的版型（含比例和任务）
func (s *PlanStore) ListLayouts(ctx context.Context, planID string) ([]entity.Layout, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	if err := s.st.read("ListLayouts", planID); err != nil {
		return nil, err
	}
	return s.layoutsOf(planID), nil
}

// FindLayout 查找版型
func (s *PlanStore) FindLayout(ctx context.Context, id string) (*entity.Layout, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	l, ok := s.st.layouts[id]
	if !ok {
		return nil, errNotFound
	}
	full := s.assembleLayout(l)
	return &full, nil
}

// CreateLayout 只创建版型本身
func (s *PlanStore) CreateLayout(ctx context.Context, layout *entity.Layout) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.write("CreateLayout", layout); err != nil {
		return err
	}
	if layout.ID == "" {
		layout.ID = entity.NewID()
	}
	if _, ok := s.st.layouts[layout.ID]; ok {
		return repository.ErrConflict
	}
	if _, ok := s.st.plans[layout.PlanID]; !ok {
		return repository.ErrValidation
	}
	now := time.Now()
	layout.CreatedAt, layout.UpdatedAt = now, now
	l := *layout
	l.Ratios, l.Tasks = nil, nil
	s.st.layouts[l.ID] = l
	s.st.stamp(l.ID)
	return nil
}

// UpdateLayout 更新名称和备注
func (s *PlanStore) UpdateLayout(ctx context.Context, layout *entity.Layout) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.write("UpdateLayout", layout); err != nil {
		return err
	}
	cur, ok := s.st.layouts[layout.ID]
	if !ok {
		return errNotFound
	}
	cur.Name = layout.Name
	cur.Note = layout.Note
	cur.UpdatedAt = time.Now()
	s.st.layouts[layout.ID] = cur
	return nil
}

// DeleteLayout 删除版型，级联删除比例和任务
func (s *PlanStore) DeleteLayout(ctx context.Context, id string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.write("DeleteLayout", id); err != nil {
		return err
	}
	if _, ok := s.st.layouts[id]; !ok {
		return errNotFound
	}
	s.dropLayout(id)
	return nil
}

// dropLayout 调用方需持有写锁
func (s *PlanStore) dropLayout(id string) {
	for tid, t := range s.st.tasks {
		if t.LayoutID == id {
			delete(s.st.tasks, tid)
		}
	}
	delete(s.st.ratios, id)
	delete(s.st.layouts, id)
}

// ReplaceRatios 整体替换尺码比例
func (s *PlanStore) ReplaceRatios(ctx context.Context, layoutID string, ratios []entity.SizeRatio) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.write("ReplaceRatios", layoutID); err != nil {
		return err
	}
	if _, ok := s.st.layouts[layoutID]; !ok {
		return errNotFound
	}
	rows := make([]entity.SizeRatio, 0, len(ratios))
	for _, r := range ratios {
		if r.ID == "" {
			r.ID = entity.NewID()
		}
		r.LayoutID = layoutID
		rows = append(rows, r)
	}
	if len(rows) == 0 {
		delete(s.st.ratios, layoutID)
		return nil
	}
	s.st.ratios[layoutID] = rows
	return nil
}

// ============================================================
// 任务
// ============================================================

// ListTasks 计划下的全部任务
func (s *PlanStore) ListTasks(ctx context.Context, planID string) ([]entity.Task, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	var tasks []entity.Task
	for _, l := range s.layoutsOf(planID) {
		tasks = append(tasks, l.Tasks...)
	}
	return tasks, nil
}

// FindTask 查找任务
func (s *PlanStore) FindTask(ctx context.Context, id string) (*entity.Task, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	t, ok := s.st.tasks[id]
	if !ok {
		return nil, errNotFound
	}
	return &t, nil
}

// CreateTask 创建任务，同一版型内颜色唯一
func (s *PlanStore) CreateTask(ctx context.Context, task *entity.Task) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.write("CreateTask", task); err != nil {
		return err
	}
	if task.ID == "" {
		task.ID = entity.NewID()
	}
	if _, ok := s.st.layouts[task.LayoutID]; !ok {
		return repository.ErrValidation
	}
	for _, t := range s.st.tasks {
		if t.ID == task.ID || (t.LayoutID == task.LayoutID && t.Color == task.Color) {
			return repository.ErrConflict
		}
	}
	if task.Status == "" {
		task.Status = entity.TaskStatusPending
	}
	now := time.Now()
	task.CreatedAt, task.UpdatedAt = now, now
	s.st.tasks[task.ID] = *task
	s.st.stamp(task.ID)
	return nil
}

// UpdateTask 更新层数和状态
func (s *PlanStore) UpdateTask(ctx context.Context, task *entity.Task) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.write("UpdateTask", task); err != nil {
		return err
	}
	cur, ok := s.st.tasks[task.ID]
	if !ok {
		return errNotFound
	}
	cur.PlannedLayers = task.PlannedLayers
	cur.CompletedLayers = task.CompletedLayers
	cur.Status = task.Status
	cur.UpdatedAt = time.Now()
	s.st.tasks[task.ID] = cur
	return nil
}

// DeleteTask 删除任务
func (s *PlanStore) DeleteTask(ctx context.Context, id string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.write("DeleteTask", id); err != nil {
		return err
	}
	if _, ok := s.st.tasks[id]; !ok {
		return errNotFound
	}
	delete(s.st.tasks, id)
	return nil
}

// SeedTask 直接写入任务，不计写次数（测试构造重复颜色等异常数据用）
func (s *PlanStore) SeedTask(task entity.Task) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if task.ID == "" {
		task.ID = entity.NewID()
	}
	s.st.tasks[task.ID] = task
	s.st.stamp(task.ID)
}
