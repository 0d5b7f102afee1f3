package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
)

// PlanRepository 计划、版型、尺码比例、任务
type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func byCreated(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}

func bySize(db *gorm.DB) *gorm.DB {
	return db.Order("size ASC")
}

// ============================================================
// 计划
// ============================================================

// Create 创建计划（不含版型）
func (r *PlanRepository) Create(ctx context.Context, plan *entity.Plan) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(plan).Error)
}

// FindByID 查找计划，预加载订单明细、版型、比例和任务
func (r *PlanRepository) FindByID(ctx context.Context, id string) (*entity.Plan, error) {
	var plan entity.Plan
	err := r.db.WithContext(ctx).
		Preload("Order").
		Preload("Order.Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Preload("Layouts", byCreated).
		Preload("Layouts.Ratios", bySize).
		Preload("Layouts.Tasks", byCreated).
		First(&plan, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &plan, nil
}

// FindByOrder 订单下的计划（正常情况下最多一个）
func (r *PlanRepository) FindByOrder(ctx context.Context, orderID string) ([]entity.Plan, error) {
	var plans []entity.Plan
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&plans).Error
	return plans, err
}

// List 计划列表，预加载订单和任务用于计算进度
func (r *PlanRepository) List(ctx context.Context, filter entity.PlanFilter) ([]entity.Plan, int64, error) {
	var plans []entity.Plan
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Plan{})
	if filter.OrderID != "" {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Keyword != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Keyword+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.
		Preload("Order").
		Preload("Layouts", byCreated).
		Preload("Layouts.Tasks", byCreated).
		Scopes(paginate(filter.Page, filter.PageSize)).
		Order("created_at DESC").
		Find(&plans).Error
	return plans, total, err
}

// Update 更新计划字段
func (r *PlanRepository) Update(ctx context.Context, plan *entity.Plan) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(plan).Error)
}

// Delete 删除计划，级联删除版型、比例、任务
func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var layoutIDs []string
		if err := tx.Model(&entity.Layout{}).Where("plan_id = ?", id).Pluck("id", &layoutIDs).Error; err != nil {
			return err
		}
		if len(layoutIDs) > 0 {
			if err := tx.Where("layout_id IN ?", layoutIDs).Delete(&entity.Task{}).Error; err != nil {
				return err
			}
			if err := tx.Where("layout_id IN ?", layoutIDs).Delete(&entity.SizeRatio{}).Error; err != nil {
				return err
			}
			if err := tx.Where("plan_id = ?", id).Delete(&entity.Layout{}).Error; err != nil {
				return err
			}
		}
		return affected(tx.Delete(&entity.Plan{}, "id = ?", id))
	})
}

// ============================================================
// 版型
// ============================================================

// ListLayouts 计划下的版型（含比例和任务）
func (r *PlanRepository) ListLayouts(ctx context.Context, planID string) ([]entity.Layout, error) {
	var layouts []entity.Layout
	err := r.db.WithContext(ctx).
		Preload("Ratios", bySize).
		Preload("Tasks", byCreated).
		Where("plan_id = ?", planID).
		Scopes(byCreated).
		Find(&layouts).Error
	return layouts, err
}

// FindLayout 查找版型
func (r *PlanRepository) FindLayout(ctx context.Context, id string) (*entity.Layout, error) {
	var layout entity.Layout
	err := r.db.WithContext(ctx).
		Preload("Ratios", bySize).
		Preload("Tasks", byCreated).
		First(&layout, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &layout, nil
}

// CreateLayout 只创建版型本身，比例与任务分别写入
func (r *PlanRepository) CreateLayout(ctx context.Context, layout *entity.Layout) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(layout).Error)
}

// UpdateLayout 更新版型名称和备注
func (r *PlanRepository) UpdateLayout(ctx context.Context, layout *entity.Layout) error {
	return affected(r.db.WithContext(ctx).
		Model(&entity.Layout{}).
		Where("id = ?", layout.ID).
		Updates(map[string]interface{}{
			"name": layout.Name,
			"note": layout.Note,
		}))
}

// DeleteLayout 删除版型，级联删除比例和任务
func (r *PlanRepository) DeleteLayout(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&entity.Task{}, "layout_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&entity.SizeRatio{}, "layout_id = ?", id).Error; err != nil {
			return err
		}
		return affected(tx.Delete(&entity.Layout{}, "id = ?", id))
	})
}

// ReplaceRatios 整体替换版型的尺码比例
func (r *PlanRepository) ReplaceRatios(ctx context.Context, layoutID string, ratios []entity.SizeRatio) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&entity.SizeRatio{}, "layout_id = ?", layoutID).Error; err != nil {
			return err
		}
		if len(ratios) == 0 {
			return nil
		}
		for i := range ratios {
			ratios[i].LayoutID = layoutID
		}
		return translate(tx.Create(&ratios).Error)
	})
}

// ============================================================
// 任务
// ============================================================

// ListTasks 计划下的全部任务
func (r *PlanRepository) ListTasks(ctx context.Context, planID string) ([]entity.Task, error) {
	var tasks []entity.Task
	err := r.db.WithContext(ctx).
		Joins("JOIN cutting_layouts ON cutting_layouts.id = production_tasks.layout_id").
		Where("cutting_layouts.plan_id = ?", planID).
		Order("production_tasks.created_at ASC, production_tasks.id ASC").
		Find(&tasks).Error
	return tasks, err
}

// FindTask 查找任务
func (r *PlanRepository) FindTask(ctx context.Context, id string) (*entity.Task, error) {
	var task entity.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

// CreateTask 创建任务
func (r *PlanRepository) CreateTask(ctx context.Context, task *entity.Task) error {
	return translate(r.db.WithContext(ctx).Create(task).Error)
}

// UpdateTask 更新任务层数和状态
func (r *PlanRepository) UpdateTask(ctx context.Context, task *entity.Task) error {
	return affected(r.db.WithContext(ctx).
		Model(&entity.Task{}).
		Where("id = ?", task.ID).
		Updates(map[string]interface{}{
			"planned_layers":   task.PlannedLayers,
			"completed_layers": task.CompletedLayers,
			"status":           task.Status,
		}))
}

// DeleteTask 删除任务
func (r *PlanRepository) DeleteTask(ctx context.Context, id string) error {
	return affected(r.db.WithContext(ctx).Delete(&entity.Task{}, "id = ?", id))
}
