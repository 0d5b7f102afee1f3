package entity

import (
	"time"
)

// PlanStatus 计划状态
type PlanStatus string

// 计划状态常量
const (
	PlanStatusPending    PlanStatus = "pending"     // 待发布（唯一可编辑状态）
	PlanStatusInProgress PlanStatus = "in_progress" // 进行中
	PlanStatusCompleted  PlanStatus = "completed"   // 已完成
	PlanStatusFrozen     PlanStatus = "frozen"      // 已冻结
)

// TaskStatus 任务状态，由 planned/completed 推导
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Plan 生产计划，一个订单只允许一个计划
type Plan struct {
	ID                 string     `json:"plan_id" gorm:"primaryKey;size:36"`
	Name               string     `json:"plan_name" gorm:"size:128;not null"`
	OrderID            string     `json:"order_id" gorm:"size:36;not null;uniqueIndex"`
	Status             PlanStatus `json:"status" gorm:"size:16;not null;default:pending"`
	PlannedPublishDate *time.Time `json:"planned_publish_date,omitempty"`
	PlannedFinishDate  *time.Time `json:"planned_finish_date,omitempty"`
	Note               string     `json:"note,omitempty" gorm:"type:text"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	// 关联
	Order   *Order   `json:"order,omitempty" gorm:"foreignKey:OrderID"`
	Layouts []Layout `json:"layouts,omitempty" gorm:"foreignKey:PlanID"`
}

func (Plan) TableName() string {
	return "plans"
}

// Tasks 计划下全部任务（需预加载版型及任务）
func (p *Plan) Tasks() []Task {
	var tasks []Task
	for _, l := range p.Layouts {
		tasks = append(tasks, l.Tasks...)
	}
	return tasks
}

// Progress 完成进度 = Σ完成层数 / Σ计划层数，单个任务超出计划的部分不计
func (p *Plan) Progress() float64 {
	var planned, completed int
	for _, t := range p.Tasks() {
		planned += t.PlannedLayers
		if t.CompletedLayers > t.PlannedLayers {
			completed += t.PlannedLayers
		} else {
			completed += t.CompletedLayers
		}
	}
	if planned == 0 {
		return 0
	}
	return float64(completed) / float64(planned)
}

// Layout 裁剪版型（排版方案）
type Layout struct {
	ID        string    `json:"layout_id" gorm:"primaryKey;size:36"`
	PlanID    string    `json:"plan_id" gorm:"size:36;not null;index"`
	Name      string    `json:"layout_name" gorm:"size:128;not null"`
	Note      string    `json:"note,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Ratios []SizeRatio `json:"ratios,omitempty" gorm:"foreignKey:LayoutID"`
	Tasks  []Task      `json:"tasks,omitempty" gorm:"foreignKey:LayoutID"`
}

func (Layout) TableName() string {
	return "cutting_layouts"
}

// RatioMap 尺码 -> 比例，只包含大于0的比例
func (l *Layout) RatioMap() map[string]float64 {
	m := make(map[string]float64, len(l.Ratios))
	for _, r := range l.Ratios {
		if r.Ratio > 0 {
			m[r.Size] += r.Ratio
		}
	}
	return m
}

// RatioSum 比例合计，<=0 的版型不产生任何产量
func (l *Layout) RatioSum() float64 {
	var sum float64
	for _, r := range l.Ratios {
		if r.Ratio > 0 {
			sum += r.Ratio
		}
	}
	return sum
}

// SizeRatio 版型尺码比例
type SizeRatio struct {
	ID       string  `json:"ratio_id" gorm:"primaryKey;size:36"`
	LayoutID string  `json:"layout_id" gorm:"size:36;not null;index"`
	Size     string  `json:"size" gorm:"size:32;not null"`
	Ratio    float64 `json:"ratio" gorm:"type:numeric(10,4);not null"`
}

func (SizeRatio) TableName() string {
	return "layout_size_ratios"
}

// Task 生产任务：一个版型 x 一个颜色
type Task struct {
	ID              string     `json:"task_id" gorm:"primaryKey;size:36"`
	LayoutID        string     `json:"layout_id" gorm:"size:36;not null;index"`
	Color           string     `json:"color" gorm:"size:64;not null"`
	PlannedLayers   int        `json:"planned_layers" gorm:"not null"`
	CompletedLayers int        `json:"completed_layers" gorm:"not null;default:0"`
	Status          TaskStatus `json:"status" gorm:"size:16;not null;default:pending"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Task) TableName() string {
	return "production_tasks"
}

// DeriveTaskStatus 根据计划层数和完成层数推导任务状态
func DeriveTaskStatus(planned, completed int) TaskStatus {
	switch {
	case completed <= 0:
		return TaskStatusPending
	case completed >= planned:
		return TaskStatusCompleted
	default:
		return TaskStatusInProgress
	}
}
