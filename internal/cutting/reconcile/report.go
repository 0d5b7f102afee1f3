package reconcile

import (
	"fmt"
	"sort"
)

// Outcome 运行结果分类
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomePartialFailure Outcome = "partial_failure"
	OutcomeNeedsEditing   Outcome = "needs_editing" // 计划已创建但没有任何版型，发布前需要编辑
)

// WarningKind 警告来源
type WarningKind string

const (
	WarningValidation  WarningKind = "validation"
	WarningPersistence WarningKind = "persistence"
)

// Warning 单个版型被跳过或部分失败的记录
// SpecIndex 为 -1 表示删除阶段（对应已有版型，不对应任何提交项）
type Warning struct {
	SpecIndex  int         `json:"spec_index"`
	LayoutID   string      `json:"layout_id,omitempty"`
	LayoutName string      `json:"layout_name,omitempty"`
	Kind       WarningKind `json:"kind"`
	Message    string      `json:"message"`
}

func (w Warning) String() string {
	name := w.LayoutName
	if name == "" {
		name = w.LayoutID
	}
	if w.SpecIndex < 0 {
		return fmt.Sprintf("删除版型 %s 失败: %s", name, w.Message)
	}
	return fmt.Sprintf("第%d个版型 %s: %s", w.SpecIndex+1, name, w.Message)
}

// Report 一次 reconcile 的汇总
type Report struct {
	PlanID         string    `json:"plan_id"`
	LayoutsCreated int       `json:"layouts_created"`
	LayoutsUpdated int       `json:"layouts_updated"`
	LayoutsDeleted int       `json:"layouts_deleted"`
	TasksCreated   int       `json:"tasks_created"`
	TasksUpdated   int       `json:"tasks_updated"`
	TasksDeleted   int       `json:"tasks_deleted"`
	TasksKept      int       `json:"tasks_kept"`
	Warnings       []Warning `json:"warnings"`
	// 每个提交项对应的版型ID（被跳过的为空），与提交顺序一致
	LayoutIDs []string `json:"layout_ids"`
}

// Outcome 有警告即为 partial_failure
func (r *Report) Outcome() Outcome {
	if len(r.Warnings) > 0 {
		return OutcomePartialFailure
	}
	return OutcomeSuccess
}

// Changed 是否发生了任何结构变化
func (r *Report) Changed() bool {
	return r.LayoutsCreated+r.LayoutsUpdated+r.LayoutsDeleted+
		r.TasksCreated+r.TasksUpdated+r.TasksDeleted > 0
}

func (r *Report) merge(o *specResult) {
	r.LayoutsCreated += o.layoutsCreated
	r.LayoutsUpdated += o.layoutsUpdated
	r.TasksCreated += o.tasksCreated
	r.TasksUpdated += o.tasksUpdated
	r.TasksDeleted += o.tasksDeleted
	r.TasksKept += o.tasksKept
	if o.warning != nil {
		r.Warnings = append(r.Warnings, *o.warning)
	}
}

func (r *Report) sortWarnings() {
	sort.SliceStable(r.Warnings, func(i, j int) bool {
		return r.Warnings[i].SpecIndex < r.Warnings[j].SpecIndex
	})
}
