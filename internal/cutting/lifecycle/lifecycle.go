// Package lifecycle 生产计划状态机：pending -> in_progress -> completed -> frozen。
//
// 这里只校验动作在当前状态下是否合法，不做权限判断，也不自动推进状态。
package lifecycle

import (
	"fmt"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
)

// Action 对计划执行的动作
type Action string

const (
	ActionEdit     Action = "edit"     // 结构编辑（版型/任务）
	ActionPublish  Action = "publish"  // 发布
	ActionComplete Action = "complete" // 完成（外部信号触发）
	ActionFreeze   Action = "freeze"   // 冻结
	ActionDelete   Action = "delete"   // 删除
	ActionRecord   Action = "record"   // 登记任务进度
)

type rule struct {
	from entity.PlanStatus
	to   entity.PlanStatus // 空表示不改变状态
	msg  string
}

// 单向、不可跳跃的迁移表；delete 任意状态均可
var rules = map[Action]rule{
	ActionEdit:     {from: entity.PlanStatusPending, msg: "只有待发布的计划才能编辑"},
	ActionPublish:  {from: entity.PlanStatusPending, to: entity.PlanStatusInProgress, msg: "只有待发布的计划才能发布"},
	ActionComplete: {from: entity.PlanStatusInProgress, to: entity.PlanStatusCompleted, msg: "只有进行中的计划才能完成"},
	ActionFreeze:   {from: entity.PlanStatusCompleted, to: entity.PlanStatusFrozen, msg: "只有已完成的计划才能冻结"},
	ActionRecord:   {from: entity.PlanStatusInProgress, msg: "只有进行中的计划才能登记进度"},
}

// TransitionError 状态不满足动作前置条件
type TransitionError struct {
	Action Action
	From   entity.PlanStatus
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("计划状态为%s，不能执行%s: %s", StatusLabel(e.From), e.Action, e.Reason)
}

// Validate 校验动作是否允许，返回目标状态（不改变状态的动作返回当前状态）
func Validate(current entity.PlanStatus, action Action) (entity.PlanStatus, error) {
	if !validStatus(current) {
		return current, &TransitionError{Action: action, From: current, Reason: "未知的计划状态"}
	}
	if action == ActionDelete {
		return current, nil
	}
	r, ok := rules[action]
	if !ok {
		return current, &TransitionError{Action: action, From: current, Reason: "未知的操作"}
	}
	if current != r.from {
		return current, &TransitionError{Action: action, From: current, Reason: r.msg}
	}
	if r.to == "" {
		return current, nil
	}
	return r.to, nil
}

// CanEdit 计划是否处于可编辑状态
func CanEdit(status entity.PlanStatus) bool {
	return status == entity.PlanStatusPending
}

// HasPublishableTask 至少有一个 planned_layers > 0 的任务，且其版型比例合计 > 0
func HasPublishableTask(layouts []entity.Layout) bool {
	for i := range layouts {
		if layouts[i].RatioSum() <= 0 {
			continue
		}
		for _, t := range layouts[i].Tasks {
			if t.PlannedLayers > 0 {
				return true
			}
		}
	}
	return false
}

// ValidatePublish 发布前的完整校验：状态 + 内容
func ValidatePublish(plan *entity.Plan) (entity.PlanStatus, error) {
	next, err := Validate(plan.Status, ActionPublish)
	if err != nil {
		return next, err
	}
	if !HasPublishableTask(plan.Layouts) {
		return plan.Status, &TransitionError{
			Action: ActionPublish,
			From:   plan.Status,
			Reason: "计划没有可生产的任务（需要比例合计大于0的版型及计划层数大于0的任务）",
		}
	}
	return next, nil
}

// StatusLabel 状态中文名
func StatusLabel(s entity.PlanStatus) string {
	switch s {
	case entity.PlanStatusPending:
		return "待发布"
	case entity.PlanStatusInProgress:
		return "进行中"
	case entity.PlanStatusCompleted:
		return "已完成"
	case entity.PlanStatusFrozen:
		return "已冻结"
	}
	return string(s)
}

func validStatus(s entity.PlanStatus) bool {
	switch s {
	case entity.PlanStatusPending, entity.PlanStatusInProgress, entity.PlanStatusCompleted, entity.PlanStatusFrozen:
		return true
	}
	return false
}
