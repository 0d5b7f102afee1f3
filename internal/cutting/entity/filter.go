package entity

import (
	"time"

	"github.com/google/uuid"
)

// NewID 生成实体ID
func NewID() string {
	return uuid.New().String()
}

// OrderFilter 订单列表过滤条件
type OrderFilter struct {
	Keyword  string // 订单号/款号/客户名模糊匹配
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// PlanFilter 计划列表过滤条件
type PlanFilter struct {
	OrderID  string
	Status   PlanStatus
	Keyword  string
	Page     int
	PageSize int
}

// UserFilter 用户列表过滤条件
type UserFilter struct {
	Keyword string
	Role    string
	Active  *bool
	Group   string
}

// Normalize 分页参数默认值
func Normalize(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 20
	}
	return page, pageSize
}
