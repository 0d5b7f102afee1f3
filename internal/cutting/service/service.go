package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/lock"
	"github.com/XM-LEES/cutrix/internal/cutting/policy"
	"github.com/XM-LEES/cutrix/internal/cutting/reconcile"
	"github.com/XM-LEES/cutrix/internal/cutting/repository"
)

// ============================================================
// 存储接口（gorm 仓库与 memstore 均实现）
// ============================================================

// OrderStore 订单存储
type OrderStore interface {
	Create(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id string) (*entity.Order, error)
	FindByNumber(ctx context.Context, number string) (*entity.Order, error)
	List(ctx context.Context, filter entity.OrderFilter) ([]entity.Order, int64, error)
	Update(ctx context.Context, order *entity.Order) error
	Delete(ctx context.Context, id string) error
}

// PlanStore 计划存储，包含版型对齐所需的操作
type PlanStore interface {
	reconcile.Store
	Create(ctx context.Context, plan *entity.Plan) error
	FindByID(ctx context.Context, id string) (*entity.Plan, error)
	FindByOrder(ctx context.Context, orderID string) ([]entity.Plan, error)
	List(ctx context.Context, filter entity.PlanFilter) ([]entity.Plan, int64, error)
	Update(ctx context.Context, plan *entity.Plan) error
	Delete(ctx context.Context, id string) error
	FindLayout(ctx context.Context, id string) (*entity.Layout, error)
	FindTask(ctx context.Context, id string) (*entity.Task, error)
	ListTasks(ctx context.Context, planID string) ([]entity.Task, error)
}

// UserStore 用户存储
type UserStore interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByName(ctx context.Context, name string) (*entity.User, error)
	List(ctx context.Context, filter entity.UserFilter) ([]entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	Delete(ctx context.Context, id string) error
	CountByRole(ctx context.Context) (map[string]int, error)
}

var (
	_ OrderStore = (*repository.OrderRepository)(nil)
	_ PlanStore  = (*repository.PlanRepository)(nil)
	_ UserStore  = (*repository.UserRepository)(nil)
)

// Notifier 计划变化通知（SSE）
type Notifier interface {
	PlanChanged(planID, action string)
}

type nopNotifier struct{}

func (nopNotifier) PlanChanged(string, string) {}

// ============================================================
// 调用者与错误
// ============================================================

// Actor 当前操作用户（来自认证中间件）
type Actor struct {
	ID   string
	Name string
	Role policy.Role
}

func (a Actor) subject() policy.Subject {
	return policy.Subject{ID: a.ID, Role: a.Role}
}

// 错误定义
var (
	ErrNotFound   = repository.ErrNotFound
	ErrConflict   = repository.ErrConflict
	ErrPlanExists = fmt.Errorf("该订单已存在生产计划: %w", repository.ErrConflict)
	ErrOrderInUse = fmt.Errorf("订单已有生产计划，不能删除: %w", repository.ErrConflict)
	ErrLocked     = lock.ErrLocked
)

// PermissionDeniedError 权限不足或违反角色保护，未产生任何副作用
type PermissionDeniedError struct {
	Permission string
	Reason     string
}

func (e *PermissionDeniedError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("没有权限: %s", e.Permission)
}

// ValidationError 请求整体无效
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "参数错误: " + strings.Join(e.Problems, "; ")
}

func invalid(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

// IsPermissionDenied 判断是否为权限错误
func IsPermissionDenied(err error) bool {
	var pe *PermissionDeniedError
	return errors.As(err, &pe)
}

func checkPermission(actor Actor, p policy.Permission) error {
	if !policy.Allowed(actor.Role, p) {
		return &PermissionDeniedError{Permission: p.String()}
	}
	return nil
}

func deny(d policy.Decision) error {
	if d.Allowed {
		return nil
	}
	return &PermissionDeniedError{Reason: d.Reason}
}

// ============================================================
// 服务集合
// ============================================================

// Options 服务配置
type Options struct {
	Parallelism int           // 版型对齐并行度
	LockTTL     time.Duration // 计划编辑锁过期时间
}

// Services 服务集合
type Services struct {
	Order *OrderService
	Plan  *PlanService
	User  *UserService
}

// NewServices 创建服务集合
func NewServices(orders OrderStore, plans PlanStore, users UserStore, locker lock.Locker, notifier Notifier, logger *zap.Logger, opts Options) *Services {
	return &Services{
		Order: NewOrderService(orders, plans, logger),
		Plan:  NewPlanService(plans, orders, locker, notifier, logger, opts),
		User:  NewUserService(users, locker, logger),
	}
}
