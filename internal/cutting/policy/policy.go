// Package policy 角色权限策略：角色 -> 权限表、角色间操作限制、单例角色与自我操作保护。
// 所有函数均为纯函数，不访问存储。
package policy

import (
	"strings"
)

// Role 用户角色（封闭集合）
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleManager      Role = "manager"
	RolePatternMaker Role = "pattern_maker"
	RoleWorker       Role = "worker"
)

// Roles 所有角色
var Roles = []Role{RoleAdmin, RoleManager, RolePatternMaker, RoleWorker}

// ParseRole 解析角色字符串（忽略大小写）
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleManager, RolePatternMaker, RoleWorker:
		return r, true
	}
	return "", false
}

// IsSingleton admin 和 manager 全系统只允许一个
func (r Role) IsSingleton() bool {
	return r == RoleAdmin || r == RoleManager
}

// Permission 权限标识
type Permission uint

const (
	OrderCreate Permission = iota
	OrderRead
	OrderUpdate
	OrderDelete
	PlanCreate
	PlanRead
	PlanUpdate
	PlanDelete
	PlanPublish
	PlanFreeze
	LayoutCreate
	LayoutRead
	LayoutUpdate
	LayoutDelete
	TaskCreate
	TaskRead
	TaskUpdate
	TaskDelete
	LogCreate
	LogRead
	LogUpdate
	LogVoid
	UserCreate
	UserRead
	UserUpdate
	UserDelete

	permissionCount
)

var permissionTokens = [permissionCount]string{
	OrderCreate:  "order:create",
	OrderRead:    "order:read",
	OrderUpdate:  "order:update",
	OrderDelete:  "order:delete",
	PlanCreate:   "plan:create",
	PlanRead:     "plan:read",
	PlanUpdate:   "plan:update",
	PlanDelete:   "plan:delete",
	PlanPublish:  "plan:publish",
	PlanFreeze:   "plan:freeze",
	LayoutCreate: "layout:create",
	LayoutRead:   "layout:read",
	LayoutUpdate: "layout:update",
	LayoutDelete: "layout:delete",
	TaskCreate:   "task:create",
	TaskRead:     "task:read",
	TaskUpdate:   "task:update",
	TaskDelete:   "task:delete",
	LogCreate:    "log:create",
	LogRead:      "log:read",
	LogUpdate:    "log:update",
	LogVoid:      "log:void",
	UserCreate:   "user:create",
	UserRead:     "user:read",
	UserUpdate:   "user:update",
	UserDelete:   "user:delete",
}

func (p Permission) String() string {
	if p < permissionCount {
		return permissionTokens[p]
	}
	return "unknown"
}

// ParsePermission 解析 "resource:action" 形式的权限标识
func ParsePermission(token string) (Permission, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	for p, t := range permissionTokens {
		if t == token {
			return Permission(p), true
		}
	}
	return 0, false
}

// PermissionSet 权限位集合
type PermissionSet uint64

func setOf(perms ...Permission) PermissionSet {
	var s PermissionSet
	for _, p := range perms {
		s |= 1 << p
	}
	return s
}

// Has 是否包含指定权限
func (s PermissionSet) Has(p Permission) bool {
	return p < permissionCount && s&(1<<p) != 0
}

// Tokens 以字符串形式列出集合中的权限
func (s PermissionSet) Tokens() []string {
	tokens := make([]string, 0, permissionCount)
	for p := Permission(0); p < permissionCount; p++ {
		if s.Has(p) {
			tokens = append(tokens, p.String())
		}
	}
	return tokens
}

var (
	allPermissions = PermissionSet(1<<permissionCount - 1)

	// 计划、版型管理（不能发布/冻结）；任务只能随计划编辑创建/删除，不能查看任务管理
	patternMakerPermissions = setOf(
		PlanCreate, PlanRead, PlanUpdate, PlanDelete,
		LayoutCreate, LayoutRead, LayoutUpdate, LayoutDelete,
		TaskCreate, TaskDelete,
		OrderRead,
	)

	// 任务查看、日志提交和作废
	workerPermissions = setOf(
		TaskRead,
		LogCreate, LogUpdate, LogVoid,
		OrderRead,
	)
)

// PermissionsOf 角色拥有的权限集合
func PermissionsOf(role Role) PermissionSet {
	switch role {
	case RoleAdmin, RoleManager:
		return allPermissions
	case RolePatternMaker:
		return patternMakerPermissions
	case RoleWorker:
		return workerPermissions
	}
	return 0
}

// Allowed 检查角色是否拥有指定权限
func Allowed(role Role, p Permission) bool {
	return PermissionsOf(role).Has(p)
}

// AllowedToken 以字符串权限标识检查，未知角色或未知权限一律拒绝
func AllowedToken(role string, token string) bool {
	r, ok := ParseRole(role)
	if !ok {
		return false
	}
	p, ok := ParsePermission(token)
	if !ok {
		return false
	}
	return Allowed(r, p)
}
