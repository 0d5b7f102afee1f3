package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/lock"
	"github.com/XM-LEES/cutrix/internal/cutting/policy"
)

const (
	minPasswordLen = 6
	roleLockTTL    = 30 * time.Second
)

// UserService 用户管理。每次创建或指派单例角色前都实时统计角色人数，
// 统计到写入期间持有该角色的锁
type UserService struct {
	users  UserStore
	locker lock.Locker
	logger *zap.Logger
}

func NewUserService(users UserStore, locker lock.Locker, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	return &UserService{users: users, locker: locker, logger: logger.Named("user")}
}

// lockRole 单例角色加锁，其它角色不需要
func (s *UserService) lockRole(ctx context.Context, role policy.Role) (func(), error) {
	if !role.IsSingleton() {
		return func() {}, nil
	}
	return s.locker.Acquire(ctx, lock.RoleKey(string(role)), roleLockTTL)
}

// CreateUserInput 创建用户
type CreateUserInput struct {
	Name      string `json:"name" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Role      string `json:"role" binding:"required"`
	UserGroup string `json:"user_group"`
	Note      string `json:"note"`
}

// UpdateProfileInput 修改资料
type UpdateProfileInput struct {
	Name      *string `json:"name"`
	UserGroup *string `json:"user_group"`
	Note      *string `json:"note"`
}

func (s *UserService) census(ctx context.Context) (policy.Census, error) {
	counts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计用户角色失败: %w", err)
	}
	c := make(policy.Census, len(counts))
	for role, n := range counts {
		if r, ok := policy.ParseRole(role); ok {
			c[r] += n
		}
	}
	return c, nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", invalid(fmt.Sprintf("密码长度不能少于%d位", minPasswordLen))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("密码加密失败: %w", err)
	}
	return string(hash), nil
}

func parseRole(s string) (policy.Role, error) {
	r, ok := policy.ParseRole(s)
	if !ok {
		return "", invalid("未知角色: " + s)
	}
	return r, nil
}

// Bootstrap 系统初始化时创建第一个管理员，已存在管理员时拒绝
func (s *UserService) Bootstrap(ctx context.Context, name, password string) (*entity.User, error) {
	release, err := s.lockRole(ctx, policy.RoleAdmin)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := s.census(ctx)
	if err != nil {
		return nil, err
	}
	if c.Has(policy.RoleAdmin) {
		return nil, &PermissionDeniedError{Reason: "系统已存在管理员，不能创建新的管理员用户"}
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &entity.User{
		ID:           entity.NewID(),
		Name:         strings.TrimSpace(name),
		Role:         string(policy.RoleAdmin),
		IsActive:     true,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("创建管理员失败: %w", err)
	}
	s.logger.Info("初始管理员已创建", zap.String("user_id", user.ID), zap.String("name", user.Name))
	return user, nil
}

// List 用户列表
func (s *UserService) List(ctx context.Context, actor Actor, filter entity.UserFilter) ([]entity.User, error) {
	if err := checkPermission(actor, policy.UserRead); err != nil {
		return nil, err
	}
	return s.users.List(ctx, filter)
}

// Get 用户详情
func (s *UserService) Get(ctx context.Context, actor Actor, id string) (*entity.User, error) {
	if err := checkPermission(actor, policy.UserRead); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("查找用户失败: %w", err)
	}
	return user, nil
}

// Create 创建用户
func (s *UserService) Create(ctx context.Context, actor Actor, input CreateUserInput) (*entity.User, error) {
	if err := checkPermission(actor, policy.UserCreate); err != nil {
		return nil, err
	}
	role, err := parseRole(input.Role)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, invalid("用户名不能为空")
	}

	release, err := s.lockRole(ctx, role)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := s.census(ctx)
	if err != nil {
		return nil, err
	}
	if err := deny(policy.CanCreateRole(actor.Role, role, c)); err != nil {
		return nil, err
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := &entity.User{
		ID:           entity.NewID(),
		Name:         name,
		Role:         string(role),
		IsActive:     true,
		UserGroup:    input.UserGroup,
		Note:         input.Note,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}
	s.logger.Info("用户已创建", zap.String("user_id", user.ID), zap.String("role", user.Role), zap.String("actor", actor.ID))
	return user, nil
}

// target 读取目标用户并执行跨角色/自我操作检查
func (s *UserService) target(ctx context.Context, actor Actor, id string, perm policy.Permission, op policy.UserOp) (*entity.User, error) {
	if err := checkPermission(actor, perm); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("查找用户失败: %w", err)
	}
	target := policy.Subject{ID: user.ID, Role: policy.Role(user.Role)}
	if err := deny(policy.CheckUserOperation(actor.subject(), target, op)); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateProfile 修改用户名、分组、备注
func (s *UserService) UpdateProfile(ctx context.Context, actor Actor, id string, input UpdateProfileInput) (*entity.User, error) {
	user, err := s.target(ctx, actor, id, policy.UserUpdate, policy.OpEditProfile)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, invalid("用户名不能为空")
		}
		user.Name = name
	}
	if input.UserGroup != nil {
		user.UserGroup = *input.UserGroup
	}
	if input.Note != nil {
		user.Note = *input.Note
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("更新用户失败: %w", err)
	}
	return user, nil
}

// AssignRole 修改角色；指派单例角色时重新统计人数
func (s *UserService) AssignRole(ctx context.Context, actor Actor, id, roleName string) (*entity.User, error) {
	role, err := parseRole(roleName)
	if err != nil {
		return nil, err
	}
	user, err := s.target(ctx, actor, id, policy.UserUpdate, policy.OpAssignRole)
	if err != nil {
		return nil, err
	}
	if policy.Role(user.Role) == role {
		return user, nil
	}

	release, err := s.lockRole(ctx, role)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := s.census(ctx)
	if err != nil {
		return nil, err
	}
	if err := deny(policy.CanCreateRole(actor.Role, role, c)); err != nil {
		return nil, err
	}

	user.Role = string(role)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("更新用户角色失败: %w", err)
	}
	s.logger.Info("用户角色变更", zap.String("user_id", id), zap.String("role", user.Role), zap.String("actor", actor.ID))
	return user, nil
}

// SetActive 启用/停用
func (s *UserService) SetActive(ctx context.Context, actor Actor, id string, active bool) (*entity.User, error) {
	user, err := s.target(ctx, actor, id, policy.UserUpdate, policy.OpSetActive)
	if err != nil {
		return nil, err
	}
	user.IsActive = active
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("更新用户状态失败: %w", err)
	}
	return user, nil
}

// ResetPassword 重置密码
func (s *UserService) ResetPassword(ctx context.Context, actor Actor, id, password string) error {
	user, err := s.target(ctx, actor, id, policy.UserUpdate, policy.OpResetPassword)
	if err != nil {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("重置密码失败: %w", err)
	}
	return nil
}

// Delete 删除用户
func (s *UserService) Delete(ctx context.Context, actor Actor, id string) error {
	if _, err := s.target(ctx, actor, id, policy.UserDelete, policy.OpDelete); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除用户失败: %w", err)
	}
	s.logger.Info("用户已删除", zap.String("user_id", id), zap.String("actor", actor.ID))
	return nil
}

// ErrBadCredentials 用户名或密码错误
var ErrBadCredentials = errors.New("用户名或密码错误")

// VerifyPassword 校验用户名和密码（停用用户视为失败）
func (s *UserService) VerifyPassword(ctx context.Context, name, password string) (*entity.User, error) {
	user, err := s.users.FindByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("查找用户失败: %w", err)
	}
	if !user.IsActive {
		return nil, ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}
	return user, nil
}
