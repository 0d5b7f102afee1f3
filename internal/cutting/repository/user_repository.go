package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create 创建用户
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

// FindByID 根据ID查找用户
func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByName 根据用户名查找
func (r *UserRepository) FindByName(ctx context.Context, name string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).First(&user, "name = ?", name).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// List 用户列表
func (r *UserRepository) List(ctx context.Context, filter entity.UserFilter) ([]entity.User, error) {
	var users []entity.User
	query := r.db.WithContext(ctx).Model(&entity.User{})
	if filter.Keyword != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Keyword+"%")
	}
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}
	if filter.Group != "" {
		query = query.Where("user_group = ?", filter.Group)
	}
	err := query.Order("created_at ASC").Find(&users).Error
	return users, err
}

// Update 更新用户
func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	return translate(r.db.WithContext(ctx).Save(user).Error)
}

// Delete 删除用户
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return affected(r.db.WithContext(ctx).Delete(&entity.User{}, "id = ?", id))
}

// CountByRole 各角色用户数，每次实时查询
func (r *UserRepository) CountByRole(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Role  string
		Count int
	}
	err := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Count
	}
	return counts, nil
}
