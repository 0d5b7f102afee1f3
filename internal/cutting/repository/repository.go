package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
)

// 错误定义
var (
	ErrNotFound   = errors.New("record not found")
	ErrConflict   = errors.New("record conflict")
	ErrValidation = errors.New("invalid record")
)

// Repositories 仓库集合
type Repositories struct {
	Order *OrderRepository
	Plan  *PlanRepository
	User  *UserRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Order: NewOrderRepository(db),
		Plan:  NewPlanRepository(db),
		User:  NewUserRepository(db),
	}
}

// Models 需要迁移的表，按外键依赖顺序
func Models() []interface{} {
	return []interface{}{
		&entity.User{},
		&entity.Order{},
		&entity.OrderItem{},
		&entity.Plan{},
		&entity.Layout{},
		&entity.SizeRatio{},
		&entity.Task{},
	}
}

// translate 把 gorm 错误归类为仓库错误（需要 gorm.Config.TranslateError）
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return errors.Join(ErrValidation, err)
	}
	return err
}

func affected(tx *gorm.DB) error {
	if tx.Error != nil {
		return translate(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func paginate(page, pageSize int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page <= 0 {
			page = 1
		}
		if pageSize <= 0 || pageSize > 200 {
			pageSize = 20
		}
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}
