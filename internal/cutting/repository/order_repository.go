package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create 创建订单（连同明细）
func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	return translate(r.db.WithContext(ctx).Create(order).Error)
}

// FindByID 根据ID查找订单（含明细）
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	var order entity.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// FindByNumber 根据订单号查找
func (r *OrderRepository) FindByNumber(ctx context.Context, number string) (*entity.Order, error) {
	var order entity.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		First(&order, "order_number = ?", number).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// List 订单列表（不含明细）
func (r *OrderRepository) List(ctx context.Context, filter entity.OrderFilter) ([]entity.Order, int64, error) {
	var orders []entity.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Order{})
	if filter.Keyword != "" {
		kw := "%" + filter.Keyword + "%"
		query = query.Where("order_number ILIKE ? OR style_number ILIKE ? OR customer_name ILIKE ?", kw, kw, kw)
	}
	if filter.From != nil {
		query = query.Where("order_start_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("order_start_date <= ?", *filter.To)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Scopes(paginate(filter.Page, filter.PageSize)).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, total, err
}

// Update 更新订单字段（明细不可修改）
func (r *OrderRepository) Update(ctx context.Context, order *entity.Order) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error)
}

// Delete 删除订单及明细
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&entity.OrderItem{}, "order_id = ?", id).Error; err != nil {
			return err
		}
		return affected(tx.Delete(&entity.Order{}, "id = ?", id))
	})
}
