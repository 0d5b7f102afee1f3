package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/policy"
)

// OrderService 订单
type OrderService struct {
	orders OrderStore
	plans  PlanStore
	logger *zap.Logger
}

func NewOrderService(orders OrderStore, plans PlanStore, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{orders: orders, plans: plans, logger: logger.Named("order")}
}

// CreateOrderInput 创建订单
type CreateOrderInput struct {
	OrderNumber     string             `json:"order_number" binding:"required"`
	StyleNumber     string             `json:"style_number" binding:"required"`
	CustomerName    string             `json:"customer_name"`
	OrderStartDate  *time.Time         `json:"order_start_date"`
	OrderFinishDate *time.Time         `json:"order_finish_date"`
	Note            string             `json:"note"`
	Items           []entity.OrderItem `json:"items"`
}

func (in *CreateOrderInput) validate() error {
	var problems []string
	if strings.TrimSpace(in.OrderNumber) == "" {
		problems = append(problems, "订单号不能为空")
	}
	if strings.TrimSpace(in.StyleNumber) == "" {
		problems = append(problems, "款号不能为空")
	}
	if len(in.Items) == 0 {
		problems = append(problems, "订单明细不能为空")
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.Color) == "" || strings.TrimSpace(it.Size) == "" {
			problems = append(problems, fmt.Sprintf("第%d行明细颜色和尺码不能为空", i+1))
		}
		if it.Quantity < 1 {
			problems = append(problems, fmt.Sprintf("第%d行明细数量必须大于0", i+1))
		}
	}
	if in.OrderStartDate != nil && in.OrderFinishDate != nil && in.OrderFinishDate.Before(*in.OrderStartDate) {
		problems = append(problems, "交货日期不能早于下单日期")
	}
	if len(problems) > 0 {
		return invalid(problems...)
	}
	return nil
}

// Create 创建订单（明细创建后不可修改）
func (s *OrderService) Create(ctx context.Context, actor Actor, input CreateOrderInput) (*entity.Order, error) {
	if err := checkPermission(actor, policy.OrderCreate); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	order := &entity.Order{
		ID:              entity.NewID(),
		OrderNumber:     strings.TrimSpace(input.OrderNumber),
		StyleNumber:     strings.TrimSpace(input.StyleNumber),
		CustomerName:    input.CustomerName,
		OrderStartDate:  input.OrderStartDate,
		OrderFinishDate: input.OrderFinishDate,
		Note:            input.Note,
	}
	for i, it := range input.Items {
		order.Items = append(order.Items, entity.OrderItem{
			ID:       entity.NewID(),
			OrderID:  order.ID,
			LineNo:   i + 1,
			Color:    strings.TrimSpace(it.Color),
			Size:     strings.TrimSpace(it.Size),
			Quantity: it.Quantity,
		})
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("创建订单失败: %w", err)
	}
	s.logger.Info("订单已创建", zap.String("order_id", order.ID), zap.String("order_number", order.OrderNumber))
	return order, nil
}

// Get 订单详情（含明细）
func (s *OrderService) Get(ctx context.Context, actor Actor, id string) (*entity.Order, error) {
	if err := checkPermission(actor, policy.OrderRead); err != nil {
		return nil, err
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("查找订单失败: %w", err)
	}
	return order, nil
}

// GetByNumber 按订单号查找
func (s *OrderService) GetByNumber(ctx context.Context, actor Actor, number string) (*entity.Order, error) {
	if err := checkPermission(actor, policy.OrderRead); err != nil {
		return nil, err
	}
	order, err := s.orders.FindByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("查找订单失败: %w", err)
	}
	return order, nil
}

// List 订单列表
func (s *OrderService) List(ctx context.Context, actor Actor, filter entity.OrderFilter) ([]entity.Order, int64, error) {
	if err := checkPermission(actor, policy.OrderRead); err != nil {
		return nil, 0, err
	}
	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("查询订单失败: %w", err)
	}
	return orders, total, nil
}

// UpdateNote 修改备注
func (s *OrderService) UpdateNote(ctx context.Context, actor Actor, id, note string) (*entity.Order, error) {
	return s.update(ctx, actor, id, func(o *entity.Order) error {
		o.Note = note
		return nil
	})
}

// UpdateFinishDate 修改交货日期（下单日期不可修改）
func (s *OrderService) UpdateFinishDate(ctx context.Context, actor Actor, id string, finish *time.Time) (*entity.Order, error) {
	return s.update(ctx, actor, id, func(o *entity.Order) error {
		if finish != nil && o.OrderStartDate != nil && finish.Before(*o.OrderStartDate) {
			return invalid("交货日期不能早于下单日期")
		}
		o.OrderFinishDate = finish
		return nil
	})
}

func (s *OrderService) update(ctx context.Context, actor Actor, id string, apply func(*entity.Order) error) (*entity.Order, error) {
	if err := checkPermission(actor, policy.OrderUpdate); err != nil {
		return nil, err
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("查找订单失败: %w", err)
	}
	if err := apply(order); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("更新订单失败: %w", err)
	}
	return order, nil
}

// Delete 删除订单；已有计划的订单不能删除
func (s *OrderService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := checkPermission(actor, policy.OrderDelete); err != nil {
		return err
	}
	plans, err := s.plans.FindByOrder(ctx, id)
	if err != nil {
		return fmt.Errorf("查询订单计划失败: %w", err)
	}
	if len(plans) > 0 {
		return ErrOrderInUse
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除订单失败: %w", err)
	}
	s.logger.Info("订单已删除", zap.String("order_id", id), zap.String("actor", actor.ID))
	return nil
}
