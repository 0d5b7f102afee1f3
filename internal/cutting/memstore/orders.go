package memstore

import (
	"context"
	"strings"
	"time"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/repository"
)

// OrderStore 订单
type OrderStore struct {
	st *state
}

func copyOrder(o entity.Order) *entity.Order {
	o.Items = append([]entity.OrderItem(nil), o.Items...)
	return &o
}

// Create 创建订单（连同明细），订单号唯一
func (s *OrderStore) Create(ctx context.Context, order *entity.Order) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.write("CreateOrder", order); err != nil {
		return err
	}
	if order.ID == "" {
		order.ID = entity.NewID()
	}
	if _, ok := s.st.orders[order.ID]; ok {
		return repository.ErrConflict
	}
	for _, o := range s.st.orders {
		if o.OrderNumber == order.OrderNumber {
			return repository.ErrConflict
		}
	}
	now := time.Now()
	order.CreatedAt, order.UpdatedAt = now, now
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = entity.NewID()
		}
		order.Items[i].OrderID = order.ID
	}
	s.st.orders[order.ID] = *copyOrder(*order)
	s.st.stamp(order.ID)
	return nil
}

// FindByID 根据ID查找订单（含明细）
func (s *OrderStore) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	if err := s.st.read("FindOrder", id); err != nil {
		return nil, err
	}
	o, ok := s.st.orders[id]
	if !ok {
		return nil, errNotFound
	}
	return copyOrder(o), nil
}

// FindByNumber 根据订单号查找
func (s *OrderStore) FindByNumber(ctx context.Context, number string) (*entity.Order, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	for _, o := range s.st.orders {
		if o.OrderNumber == number {
			return copyOrder(o), nil
		}
	}
	return nil, errNotFound
}

// List 订单列表（不含明细），按创建时间倒序
func (s *OrderStore) List(ctx context.Context, filter entity.OrderFilter) ([]entity.Order, int64, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	kw := strings.ToLower(filter.Keyword)
	var ids []string
	for id, o := range s.st.orders {
		if kw != "" &&
			!strings.Contains(strings.ToLower(o.OrderNumber), kw) &&
			!strings.Contains(strings.ToLower(o.StyleNumber), kw) &&
			!strings.Contains(strings.ToLower(o.CustomerName), kw) {
			continue
		}
		if filter.From != nil && (o.OrderStartDate == nil || o.OrderStartDate.Before(*filter.From)) {
			continue
		}
		if filter.To != nil && (o.OrderStartDate == nil || o.OrderStartDate.After(*filter.To)) {
			continue
		}
		ids = append(ids, id)
	}
	s.st.sortByCreated(ids)
	// 倒序
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}

	start, end := page(len(ids), filter.Page, filter.PageSize)
	out := make([]entity.Order, 0, end-start)
	for _, id := range ids[start:end] {
		o := s.st.orders[id]
		o.Items = nil
		out = append(out, o)
	}
	return out, int64(len(ids)), nil
}

// Update 更新订单字段，明细保持不变
func (s *OrderStore) Update(ctx context.Context, order *entity.Order) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.write("UpdateOrder", order); err != nil {
		return err
	}
	cur, ok := s.st.orders[order.ID]
	if !ok {
		return errNotFound
	}
	next := *order
	next.Items = cur.Items
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now()
	s.st.orders[order.ID] = next
	return nil
}

// Delete 删除订单及明细
func (s *OrderStore) Delete(ctx context.Context, id string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.write("DeleteOrder", id); err != nil {
		return err
	}
	if _, ok := s.st.orders[id]; !ok {
		return errNotFound
	}
	delete(s.st.orders, id)
	return nil
}
