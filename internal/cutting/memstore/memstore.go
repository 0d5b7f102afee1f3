// Package memstore 内存存储，实现与 gorm 仓库相同的接口，用于测试和 simulate 命令。
//
// 所有读操作返回副本，调用方修改返回值不会影响存储。Fault 可以按操作注入失败，
// Writes 统计写操作次数（包括失败的写）。
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/repository"
)

// Fault 注入失败；op 为方法名（如 "CreateTask"），v 为实体指针或ID
type Fault func(op string, v any) error

type state struct {
	mu sync.RWMutex

	orders  map[string]entity.Order
	plans   map[string]entity.Plan
	layouts map[string]entity.Layout
	ratios  map[string][]entity.SizeRatio // layout_id -> ratios
	tasks   map[string]entity.Task
	users   map[string]entity.User

	seq     int64
	created map[string]int64

	writes int
	fault  Fault
}

// Store 内存存储
type Store struct {
	st *state

	Orders *OrderStore
	Plans  *PlanStore
	Users  *UserStore
}

// New 创建空存储
func New() *Store {
	st := &state{
		orders:  map[string]entity.Order{},
		plans:   map[string]entity.Plan{},
		layouts: map[string]entity.Layout{},
		ratios:  map[string][]entity.SizeRatio{},
		tasks:   map[string]entity.Task{},
		users:   map[string]entity.User{},
		created: map[string]int64{},
	}
	return &Store{
		st:     st,
		Orders: &OrderStore{st: st},
		Plans:  &PlanStore{st: st},
		Users:  &UserStore{st: st},
	}
}

// SetFault 设置失败注入，传 nil 取消
func (s *Store) SetFault(f Fault) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.st.fault = f
}

// Writes 写操作次数
func (s *Store) Writes() int {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	return s.st.writes
}

// ResetWrites 清零写计数
func (s *Store) ResetWrites() {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.st.writes = 0
}

// write 调用方需持有写锁
func (st *state) write(op string, v any) error {
	st.writes++
	if st.fault != nil {
		return st.fault(op, v)
	}
	return nil
}

func (st *state) read(op string, v any) error {
	if st.fault != nil {
		return st.fault(op, v)
	}
	return nil
}

func (st *state) stamp(id string) {
	if _, ok := st.created[id]; ok {
		return
	}
	st.seq++
	st.created[id] = st.seq
}

func (st *state) sortByCreated(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool { return st.created[ids[i]] < st.created[ids[j]] })
}

func page(total, p, size int) (int, int) {
	p, size = entity.Normalize(p, size)
	start := (p - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return start, end
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

var errNotFound = repository.ErrNotFound
