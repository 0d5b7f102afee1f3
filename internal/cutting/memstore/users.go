package memstore

import (
	"context"
	"strings"
	"time"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/repository"
)

// UserStore 用户
type UserStore struct {
	st *state
}

// Create 创建用户，用户名唯一
func (s *UserStore) Create(ctx context.Context, user *entity.User) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.write("CreateUser", user); err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = entity.NewID()
	}
	for _, u := range s.st.users {
		if u.ID == user.ID || u.Name == user.Name {
			return repository.ErrConflict
		}
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	s.st.users[user.ID] = *user
	s.st.stamp(user.ID)
	return nil
}

// FindByID 根据ID查找用户
func (s *UserStore) FindByID(ctx context.Context, id string) (*entity.User, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	u, ok := s.st.users[id]
	if !ok {
		return nil, errNotFound
	}
	return &u, nil
}

// FindByName 根据用户名查找
func (s *UserStore) FindByName(ctx context.Context, name string) (*entity.User, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	if err := s.st.read("FindUserByName", name); err != nil {
		return nil, err
	}
	for _, u := range s.st.users {
		if u.Name == name {
			u := u
			return &u, nil
		}
	}
	return nil, errNotFound
}

// List 用户列表，按创建顺序
func (s *UserStore) List(ctx context.Context, filter entity.UserFilter) ([]entity.User, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	kw := strings.ToLower(filter.Keyword)
	var ids []string
	for id, u := range s.st.users {
		if kw != "" && !strings.Contains(strings.ToLower(u.Name), kw) {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Active != nil && u.IsActive != *filter.Active {
			continue
		}
		if filter.Group != "" && u.UserGroup != filter.Group {
			continue
		}
		ids = append(ids, id)
	}
	s.st.sortByCreated(ids)
	out := make([]entity.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.st.users[id])
	}
	return out, nil
}

// Update 更新用户
func (s *UserStore) Update(ctx context.Context, user *entity.User) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.write("UpdateUser", user); err != nil {
		return err
	}
	cur, ok := s.st.users[user.ID]
	if !ok {
		return errNotFound
	}
	for id, u := range s.st.users {
		if id != user.ID && u.Name == user.Name {
			return repository.ErrConflict
		}
	}
	next := *user
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now()
	s.st.users[user.ID] = next
	return nil
}

// Delete 删除用户
func (s *UserStore) Delete(ctx context.Context, id string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.st.write("DeleteUser", id); err != nil {
		return err
	}
	if _, ok := s.st.users[id]; !ok {
		return errNotFound
	}
	delete(s.st.users, id)
	return nil
}

// CountByRole 各角色用户数
func (s *UserStore) CountByRole(ctx context.Context) (map[string]int, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	counts := make(map[string]int)
	for _, u := range s.st.users {
		counts[u.Role]++
	}
	return counts, nil
}
