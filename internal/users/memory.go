package users

import (
	"context"
	"sync"
	"time"
)

// MemoryStore はテスト・ローカル用のインメモリ Store です。
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]User
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore は空の MemoryStore を作成します。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[int64]User)}
}

// FindByMobileAndType implements Store.
func (s *MemoryStore) FindByMobileAndType(_ context.Context, mobile, userType string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byID {
		if u.Mobile == mobile && u.UserType == userType {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

// ExistsByMobile implements Store.
func (s *MemoryStore) ExistsByMobile(_ context.Context, mobile string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMobile(mobile), nil
}

// Create implements Store. 新規ユーザーは active で作成されます。
func (s *MemoryStore) Create(_ context.Context, nu NewUser) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasMobile(nu.Mobile) {
		return 0, ErrDuplicateMobile
	}
	s.nextID++
	s.byID[s.nextID] = User{
		ID:           s.nextID,
		UserType:     nu.UserType,
		Name:         nu.Name,
		Mobile:       nu.Mobile,
		Email:        nu.Email,
		Division:     nu.Division,
		District:     nu.District,
		Upazila:      nu.Upazila,
		Address:      nu.Address,
		PasswordHash: nu.PasswordHash,
		Status:       StatusActive,
		CreatedAt:    time.Now().UTC(),
	}
	return s.nextID, nil
}

// SetStatus はアカウント状態を変更します。該当がなければ ErrNotFound を返します。
func (s *MemoryStore) SetStatus(id int64, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	s.byID[id] = u
	return nil
}

// Count は登録済みユーザー数を返します。
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *MemoryStore) hasMobile(mobile string) bool {
	for _, u := range s.byID {
		if u.Mobile == mobile {
			return true
		}
	}
	return false
}
