package users

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo keeps contacts in process for dev and tests.
type MemoryRepo struct {
	mu       sync.RWMutex
	contacts map[string]User
	now      func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		contacts: make(map[string]User),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepo) Upsert(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stamp := r.now()
	user.CreatedAt = stamp
	if prev, ok := r.contacts[user.ID]; ok {
		user.CreatedAt = prev.CreatedAt
	}
	user.UpdatedAt = stamp
	r.contacts[user.ID] = user
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if user, ok := r.contacts[userID]; ok {
		return user, nil
	}
	return User{}, ErrNotFound
}
