package identity

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryRepository builds an in-memory user store for tests and local development.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]User)}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.Phone]; exists {
		return ErrExists
	}
	r.users[user.Phone] = user
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for phone, user := range r.users {
		if user.ID == id {
			delete(r.users, phone)
			return nil
		}
	}
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.ID == id {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[phone]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *memoryRepository) UpdateDevice(_ context.Context, id, deviceID string) error {
	return r.mutate(id, func(u *User) { u.DeviceID = deviceID })
}

func (r *memoryRepository) UpdateTier(_ context.Context, id, tier string) error {
	return r.mutate(id, func(u *User) { u.Tier = tier })
}

func (r *memoryRepository) mutate(id string, fn func(*User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for phone, user := range r.users {
		if user.ID == id {
			fn(&user)
			r.users[phone] = user
			return nil
		}
	}
	return ErrNotFound
}
