package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"user_service/internal/common"
	"user_service/internal/models"

	"github.com/gofrs/uuid"
)

// MemoryStorage keeps users in process memory. It enforces the same email
// uniqueness as the Postgres schema and is safe for concurrent use.
type MemoryStorage struct {
	mu    sync.RWMutex
	users map[uuid.UUID]models.User
	now   func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[uuid.UUID]models.User),
		now:   time.Now,
	}
}

func (m *MemoryStorage) FindByIdentifier(_ context.Context, email string) (models.User, error) {
	const op = "storage.FindByIdentifier"

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}

	return models.User{}, fmt.Errorf("%s: %w", op, common.ErrNotFound)
}

func (m *MemoryStorage) FindByID(_ context.Context, id uuid.UUID) (models.User, error) {
	const op = "storage.FindByID"

	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}

	return u, nil
}

func (m *MemoryStorage) List(_ context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].Email < users[j].Email
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})

	return users, nil
}

func (m *MemoryStorage) Save(_ context.Context, user models.User) (models.User, error) {
	const op = "storage.Save"

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, u := range m.users {
		if id != user.ID && u.Email == user.Email {
			return models.User{}, fmt.Errorf("%s: %w: email", op, common.ErrConflict)
		}
	}

	now := m.now()
	if user.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return models.User{}, fmt.Errorf("%s: %w", op, err)
		}
		user.ID = id
		user.CreatedAt = now
	} else {
		existing, ok := m.users[user.ID]
		if !ok {
			return models.User{}, fmt.Errorf("%s: %w", op, common.ErrNotFound)
		}
		user.CreatedAt = existing.CreatedAt
	}
	user.UpdatedAt = now

	m.users[user.ID] = user

	return user, nil
}

func (m *MemoryStorage) Delete(_ context.Context, id uuid.UUID) error {
	const op = "storage.Delete"

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}
	delete(m.users, id)

	return nil
}

func (m *MemoryStorage) Close() {}
