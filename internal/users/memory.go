package users

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mabar/mabar-backend/pkg/db/models"
	"github.com/mabar/mabar-backend/pkg/enums"
)

// MemoryStore keeps users in process. It backs the development persistence
// bypass and tests; data is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*models.User
	byEmail  map[string]uuid.UUID
	byGoogle map[string]uuid.UUID
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. A nil clock uses time.Now.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		byID:     make(map[uuid.UUID]*models.User),
		byEmail:  make(map[string]uuid.UUID),
		byGoogle: make(map[string]uuid.UUID),
		now:      clock,
	}
}

func (m *MemoryStore) Create(_ context.Context, dto CreateUserDTO) (*models.User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	user := dto.ToModel()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[user.Email]; exists {
		return nil, ErrEmailTaken
	}
	if user.GoogleID != nil {
		if _, exists := m.byGoogle[*user.GoogleID]; exists {
			return nil, ErrGoogleIDTaken
		}
	}

	user.ID = uuid.New()
	now := m.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	m.byID[user.ID] = user
	m.byEmail[user.Email] = user.ID
	if user.GoogleID != nil {
		m.byGoogle[*user.GoogleID] = user.ID
	}
	return cloneUser(user), nil
}

func (m *MemoryStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(m.byID[id]), nil
}

func (m *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(user), nil
}

func (m *MemoryStore) FindByGoogleID(_ context.Context, googleID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byGoogle[googleID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(m.byID[id]), nil
}

func (m *MemoryStore) UpdateRole(_ context.Context, id uuid.UUID, role enums.UserRole) (*models.User, error) {
	var out *models.User
	err := m.mutate(id, func(u *models.User) error {
		if role == enums.UserRoleAdmin && !u.HasPassword() {
			return ErrAdminRequiresPassword
		}
		u.Role = role.Ptr()
		u.OnboardingCompleted = true
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cloneUser(out), nil
}

func (m *MemoryStore) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	if hash == "" {
		return errors.New("password hash is required")
	}
	return m.mutate(id, func(u *models.User) error {
		u.PasswordHash = stringPtr(hash)
		return nil
	})
}

func (m *MemoryStore) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	return m.mutate(id, func(u *models.User) error {
		u.IsActive = active
		return nil
	})
}

func (m *MemoryStore) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	return m.mutate(id, func(u *models.User) error {
		u.LastLoginAt = &at
		return nil
	})
}

func (m *MemoryStore) LinkGoogle(_ context.Context, id uuid.UUID, googleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if owner, exists := m.byGoogle[googleID]; exists && owner != id {
		return ErrGoogleIDTaken
	}
	if user.GoogleID != nil {
		delete(m.byGoogle, *user.GoogleID)
	}
	user.GoogleID = stringPtr(googleID)
	user.UpdatedAt = m.now()
	m.byGoogle[googleID] = id
	return nil
}

func (m *MemoryStore) mutate(id uuid.UUID, fn func(*models.User) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(user); err != nil {
		return err
	}
	user.UpdatedAt = m.now()
	return nil
}
