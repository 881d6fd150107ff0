package users

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mabar/mabar-backend/pkg/db"
	"github.com/mabar/mabar-backend/pkg/db/models"
	"github.com/mabar/mabar-backend/pkg/enums"
)

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.User{}))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"gorm":   NewRepository(setupUsersTestDB(t)),
		"memory": NewMemoryStore(nil),
		"cached": NewCachedStore(NewMemoryStore(nil), 16, time.Minute),
	}
}

func hashPtr() *string {
	return stringPtr("$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA")
}

func TestStoreCreateAndFind(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := store.Create(ctx, CreateUserDTO{
				Email:        "  Player@Example.COM ",
				PasswordHash: hashPtr(),
				FirstName:    "Pat",
				LastName:     "Player",
			})
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, created.ID)
			assert.Equal(t, "player@example.com", created.Email)
			assert.Equal(t, enums.AuthProviderLocal, created.Provider)
			assert.True(t, created.IsActive)
			assert.Nil(t, created.Role)
			assert.False(t, created.OnboardingCompleted)

			byEmail, err := store.FindByEmail(ctx, "PLAYER@example.com")
			require.NoError(t, err)
			assert.Equal(t, created.ID, byEmail.ID)

			byID, err := store.FindByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, "Pat", byID.FirstName)

			_, err = store.FindByID(ctx, uuid.New())
			assert.True(t, db.IsNotFound(err), "expected not found, got %v", err)
			assert.True(t, errors.Is(err, ErrNotFound))

			_, err = store.FindByEmail(ctx, "nobody@example.com")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreRejectsDuplicateEmail(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Create(ctx, CreateUserDTO{Email: "dup@example.com", FirstName: "A", LastName: "B"})
			require.NoError(t, err)
			_, err = store.Create(ctx, CreateUserDTO{Email: "DUP@example.com", FirstName: "C", LastName: "D"})
			assert.ErrorIs(t, err, ErrEmailTaken)
		})
	}
}

func TestStoreAdminRequiresPassword(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Create(ctx, CreateUserDTO{
				Email: "admin@example.com", FirstName: "A", LastName: "B",
				Role: enums.UserRoleAdmin.Ptr(),
			})
			assert.ErrorIs(t, err, ErrAdminRequiresPassword)

			oauthOnly, err := store.Create(ctx, CreateUserDTO{
				Email: "oauth@example.com", FirstName: "O", LastName: "A",
				Provider: enums.AuthProviderGoogle, GoogleID: stringPtr("g-1"),
			})
			require.NoError(t, err)
			_, err = store.UpdateRole(ctx, oauthOnly.ID, enums.UserRoleAdmin)
			assert.ErrorIs(t, err, ErrAdminRequiresPassword)

			reloaded, err := store.FindByID(ctx, oauthOnly.ID)
			require.NoError(t, err)
			assert.Nil(t, reloaded.Role)
		})
	}
}

func TestStoreUpdates(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			user, err := store.Create(ctx, CreateUserDTO{Email: "u@example.com", PasswordHash: hashPtr(), FirstName: "U", LastName: "S"})
			require.NoError(t, err)

			updated, err := store.UpdateRole(ctx, user.ID, enums.UserRoleVenueOwner)
			require.NoError(t, err)
			require.NotNil(t, updated.Role)
			assert.Equal(t, enums.UserRoleVenueOwner, *updated.Role)
			assert.True(t, updated.OnboardingCompleted)

			require.NoError(t, store.UpdatePasswordHash(ctx, user.ID, "new-hash"))
			require.NoError(t, store.SetActive(ctx, user.ID, false))
			at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			require.NoError(t, store.UpdateLastLogin(ctx, user.ID, at))
			require.NoError(t, store.LinkGoogle(ctx, user.ID, "google-sub"))

			reloaded, err := store.FindByID(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, "new-hash", *reloaded.PasswordHash)
			assert.False(t, reloaded.IsActive)
			require.NotNil(t, reloaded.LastLoginAt)
			assert.True(t, reloaded.LastLoginAt.Equal(at))
			require.NotNil(t, reloaded.Role)
			assert.Equal(t, enums.UserRoleVenueOwner, *reloaded.Role)

			byGoogle, err := store.FindByGoogleID(ctx, "google-sub")
			require.NoError(t, err)
			assert.Equal(t, user.ID, byGoogle.ID)

			missing := uuid.New()
			assert.ErrorIs(t, store.SetActive(ctx, missing, true), ErrNotFound)
			_, err = store.UpdateRole(ctx, missing, enums.UserRolePlayer)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreGoogleIDIsUnique(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first, err := store.Create(ctx, CreateUserDTO{Email: "a@example.com", FirstName: "A", LastName: "A"})
			require.NoError(t, err)
			second, err := store.Create(ctx, CreateUserDTO{Email: "b@example.com", FirstName: "B", LastName: "B"})
			require.NoError(t, err)

			require.NoError(t, store.LinkGoogle(ctx, first.ID, "shared-sub"))
			assert.ErrorIs(t, store.LinkGoogle(ctx, second.ID, "shared-sub"), ErrGoogleIDTaken)
		})
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()
	user, err := store.Create(ctx, CreateUserDTO{Email: "c@example.com", FirstName: "C", LastName: "C"})
	require.NoError(t, err)

	user.IsActive = false
	reloaded, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsActive, "mutating a returned user must not change the store")
}
