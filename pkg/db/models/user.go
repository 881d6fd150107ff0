package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mabar/mabar-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID                  uuid.UUID          `gorm:"type:uuid;primaryKey"`
	Email               string             `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash        *string            `gorm:"column:password_hash"`
	FirstName           string             `gorm:"column:first_name;not null"`
	LastName            string             `gorm:"column:last_name;not null"`
	Provider            enums.AuthProvider `gorm:"column:auth_provider;type:text;not null"`
	GoogleID            *string            `gorm:"column:google_id;uniqueIndex"`
	Role                *enums.UserRole    `gorm:"column:role;type:text"`
	IsActive            bool               `gorm:"column:is_active;not null"`
	OnboardingCompleted bool               `gorm:"column:onboarding_completed;not null"`
	LastLoginAt         *time.Time         `gorm:"column:last_login_at"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name for both postgres and sqlite.
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns a primary key when the caller did not.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
