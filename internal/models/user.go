package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleViewer UserRole = "VIEWER"
)

// ParseRole accepts a role name in any case.
func ParseRole(value string) (UserRole, error) {
	switch role := UserRole(strings.ToUpper(strings.TrimSpace(value))); role {
	case RoleAdmin, RoleViewer:
		return role, nil
	}
	return "", fmt.Errorf("invalid role %q: must be one of ADMIN, VIEWER", value)
}

// User is only persisted when the local auth provider is in use.
type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Email     string         `json:"email" gorm:"uniqueIndex;not null"`
	Password  string         `json:"-" gorm:"not null"`
	Role      UserRole       `json:"role" gorm:"not null;default:'VIEWER'"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

// PasswordReset is a single-use recovery token. Only the SHA-256 of the token is stored.
type PasswordReset struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	UserID     uint       `json:"userId" gorm:"not null;index"`
	TokenHash  string     `json:"-" gorm:"uniqueIndex;not null"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	ConsumedAt *time.Time `json:"consumedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (PasswordReset) TableName() string {
	return "password_resets"
}
