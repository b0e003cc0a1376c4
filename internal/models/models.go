// Package models contains the fixed (non-registry) data structures.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an admin console account. Public site visitors have no accounts;
// every user row here is someone allowed to log in to the console.
type User struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	Email        string     `json:"email" gorm:"uniqueIndex;not null;size:255"`
	PasswordHash string     `json:"-" gorm:"size:255"`
	DisplayName  string     `json:"display_name" gorm:"size:100"`
	Role         string     `json:"role" gorm:"size:30;default:'editor'"` // admin or editor
	IsActive     bool       `json:"is_active" gorm:"default:true"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// RoleAdmin is the role claim required for the admin console tree.
const RoleAdmin = "admin"
