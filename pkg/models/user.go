package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int       `bun:",pk,nullzero" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Email        string    `bun:",nullzero" json:"email"`
	Username     string    `bun:",nullzero" json:"username"`
	DisplayName  string    `bun:",nullzero" json:"display_name"`
	PasswordHash string    `json:"-"` // Never expose password hash
	IsActive     bool      `json:"is_active"`

	// Roles is loaded through user_roles by the services that need it.
	Roles []*Role `bun:"-" json:"roles,omitempty"`
}

// RoleNames returns the names of the user's loaded roles.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// HasRole checks the loaded roles for a name. It says nothing about roles
// that weren't loaded.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`

	UserID    int       `bun:",pk" json:"user_id"`
	RoleID    int       `bun:",pk" json:"role_id"`
	CreatedAt time.Time `json:"created_at"`

	Role *Role `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
}

// UserPermission is a direct grant, optionally scoped to a single resource.
type UserPermission struct {
	bun.BaseModel `bun:"table:user_permissions,alias:up"`

	ID           int       `bun:",pk,nullzero" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UserID       int       `bun:",nullzero" json:"user_id"`
	PermissionID int       `bun:",nullzero" json:"permission_id"`
	ResourceID   *int      `json:"resource_id,omitempty"`

	Permission *Permission `bun:"rel:belongs-to,join:permission_id=id" json:"permission,omitempty"`
}
