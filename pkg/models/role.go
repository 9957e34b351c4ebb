package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Predefined role names.
const (
	RoleAdmin     = "admin"
	RoleLibrarian = "librarian"
	RoleUser      = "user"
	RoleGuest     = "guest"
)

// Permission names. Dotted namespace.action identifiers; these are stable and
// referenced from route guards, so renaming one is a migration.
const (
	PermissionAdminFull         = "admin.full"
	PermissionBooksRead         = "books.read"
	PermissionBooksWrite        = "books.write"
	PermissionBooksManage       = "books.manage"
	PermissionGenresRead        = "genres.read"
	PermissionGenresWrite       = "genres.write"
	PermissionGenresManage      = "genres.manage"
	PermissionUsersRead         = "users.read"
	PermissionUsersWrite        = "users.write"
	PermissionUsersManage       = "users.manage"
	PermissionContentNSFW       = "content.nsfw"
	PermissionContentRestricted = "content.restricted"
)

// Permission resource types.
const (
	ResourceTypeSystem  = "system"
	ResourceTypeBooks   = "books"
	ResourceTypeGenres  = "genres"
	ResourceTypeUsers   = "users"
	ResourceTypeContent = "content"
)

type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID          int       `bun:",pk,nullzero" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `bun:",nullzero" json:"name"`
	Description string    `json:"description"`
	IsSystem    bool      `json:"is_system"`

	// Permissions is loaded through role_permissions by the services that
	// need it.
	Permissions []*Permission `bun:"-" json:"permissions,omitempty"`
}

// HasPermission checks the loaded permissions for a name.
func (r *Role) HasPermission(name string) bool {
	for _, p := range r.Permissions {
		if p.Name == name {
			return true
		}
	}
	return false
}

type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:p"`

	ID           int       `bun:",pk,nullzero" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Name         string    `bun:",nullzero" json:"name"`
	ResourceType string    `bun:",nullzero" json:"resource_type"`
	Description  string    `json:"description"`
}

type RolePermission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rp"`

	RoleID       int       `bun:",pk" json:"role_id"`
	PermissionID int       `bun:",pk" json:"permission_id"`
	CreatedAt    time.Time `json:"created_at"`

	Permission *Permission `bun:"rel:belongs-to,join:permission_id=id" json:"permission,omitempty"`
}
