package users

type ListUsersQuery struct {
	Limit  int     `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=200"`
	Offset int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Search *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100"`
}

// UpdateUserPayload carries account edits. Absent fields are left alone.
// Password changes by the account holder must prove knowledge of the current
// password; admins changing someone else's password don't.
type UpdateUserPayload struct {
	Username        *string `json:"username,omitempty" validate:"omitnil,min=3,max=50"`
	Email           *string `json:"email,omitempty" validate:"omitnil,email"`
	DisplayName     *string `json:"display_name,omitempty" validate:"omitnil,min=1,max=100"`
	IsActive        *bool   `json:"is_active,omitempty"`
	Password        *string `json:"password,omitempty" validate:"omitnil,min=1"`
	CurrentPassword *string `json:"current_password,omitempty"`
}

type DeleteUserQuery struct {
	// Purge hard-deletes the account instead of deactivating it. Only
	// allowed for accounts that are already deactivated and have no
	// reading history.
	Purge bool `query:"purge" json:"purge,omitempty"`
}

type CreateRolePayload struct {
	Name        string   `json:"name" validate:"required,min=2,max=50"`
	Description string   `json:"description" validate:"omitempty,max=300"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,min=1,max=100"`
}

// UpdateRolePayload edits a role. Permissions, when present, replaces the
// whole set; nil leaves the wiring alone.
type UpdateRolePayload struct {
	Name        *string   `json:"name,omitempty" validate:"omitnil,min=2,max=50"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=300"`
	Permissions *[]string `json:"permissions,omitempty" validate:"omitempty,dive,min=1,max=100"`
}

type AssignRolePayload struct {
	RoleID int `json:"role_id" validate:"required,min=1"`
}
