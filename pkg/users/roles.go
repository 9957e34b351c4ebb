package users

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveRoleOptions struct {
	ID   *int
	Name *string
}

// UpdateRoleOptions carries a role edit. Permissions, when present, replaces
// the whole wiring; there is no incremental grant op at this level.
type UpdateRoleOptions struct {
	Name        *string
	Description *string
	Permissions *[]string
}

func (svc *Service) RetrieveRole(ctx context.Context, opts RetrieveRoleOptions) (*models.Role, error) {
	role := &models.Role{}

	q := svc.db.
		NewSelect().
		Model(role)

	if opts.ID != nil {
		q = q.Where("r.id = ?", *opts.ID)
	}
	if opts.Name != nil {
		q = q.Where("lower(r.name) = lower(?)", strings.TrimSpace(*opts.Name))
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Role")
		}
		return nil, errors.WithStack(err)
	}

	if err := svc.loadRolePermissions(ctx, []*models.Role{role}); err != nil {
		return nil, err
	}

	return role, nil
}

// ListRoles returns every role with its permission wiring loaded. Roles
// number in the single digits; there is nothing to paginate.
func (svc *Service) ListRoles(ctx context.Context) ([]*models.Role, error) {
	roles := []*models.Role{}

	err := svc.db.
		NewSelect().
		Model(&roles).
		Order("r.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := svc.loadRolePermissions(ctx, roles); err != nil {
		return nil, err
	}

	return roles, nil
}

func (svc *Service) CreateRole(ctx context.Context, name, description string, permissionNames []string) (*models.Role, error) {
	permIDs, err := svc.resolvePermissions(ctx, permissionNames)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	role := &models.Role{
		CreatedAt:   now,
		UpdatedAt:   now,
		Name:        strings.TrimSpace(name),
		Description: description,
		IsSystem:    false,
	}

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(role).Returning("*").Exec(ctx)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				return errcodes.Conflict("Role name is already taken.")
			}
			return errors.WithStack(err)
		}
		return svc.insertRolePermissions(ctx, tx, role.ID, permIDs)
	})
	if err != nil {
		return nil, err
	}

	return svc.RetrieveRole(ctx, RetrieveRoleOptions{ID: &role.ID})
}

func (svc *Service) UpdateRole(ctx context.Context, id int, opts UpdateRoleOptions) (*models.Role, error) {
	role, err := svc.RetrieveRole(ctx, RetrieveRoleOptions{ID: &id})
	if err != nil {
		return nil, err
	}

	if opts.Name != nil && *opts.Name != role.Name {
		if role.IsSystem {
			return nil, errcodes.Forbidden("Renaming a system role")
		}
		role.Name = strings.TrimSpace(*opts.Name)
	}
	if opts.Description != nil {
		role.Description = *opts.Description
	}

	var permIDs []int
	if opts.Permissions != nil {
		// Locking the admin role's wiring keeps at least one account able
		// to undo whatever this request was about to do.
		if role.Name == models.RoleAdmin {
			return nil, errcodes.Forbidden("Changing the admin role's permissions")
		}
		permIDs, err = svc.resolvePermissions(ctx, *opts.Permissions)
		if err != nil {
			return nil, err
		}
	}

	role.UpdatedAt = time.Now()

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model(role).
			Column("name", "description", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				return errcodes.Conflict("Role name is already taken.")
			}
			return errors.WithStack(err)
		}

		if opts.Permissions == nil {
			return nil
		}
		if _, err := tx.NewDelete().
			Model((*models.RolePermission)(nil)).
			Where("role_id = ?", role.ID).
			Exec(ctx); err != nil {
			return errors.WithStack(err)
		}
		return svc.insertRolePermissions(ctx, tx, role.ID, permIDs)
	})
	if err != nil {
		return nil, err
	}

	if opts.Permissions != nil {
		// Every holder of this role just changed shape.
		svc.permissions.InvalidateAll()
	}

	return svc.RetrieveRole(ctx, RetrieveRoleOptions{ID: &role.ID})
}

func (svc *Service) DeleteRole(ctx context.Context, id int) error {
	role, err := svc.RetrieveRole(ctx, RetrieveRoleOptions{ID: &id})
	if err != nil {
		return err
	}
	if role.IsSystem {
		return errcodes.Forbidden("Deleting a system role")
	}

	assigned, err := svc.db.
		NewSelect().
		Model((*models.UserRole)(nil)).
		Where("ur.role_id = ?", id).
		Count(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if assigned > 0 {
		return errcodes.Conflict("Role is still assigned to users.")
	}

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.RolePermission)(nil)).
			Where("role_id = ?", id).
			Exec(ctx); err != nil {
			return errors.WithStack(err)
		}
		_, err := tx.NewDelete().
			Model((*models.Role)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return errors.WithStack(err)
	})
	return err
}

// ListPermissions returns the permission catalog. The catalog is seeded by
// migrations; roles wire into it but never grow it.
func (svc *Service) ListPermissions(ctx context.Context) ([]*models.Permission, error) {
	return svc.permissions.ListPermissions(ctx)
}

// AssignRole grants a role to a user. Assigning a role twice is a no-op.
func (svc *Service) AssignRole(ctx context.Context, userID, roleID int) error {
	if _, err := svc.RetrieveUser(ctx, userID); err != nil {
		return err
	}
	if _, err := svc.RetrieveRole(ctx, RetrieveRoleOptions{ID: &roleID}); err != nil {
		return err
	}

	_, err := svc.db.
		NewInsert().
		Model(&models.UserRole{UserID: userID, RoleID: roleID}).
		On("CONFLICT (user_id, role_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	svc.permissions.Invalidate(userID)
	return nil
}

// RemoveRole revokes a role from a user. Stripping the admin role from its
// last holder is refused; a library with no admin cannot be administered
// back to health.
func (svc *Service) RemoveRole(ctx context.Context, userID, roleID int) error {
	role, err := svc.RetrieveRole(ctx, RetrieveRoleOptions{ID: &roleID})
	if err != nil {
		return err
	}

	if role.Name == models.RoleAdmin {
		holders, err := svc.db.
			NewSelect().
			Model((*models.UserRole)(nil)).
			Where("ur.role_id = ?", roleID).
			Count(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if holders <= 1 {
			return errcodes.Conflict("Cannot remove the last admin.")
		}
	}

	_, err = svc.db.
		NewDelete().
		Model((*models.UserRole)(nil)).
		Where("user_id = ?", userID).
		Where("role_id = ?", roleID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	svc.permissions.Invalidate(userID)
	return nil
}

// resolvePermissions turns permission names into IDs, rejecting any name
// that isn't in the seeded catalog.
func (svc *Service) resolvePermissions(ctx context.Context, names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, nil
	}

	perms := []*models.Permission{}
	err := svc.db.
		NewSelect().
		Model(&perms).
		Where("p.name IN (?)", bun.In(names)).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	byName := make(map[string]int, len(perms))
	for _, perm := range perms {
		byName[perm.Name] = perm.ID
	}

	ids := make([]int, 0, len(names))
	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		id, ok := byName[name]
		if !ok {
			return nil, errcodes.ValidationError("Unknown permission: " + name)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func (svc *Service) insertRolePermissions(ctx context.Context, tx bun.Tx, roleID int, permIDs []int) error {
	for _, permID := range permIDs {
		_, err := tx.NewInsert().
			Model(&models.RolePermission{RoleID: roleID, PermissionID: permID}).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (svc *Service) loadRolePermissions(ctx context.Context, roles []*models.Role) error {
	if len(roles) == 0 {
		return nil
	}

	ids := make([]int, 0, len(roles))
	byID := make(map[int]*models.Role, len(roles))
	for _, role := range roles {
		ids = append(ids, role.ID)
		byID[role.ID] = role
		role.Permissions = []*models.Permission{}
	}

	rolePerms := []*models.RolePermission{}
	err := svc.db.
		NewSelect().
		Model(&rolePerms).
		Relation("Permission").
		Where("rp.role_id IN (?)", bun.In(ids)).
		OrderExpr("permission.name ASC").
		Scan(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	for _, rp := range rolePerms {
		if role, ok := byID[rp.RoleID]; ok && rp.Permission != nil {
			role.Permissions = append(role.Permissions, rp.Permission)
		}
	}
	return nil
}
