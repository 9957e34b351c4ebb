// Package permissions resolves what a user may do. A user's effective
// permissions are the union of their roles' permissions and their direct
// grants; resolution is cached per user and the cache is dropped whenever
// roles or grants change.
package permissions

import (
	"context"
	"strconv"
	"time"

	"github.com/bluele/gcache"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

const (
	cacheSize = 1024
	cacheTTL  = time.Minute
)

type Service struct {
	db    *bun.DB
	cache gcache.Cache
}

func NewService(db *bun.DB) *Service {
	return &Service{
		db:    db,
		cache: gcache.New(cacheSize).LRU().Build(),
	}
}

// EffectivePermissions resolves the user's permission set, serving from the
// cache when it can. The TTL bounds staleness for writes that bypass
// Invalidate, like edits applied directly to the database.
func (svc *Service) EffectivePermissions(ctx context.Context, userID int) (*Set, error) {
	key := strconv.Itoa(userID)
	if cached, err := svc.cache.Get(key); err == nil {
		return cached.(*Set), nil
	}

	var roleNames []string
	err := svc.db.
		NewSelect().
		Model((*models.Permission)(nil)).
		ColumnExpr("p.name").
		Join("JOIN role_permissions rp ON rp.permission_id = p.id").
		Join("JOIN user_roles ur ON ur.role_id = rp.role_id").
		Where("ur.user_id = ?", userID).
		Scan(ctx, &roleNames)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var grants []struct {
		Name       string `bun:"name"`
		ResourceID *int   `bun:"resource_id"`
	}
	err = svc.db.
		NewSelect().
		Model((*models.UserPermission)(nil)).
		ColumnExpr("p.name AS name").
		ColumnExpr("up.resource_id AS resource_id").
		Join("JOIN permissions p ON p.id = up.permission_id").
		Where("up.user_id = ?", userID).
		Scan(ctx, &grants)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	global := roleNames
	scoped := map[string][]int{}
	for _, g := range grants {
		if g.ResourceID == nil {
			global = append(global, g.Name)
			continue
		}
		scoped[g.Name] = append(scoped[g.Name], *g.ResourceID)
	}

	set := NewSet(global, scoped)
	_ = svc.cache.SetWithExpire(key, set, cacheTTL)

	return set, nil
}

// HasPermission reports whether the user holds the permission through any
// role or grant.
func (svc *Service) HasPermission(ctx context.Context, userID int, name string) (bool, error) {
	set, err := svc.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.Has(name), nil
}

// HasPermissionForResource reports whether the user holds the permission for
// one specific resource.
func (svc *Service) HasPermissionForResource(ctx context.Context, userID int, name string, resourceID int) (bool, error) {
	set, err := svc.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.HasForResource(name, resourceID), nil
}

func (svc *Service) HasAnyPermission(ctx context.Context, userID int, names ...string) (bool, error) {
	set, err := svc.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.HasAny(names...), nil
}

func (svc *Service) HasAllPermissions(ctx context.Context, userID int, names ...string) (bool, error) {
	set, err := svc.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.HasAll(names...), nil
}

func (svc *Service) IsAdmin(ctx context.Context, userID int) (bool, error) {
	return svc.HasPermission(ctx, userID, models.PermissionAdminFull)
}

// Invalidate drops one user's cached set. Callers mutating user_roles or
// user_permissions must call this with every affected user.
func (svc *Service) Invalidate(userID int) {
	svc.cache.Remove(strconv.Itoa(userID))
}

// InvalidateAll drops every cached set. Role permission edits affect an
// unknowable set of users, so those callers purge everything.
func (svc *Service) InvalidateAll() {
	svc.cache.Purge()
}

// ListPermissions returns the permission catalog ordered by resource type
// and name.
func (svc *Service) ListPermissions(ctx context.Context) ([]*models.Permission, error) {
	permissions := []*models.Permission{}

	err := svc.db.
		NewSelect().
		Model(&permissions).
		Order("p.resource_type ASC", "p.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return permissions, nil
}
