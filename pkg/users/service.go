// Package users is the administration surface: accounts, roles and their
// permission wiring, role assignment, and the operator dashboard. Accounts
// are created through registration; this package manages them afterwards.
package users

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/codexlibris/codex/pkg/archive"
	"github.com/codexlibris/codex/pkg/auth"
	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/codexlibris/codex/pkg/scanlog"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// ListUsersOptions filters the account list. Deactivated accounts are
// included; hiding them would defeat the point of managing them.
type ListUsersOptions struct {
	Limit  *int
	Offset *int
	Search *string

	includeTotal bool
}

type UpdateUserOptions struct {
	Columns []string
}

type Service struct {
	db          *bun.DB
	permissions *permissions.Service
	archive     *archive.Service
	scans       *scanlog.Service
}

// NewService creates the admin service. The permissions service is needed so
// role and assignment writes can drop stale cached permission sets.
func NewService(db *bun.DB, permService *permissions.Service) *Service {
	return &Service{
		db:          db,
		permissions: permService,
		archive:     archive.NewService(db),
		scans:       scanlog.NewService(db),
	}
}

func (svc *Service) RetrieveUser(ctx context.Context, id int) (*models.User, error) {
	user := &models.User{}

	err := svc.db.
		NewSelect().
		Model(user).
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("User")
		}
		return nil, errors.WithStack(err)
	}

	if err := svc.loadRoles(ctx, []*models.User{user}); err != nil {
		return nil, err
	}

	return user, nil
}

func (svc *Service) ListUsers(ctx context.Context, opts ListUsersOptions) ([]*models.User, error) {
	u, _, err := svc.listUsersWithTotal(ctx, opts)
	return u, errors.WithStack(err)
}

func (svc *Service) ListUsersWithTotal(ctx context.Context, opts ListUsersOptions) ([]*models.User, int, error) {
	opts.includeTotal = true
	return svc.listUsersWithTotal(ctx, opts)
}

func (svc *Service) listUsersWithTotal(ctx context.Context, opts ListUsersOptions) ([]*models.User, int, error) {
	var users []*models.User
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&users).
		Order("u.id ASC")

	if opts.Search != nil && *opts.Search != "" {
		needle := "%" + strings.ToLower(*opts.Search) + "%"
		q = q.Where("(lower(u.username) LIKE ? OR lower(u.email) LIKE ? OR lower(u.display_name) LIKE ?)",
			needle, needle, needle)
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	if err := svc.loadRoles(ctx, users); err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (svc *Service) UpdateUser(ctx context.Context, user *models.User, opts UpdateUserOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	user.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(user).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("User")
		}
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return errcodes.Conflict("Email or username is already registered.")
		}
		return errors.WithStack(err)
	}
	return nil
}

// ChangePassword replaces the stored verifier. Whether the caller proved
// knowledge of the old password is the handler's business.
func (svc *Service) ChangePassword(ctx context.Context, userID int, newPassword string) error {
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	res, err := svc.db.
		NewUpdate().
		Model((*models.User)(nil)).
		Set("password_hash = ?", hash).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errcodes.NotFound("User")
	}
	return nil
}

// DeactivateUser soft-deletes an account. The row, its role assignments, and
// its reading history all stay; the user just can't sign in anymore.
func (svc *Service) DeactivateUser(ctx context.Context, userID int) (*models.User, error) {
	res, err := svc.db.
		NewUpdate().
		Model((*models.User)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, errcodes.NotFound("User")
	}

	svc.permissions.Invalidate(userID)
	return svc.RetrieveUser(ctx, userID)
}

// PurgeUser hard-deletes an account. Only deactivated accounts with no
// reading history qualify; everything else stays deactivated so progress
// rows keep a valid owner.
func (svc *Service) PurgeUser(ctx context.Context, userID int) error {
	user, err := svc.RetrieveUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsActive {
		return errcodes.Conflict("Only deactivated accounts can be purged.")
	}

	progressCount, err := svc.db.
		NewSelect().
		Model((*models.ReadingProgress)(nil)).
		Where("rpr.user_id = ?", userID).
		Count(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if progressCount > 0 {
		return errcodes.Conflict("Account has reading history; keep it deactivated instead.")
	}

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.UserRole)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return errors.WithStack(err)
		}
		if _, err := tx.NewDelete().
			Model((*models.UserPermission)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return errors.WithStack(err)
		}
		_, err := tx.NewDelete().
			Model((*models.User)(nil)).
			Where("id = ?", userID).
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return err
	}

	svc.permissions.Invalidate(userID)
	return nil
}

func (svc *Service) loadRoles(ctx context.Context, users []*models.User) error {
	if len(users) == 0 {
		return nil
	}

	ids := make([]int, 0, len(users))
	byID := make(map[int]*models.User, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
		byID[user.ID] = user
		user.Roles = []*models.Role{}
	}

	userRoles := []*models.UserRole{}
	err := svc.db.
		NewSelect().
		Model(&userRoles).
		Relation("Role").
		Where("ur.user_id IN (?)", bun.In(ids)).
		OrderExpr("role.name ASC").
		Scan(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	for _, ur := range userRoles {
		if user, ok := byID[ur.UserID]; ok && ur.Role != nil {
			user.Roles = append(user.Roles, ur.Role)
		}
	}
	return nil
}
