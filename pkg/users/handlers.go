package users

import (
	"net/http"
	"strconv"

	"github.com/codexlibris/codex/pkg/auth"
	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	userService *Service
}

type listUsersResponse struct {
	Users []*models.User `json:"users"`
	Total int            `json:"total"`
}

type listRolesResponse struct {
	Roles []*models.Role `json:"roles"`
}

type listPermissionsResponse struct {
	Permissions []*models.Permission `json:"permissions"`
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListUsersQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	users, total, err := h.userService.ListUsersWithTotal(ctx, ListUsersOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
		Search: params.Search,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, listUsersResponse{Users: users, Total: total}))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("User")
	}

	user, err := h.userService.RetrieveUser(ctx, id)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, user))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("User")
	}

	params := UpdateUserPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	caller, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}
	isSelf := caller.ID == id

	user, err := h.userService.RetrieveUser(ctx, id)
	if err != nil {
		return err
	}

	opts := UpdateUserOptions{Columns: []string{}}
	if params.Username != nil && *params.Username != user.Username {
		user.Username = *params.Username
		opts.Columns = append(opts.Columns, "username")
	}
	if params.Email != nil && *params.Email != user.Email {
		user.Email = *params.Email
		opts.Columns = append(opts.Columns, "email")
	}
	if params.DisplayName != nil && *params.DisplayName != user.DisplayName {
		user.DisplayName = *params.DisplayName
		opts.Columns = append(opts.Columns, "display_name")
	}
	if params.IsActive != nil && *params.IsActive != user.IsActive {
		// Locking yourself out, or reactivating yourself after an admin
		// turned the account off, both go through someone else.
		if isSelf {
			return errcodes.ValidationError("You cannot change your own account status.")
		}
		user.IsActive = *params.IsActive
		opts.Columns = append(opts.Columns, "is_active")
	}

	if params.Password != nil && isSelf {
		if params.CurrentPassword == nil || *params.CurrentPassword == "" {
			return errcodes.ValidationError("Current password is required when changing your own password.")
		}
		if !auth.CheckPassword(*params.CurrentPassword, user.PasswordHash) {
			return errcodes.ValidationError("Current password is incorrect.")
		}
	}

	if err := h.userService.UpdateUser(ctx, user, opts); err != nil {
		return err
	}

	if params.Password != nil {
		if err := h.userService.ChangePassword(ctx, id, *params.Password); err != nil {
			return err
		}
	}

	user, err = h.userService.RetrieveUser(ctx, id)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, user))
}

func (h *handler) deleteUser(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("User")
	}

	params := DeleteUserQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	caller, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}
	if caller.ID == id {
		return errcodes.ValidationError("You cannot deactivate your own account.")
	}

	if params.Purge {
		if err := h.userService.PurgeUser(ctx, id); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}

	user, err := h.userService.DeactivateUser(ctx, id)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, user))
}

func (h *handler) listRoles(c echo.Context) error {
	ctx := c.Request().Context()

	roles, err := h.userService.ListRoles(ctx)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, listRolesResponse{Roles: roles}))
}

func (h *handler) createRole(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateRolePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	role, err := h.userService.CreateRole(ctx, params.Name, params.Description, params.Permissions)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusCreated, role))
}

func (h *handler) updateRole(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Role")
	}

	params := UpdateRolePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	role, err := h.userService.UpdateRole(ctx, id, UpdateRoleOptions{
		Name:        params.Name,
		Description: params.Description,
		Permissions: params.Permissions,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, role))
}

func (h *handler) deleteRole(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Role")
	}

	if err := h.userService.DeleteRole(ctx, id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *handler) listPermissions(c echo.Context) error {
	ctx := c.Request().Context()

	perms, err := h.userService.ListPermissions(ctx)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, listPermissionsResponse{Permissions: perms}))
}

func (h *handler) assignRole(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("User")
	}

	params := AssignRolePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	if err := h.userService.AssignRole(ctx, id, params.RoleID); err != nil {
		return err
	}

	user, err := h.userService.RetrieveUser(ctx, id)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, user))
}

func (h *handler) removeRole(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("User")
	}
	roleID, err := strconv.Atoi(c.Param("roleId"))
	if err != nil {
		return errcodes.NotFound("Role")
	}

	if err := h.userService.RemoveRole(ctx, id, roleID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *handler) dashboard(c echo.Context) error {
	ctx := c.Request().Context()

	dashboard, err := h.userService.RetrieveDashboard(ctx)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, dashboard))
}
