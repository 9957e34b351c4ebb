package users

import (
	"github.com/codexlibris/codex/pkg/auth"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the admin surface: accounts, roles, the
// permission catalog, and the dashboard. Reads take users.read; anything
// that changes accounts or authorization takes users.manage. The one
// exception is PUT /users/:id, which account holders may call on themselves
// to edit their profile or change their password.
func RegisterRoutes(e *echo.Echo, db *bun.DB, permService *permissions.Service, authMiddleware *auth.Middleware) *Service {
	userService := NewService(db, permService)

	h := &handler{
		userService: userService,
	}

	users := e.Group("/users")
	users.Use(authMiddleware.Authenticate)

	users.GET("", h.list, authMiddleware.RequirePermission(models.PermissionUsersRead))
	users.GET("/:id", h.retrieve, authMiddleware.RequirePermission(models.PermissionUsersRead))
	users.PUT("/:id", h.update, authMiddleware.RequireSelfOrAdmin("id"))
	users.DELETE("/:id", h.deleteUser, authMiddleware.RequirePermission(models.PermissionUsersManage))
	users.POST("/:id/roles", h.assignRole, authMiddleware.RequirePermission(models.PermissionUsersManage))
	users.DELETE("/:id/roles/:roleId", h.removeRole, authMiddleware.RequirePermission(models.PermissionUsersManage))

	roles := e.Group("/roles")
	roles.Use(authMiddleware.Authenticate)

	roles.GET("", h.listRoles, authMiddleware.RequirePermission(models.PermissionUsersRead))
	roles.POST("", h.createRole, authMiddleware.RequirePermission(models.PermissionUsersManage))
	roles.PUT("/:id", h.updateRole, authMiddleware.RequirePermission(models.PermissionUsersManage))
	roles.DELETE("/:id", h.deleteRole, authMiddleware.RequirePermission(models.PermissionUsersManage))

	perms := e.Group("/permissions")
	perms.Use(authMiddleware.Authenticate)

	perms.GET("", h.listPermissions, authMiddleware.RequirePermission(models.PermissionUsersRead))

	admin := e.Group("/admin")
	admin.Use(authMiddleware.Authenticate)

	admin.GET("/dashboard", h.dashboard, authMiddleware.RequirePermission(models.PermissionUsersRead))

	return userService
}
