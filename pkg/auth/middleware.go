package auth

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/labstack/echo/v4"
)

// Middleware guards routes. Authenticate resolves a session token into a
// user; the Require* wrappers check effective permissions on top of it and
// must run after Authenticate.
type Middleware struct {
	authService *Service
	permissions *permissions.Service
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(authService *Service, permService *permissions.Service) *Middleware {
	return &Middleware{
		authService: authService,
		permissions: permService,
	}
}

// tokenFromRequest pulls the session token from the Authorization header,
// falling back to the session cookie for browser clients.
func tokenFromRequest(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}

	cookie, err := c.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Authenticate requires a valid session token for an active user and stores
// the user on the echo context for downstream handlers.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		token := tokenFromRequest(c)
		if token == "" {
			return errcodes.Unauthenticated()
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			return errcodes.Unauthenticated()
		}

		userID, err := claims.UserID()
		if err != nil {
			return errcodes.Unauthenticated()
		}

		// Tokens outlive deactivations, so the user row is checked on every
		// request.
		user, err := m.authService.GetUserByID(ctx, userID)
		if err != nil {
			return errcodes.Unauthenticated()
		}

		c.Set("user_id", user.ID)
		c.Set("username", user.Username)
		c.Set("user", user)

		return next(c)
	}
}

// AuthenticateOptional stores the user on the context when a valid token is
// present but lets anonymous requests through.
func (m *Middleware) AuthenticateOptional(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		token := tokenFromRequest(c)
		if token != "" {
			claims, err := m.authService.ValidateToken(token)
			if err == nil {
				if userID, err := claims.UserID(); err == nil {
					user, err := m.authService.GetUserByID(ctx, userID)
					if err == nil {
						c.Set("user_id", user.ID)
						c.Set("username", user.Username)
						c.Set("user", user)
					}
				}
			}
		}
		return next(c)
	}
}

// RequirePermission rejects callers lacking the permission.
func (m *Middleware) RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := c.Get("user_id").(int)
			if !ok {
				return errcodes.Unauthenticated()
			}

			allowed, err := m.permissions.HasPermission(c.Request().Context(), userID, permission)
			if err != nil {
				return err
			}
			if !allowed {
				return errcodes.MissingPermission(permission)
			}

			return next(c)
		}
	}
}

// RequireAnyPermission rejects callers holding none of the permissions.
func (m *Middleware) RequireAnyPermission(perms ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := c.Get("user_id").(int)
			if !ok {
				return errcodes.Unauthenticated()
			}

			allowed, err := m.permissions.HasAnyPermission(c.Request().Context(), userID, perms...)
			if err != nil {
				return err
			}
			if !allowed {
				return errcodes.MissingPermission(strings.Join(perms, " or "))
			}

			return next(c)
		}
	}
}

// RequireAllPermissions rejects callers missing any of the permissions.
func (m *Middleware) RequireAllPermissions(perms ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := c.Get("user_id").(int)
			if !ok {
				return errcodes.Unauthenticated()
			}

			allowed, err := m.permissions.HasAllPermissions(c.Request().Context(), userID, perms...)
			if err != nil {
				return err
			}
			if !allowed {
				return errcodes.MissingPermission(strings.Join(perms, " and "))
			}

			return next(c)
		}
	}
}

// RequireSelfOrAdmin lets users through to their own resource and admins
// through to anyone's. The route parameter must hold the target user id.
func (m *Middleware) RequireSelfOrAdmin(paramName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := c.Get("user_id").(int)
			if !ok {
				return errcodes.Unauthenticated()
			}

			targetID, err := strconv.Atoi(c.Param(paramName))
			if err != nil {
				return errcodes.NotFound("User")
			}

			if targetID == userID {
				return next(c)
			}

			isAdmin, err := m.permissions.IsAdmin(c.Request().Context(), userID)
			if err != nil {
				return err
			}
			if !isAdmin {
				return errcodes.Forbidden("Accessing another user's account")
			}

			return next(c)
		}
	}
}

// RequireAdmin rejects callers without admin.full.
func (m *Middleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := c.Get("user_id").(int)
		if !ok {
			return errcodes.Unauthenticated()
		}

		isAdmin, err := m.permissions.IsAdmin(c.Request().Context(), userID)
		if err != nil {
			return err
		}
		if !isAdmin {
			return errcodes.MissingPermission(models.PermissionAdminFull)
		}

		return next(c)
	}
}

// BasicAuth authenticates OPDS requests. E-reader clients only speak Basic
// Auth, so session tokens don't apply here.
func (m *Middleware) BasicAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(header, "Basic ") {
			return respondBasicAuthRequired(c)
		}

		decoded, err := base64.StdEncoding.DecodeString(header[len("Basic "):])
		if err != nil {
			return respondBasicAuthRequired(c)
		}

		parts := strings.SplitN(string(decoded), ":", 2)
		if len(parts) != 2 {
			return respondBasicAuthRequired(c)
		}

		user, err := m.authService.AuthenticateBasic(ctx, parts[0], parts[1])
		if err != nil {
			return respondBasicAuthRequired(c)
		}

		c.Set("user_id", user.ID)
		c.Set("username", user.Username)
		c.Set("user", user)

		return next(c)
	}
}

func respondBasicAuthRequired(c echo.Context) error {
	c.Response().Header().Set("WWW-Authenticate", `Basic realm="Codex OPDS"`)
	return c.String(http.StatusUnauthorized, "Unauthorized")
}
