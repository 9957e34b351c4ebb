package auth

import (
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/labstack/echo/v4"
)

// RegisterRoutesWithGroup registers all auth routes on the given group.
func RegisterRoutesWithGroup(g *echo.Group, authService *Service, permService *permissions.Service, m *Middleware) {
	h := &handler{
		authService: authService,
		permissions: permService,
	}

	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.POST("/logout", h.logout)
	g.GET("/status", h.status)
	g.GET("/me", h.me, m.Authenticate)
}
