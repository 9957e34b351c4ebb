// Package server assembles the HTTP surface: middleware, route groups, and
// the error envelope.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/codexlibris/codex/pkg/archive"
	"github.com/codexlibris/codex/pkg/auth"
	"github.com/codexlibris/codex/pkg/authors"
	"github.com/codexlibris/codex/pkg/binder"
	"github.com/codexlibris/codex/pkg/books"
	"github.com/codexlibris/codex/pkg/config"
	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/genres"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/opds"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/codexlibris/codex/pkg/progress"
	"github.com/codexlibris/codex/pkg/scanlog"
	"github.com/codexlibris/codex/pkg/tags"
	"github.com/codexlibris/codex/pkg/users"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	permService := permissions.NewService(db)
	authService := auth.NewService(db, cfg.JWTSecret, cfg.SessionTTL)
	authMiddleware := auth.NewMiddleware(authService, permService)

	authGroup := e.Group("/auth")
	auth.RegisterRoutesWithGroup(authGroup, authService, permService, authMiddleware)

	// Admin surface: accounts, roles, the permission catalog, the dashboard.
	users.RegisterRoutes(e, db, permService, authMiddleware)

	registerCatalogRoutes(e, db, permService, authMiddleware)

	// OPDS carries its own Basic Auth; e-reader clients never see the JWT flow.
	opds.RegisterRoutes(e, db, permService, authMiddleware)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

// registerCatalogRoutes wires every group that sits behind the session
// token. Each group authenticates at the group level and leaves the
// per-route permission checks to its own package.
func registerCatalogRoutes(e *echo.Echo, db *bun.DB, permService *permissions.Service, authMiddleware *auth.Middleware) {
	booksGroup := e.Group("/books")
	booksGroup.Use(authMiddleware.Authenticate)
	books.RegisterRoutesWithGroup(booksGroup, db, permService, authMiddleware)
	tags.RegisterBookRoutesWithGroup(booksGroup, db, authMiddleware)

	authorsGroup := e.Group("/authors")
	authorsGroup.Use(authMiddleware.Authenticate)
	authors.RegisterRoutesWithGroup(authorsGroup, db, permService, authMiddleware)

	genresGroup := e.Group("/genres")
	genresGroup.Use(authMiddleware.Authenticate)
	genres.RegisterRoutesWithGroup(genresGroup, db, permService, authMiddleware)

	tagsGroup := e.Group("/tags")
	tagsGroup.Use(authMiddleware.Authenticate)
	tags.RegisterRoutesWithGroup(tagsGroup, db)

	progressGroup := e.Group("/progress")
	progressGroup.Use(authMiddleware.Authenticate)
	progress.RegisterRoutesWithGroup(progressGroup, db, permService, authMiddleware)

	archiveGroup := e.Group("/archive")
	archiveGroup.Use(authMiddleware.Authenticate)
	archive.RegisterRoutesWithGroup(archiveGroup, db, permService, authMiddleware)

	scansGroup := e.Group("/admin/scans")
	scansGroup.Use(authMiddleware.Authenticate)
	scansGroup.Use(authMiddleware.RequirePermission(models.PermissionUsersRead))
	scanlog.RegisterRoutes(scansGroup, db)
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
