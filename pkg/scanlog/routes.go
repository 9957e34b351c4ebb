package scanlog

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers scan run routes on the given group.
func RegisterRoutes(scansGroup *echo.Group, db *bun.DB) {
	h := &handler{
		scanLogService: NewService(db),
	}

	// GET /admin/scans
	scansGroup.GET("", h.listRuns)
	// GET /admin/scans/:scan_id/logs
	scansGroup.GET("/:scan_id/logs", h.listLogs)
}
