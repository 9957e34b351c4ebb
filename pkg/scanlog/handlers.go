package scanlog

import (
	"net/http"

	"github.com/codexlibris/codex/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	scanLogService *Service
}

func (h *handler) listRuns(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListScanRunsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	limit := 20
	if params.Limit != nil {
		limit = *params.Limit
	}

	runs, err := h.scanLogService.ListScanRuns(ctx, ListScanRunsOptions{
		Limit:    &limit,
		Offset:   params.Offset,
		Statuses: params.Status,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Scans []*models.ScanRun `json:"scans"`
	}{runs}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) listLogs(c echo.Context) error {
	ctx := c.Request().Context()

	scanID := c.Param("scan_id")

	run, err := h.scanLogService.RetrieveScanRun(ctx, RetrieveScanRunOptions{ScanID: &scanID})
	if err != nil {
		return errors.WithStack(err)
	}

	params := ListScanLogsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	logs, err := h.scanLogService.ListScanLogs(ctx, ListScanLogsOptions{
		ScanID:  scanID,
		AfterID: params.AfterID,
		Levels:  params.Level,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Logs []*models.ScanLog `json:"logs"`
		Scan *models.ScanRun   `json:"scan"`
	}{logs, run}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
