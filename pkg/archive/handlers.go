package archive

import (
	"net/http"
	"strconv"

	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	archiveService *Service
	permissions    *permissions.Service
}

type listArchivedResponse struct {
	Books []*models.Book `json:"books"`
	Total int            `json:"total"`
}

func (h *handler) listArchived(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListArchivedQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}
	set, err := h.permissions.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return err
	}

	books, total, err := h.archiveService.ListArchived(ctx, ListArchivedOptions{
		Reason: params.Reason,
		Limit:  params.Limit,
		Offset: params.Offset,
		Set:    set,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, listArchivedResponse{Books: books, Total: total}))
}

func (h *handler) archive(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	// The body is optional; archiving without one records the default reason.
	params := ArchivePayload{}
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&params); err != nil {
			return errors.WithStack(err)
		}
	}

	reason := ""
	if params.Reason != nil {
		reason = *params.Reason
	}

	book, err := h.archiveService.Archive(ctx, id, reason)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) restore(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	book, err := h.archiveService.Restore(ctx, id)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) stats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.archiveService.RetrieveStats(ctx)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, stats))
}

func (h *handler) validate(c echo.Context) error {
	ctx := c.Request().Context()

	report, err := h.archiveService.Validate(ctx)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, report))
}
