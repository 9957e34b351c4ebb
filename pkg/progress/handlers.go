package progress

import (
	"net/http"
	"strconv"

	"github.com/codexlibris/codex/pkg/access"
	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	progressService *Service
	permissions     *permissions.Service
}

type progressListResponse struct {
	Progress []*models.ReadingProgress `json:"progress"`
	Total    int                       `json:"total"`
}

// readableBook resolves the :id param to an active book the user may see.
// Gated books come back as a 403 naming the missing permission; archived or
// unknown ones as a 404.
func (h *handler) readableBook(c echo.Context, user *models.User) (*models.Book, error) {
	ctx := c.Request().Context()

	bookID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, errcodes.NotFound("Book")
	}

	book, err := h.progressService.retrieveBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	set, err := h.permissions.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if decision := access.CanAccess(set, book); !decision.Allowed {
		return nil, errcodes.MissingPermission(decision.MissingPermission)
	}

	return book, nil
}

func (h *handler) get(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}

	book, err := h.readableBook(c, user)
	if err != nil {
		return err
	}

	rp, err := h.progressService.Retrieve(ctx, user.ID, book.ID)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, rp))
}

func (h *handler) start(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}

	book, err := h.readableBook(c, user)
	if err != nil {
		return err
	}

	// The body is optional; starting without one leaves the page total
	// unknown until an update supplies it.
	payload := StartPayload{}
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&payload); err != nil {
			return errors.WithStack(err)
		}
	}

	rp, err := h.progressService.Start(ctx, StartOptions{
		UserID:     user.ID,
		BookID:     book.ID,
		TotalPages: payload.TotalPages,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, rp))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}

	book, err := h.readableBook(c, user)
	if err != nil {
		return err
	}

	payload := UpdatePayload{}
	if err := c.Bind(&payload); err != nil {
		return errors.WithStack(err)
	}

	rp, err := h.progressService.Update(ctx, UpdateOptions{
		UserID:      user.ID,
		BookID:      book.ID,
		CurrentPage: payload.CurrentPage,
		TotalPages:  payload.TotalPages,
		Location:    payload.Location,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, rp))
}

func (h *handler) complete(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}

	book, err := h.readableBook(c, user)
	if err != nil {
		return err
	}

	rp, err := h.progressService.Complete(ctx, user.ID, book.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, rp))
}

func (h *handler) reset(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}

	book, err := h.readableBook(c, user)
	if err != nil {
		return err
	}

	if err := h.progressService.Reset(ctx, user.ID, book.ID); err != nil {
		return errors.WithStack(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *handler) currentlyReading(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}

	set, err := h.permissions.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	rows, total, err := h.progressService.CurrentlyReading(ctx, ListOptions{
		UserID: user.ID,
		Set:    set,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, progressListResponse{rows, total}))
}

func (h *handler) completed(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}

	set, err := h.permissions.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	rows, total, err := h.progressService.Completed(ctx, ListOptions{
		UserID: user.ID,
		Set:    set,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, progressListResponse{rows, total}))
}

func (h *handler) recent(c echo.Context) error {
	ctx := c.Request().Context()

	params := RecentQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}

	set, err := h.permissions.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	rows, total, err := h.progressService.Recent(ctx, ListOptions{
		UserID: user.ID,
		Set:    set,
		Limit:  params.Limit,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, progressListResponse{rows, total}))
}

func (h *handler) stats(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}

	stats, err := h.progressService.Stats(ctx, user.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, stats))
}
