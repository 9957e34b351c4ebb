package authors

import (
	"net/http"
	"strconv"

	"github.com/codexlibris/codex/pkg/books"
	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	authorService *Service
	bookService   *books.Service
	permissions   *permissions.Service
}

type listAuthorsResponse struct {
	Authors []*models.Author `json:"authors"`
	Total   int              `json:"total"`
}

type authorDetailResponse struct {
	*models.Author
	Books []*models.Book `json:"books"`
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListAuthorsQuery{}
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

	authors, total, err := h.authorService.ListAuthorsWithTotal(ctx, ListAuthorsOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
		Search: params.Search,
		Set:    set,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, listAuthorsResponse{Authors: authors, Total: total}))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	params := AuthorBooksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Author")
	}

	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}
	set, err := h.permissions.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return err
	}

	author, err := h.authorService.RetrieveAuthor(ctx, RetrieveAuthorOptions{ID: &id})
	if err != nil {
		return err
	}

	shelf, total, err := h.bookService.ListBooksWithTotal(ctx, books.ListBooksOptions{
		Limit:    &params.Limit,
		Offset:   &params.Offset,
		AuthorID: &id,
		Set:      set,
	})
	if err != nil {
		return err
	}
	if total == 0 {
		// Every book on this shelf is hidden from the caller, so for them
		// the author isn't in the catalog at all.
		return errcodes.NotFound("Author")
	}

	author.BookCount = total
	return errors.WithStack(c.JSON(http.StatusOK, authorDetailResponse{author, shelf}))
}
