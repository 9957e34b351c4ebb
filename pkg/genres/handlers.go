package genres

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
	genreService *Service
	bookService  *books.Service
	permissions  *permissions.Service
}

type listGenresResponse struct {
	Genres []*models.Tag `json:"genres"`
	Total  int           `json:"total"`
}

type genreDetailResponse struct {
	*models.Tag
	Books []*models.Book `json:"books"`
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListGenresQuery{}
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

	genres, total, err := h.genreService.ListGenresWithTotal(ctx, ListGenresOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
		Search: params.Search,
		Set:    set,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, listGenresResponse{Genres: genres, Total: total}))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	params := GenreBooksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Genre")
	}

	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}
	set, err := h.permissions.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return err
	}

	genre, err := h.genreService.RetrieveGenre(ctx, RetrieveGenreOptions{ID: &id})
	if err != nil {
		return err
	}

	// Unlike authors, a genre with an empty visible shelf still resolves;
	// the genre catalog itself is not secret, only the books on it are.
	shelf, total, err := h.bookService.ListBooksWithTotal(ctx, books.ListBooksOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
		Genres: []string{genre.Name},
		Set:    set,
	})
	if err != nil {
		return err
	}

	genre.BookCount = total
	return errors.WithStack(c.JSON(http.StatusOK, genreDetailResponse{genre, shelf}))
}
