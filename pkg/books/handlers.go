package books

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/codexlibris/codex/pkg/access"
	"github.com/codexlibris/codex/pkg/archive"
	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/codexlibris/codex/pkg/sidecar"
	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

type handler struct {
	bookService    *Service
	archiveService *archive.Service
	permissions    *permissions.Service
}

type listBooksResponse struct {
	Books []*models.Book `json:"books"`
	Total int            `json:"total"`
}

// readableBook loads the book named by the id param and runs the content
// gate for the signed-in user. Gated books come back as a 403 naming the
// missing permission; archived or unknown ones as a 404.
func (h *handler) readableBook(c echo.Context, user *models.User) (*models.Book, error) {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, errcodes.NotFound("Book")
	}

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{ID: &id})
	if err != nil {
		return nil, err
	}

	set, err := h.permissions.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if decision := access.CanAccess(set, book); !decision.Allowed {
		return nil, errcodes.MissingPermission(decision.MissingPermission)
	}

	return book, nil
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListBooksQuery{}
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

	books, total, err := h.bookService.ListBooksWithTotal(ctx, ListBooksOptions{
		Limit:         &params.Limit,
		Offset:        &params.Offset,
		Tags:          params.Tags,
		ExcludeTags:   params.ExcludeTags,
		Genres:        params.Genres,
		ExcludeGenres: params.ExcludeGenres,
		AuthorID:      params.AuthorID,
		Format:        params.Format,
		Search:        params.Search,
		Archived:      params.Archived,
		Set:           set,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, listBooksResponse{Books: books, Total: total}))
}

func (h *handler) retrieve(c echo.Context) error {
	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}

	book, err := h.readableBook(c, user)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	params := UpdateBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}

	book, err := h.readableBook(c, user)
	if err != nil {
		return err
	}

	// Keep track of what's been changed.
	opts := UpdateBookOptions{Columns: []string{}, AuthorName: params.Author}

	if params.Name != nil && *params.Name != book.Name {
		book.Name = *params.Name
		opts.Columns = append(opts.Columns, "name")
	}
	if applyText(&book.ISBN, params.ISBN) {
		opts.Columns = append(opts.Columns, "isbn")
	}
	if applyText(&book.PublicationDate, params.PublicationDate) {
		opts.Columns = append(opts.Columns, "publication_date")
	}
	if applyText(&book.Publisher, params.Publisher) {
		opts.Columns = append(opts.Columns, "publisher")
	}
	if applyText(&book.Description, params.Description) {
		opts.Columns = append(opts.Columns, "description")
	}
	if params.PageCount != nil && (book.PageCount == nil || *book.PageCount != *params.PageCount) {
		book.PageCount = params.PageCount
		opts.Columns = append(opts.Columns, "page_count")
	}

	err = h.bookService.UpdateBook(ctx, book, opts)
	if err != nil {
		return err
	}

	// Reload the model.
	book, err = h.bookService.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	if err != nil {
		return err
	}

	// Write the sidecar back so the edits survive a database rebuild.
	log := logger.FromContext(ctx)
	s := sidecar.FromBook(book)
	for _, tag := range book.Tags {
		if tag.Category == models.TagCategoryGenre {
			s.Genres = append(s.Genres, tag.Name)
		}
	}
	if err := sidecar.Write(book.Filepath, s); err != nil {
		log.Warn("failed to write book sidecar", logger.Data{"book_id": book.ID, "error": err.Error()})
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) stream(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}

	book, err := h.readableBook(c, user)
	if err != nil {
		return err
	}

	if _, err := os.Stat(book.Filepath); os.IsNotExist(err) {
		// The row outlived its file. Archive it right away so the
		// catalog stops offering a download it cannot serve.
		log := logger.FromContext(ctx)
		if _, err := h.archiveService.Archive(ctx, book.ID, models.ArchiveReasonFileMissing); err != nil {
			log.Warn("failed to archive book with missing file", logger.Data{"book_id": book.ID, "error": err.Error()})
		}
		return errcodes.NotFound("File")
	}

	c.Response().Header().Set(echo.HeaderContentType, book.ContentType())
	c.Response().Header().Set("Content-Disposition", `inline; filename="`+filepath.Base(book.Filepath)+`"`)

	return errors.WithStack(c.File(book.Filepath))
}

func (h *handler) cover(c echo.Context) error {
	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthenticated()
	}

	book, err := h.readableBook(c, user)
	if err != nil {
		return err
	}

	coverPath := book.ResolveCoverPath()
	if coverPath == "" {
		return errcodes.NotFound("Cover")
	}

	// An unfamiliar extension still gets a usable content type by sniffing
	// the bytes themselves.
	if mt := book.CoverMimeType(); mt != "" {
		c.Response().Header().Set(echo.HeaderContentType, mt)
	} else if detected, err := mimetype.DetectFile(coverPath); err == nil {
		c.Response().Header().Set(echo.HeaderContentType, detected.String())
	}

	return errors.WithStack(c.File(coverPath))
}

// applyText applies an optional text edit, treating an empty string as a
// clear. Reports whether the stored value changed.
func applyText(target **string, value *string) bool {
	if value == nil {
		return false
	}
	if *value == "" {
		if *target == nil {
			return false
		}
		*target = nil
		return true
	}
	if *target != nil && **target == *value {
		return false
	}
	*target = value
	return true
}
