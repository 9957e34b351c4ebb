package opds

import (
	"encoding/xml"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/codexlibris/codex/pkg/access"
	"github.com/codexlibris/codex/pkg/archive"
	"github.com/codexlibris/codex/pkg/books"
	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type handler struct {
	opdsService    *Service
	bookService    *books.Service
	archiveService *archive.Service
	permissions    *permissions.Service
}

// getBaseURL returns the base URL for OPDS feeds, honoring the headers
// reverse proxies set when they terminate TLS or strip a path prefix.
func getBaseURL(c echo.Context) string {
	scheme := "http"
	if c.Request().TLS != nil {
		scheme = "https"
	}
	if proto := c.Request().Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	prefix := c.Request().Header.Get("X-Forwarded-Prefix")

	return scheme + "://" + c.Request().Host + prefix + "/opds"
}

// getPaginationParams extracts limit and offset from query params. Reader
// clients send whatever they like here, so bad values fall back to defaults
// instead of erroring.
func getPaginationParams(c echo.Context) (int, int) {
	limit := defaultLimit
	offset := 0

	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > maxLimit {
				limit = maxLimit
			}
		}
	}

	if o := c.QueryParam("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}

// callerSet resolves the effective permission set of the authenticated user.
func (h *handler) callerSet(c echo.Context) (*permissions.Set, error) {
	user, ok := c.Get("user").(*models.User)
	if !ok {
		return nil, errcodes.Unauthenticated()
	}
	return h.permissions.EffectivePermissions(c.Request().Context(), user.ID)
}

// root handles the navigation feed e-readers land on.
func (h *handler) root(c echo.Context) error {
	feed := h.opdsService.BuildRootFeed(getBaseURL(c))
	return respondXML(c, feed, MimeTypeNavigation)
}

// booksFeed handles the acquisition feed, with optional ?q= search.
func (h *handler) booksFeed(c echo.Context) error {
	ctx := c.Request().Context()

	set, err := h.callerSet(c)
	if err != nil {
		return err
	}

	limit, offset := getPaginationParams(c)
	feed, err := h.opdsService.BuildBooksFeed(ctx, getBaseURL(c), set, c.QueryParam("q"), limit, offset)
	if err != nil {
		return errors.WithStack(err)
	}

	return respondXML(c, feed, MimeTypeAcquisition)
}

// openSearch handles the OpenSearch description document.
func (h *handler) openSearch(c echo.Context) error {
	desc := h.opdsService.BuildOpenSearchDescription(getBaseURL(c))

	c.Response().Header().Set(echo.HeaderContentType, MimeTypeOpenSearch)
	return errors.WithStack(c.XML(http.StatusOK, desc))
}

// readableBook loads the book named by the id param and runs the content
// gate for the authenticated user.
func (h *handler) readableBook(c echo.Context) (*models.Book, error) {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, errcodes.NotFound("Book")
	}

	book, err := h.bookService.RetrieveBook(ctx, books.RetrieveBookOptions{ID: &id})
	if err != nil {
		return nil, err
	}

	set, err := h.callerSet(c)
	if err != nil {
		return nil, err
	}
	if decision := access.CanAccess(set, book); !decision.Allowed {
		return nil, errcodes.MissingPermission(decision.MissingPermission)
	}

	return book, nil
}

// download serves the book's file as an attachment.
func (h *handler) download(c echo.Context) error {
	ctx := c.Request().Context()

	book, err := h.readableBook(c)
	if err != nil {
		return err
	}

	if _, err := os.Stat(book.Filepath); os.IsNotExist(err) {
		log := logger.FromContext(ctx)
		if _, err := h.archiveService.Archive(ctx, book.ID, models.ArchiveReasonFileMissing); err != nil {
			log.Warn("failed to archive book with missing file", logger.Data{"book_id": book.ID, "error": err.Error()})
		}
		return errcodes.NotFound("File")
	}

	c.Response().Header().Set(echo.HeaderContentType, FormatMimeType(book.FileFormat))
	c.Response().Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(book.Filepath)+`"`)

	return errors.WithStack(c.File(book.Filepath))
}

// cover serves the cover image the feed's image links point at.
func (h *handler) cover(c echo.Context) error {
	book, err := h.readableBook(c)
	if err != nil {
		return err
	}

	coverPath := book.ResolveCoverPath()
	if coverPath == "" {
		return errcodes.NotFound("Cover")
	}

	if mt := book.CoverMimeType(); mt != "" {
		c.Response().Header().Set(echo.HeaderContentType, mt)
	} else if detected, err := mimetype.DetectFile(coverPath); err == nil {
		c.Response().Header().Set(echo.HeaderContentType, detected.String())
	}

	return errors.WithStack(c.File(coverPath))
}

// respondXML sends a feed with the XML declaration OPDS clients expect.
func respondXML(c echo.Context, feed *Feed, contentType string) error {
	c.Response().Header().Set(echo.HeaderContentType, contentType+"; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)

	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return errors.WithStack(err)
	}

	encoder := xml.NewEncoder(c.Response())
	encoder.Indent("", "  ")
	if err := encoder.Encode(feed); err != nil {
		return errors.WithStack(err)
	}

	return nil
}
