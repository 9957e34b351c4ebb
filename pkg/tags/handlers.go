package tags

import (
	"net/http"
	"strconv"

	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	tagService *Service
}

func (h *handler) listTags(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListTagsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	tags, err := h.tagService.ListTags(ctx, ListTagsOptions{
		Category:      params.Category,
		Search:        params.Search,
		Limit:         params.Limit,
		Offset:        params.Offset,
		WithBookCount: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Tags []*models.Tag `json:"tags"`
	}{tags}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) listTagsByCategory(c echo.Context) error {
	ctx := c.Request().Context()

	category := c.Param("category")
	switch category {
	case models.TagCategoryContentRating, models.TagCategoryGenre, models.TagCategoryFormat,
		models.TagCategoryCollection, models.TagCategoryStatus, models.TagCategoryLanguage:
	default:
		return errcodes.NotFound("Tag category")
	}

	tags, err := h.tagService.ListTags(ctx, ListTagsOptions{
		Category:      &category,
		WithBookCount: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Tags []*models.Tag `json:"tags"`
	}{tags}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) listBookTags(c echo.Context) error {
	ctx := c.Request().Context()

	bookID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	bookTags, err := h.tagService.ListBookTags(ctx, bookID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, bookTagsResponse{bookTags}))
}

func (h *handler) attachTag(c echo.Context) error {
	ctx := c.Request().Context()

	bookID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	payload := AttachTagPayload{}
	if err := c.Bind(&payload); err != nil {
		return errors.WithStack(err)
	}

	var appliedBy *int
	if user, ok := c.Get("user").(*models.User); ok {
		appliedBy = &user.ID
	}

	if _, err := h.tagService.AttachTagByName(ctx, bookID, payload.Name, appliedBy); err != nil {
		return errors.WithStack(err)
	}

	bookTags, err := h.tagService.ListBookTags(ctx, bookID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, bookTagsResponse{bookTags}))
}

func (h *handler) detachTag(c echo.Context) error {
	ctx := c.Request().Context()

	bookID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	if err := h.tagService.DetachTagByName(ctx, bookID, c.Param("name")); err != nil {
		return errors.WithStack(err)
	}

	bookTags, err := h.tagService.ListBookTags(ctx, bookID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, bookTagsResponse{bookTags}))
}

type bookTagsResponse struct {
	Tags []*models.BookTag `json:"tags"`
}
