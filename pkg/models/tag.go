package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Tag categories.
const (
	TagCategoryContentRating = "content-rating"
	TagCategoryGenre         = "genre"
	TagCategoryFormat        = "format"
	TagCategoryCollection    = "collection"
	TagCategoryStatus        = "status"
	TagCategoryLanguage      = "language"
)

type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:t"`

	ID                 int       `bun:",pk,nullzero" json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	Name               string    `bun:",nullzero" json:"name"`
	Category           string    `bun:",nullzero" json:"category"`
	Description        *string   `json:"description,omitempty"`
	Color              *string   `json:"color,omitempty"`
	RequiresPermission *string   `json:"requires_permission,omitempty"`
	BookCount          int       `bun:",scanonly" json:"book_count"`
}

// IsGated reports whether carrying this tag hides a book from users lacking
// the named permission.
func (t *Tag) IsGated() bool {
	return t.RequiresPermission != nil && *t.RequiresPermission != ""
}

type BookTag struct {
	bun.BaseModel `bun:"table:book_tags,alias:bt"`

	BookID      int       `bun:",pk" json:"book_id"`
	TagID       int       `bun:",pk" json:"tag_id"`
	AppliedAt   time.Time `json:"applied_at"`
	AppliedBy   *int      `json:"applied_by,omitempty"`
	AutoApplied bool      `json:"auto_applied"`

	Tag *Tag `bun:"rel:belongs-to,join:tag_id=id" json:"tag,omitempty"`
}
