package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/codexlibris/codex/pkg/fileutils"
	"github.com/uptrace/bun"
)

// Book statuses.
const (
	BookStatusActive   = "active"
	BookStatusArchived = "archived"
)

// Archive reason recorded when the reconciler can't find the file on disk.
const ArchiveReasonFileMissing = "file missing"

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID              int        `bun:",pk,nullzero" json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Name            string     `bun:",nullzero" json:"name"`
	SortName        string     `bun:",nullzero" json:"sort_name,omitempty"`
	Filepath        string     `bun:",nullzero" json:"filepath"`
	AuthorID        int        `bun:",nullzero" json:"author_id"`
	Author          *Author    `bun:"rel:belongs-to,join:author_id=id" json:"author,omitempty"`
	ISBN            *string    `json:"isbn,omitempty"`
	PublicationDate *string    `json:"publication_date,omitempty"`
	Publisher       *string    `json:"publisher,omitempty"`
	Description     *string    `json:"description,omitempty"`
	PageCount       *int       `json:"page_count,omitempty"`
	FileSize        *int64     `json:"file_size,omitempty"`
	FileFormat      string     `bun:",nullzero" json:"file_format"`
	CoverPath       *string    `json:"cover_path,omitempty"`
	Status          string     `bun:",nullzero" json:"status"`
	ArchivedAt      *time.Time `json:"archived_at,omitempty"`
	ArchiveReason   *string    `json:"archive_reason,omitempty"`

	// Tags is loaded through book_tags by the services that need it.
	Tags []*Tag `bun:"-" json:"tags,omitempty"`
}

// IsArchived reports whether the book is on the archive surface.
func (b *Book) IsArchived() bool {
	return b.Status == BookStatusArchived
}

// ContentType returns the MIME type used when streaming the book's bytes.
func (b *Book) ContentType() string {
	switch strings.ToLower(b.FileFormat) {
	case "pdf":
		return "application/pdf"
	case "epub":
		return "application/epub+zip"
	default:
		return "application/octet-stream"
	}
}

// ResolveCoverPath returns the path of the book's cover image, preferring the
// stored cover_path and falling back to a canonical cover.<ext> file next to
// the book. Returns "" when no cover exists on disk.
func (b *Book) ResolveCoverPath() string {
	if b.CoverPath != nil && *b.CoverPath != "" && fileutils.FileExists(*b.CoverPath) {
		return *b.CoverPath
	}

	return fileutils.CoverExistsWithBaseName(filepath.Dir(b.Filepath), "cover")
}

// CoverMimeType returns the MIME type of the resolved cover image, or "" when
// there is none.
func (b *Book) CoverMimeType() string {
	cover := b.ResolveCoverPath()
	if cover == "" {
		return ""
	}

	switch strings.ToLower(filepath.Ext(cover)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return ""
	}
}
