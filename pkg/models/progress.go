package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ReadingProgress struct {
	bun.BaseModel `bun:"table:reading_progress,alias:rpr"`

	ID                 int       `bun:",pk,nullzero" json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	UserID             int       `bun:",nullzero" json:"user_id"`
	BookID             int       `bun:",nullzero" json:"book_id"`
	CurrentPage        int       `json:"current_page"`
	TotalPages         *int      `json:"total_pages,omitempty"`
	PercentageComplete float64   `json:"percentage_complete"`
	LastReadAt         time.Time `json:"last_read_at"`
	Location           *string   `json:"location,omitempty"`

	Book *Book `bun:"rel:belongs-to,join:book_id=id" json:"book,omitempty"`
}

// IsCompleted reports whether the book has been read to the end.
func (rp *ReadingProgress) IsCompleted() bool {
	return rp.PercentageComplete >= 100
}

// IsInProgress reports whether reading has started but not finished.
func (rp *ReadingProgress) IsInProgress() bool {
	return rp.PercentageComplete > 0 && rp.PercentageComplete < 100
}
