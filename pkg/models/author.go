package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

type Author struct {
	bun.BaseModel `bun:"table:authors,alias:a"`

	ID          int       `bun:",pk,nullzero" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `bun:",nullzero" json:"name"`
	SortName    string    `bun:",nullzero" json:"sort_name,omitempty"`
	Biography   *string   `json:"biography,omitempty"`
	BirthDate   *string   `json:"birth_date,omitempty"`
	DeathDate   *string   `json:"death_date,omitempty"`
	Nationality *string   `json:"nationality,omitempty"`
	Website     *string   `json:"website,omitempty"`
	Aliases     string    `bun:",nullzero" json:"-"`
	Genres      string    `bun:",nullzero" json:"-"`

	AliasesParsed []string `bun:"-" json:"aliases,omitempty"`
	GenresParsed  []string `bun:"-" json:"genres,omitempty"`
	BookCount     int      `bun:",scanonly" json:"book_count"`
}

// UnmarshalLists hydrates the parsed alias and genre slices from their raw
// JSON columns.
func (a *Author) UnmarshalLists() error {
	if a.Aliases != "" {
		if err := json.Unmarshal([]byte(a.Aliases), &a.AliasesParsed); err != nil {
			return errors.WithStack(err)
		}
	}
	if a.Genres != "" {
		if err := json.Unmarshal([]byte(a.Genres), &a.GenresParsed); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// MarshalLists serializes the parsed alias and genre slices back into their
// raw JSON columns before persisting.
func (a *Author) MarshalLists() error {
	if len(a.AliasesParsed) > 0 {
		b, err := json.Marshal(a.AliasesParsed)
		if err != nil {
			return errors.WithStack(err)
		}
		a.Aliases = string(b)
	}
	if len(a.GenresParsed) > 0 {
		b, err := json.Marshal(a.GenresParsed)
		if err != nil {
			return errors.WithStack(err)
		}
		a.Genres = string(b)
	}
	return nil
}
