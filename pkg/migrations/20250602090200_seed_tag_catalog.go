package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	type tagSeed struct {
		name               string
		category           string
		color              string
		requiresPermission string
	}

	var seeds []tagSeed

	// Content ratings. The gated ones hide books from users without the
	// named permission.
	seeds = append(seeds,
		tagSeed{"Everyone", "content-rating", "#2ecc71", ""},
		tagSeed{"Teen", "content-rating", "#f1c40f", ""},
		tagSeed{"Mature", "content-rating", "#e67e22", ""},
		tagSeed{"Adult", "content-rating", "#e74c3c", "content.nsfw"},
		tagSeed{"NSFW", "content-rating", "#c0392b", "content.nsfw"},
		tagSeed{"Restricted", "content-rating", "#8e44ad", "content.restricted"},
	)

	for _, name := range []string{"EPUB", "PDF", "MOBI", "AZW3", "CBR", "CBZ"} {
		seeds = append(seeds, tagSeed{name, "format", "", ""})
	}

	for _, name := range []string{
		"Fiction", "Non-Fiction", "Science Fiction", "Fantasy", "Mystery",
		"Thriller", "Horror", "Romance", "Historical Fiction", "Biography",
		"Memoir", "Self-Help", "Business", "Programming", "Science",
		"Technology", "Mathematics", "Philosophy", "Psychology", "History",
		"Travel", "Poetry", "Drama", "Comics", "Manga", "Young Adult",
		"Children",
	} {
		seeds = append(seeds, tagSeed{name, "genre", "", ""})
	}

	seeds = append(seeds,
		tagSeed{"Series", "collection", "", ""},
		tagSeed{"Standalone", "collection", "", ""},
	)

	seeds = append(seeds,
		tagSeed{"New", "status", "", ""},
		tagSeed{"Updated", "status", "", ""},
	)

	for _, name := range []string{
		"English", "Japanese", "French", "German", "Spanish", "Italian",
		"Portuguese", "Russian", "Chinese", "Korean",
	} {
		seeds = append(seeds, tagSeed{name, "language", "", ""})
	}

	up := func(_ context.Context, db *bun.DB) error {
		for _, s := range seeds {
			var color, requires interface{}
			if s.color != "" {
				color = s.color
			}
			if s.requiresPermission != "" {
				requires = s.requiresPermission
			}
			_, err := db.Exec(
				`INSERT INTO tags (name, category, color, requires_permission) VALUES (?, ?, ?, ?)`,
				s.name, s.category, color, requires,
			)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, s := range seeds {
			_, err := db.Exec(`DELETE FROM tags WHERE name = ?`, s.name)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
