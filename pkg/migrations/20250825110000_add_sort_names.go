package migrations

import (
	"context"

	"github.com/codexlibris/codex/pkg/sortname"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(ctx context.Context, db *bun.DB) error {
		_, err := db.Exec(`ALTER TABLE authors ADD COLUMN sort_name TEXT`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`ALTER TABLE books ADD COLUMN sort_name TEXT`)
		if err != nil {
			return errors.WithStack(err)
		}

		// Backfill rows that predate the column so shelf ordering doesn't
		// have to wait for the next scan.
		authors := []struct {
			ID   int
			Name string
		}{}
		err = db.NewSelect().Table("authors").Column("id", "name").Scan(ctx, &authors)
		if err != nil {
			return errors.WithStack(err)
		}
		for _, author := range authors {
			_, err = db.Exec(`UPDATE authors SET sort_name = ? WHERE id = ?`, sortname.ForAuthor(author.Name), author.ID)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		books := []struct {
			ID   int
			Name string
		}{}
		err = db.NewSelect().Table("books").Column("id", "name").Scan(ctx, &books)
		if err != nil {
			return errors.WithStack(err)
		}
		for _, book := range books {
			_, err = db.Exec(`UPDATE books SET sort_name = ? WHERE id = ?`, sortname.ForTitle(book.Name), book.ID)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`ALTER TABLE authors DROP COLUMN sort_name`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`ALTER TABLE books DROP COLUMN sort_name`)
		if err != nil {
			return errors.WithStack(err)
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
