package migrations

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	columns := []struct {
		name string
		typ  string
	}{
		{"biography", "TEXT"},
		{"birth_date", "TEXT"},
		{"death_date", "TEXT"},
		{"nationality", "TEXT"},
		{"website", "TEXT"},
		{"aliases", "TEXT"},
		{"genres", "TEXT"},
	}

	up := func(_ context.Context, db *bun.DB) error {
		for _, col := range columns {
			_, err := db.Exec(fmt.Sprintf(`ALTER TABLE authors ADD COLUMN %s %s`, col.name, col.typ))
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, col := range columns {
			_, err := db.Exec(fmt.Sprintf(`ALTER TABLE authors DROP COLUMN %s`, col.name))
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
