package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		permissions := []struct {
			name         string
			resourceType string
			description  string
		}{
			{"admin.full", "system", "Full administrative access"},
			{"books.read", "books", "Browse and read books"},
			{"books.write", "books", "Edit book metadata and tags"},
			{"books.manage", "books", "Archive, restore, and trigger scans"},
			{"genres.read", "genres", "Browse genres"},
			{"genres.write", "genres", "Edit genre tags"},
			{"genres.manage", "genres", "Manage the genre catalog"},
			{"users.read", "users", "View user accounts"},
			{"users.write", "users", "Edit user accounts"},
			{"users.manage", "users", "Manage accounts, roles, and grants"},
			{"content.nsfw", "content", "View NSFW-tagged content"},
			{"content.restricted", "content", "View restricted content"},
		}
		for _, p := range permissions {
			_, err := db.Exec(
				`INSERT INTO permissions (name, resource_type, description) VALUES (?, ?, ?)`,
				p.name, p.resourceType, p.description,
			)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		roles := []struct {
			name        string
			description string
			permissions []string
		}{
			{
				"admin",
				"Full access to everything",
				[]string{"admin.full"},
			},
			{
				"librarian",
				"Curates the catalog and sees all content",
				[]string{
					"books.read", "books.write", "books.manage",
					"genres.read", "genres.write", "genres.manage",
					"users.read",
					"content.nsfw", "content.restricted",
				},
			},
			{
				"user",
				"Reads books and tracks progress",
				[]string{"books.read", "genres.read"},
			},
			{
				"guest",
				"Browse-only access, restricted by tag gates",
				[]string{"books.read"},
			},
		}
		for _, r := range roles {
			_, err := db.Exec(
				`INSERT INTO roles (name, description, is_system) VALUES (?, ?, TRUE)`,
				r.name, r.description,
			)
			if err != nil {
				return errors.WithStack(err)
			}

			var roleID int
			err = db.QueryRow(`SELECT id FROM roles WHERE name = ?`, r.name).Scan(&roleID)
			if err != nil {
				return errors.WithStack(err)
			}

			for _, permission := range r.permissions {
				_, err = db.Exec(
					`INSERT INTO role_permissions (role_id, permission_id)
					 SELECT ?, id FROM permissions WHERE name = ?`,
					roleID, permission,
				)
				if err != nil {
					return errors.WithStack(err)
				}
			}
		}

		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`DELETE FROM role_permissions`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`DELETE FROM roles WHERE is_system = TRUE`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`DELETE FROM permissions`)
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
