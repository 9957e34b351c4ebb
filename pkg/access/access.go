// Package access decides which books a user may see. A tag can gate the
// books carrying it behind a permission; anyone without that permission
// never sees those books, in listings or in detail lookups.
package access

import (
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/uptrace/bun"
)

// Decision is the outcome of an access check. MissingPermission is set only
// on denial and names the gate the caller lacks without revealing anything
// else about the book.
type Decision struct {
	Allowed           bool
	MissingPermission string
}

// CanAccess checks every gated tag on the book against the user's effective
// permissions. The book's tags must already be loaded.
func CanAccess(set *permissions.Set, book *models.Book) Decision {
	for _, tag := range book.Tags {
		if !tag.IsGated() {
			continue
		}
		if !set.Has(*tag.RequiresPermission) {
			return Decision{MissingPermission: *tag.RequiresPermission}
		}
	}
	return Decision{Allowed: true}
}

// ApplyVisibility narrows a books query to rows the permission set may see.
// A single anti-join keeps gated books out instead of filtering row by row
// after the fact.
func ApplyVisibility(q *bun.SelectQuery, set *permissions.Set) *bun.SelectQuery {
	if set.IsAdmin() {
		return q
	}

	names := set.Names()
	if len(names) == 0 {
		return q.Where(`NOT EXISTS (
			SELECT 1 FROM book_tags bt
			JOIN tags gate ON gate.id = bt.tag_id
			WHERE bt.book_id = b.id AND gate.requires_permission IS NOT NULL
		)`)
	}

	return q.Where(`NOT EXISTS (
		SELECT 1 FROM book_tags bt
		JOIN tags gate ON gate.id = bt.tag_id
		WHERE bt.book_id = b.id
			AND gate.requires_permission IS NOT NULL
			AND gate.requires_permission NOT IN (?)
	)`, bun.In(names))
}
