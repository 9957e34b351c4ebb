package users

import (
	"context"

	"github.com/codexlibris/codex/pkg/archive"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/scanlog"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/pointerutil"
)

// Dashboard is the operator overview: who is registered, what is on the
// shelf, what the archive holds, and what the scanner has been doing.
type Dashboard struct {
	Users   DashboardUsers   `json:"users"`
	Catalog DashboardCatalog `json:"catalog"`
	Archive *archive.Stats   `json:"archive"`
	Scans   DashboardScans   `json:"scans"`
}

type DashboardUsers struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// DashboardCatalog counts the active shelf. Genres counts only genre tags
// attached to at least one active book, matching what the genre list shows
// an admin.
type DashboardCatalog struct {
	Books    int            `json:"books"`
	Authors  int            `json:"authors"`
	Genres   int            `json:"genres"`
	ByFormat map[string]int `json:"by_format"`
}

type DashboardScans struct {
	ScanActive bool              `json:"scan_active"`
	Recent     []*models.ScanRun `json:"recent"`
}

func (svc *Service) RetrieveDashboard(ctx context.Context) (*Dashboard, error) {
	dashboard := &Dashboard{}

	var err error
	dashboard.Users.Total, err = svc.db.
		NewSelect().
		Model((*models.User)(nil)).
		Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	dashboard.Users.Active, err = svc.db.
		NewSelect().
		Model((*models.User)(nil)).
		Where("u.is_active = ?", true).
		Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	dashboard.Archive, err = svc.archive.RetrieveStats(ctx)
	if err != nil {
		return nil, err
	}
	// The archive stats already count the active shelf; reusing the number
	// keeps the two sections from ever disagreeing.
	dashboard.Catalog.Books = dashboard.Archive.TotalActive

	dashboard.Catalog.Authors, err = svc.db.
		NewSelect().
		Model((*models.Author)(nil)).
		Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	genreBooks := svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		ColumnExpr("1").
		Join("JOIN book_tags gbt ON gbt.book_id = b.id").
		Where("b.status = ?", models.BookStatusActive).
		Where("gbt.tag_id = t.id")
	dashboard.Catalog.Genres, err = svc.db.
		NewSelect().
		Model((*models.Tag)(nil)).
		Where("t.category = ?", models.TagCategoryGenre).
		Where("EXISTS (?)", genreBooks).
		Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	formats := []struct {
		FileFormat string `bun:"file_format"`
		BookCount  int    `bun:"book_count"`
	}{}
	err = svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		ColumnExpr("b.file_format").
		ColumnExpr("count(*) AS book_count").
		Where("b.status = ?", models.BookStatusActive).
		GroupExpr("b.file_format").
		Scan(ctx, &formats)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	dashboard.Catalog.ByFormat = make(map[string]int, len(formats))
	for _, f := range formats {
		dashboard.Catalog.ByFormat[f.FileFormat] = f.BookCount
	}

	dashboard.Scans.ScanActive, err = svc.scans.HasActiveScan(ctx)
	if err != nil {
		return nil, err
	}

	dashboard.Scans.Recent, err = svc.scans.ListScanRuns(ctx, scanlog.ListScanRunsOptions{Limit: pointerutil.Int(5)})
	if err != nil {
		return nil, err
	}

	return dashboard, nil
}
