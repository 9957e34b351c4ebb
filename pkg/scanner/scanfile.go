package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/codexlibris/codex/pkg/authors"
	"github.com/codexlibris/codex/pkg/bookfile"
	"github.com/codexlibris/codex/pkg/books"
	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/codexlibris/codex/pkg/fileutils"
	"github.com/codexlibris/codex/pkg/metadata"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/scanlog"
	"github.com/codexlibris/codex/pkg/sidecar"
	"github.com/codexlibris/codex/pkg/tags"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// outcome classifies what one file's scan did to the catalog.
type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeIndexed
	outcomeUpdated
)

// scanFile runs the pipeline for one file. The filepath lock serializes the
// read-modify-write on the book row against another worker holding the same
// path.
func (svc *Service) scanFile(ctx context.Context, root, path string, external bool, slog *scanlog.Logger) (outcome, error) {
	unlock := svc.filepathLocks.lock(path)
	defer unlock()

	rec, err := svc.buildRecord(ctx, root, path, external, slog)
	if err != nil {
		return outcomeSkipped, err
	}

	author, err := svc.ensureAuthor(ctx, rec)
	if err != nil {
		return outcomeSkipped, err
	}

	return svc.upsertBook(ctx, root, path, rec, author, slog)
}

// buildRecord gathers every metadata source for one file and fuses them.
// Extraction and sidecar problems degrade to empty sources; only a failed
// stat is an error, because a file that vanished mid-walk has nothing left
// to index.
func (svc *Service) buildRecord(ctx context.Context, root, path string, external bool, slog *scanlog.Logger) (*record, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	fileMeta, err := bookfile.Extract(path)
	if err != nil {
		slog.Warn("failed to extract file metadata", logger.Data{"path": path, "error": err.Error()})
		fileMeta = &bookfile.Metadata{}
	}

	side, err := sidecar.Read(path)
	if err != nil {
		slog.Warn("failed to read sidecar", logger.Data{"path": path, "error": err.Error()})
		side = nil
	}

	var ext *metadata.BookMetadata
	if external {
		ext = svc.resolveExternal(ctx, root, path, side, fileMeta)
	}

	rec := fuseRecord(root, path, ext, side, fileMeta)
	rec.FileSize = info.Size()
	return rec, nil
}

// resolveExternal queries the external catalogs when the file yielded an
// identifier, falling back to a title search when the identifier lookup comes
// home empty. Files with no identifier are not looked up at all; title-only
// matches are too loose to trust unprompted.
func (svc *Service) resolveExternal(ctx context.Context, root, path string, side *sidecar.Sidecar, fileMeta *bookfile.Metadata) *metadata.BookMetadata {
	isbn := lookupISBN(path, side, fileMeta)
	if isbn == "" {
		return nil
	}

	if md := svc.resolver.ResolveByISBN(ctx, isbn); md != nil {
		return md
	}

	sideTitle, sideAuthor := "", ""
	if side != nil {
		sideTitle = side.Title
		sideAuthor = firstName(side.Authors)
	}
	title := firstNonEmpty(sideTitle, fileMeta.Title, titleFromPath(root, path))
	author := firstNonEmpty(sideAuthor, firstName(fileMeta.Authors), authorFromPath(root, path))

	return svc.resolver.ResolveByTitle(ctx, title, author)
}

// ensureAuthor resolves the record's author row, creating it on first sight
// and filling a still-empty genre list from the external result. The name
// lock covers the read-modify-write; the unique constraint is the backstop
// for writers outside this process.
func (svc *Service) ensureAuthor(ctx context.Context, rec *record) (*models.Author, error) {
	unlock := svc.authorLocks.lock(strings.ToLower(rec.AuthorName))
	defer unlock()

	author, err := svc.bookService.FindOrCreateAuthor(ctx, rec.AuthorName)
	if err != nil {
		return nil, err
	}

	if rec.External == nil || len(rec.External.Categories) == 0 || author.Genres != "" {
		return author, nil
	}

	author.GenresParsed = rec.External.Categories
	err = svc.authorService.UpdateAuthor(ctx, author, authors.UpdateAuthorOptions{Columns: []string{"genres"}})
	if err != nil {
		return nil, err
	}

	return author, nil
}

// upsertBook persists the fused record, keyed by the unique filepath.
func (svc *Service) upsertBook(ctx context.Context, root, path string, rec *record, author *models.Author, slog *scanlog.Logger) (outcome, error) {
	existing, err := svc.bookService.RetrieveBook(ctx, books.RetrieveBookOptions{
		Filepath:        &path,
		IncludeArchived: true,
	})
	if err != nil && !errors.Is(err, errcodes.NotFound("Book")) {
		return outcomeSkipped, err
	}

	if existing == nil {
		return svc.createBook(ctx, path, rec, author, slog)
	}
	return svc.updateBook(ctx, existing, root, path, rec, author, slog)
}

func (svc *Service) createBook(ctx context.Context, path string, rec *record, author *models.Author, slog *scanlog.Logger) (outcome, error) {
	book := &models.Book{
		Name:       rec.Title,
		Filepath:   path,
		AuthorID:   author.ID,
		FileFormat: rec.Format,
		FileSize:   &rec.FileSize,
		PageCount:  rec.PageCount,
	}
	if rec.ISBN != "" {
		book.ISBN = &rec.ISBN
	}
	if rec.Description != "" {
		book.Description = &rec.Description
	}
	if rec.Publisher != "" {
		book.Publisher = &rec.Publisher
	}
	if rec.PublicationDate != "" {
		book.PublicationDate = &rec.PublicationDate
	}
	if coverPath := svc.saveCover(path, rec, slog); coverPath != "" {
		book.CoverPath = &coverPath
	}

	if err := svc.bookService.CreateBook(ctx, book); err != nil {
		return outcomeSkipped, err
	}

	applied, err := svc.applyTags(ctx, book.ID, rec)
	if err != nil {
		slog.Warn("failed to auto-apply tags", logger.Data{"book_id": book.ID, "error": err.Error()})
	}

	slog.Info("indexed new book", logger.Data{
		"book_id": book.ID,
		"path":    path,
		"title":   book.Name,
		"author":  author.Name,
		"tags":    strings.Join(applied, ", "),
	})

	return outcomeIndexed, nil
}

// updateBook fills empty columns and replaces values only where the fused
// record is strictly more specific: a longer description, a page count where
// none was known, a real title over a path-derived one. Everything else on
// the row is left alone, so manual edits survive rescans.
func (svc *Service) updateBook(ctx context.Context, book *models.Book, root, path string, rec *record, author *models.Author, slog *scanlog.Logger) (outcome, error) {
	columns := []string{}

	pathTitle := titleFromPath(root, path)
	if rec.Title != book.Name && book.Name == pathTitle && rec.Title != pathTitle {
		book.Name = rec.Title
		columns = append(columns, "name")
	}

	if book.AuthorID != author.ID && rec.AuthorName != unknownAuthor &&
		book.Author != nil && book.Author.Name == unknownAuthor {
		book.AuthorID = author.ID
		book.Author = author
		columns = append(columns, "author_id")
	}

	if book.ISBN == nil && rec.ISBN != "" {
		book.ISBN = &rec.ISBN
		columns = append(columns, "isbn")
	}
	if rec.Description != "" && (book.Description == nil || len(rec.Description) > len(*book.Description)) {
		book.Description = &rec.Description
		columns = append(columns, "description")
	}
	if book.Publisher == nil && rec.Publisher != "" {
		book.Publisher = &rec.Publisher
		columns = append(columns, "publisher")
	}
	if book.PublicationDate == nil && rec.PublicationDate != "" {
		book.PublicationDate = &rec.PublicationDate
		columns = append(columns, "publication_date")
	}
	if book.PageCount == nil && rec.PageCount != nil {
		book.PageCount = rec.PageCount
		columns = append(columns, "page_count")
	}
	if rec.FileSize > 0 && (book.FileSize == nil || *book.FileSize != rec.FileSize) {
		book.FileSize = &rec.FileSize
		columns = append(columns, "file_size")
	}
	if rec.Format != "" && book.FileFormat != rec.Format {
		book.FileFormat = rec.Format
		columns = append(columns, "file_format")
	}

	if coverPath := svc.saveCover(path, rec, slog); coverPath != "" {
		if book.CoverPath == nil || *book.CoverPath != coverPath {
			book.CoverPath = &coverPath
			columns = append(columns, "cover_path")
		}
	}

	if len(columns) > 0 {
		if err := svc.bookService.UpdateBook(ctx, book, books.UpdateBookOptions{Columns: columns}); err != nil {
			return outcomeSkipped, err
		}
	}

	existingTags := make(map[string]bool, len(book.Tags))
	for _, t := range book.Tags {
		existingTags[t.Name] = true
	}

	applied, err := svc.applyTags(ctx, book.ID, rec)
	if err != nil {
		slog.Warn("failed to auto-apply tags", logger.Data{"book_id": book.ID, "error": err.Error()})
	}
	newTags := 0
	for _, name := range applied {
		if !existingTags[name] {
			newTags++
		}
	}

	if len(columns) == 0 && newTags == 0 {
		return outcomeSkipped, nil
	}

	slog.Info("updated book metadata", logger.Data{
		"book_id":  book.ID,
		"path":     path,
		"columns":  strings.Join(columns, ", "),
		"new_tags": newTags,
	})

	return outcomeUpdated, nil
}

func (svc *Service) applyTags(ctx context.Context, bookID int, rec *record) ([]string, error) {
	return svc.tagService.AutoApply(ctx, bookID, tags.AutoApplyInput{
		Format:         rec.Format,
		MaturityRating: rec.MaturityRating,
		Categories:     rec.Genres,
		Series:         rec.Series,
		Language:       rec.Language,
	})
}

// saveCover writes the extracted cover next to the book as
// <name>.cover.<ext> and returns the path the book row should reference.
// Covers already on disk are never overwritten, so a custom image a user
// dropped in survives every rescan. Returns "" when there is nothing to
// reference beyond the generic cover.<ext> fallback the model already
// resolves on its own.
func (svc *Service) saveCover(path string, rec *record, slog *scanlog.Logger) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dir := filepath.Dir(path)

	if existing := fileutils.CoverExistsWithBaseName(dir, base+".cover"); existing != "" {
		return existing
	}

	if len(rec.CoverData) == 0 || rec.CoverExtension == "" {
		return ""
	}

	// A hand-dropped cover.<ext> in the directory already serves as the
	// fallback image; extraction must not fight it.
	if fileutils.CoverExistsWithBaseName(dir, "cover") != "" {
		return ""
	}

	coverPath := filepath.Join(dir, base+".cover"+rec.CoverExtension)
	if err := fileutils.WriteFileAtomic(coverPath, rec.CoverData, 0644); err != nil {
		slog.Warn("failed to save extracted cover", logger.Data{"path": coverPath, "error": err.Error()})
		return ""
	}

	return coverPath
}
