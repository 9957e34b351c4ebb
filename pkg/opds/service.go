package opds

import (
	"context"
	"fmt"
	"net/url"

	"github.com/codexlibris/codex/pkg/books"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/codexlibris/codex/pkg/permissions"
	"github.com/uptrace/bun"
)

// Service builds OPDS feeds over the catalog.
type Service struct {
	bookService *books.Service
}

func NewService(db *bun.DB) *Service {
	return &Service{
		bookService: books.NewService(db),
	}
}

// BuildRootFeed builds the root navigation feed.
func (svc *Service) BuildRootFeed(baseURL string) *Feed {
	feed := NewFeed(baseURL, "Codex")
	feed.Author = &Author{Name: "Codex"}

	feed.AddLink(RelSelf, baseURL, MimeTypeNavigation)
	feed.AddLink(RelStart, baseURL, MimeTypeNavigation)
	feed.AddLink(RelSearch, baseURL+"/opensearch.xml", MimeTypeOpenSearch)

	entry := NewEntry(baseURL+"/books", "All Books")
	entry.Content = &Content{Type: "text", Value: "Every book on the shelf"}
	entry.AddLink(RelSubsection, baseURL+"/books", MimeTypeAcquisition)
	feed.AddEntry(entry)

	return feed
}

// BuildBooksFeed builds the acquisition feed, optionally narrowed by a
// search query. Gated and archived books never appear.
func (svc *Service) BuildBooksFeed(ctx context.Context, baseURL string, set *permissions.Set, query string, limit, offset int) (*Feed, error) {
	opts := books.ListBooksOptions{
		Limit:  &limit,
		Offset: &offset,
		Set:    set,
	}
	if query != "" {
		opts.Search = &query
	}

	result, total, err := svc.bookService.ListBooksWithTotal(ctx, opts)
	if err != nil {
		return nil, err
	}

	title := "All Books"
	queryParam := ""
	if query != "" {
		title = "Search: " + query
		queryParam = "q=" + url.QueryEscape(query)
	}

	feed := NewFeed(baseURL+"/books", title)
	feed.Author = &Author{Name: "Codex"}

	feed.AddLink(RelSelf, pagedURL(baseURL+"/books", queryParam, limit, offset), MimeTypeAcquisition)
	feed.AddLink(RelStart, baseURL, MimeTypeNavigation)
	feed.AddLink(RelUp, baseURL, MimeTypeNavigation)
	feed.AddLink(RelSearch, baseURL+"/opensearch.xml", MimeTypeOpenSearch)

	addPaginationLinks(feed, baseURL+"/books", queryParam, limit, offset, total)

	for _, book := range result {
		feed.AddEntry(bookToEntry(baseURL, book))
	}

	return feed, nil
}

// BuildOpenSearchDescription builds the OpenSearch document advertised on
// every feed's search link.
func (svc *Service) BuildOpenSearchDescription(baseURL string) *OpenSearchDescription {
	return NewOpenSearchDescription(
		"Codex",
		"Search the Codex catalog",
		baseURL+"/books?q={searchTerms}",
	)
}

// bookToEntry converts a book row to an OPDS acquisition entry.
func bookToEntry(baseURL string, book *models.Book) Entry {
	entry := NewEntry(fmt.Sprintf("urn:codex:book:%d", book.ID), book.Name)
	entry.Updated = book.UpdatedAt
	created := book.CreatedAt
	entry.Published = &created

	if book.Author != nil {
		entry.Authors = append(entry.Authors, Author{Name: book.Author.Name})
	}
	if book.Description != nil && *book.Description != "" {
		entry.Content = &Content{Type: "text", Value: *book.Description}
	}
	if book.Publisher != nil {
		entry.Publisher = *book.Publisher
	}
	if book.PublicationDate != nil {
		entry.Issued = *book.PublicationDate
	}
	if book.ISBN != nil {
		entry.Identifier = "urn:isbn:" + *book.ISBN
	}
	for _, tag := range book.Tags {
		if tag.Category == models.TagCategoryLanguage {
			entry.Language = tag.Name
			break
		}
	}

	if book.ResolveCoverPath() != "" {
		coverURL := fmt.Sprintf("%s/books/%d/cover", baseURL, book.ID)
		entry.AddImageLink(coverURL, book.CoverMimeType())
		entry.AddThumbnailLink(coverURL, book.CoverMimeType())
	}

	downloadURL := fmt.Sprintf("%s/books/%d/download", baseURL, book.ID)
	entry.AddAcquisitionLink(downloadURL, FormatMimeType(book.FileFormat))

	return entry
}

// addPaginationLinks adds previous/next/first/last links to a feed. query
// carries any extra parameters (already escaped) through the pages.
func addPaginationLinks(feed *Feed, baseURL, query string, limit, offset, total int) {
	if offset > 0 {
		prevOffset := offset - limit
		if prevOffset < 0 {
			prevOffset = 0
		}
		feed.AddLink(RelPrevious, pagedURL(baseURL, query, limit, prevOffset), MimeTypeAcquisition)
		feed.AddLink(RelFirst, pagedURL(baseURL, query, limit, 0), MimeTypeAcquisition)
	}
	if offset+limit < total {
		feed.AddLink(RelNext, pagedURL(baseURL, query, limit, offset+limit), MimeTypeAcquisition)
		lastOffset := ((total - 1) / limit) * limit
		feed.AddLink(RelLast, pagedURL(baseURL, query, limit, lastOffset), MimeTypeAcquisition)
	}
}

func pagedURL(baseURL, query string, limit, offset int) string {
	if query != "" {
		return fmt.Sprintf("%s?%s&limit=%d&offset=%d", baseURL, query, limit, offset)
	}
	return fmt.Sprintf("%s?limit=%d&offset=%d", baseURL, limit, offset)
}
