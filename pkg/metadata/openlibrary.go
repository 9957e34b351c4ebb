package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/codexlibris/codex/pkg/identifiers"
)

const openLibraryBaseURL = "https://openlibrary.org"

// OpenLibrary queries the Open Library books and search APIs. No key needed.
type OpenLibrary struct {
	baseURL string
	client  *http.Client
}

func NewOpenLibrary() *OpenLibrary {
	return &OpenLibrary{
		baseURL: openLibraryBaseURL,
		client:  &http.Client{},
	}
}

func (o *OpenLibrary) Name() string {
	return "open_library"
}

type openLibraryBook struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Authors  []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Publishers []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	PublishDate   string `json:"publish_date"`
	NumberOfPages int    `json:"number_of_pages"`
	Subjects      []struct {
		Name string `json:"name"`
	} `json:"subjects"`
	Cover struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"cover"`
	Identifiers struct {
		ISBN10 []string `json:"isbn_10"`
		ISBN13 []string `json:"isbn_13"`
	} `json:"identifiers"`
}

func (o *OpenLibrary) LookupByISBN(ctx context.Context, isbn string) (*BookMetadata, error) {
	bibkey := "ISBN:" + isbn

	params := url.Values{}
	params.Set("bibkeys", bibkey)
	params.Set("format", "json")
	params.Set("jscmd", "data")

	// The response is keyed by the requested bibkey; a miss is just an
	// empty object.
	response := map[string]openLibraryBook{}
	if err := fetchJSON(ctx, o.client, o.baseURL+"/api/books?"+params.Encode(), &response); err != nil {
		return nil, err
	}

	book, ok := response[bibkey]
	if !ok {
		return nil, nil
	}

	md := normalizeOpenLibraryBook(book)
	if md.IsEmpty() {
		return nil, nil
	}

	return md, nil
}

type openLibrarySearchResponse struct {
	NumFound int `json:"numFound"`
	Docs     []struct {
		Title               string   `json:"title"`
		Subtitle            string   `json:"subtitle"`
		AuthorName          []string `json:"author_name"`
		FirstPublishYear    int      `json:"first_publish_year"`
		Publisher           []string `json:"publisher"`
		ISBN                []string `json:"isbn"`
		Language            []string `json:"language"`
		CoverID             int      `json:"cover_i"`
		NumberOfPagesMedian int      `json:"number_of_pages_median"`
		Subject             []string `json:"subject"`
	} `json:"docs"`
}

func (o *OpenLibrary) LookupByTitle(ctx context.Context, title, author string) ([]*BookMetadata, error) {
	params := url.Values{}
	params.Set("title", title)
	if author != "" {
		params.Set("author", author)
	}
	params.Set("limit", "5")

	response := openLibrarySearchResponse{}
	if err := fetchJSON(ctx, o.client, o.baseURL+"/search.json?"+params.Encode(), &response); err != nil {
		return nil, err
	}

	results := make([]*BookMetadata, 0, len(response.Docs))
	for _, doc := range response.Docs {
		md := &BookMetadata{
			Title:      strings.TrimSpace(doc.Title),
			Subtitle:   strings.TrimSpace(doc.Subtitle),
			Authors:    doc.AuthorName,
			Categories: capSubjects(doc.Subject),
		}
		if doc.FirstPublishYear > 0 {
			md.PublishedDate = fmt.Sprintf("%d", doc.FirstPublishYear)
		}
		if len(doc.Publisher) > 0 {
			md.Publisher = doc.Publisher[0]
		}
		if len(doc.Language) > 0 {
			md.Language = fromMARCLanguage(doc.Language[0])
		}
		if doc.NumberOfPagesMedian > 0 {
			md.PageCount = doc.NumberOfPagesMedian
		}
		if doc.CoverID > 0 {
			md.CoverURL = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", doc.CoverID)
		}
		for _, raw := range doc.ISBN {
			value := identifiers.NormalizeISBN(raw)
			if md.ISBN13 == "" && identifiers.ValidateISBN13(value) {
				md.ISBN13 = value
			}
			if md.ISBN10 == "" && identifiers.ValidateISBN10(value) {
				md.ISBN10 = value
			}
		}

		if !md.IsEmpty() {
			results = append(results, md)
		}
	}

	return results, nil
}

func normalizeOpenLibraryBook(book openLibraryBook) *BookMetadata {
	md := &BookMetadata{
		Title:         strings.TrimSpace(book.Title),
		Subtitle:      strings.TrimSpace(book.Subtitle),
		PublishedDate: normalizePublishedDate(book.PublishDate),
	}

	for _, a := range book.Authors {
		if a.Name != "" {
			md.Authors = append(md.Authors, a.Name)
		}
	}
	if len(book.Publishers) > 0 {
		md.Publisher = book.Publishers[0].Name
	}
	if book.NumberOfPages > 0 {
		md.PageCount = book.NumberOfPages
	}

	subjects := make([]string, 0, len(book.Subjects))
	for _, s := range book.Subjects {
		if s.Name != "" {
			subjects = append(subjects, s.Name)
		}
	}
	md.Categories = capSubjects(subjects)

	switch {
	case book.Cover.Large != "":
		md.CoverURL = book.Cover.Large
	case book.Cover.Medium != "":
		md.CoverURL = book.Cover.Medium
	case book.Cover.Small != "":
		md.CoverURL = book.Cover.Small
	}

	for _, raw := range book.Identifiers.ISBN13 {
		if value := identifiers.NormalizeISBN(raw); identifiers.ValidateISBN13(value) {
			md.ISBN13 = value
			break
		}
	}
	for _, raw := range book.Identifiers.ISBN10 {
		if value := identifiers.NormalizeISBN(raw); identifiers.ValidateISBN10(value) {
			md.ISBN10 = value
			break
		}
	}

	return md
}

// capSubjects keeps subject lists to a sane size. Open Library subjects run
// into the hundreds for popular works.
func capSubjects(subjects []string) []string {
	const max = 10
	if len(subjects) > max {
		return subjects[:max]
	}
	return subjects
}

// marcLanguages maps the MARC codes Open Library search results use to the
// two-letter codes the rest of the catalog stores.
var marcLanguages = map[string]string{
	"eng": "en",
	"fre": "fr",
	"ger": "de",
	"spa": "es",
	"ita": "it",
	"jpn": "ja",
	"por": "pt",
	"rus": "ru",
	"chi": "zh",
	"kor": "ko",
}

func fromMARCLanguage(code string) string {
	if mapped, ok := marcLanguages[strings.ToLower(code)]; ok {
		return mapped
	}
	return code
}
