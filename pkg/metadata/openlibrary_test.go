package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenLibraryLookupByISBN(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/books", r.URL.Path)
		assert.Equal(t, "ISBN:9780441172719", r.URL.Query().Get("bibkeys"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "data", r.URL.Query().Get("jscmd"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"ISBN:9780441172719": {
				"title": "Dune",
				"authors": [{"name": "Frank Herbert"}],
				"publishers": [{"name": "Ace Books"}],
				"publish_date": "Aug 01, 1965",
				"number_of_pages": 412,
				"subjects": [{"name": "Science fiction"}, {"name": "Deserts"}],
				"cover": {
					"small": "https://covers.openlibrary.org/b/id/123-S.jpg",
					"large": "https://covers.openlibrary.org/b/id/123-L.jpg"
				},
				"identifiers": {
					"isbn_10": ["0441172717"],
					"isbn_13": ["9780441172719"]
				}
			}
		}`))
	}))
	defer server.Close()

	provider := NewOpenLibrary()
	provider.baseURL = server.URL

	md, err := provider.LookupByISBN(context.Background(), "9780441172719")
	require.NoError(t, err)
	require.NotNil(t, md)
	assert.Equal(t, "Dune", md.Title)
	assert.Equal(t, []string{"Frank Herbert"}, md.Authors)
	assert.Equal(t, "Ace Books", md.Publisher)
	assert.Equal(t, "1965-08-01", md.PublishedDate)
	assert.Equal(t, 412, md.PageCount)
	assert.Equal(t, []string{"Science fiction", "Deserts"}, md.Categories)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/123-L.jpg", md.CoverURL)
	assert.Equal(t, "9780441172719", md.ISBN13)
	assert.Equal(t, "0441172717", md.ISBN10)
}

func TestOpenLibraryLookupByISBN_NoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	provider := NewOpenLibrary()
	provider.baseURL = server.URL

	md, err := provider.LookupByISBN(context.Background(), "9780441172719")
	require.NoError(t, err)
	assert.Nil(t, md)
}

func TestOpenLibraryLookupByTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "The Left Hand of Darkness", r.URL.Query().Get("title"))
		assert.Equal(t, "Ursula K. Le Guin", r.URL.Query().Get("author"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		w.Write([]byte(`{
			"numFound": 1,
			"docs": [{
				"title": "The Left Hand of Darkness",
				"author_name": ["Ursula K. Le Guin"],
				"first_publish_year": 1969,
				"publisher": ["Ace Books", "Walker"],
				"isbn": ["0441007317", "9780441007318"],
				"language": ["eng", "fre"],
				"cover_i": 9255566,
				"number_of_pages_median": 304,
				"subject": ["Science fiction", "Gender"]
			}]
		}`))
	}))
	defer server.Close()

	provider := NewOpenLibrary()
	provider.baseURL = server.URL

	results, err := provider.LookupByTitle(context.Background(), "The Left Hand of Darkness", "Ursula K. Le Guin")
	require.NoError(t, err)
	require.Len(t, results, 1)

	md := results[0]
	assert.Equal(t, "The Left Hand of Darkness", md.Title)
	assert.Equal(t, []string{"Ursula K. Le Guin"}, md.Authors)
	assert.Equal(t, "1969", md.PublishedDate)
	assert.Equal(t, "Ace Books", md.Publisher)
	assert.Equal(t, "en", md.Language)
	assert.Equal(t, 304, md.PageCount)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/9255566-L.jpg", md.CoverURL)
	assert.Equal(t, "9780441007318", md.ISBN13)
	assert.Equal(t, "0441007317", md.ISBN10)
}

func TestOpenLibrarySubjectsCapped(t *testing.T) {
	subjects := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		subjects = append(subjects, fmt.Sprintf(`"Subject %d"`, i))
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"numFound": 1, "docs": [{"title": "Popular", "subject": [%s]}]}`, strings.Join(subjects, ","))
	}))
	defer server.Close()

	provider := NewOpenLibrary()
	provider.baseURL = server.URL

	results, err := provider.LookupByTitle(context.Background(), "Popular", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Categories, 10)
}

func TestOpenLibraryRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := NewOpenLibrary()
	provider.baseURL = server.URL

	_, err := provider.LookupByISBN(context.Background(), "9780441172719")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
}

func TestFromMARCLanguage(t *testing.T) {
	assert.Equal(t, "en", fromMARCLanguage("eng"))
	assert.Equal(t, "ja", fromMARCLanguage("jpn"))
	assert.Equal(t, "en", fromMARCLanguage("ENG"))
	assert.Equal(t, "tlh", fromMARCLanguage("tlh"))
}
