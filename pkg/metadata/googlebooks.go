package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/codexlibris/codex/pkg/htmlutil"
	"github.com/codexlibris/codex/pkg/identifiers"
)

const googleBooksBaseURL = "https://www.googleapis.com/books/v1"

// GoogleBooks queries the Google Books volumes API. Requests work without an
// API key at a reduced quota, so the key is optional.
type GoogleBooks struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGoogleBooks(apiKey string) *GoogleBooks {
	return &GoogleBooks{
		apiKey:  apiKey,
		baseURL: googleBooksBaseURL,
		client:  &http.Client{},
	}
}

func (g *GoogleBooks) Name() string {
	return "google_books"
}

func (g *GoogleBooks) LookupByISBN(ctx context.Context, isbn string) (*BookMetadata, error) {
	results, err := g.search(ctx, "isbn:"+isbn, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (g *GoogleBooks) LookupByTitle(ctx context.Context, title, author string) ([]*BookMetadata, error) {
	query := fmt.Sprintf("intitle:%q", title)
	if author != "" {
		query += fmt.Sprintf(" inauthor:%q", author)
	}
	return g.search(ctx, query, 5)
}

type googleVolumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo googleVolumeInfo `json:"volumeInfo"`
	} `json:"items"`
}

type googleVolumeInfo struct {
	Title               string   `json:"title"`
	Subtitle            string   `json:"subtitle"`
	Authors             []string `json:"authors"`
	Publisher           string   `json:"publisher"`
	PublishedDate       string   `json:"publishedDate"`
	Description         string   `json:"description"`
	PageCount           int      `json:"pageCount"`
	Categories          []string `json:"categories"`
	AverageRating       float64  `json:"averageRating"`
	MaturityRating      string   `json:"maturityRating"`
	Language            string   `json:"language"`
	IndustryIdentifiers []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"industryIdentifiers"`
	ImageLinks struct {
		Thumbnail      string `json:"thumbnail"`
		SmallThumbnail string `json:"smallThumbnail"`
	} `json:"imageLinks"`
}

func (g *GoogleBooks) search(ctx context.Context, query string, maxResults int) ([]*BookMetadata, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("printType", "books")
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}

	response := googleVolumesResponse{}
	if err := fetchJSON(ctx, g.client, g.baseURL+"/volumes?"+params.Encode(), &response); err != nil {
		return nil, err
	}

	results := make([]*BookMetadata, 0, len(response.Items))
	for _, item := range response.Items {
		if md := normalizeGoogleVolume(item.VolumeInfo); !md.IsEmpty() {
			results = append(results, md)
		}
	}

	return results, nil
}

func normalizeGoogleVolume(vi googleVolumeInfo) *BookMetadata {
	md := &BookMetadata{
		Title:          strings.TrimSpace(vi.Title),
		Subtitle:       strings.TrimSpace(vi.Subtitle),
		Authors:        vi.Authors,
		Publisher:      strings.TrimSpace(vi.Publisher),
		PublishedDate:  normalizePublishedDate(vi.PublishedDate),
		Description:    htmlutil.StripTags(vi.Description),
		Categories:     vi.Categories,
		Language:       vi.Language,
		AverageRating:  vi.AverageRating,
		MaturityRating: vi.MaturityRating,
	}

	if vi.PageCount > 0 {
		md.PageCount = vi.PageCount
	}

	for _, id := range vi.IndustryIdentifiers {
		value := identifiers.NormalizeISBN(id.Identifier)
		switch id.Type {
		case "ISBN_13":
			if identifiers.ValidateISBN13(value) {
				md.ISBN13 = value
			}
		case "ISBN_10":
			if identifiers.ValidateISBN10(value) {
				md.ISBN10 = value
			}
		}
	}

	// Image links come back over plain HTTP.
	if thumb := vi.ImageLinks.Thumbnail; thumb != "" {
		md.CoverURL = strings.Replace(thumb, "http://", "https://", 1)
	}

	return md
}
