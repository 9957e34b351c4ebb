// Package metadata enriches scanned books with data from external catalog
// APIs. Each provider normalizes its responses into a common BookMetadata,
// and a Resolver queries providers in configured order so the primary wins
// and later providers only fill gaps. Provider faults never propagate; the
// worst outcome of a lookup is no enrichment.
package metadata

import (
	"strings"
	"time"
)

// BookMetadata is the provider-agnostic shape every lookup normalizes into.
// Empty fields mean the provider had nothing to say.
type BookMetadata struct {
	Title          string   `json:"title,omitempty"`
	Subtitle       string   `json:"subtitle,omitempty"`
	Authors        []string `json:"authors,omitempty"`
	Publisher      string   `json:"publisher,omitempty"`
	PublishedDate  string   `json:"published_date,omitempty"`
	Description    string   `json:"description,omitempty"`
	PageCount      int      `json:"page_count,omitempty"`
	Categories     []string `json:"categories,omitempty"`
	Language       string   `json:"language,omitempty"`
	AverageRating  float64  `json:"average_rating,omitempty"`
	MaturityRating string   `json:"maturity_rating,omitempty"`
	CoverURL       string   `json:"cover_url,omitempty"`
	Series         string   `json:"series,omitempty"`
	SeriesNumber   *float64 `json:"series_number,omitempty"`
	ISBN10         string   `json:"isbn_10,omitempty"`
	ISBN13         string   `json:"isbn_13,omitempty"`
}

// IsEmpty reports whether the result carries no usable fields at all.
func (m *BookMetadata) IsEmpty() bool {
	if m == nil {
		return true
	}

	return m.Title == "" &&
		m.Subtitle == "" &&
		len(m.Authors) == 0 &&
		m.Publisher == "" &&
		m.PublishedDate == "" &&
		m.Description == "" &&
		m.PageCount == 0 &&
		len(m.Categories) == 0 &&
		m.Language == "" &&
		m.AverageRating == 0 &&
		m.MaturityRating == "" &&
		m.CoverURL == "" &&
		m.Series == "" &&
		m.SeriesNumber == nil &&
		m.ISBN10 == "" &&
		m.ISBN13 == ""
}

// ISBN returns the best identifier the result carries, preferring ISBN-13.
func (m *BookMetadata) ISBN() string {
	if m == nil {
		return ""
	}
	if m.ISBN13 != "" {
		return m.ISBN13
	}
	return m.ISBN10
}

// fillFrom copies fields from other into any field m left empty. Existing
// values are never replaced, which is what gives earlier providers precedence.
func (m *BookMetadata) fillFrom(other *BookMetadata) {
	if other == nil {
		return
	}

	if m.Title == "" {
		m.Title = other.Title
	}
	if m.Subtitle == "" {
		m.Subtitle = other.Subtitle
	}
	if len(m.Authors) == 0 {
		m.Authors = other.Authors
	}
	if m.Publisher == "" {
		m.Publisher = other.Publisher
	}
	if m.PublishedDate == "" {
		m.PublishedDate = other.PublishedDate
	}
	if m.Description == "" {
		m.Description = other.Description
	}
	if m.PageCount == 0 {
		m.PageCount = other.PageCount
	}
	if len(m.Categories) == 0 {
		m.Categories = other.Categories
	}
	if m.Language == "" {
		m.Language = other.Language
	}
	if m.AverageRating == 0 {
		m.AverageRating = other.AverageRating
	}
	if m.MaturityRating == "" {
		m.MaturityRating = other.MaturityRating
	}
	if m.CoverURL == "" {
		m.CoverURL = other.CoverURL
	}
	if m.Series == "" {
		m.Series = other.Series
	}
	if m.SeriesNumber == nil {
		m.SeriesNumber = other.SeriesNumber
	}
	if m.ISBN10 == "" {
		m.ISBN10 = other.ISBN10
	}
	if m.ISBN13 == "" {
		m.ISBN13 = other.ISBN13
	}
}

// publishedDateLayouts maps the date shapes catalogs actually return to the
// canonical form stored on books. Dates that match nothing are dropped so a
// later provider can fill the field with something parseable.
var publishedDateLayouts = []struct {
	parse  string
	format string
}{
	{"2006-01-02", "2006-01-02"},
	{"2006-01", "2006-01"},
	{"2006", "2006"},
	{"January 2, 2006", "2006-01-02"},
	{"Jan 2, 2006", "2006-01-02"},
	{"2 January 2006", "2006-01-02"},
	{"January 2006", "2006-01"},
	{"Jan 2006", "2006-01"},
}

func normalizePublishedDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.IndexByte(raw, 'T'); idx > 0 {
		raw = raw[:idx]
	}
	if raw == "" {
		return ""
	}

	for _, l := range publishedDateLayouts {
		if t, err := time.Parse(l.parse, raw); err == nil {
			return t.Format(l.format)
		}
	}

	return ""
}
