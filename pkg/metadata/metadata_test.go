package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePublishedDate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"2021-06-26", "2021-06-26"},
		{"2021-06", "2021-06"},
		{"2021", "2021"},
		{"Aug 01, 1965", "1965-08-01"},
		{"August 1, 1965", "1965-08-01"},
		{"26 June 2021", "2021-06-26"},
		{"June 2021", "2021-06"},
		{"Jun 2021", "2021-06"},
		{"2021-06-26T00:00:00Z", "2021-06-26"},
		{"  1984  ", "1984"},
		{"sometime in the 90s", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizePublishedDate(tt.input))
		})
	}
}

func TestBookMetadataISBN(t *testing.T) {
	assert.Equal(t, "9780441172719", (&BookMetadata{ISBN13: "9780441172719", ISBN10: "0441172717"}).ISBN())
	assert.Equal(t, "0441172717", (&BookMetadata{ISBN10: "0441172717"}).ISBN())
	assert.Equal(t, "", (&BookMetadata{}).ISBN())

	var m *BookMetadata
	assert.Equal(t, "", m.ISBN())
}

func TestBookMetadataIsEmpty(t *testing.T) {
	var m *BookMetadata
	assert.True(t, m.IsEmpty())
	assert.True(t, (&BookMetadata{}).IsEmpty())
	assert.False(t, (&BookMetadata{Title: "Dune"}).IsEmpty())
	assert.False(t, (&BookMetadata{PageCount: 412}).IsEmpty())
	assert.False(t, (&BookMetadata{CoverURL: "https://example.com/c.jpg"}).IsEmpty())
}

func TestFillFromKeepsExistingValues(t *testing.T) {
	num := 2.0
	primary := &BookMetadata{
		Title:     "Dune",
		Authors:   []string{"Frank Herbert"},
		PageCount: 412,
	}
	fallback := &BookMetadata{
		Title:         "Dune (Reissue)",
		Publisher:     "Ace",
		PublishedDate: "1990-09-01",
		PageCount:     896,
		SeriesNumber:  &num,
	}

	primary.fillFrom(fallback)

	assert.Equal(t, "Dune", primary.Title)
	assert.Equal(t, []string{"Frank Herbert"}, primary.Authors)
	assert.Equal(t, 412, primary.PageCount)
	assert.Equal(t, "Ace", primary.Publisher)
	assert.Equal(t, "1990-09-01", primary.PublishedDate)
	assert.Equal(t, &num, primary.SeriesNumber)
}

func TestFuse(t *testing.T) {
	first := &BookMetadata{Title: "Hyperion"}
	second := &BookMetadata{Title: "Hyperion Cantos", Publisher: "Doubleday"}

	fused := fuse(nil, first)
	fused = fuse(fused, second)
	assert.Equal(t, "Hyperion", fused.Title)
	assert.Equal(t, "Doubleday", fused.Publisher)

	assert.Nil(t, fuse(nil, nil))
	assert.Equal(t, first, fuse(first, nil))
	assert.Equal(t, first, fuse(first, &BookMetadata{}))
}
