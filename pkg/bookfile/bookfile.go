// Package bookfile detects supported book formats and extracts embedded
// metadata from them. Extraction is best-effort per format: a damaged or
// sparse file yields sparse metadata, not an error, so a scan can always fall
// back to path-derived fields.
package bookfile

import (
	"path/filepath"
	"strings"

	"github.com/codexlibris/codex/pkg/identifiers"
	"github.com/pkg/errors"
)

// Supported book formats, stored on books.file_format.
const (
	FormatPDF  = "pdf"
	FormatEPUB = "epub"
	FormatMOBI = "mobi"
	FormatAZW3 = "azw3"
	FormatCBR  = "cbr"
	FormatCBZ  = "cbz"
)

var formatsByExtension = map[string]string{
	".pdf":  FormatPDF,
	".epub": FormatEPUB,
	".mobi": FormatMOBI,
	".azw3": FormatAZW3,
	".cbr":  FormatCBR,
	".cbz":  FormatCBZ,
}

// DetectFormat returns the book format for a path based on its extension, or
// "" when the extension is not a supported book format.
func DetectFormat(path string) string {
	return formatsByExtension[strings.ToLower(filepath.Ext(path))]
}

// IsSupported reports whether path has a supported book extension.
func IsSupported(path string) bool {
	return DetectFormat(path) != ""
}

// Identifier is a single identifier parsed from file metadata.
type Identifier struct {
	Type  identifiers.Type
	Value string
}

// Metadata holds the fields extracted from a book file. Fields a format does
// not carry stay zero.
type Metadata struct {
	Title           string
	Authors         []string
	Description     string
	Publisher       string
	PublicationDate string
	Language        string
	Series          string
	SeriesNumber    *float64
	Genres          []string
	AgeRating       string
	PageCount       *int
	Identifiers     []Identifier
	CoverData       []byte
	CoverMimeType   string

	// Source is the format whose parser produced this metadata.
	Source string
}

// Extract parses metadata from the book file at path. The returned error is
// reserved for unreadable files and unsupported formats; malformed metadata
// inside a readable file degrades to empty fields.
func Extract(path string) (*Metadata, error) {
	format := DetectFormat(path)

	var (
		md  *Metadata
		err error
	)
	switch format {
	case FormatEPUB:
		md, err = ParseEPUB(path)
	case FormatPDF:
		md, err = ParsePDF(path)
	case FormatCBZ:
		md, err = ParseCBZ(path)
	case FormatCBR:
		// No rar support; the path and filename supply what they can.
		md = &Metadata{}
	case FormatMOBI, FormatAZW3:
		md, err = ParseMOBI(path)
	default:
		return nil, errors.Errorf("unsupported book format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	md.Source = format
	return md, nil
}

// ISBN returns the ISBN among the parsed identifiers, preferring ISBN-13 over
// ISBN-10. Returns "" when the file carried no valid ISBN.
func (m *Metadata) ISBN() string {
	isbn10 := ""
	for _, id := range m.Identifiers {
		switch id.Type {
		case identifiers.TypeISBN13:
			return id.Value
		case identifiers.TypeISBN10:
			if isbn10 == "" {
				isbn10 = id.Value
			}
		}
	}
	return isbn10
}

// CoverExtension returns the file extension matching the cover MIME type, or
// "" when there is no cover.
func (m *Metadata) CoverExtension() string {
	switch m.CoverMimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	return ""
}
