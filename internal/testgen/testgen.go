// Package testgen generates book files (EPUB, CBZ, PDF, MOBI) with
// configurable metadata for exercising the extraction and scan pipelines in
// tests.
package testgen

import (
	"os"
	"path/filepath"
	"testing"
)

// EPUBOptions configures the generated EPUB file.
type EPUBOptions struct {
	Title         string
	Authors       []string
	Description   string
	Publisher     string
	Language      string
	Date          string   // dc:date value, e.g. "2008-01-01"
	ISBN          string   // emitted as a dc:identifier with opf:scheme="ISBN"
	Subjects      []string // dc:subject entries
	Series        string
	SeriesNumber  *float64
	HasCover      bool
	CoverMimeType string // "image/jpeg" or "image/png", defaults to "image/png"
}

// CBZOptions configures the generated CBZ file.
type CBZOptions struct {
	Title           string
	Series          string
	SeriesNumber    *float64
	Writer          string
	Summary         string
	Genre           string // comma-separated genre list
	AgeRating       string
	LanguageISO     string
	Year            int
	GTIN            string
	PageCount       int    // number of page images, defaults to 3
	OmitPageCount   bool   // leave the PageCount element out of ComicInfo.xml
	HasComicInfo    bool   // whether to include ComicInfo.xml
	CoverPageType   string // "FrontCover", "InnerCover", or "" (none specified)
	CoverPageIndex  int    // which page carries CoverPageType
	ImageFormat     string // "png" or "jpeg", defaults to "png"
	ForceEmptyTitle bool   // write an empty <Title></Title> element
}

// PDFOptions configures the generated PDF file.
type PDFOptions struct {
	Title     string
	Author    string
	Subject   string
	PageCount int // defaults to 1
}

// MOBIOptions configures the generated MOBI file.
type MOBIOptions struct {
	Title       string
	Author      string
	Publisher   string
	Description string
	ISBN        string
	Date        string // e.g. "2008-01-01"
	Language    string // e.g. "en"
}

// TempDir creates a temporary directory for testing and registers cleanup.
// The directory is automatically removed when the test completes.
func TempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// TempLibraryDir creates a temporary library directory for testing.
func TempLibraryDir(t *testing.T) string {
	t.Helper()
	return TempDir(t, "testgen-library-*")
}

// CreateSubDir creates a subdirectory within the given parent directory and
// returns its full path.
func CreateSubDir(t *testing.T, parent, name string) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create subdirectory %s: %v", dir, err)
	}
	return dir
}

// WriteFile creates a file with the given content in the specified directory
// and returns its full path.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadFile reads and returns the contents of a file.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return data
}

// StringPtr is a helper to create a pointer to a string.
func StringPtr(s string) *string {
	return &s
}

// Float64Ptr is a helper to create a pointer to a float64.
func Float64Ptr(f float64) *float64 {
	return &f
}
