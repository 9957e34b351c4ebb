package bookfile

import (
	"testing"

	"github.com/codexlibris/codex/internal/testgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePDF_InfoDictionary(t *testing.T) {
	dir := t.TempDir()
	path := testgen.GeneratePDF(t, dir, "book.pdf", testgen.PDFOptions{
		Title:     "Learn C Programming",
		Author:    "Jeff Szuhay",
		Subject:   "A beginner's guide to C.",
		PageCount: 3,
	})

	md, err := ParsePDF(path)
	require.NoError(t, err)

	assert.Equal(t, "Learn C Programming", md.Title)
	assert.Equal(t, []string{"Jeff Szuhay"}, md.Authors)
	assert.Equal(t, "A beginner's guide to C.", md.Description)
	require.NotNil(t, md.PageCount)
	assert.Equal(t, 3, *md.PageCount)
}

func TestParsePDF_MultipleAuthors(t *testing.T) {
	dir := t.TempDir()
	path := testgen.GeneratePDF(t, dir, "book.pdf", testgen.PDFOptions{
		Title:  "Co-written",
		Author: "Jane Doe, John Roe",
	})

	md, err := ParsePDF(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane Doe", "John Roe"}, md.Authors)
}

func TestParsePDF_NoInfo(t *testing.T) {
	dir := t.TempDir()
	path := testgen.GeneratePDF(t, dir, "bare.pdf", testgen.PDFOptions{
		PageCount: 2,
	})

	md, err := ParsePDF(path)
	require.NoError(t, err)

	assert.Empty(t, md.Title)
	assert.Empty(t, md.Authors)
	require.NotNil(t, md.PageCount)
	assert.Equal(t, 2, *md.PageCount)
}

func TestParsePDF_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := testgen.WriteFile(t, dir, "corrupt.pdf", []byte("%PDF-1.4 but nothing else"))

	md, err := ParsePDF(path)
	require.NoError(t, err, "unparseable PDFs still index with empty metadata")
	assert.Empty(t, md.Title)
	assert.Nil(t, md.PageCount)
}
