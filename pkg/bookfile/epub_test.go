package bookfile

import (
	"testing"

	"github.com/codexlibris/codex/internal/testgen"
	"github.com/codexlibris/codex/pkg/identifiers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEPUB_FullMetadata(t *testing.T) {
	dir := t.TempDir()
	seriesNum := 2.0
	path := testgen.GenerateEPUB(t, dir, "book.epub", testgen.EPUBOptions{
		Title:        "Words of Radiance",
		Authors:      []string{"Brandon Sanderson"},
		Description:  "<p>The second book.</p><p>War continues.</p>",
		Publisher:    "Tor Books",
		Language:     "en",
		Date:         "2014-03-04",
		ISBN:         "9780765326362",
		Subjects:     []string{"Fantasy", "Epic"},
		Series:       "The Stormlight Archive",
		SeriesNumber: &seriesNum,
		HasCover:     true,
	})

	md, err := ParseEPUB(path)
	require.NoError(t, err)

	assert.Equal(t, "Words of Radiance", md.Title)
	assert.Equal(t, []string{"Brandon Sanderson"}, md.Authors)
	assert.Equal(t, "The second book.\nWar continues.", md.Description)
	assert.Equal(t, "Tor Books", md.Publisher)
	assert.Equal(t, "en", md.Language)
	assert.Equal(t, "2014-03-04", md.PublicationDate)
	assert.Equal(t, []string{"Fantasy", "Epic"}, md.Genres)
	assert.Equal(t, "The Stormlight Archive", md.Series)
	require.NotNil(t, md.SeriesNumber)
	assert.Equal(t, 2.0, *md.SeriesNumber)
	assert.Equal(t, "9780765326362", md.ISBN())
	assert.NotEmpty(t, md.CoverData)
	assert.Equal(t, "image/png", md.CoverMimeType)
	assert.Nil(t, md.PageCount)
}

func TestParseEPUB_SparseMetadata(t *testing.T) {
	dir := t.TempDir()
	path := testgen.GenerateEPUB(t, dir, "sparse.epub", testgen.EPUBOptions{})

	md, err := ParseEPUB(path)
	require.NoError(t, err)

	assert.Empty(t, md.Title)
	assert.Empty(t, md.Authors)
	assert.Empty(t, md.Description)
	assert.Equal(t, "en", md.Language)
	assert.Empty(t, md.CoverData)

	// The generator always embeds a urn:uuid identifier.
	require.Len(t, md.Identifiers, 1)
	assert.Equal(t, identifiers.TypeUUID, md.Identifiers[0].Type)
}

func TestParseEPUB_DateWithTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := testgen.GenerateEPUB(t, dir, "book.epub", testgen.EPUBOptions{
		Title: "Timestamped",
		Date:  "2008-06-17T00:00:00Z",
	})

	md, err := ParseEPUB(path)
	require.NoError(t, err)
	assert.Equal(t, "2008-06-17", md.PublicationDate)
}

func TestParseEPUB_JPEGCover(t *testing.T) {
	dir := t.TempDir()
	path := testgen.GenerateEPUB(t, dir, "book.epub", testgen.EPUBOptions{
		Title:         "Covered",
		HasCover:      true,
		CoverMimeType: "image/jpeg",
	})

	md, err := ParseEPUB(path)
	require.NoError(t, err)
	assert.NotEmpty(t, md.CoverData)
	assert.Equal(t, "image/jpeg", md.CoverMimeType)
	assert.Equal(t, ".jpg", md.CoverExtension())
}

func TestParseEPUB_NotAZip(t *testing.T) {
	dir := t.TempDir()
	path := testgen.WriteFile(t, dir, "broken.epub", []byte("not a zip archive"))

	_, err := ParseEPUB(path)
	assert.Error(t, err)
}

func TestParseOPF_MainTitleSelection(t *testing.T) {
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title id="title-sub">Book One of the Stormlight Archive</dc:title>
    <dc:title id="title-main">The Way of Kings</dc:title>
    <meta refines="#title-main" property="title-type">main</meta>
    <meta refines="#title-sub" property="title-type">subtitle</meta>
  </metadata>
</package>`

	md, _, err := parseOPF("test.opf", []byte(opfXML))
	require.NoError(t, err)
	assert.Equal(t, "The Way of Kings", md.Title)
}

func TestParseOPF_MainTitleWithoutRefinement(t *testing.T) {
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title id="t1">The Final Empire</dc:title>
    <dc:title id="subtitle">Mistborn Book One</dc:title>
  </metadata>
</package>`

	md, _, err := parseOPF("test.opf", []byte(opfXML))
	require.NoError(t, err)
	assert.Equal(t, "The Final Empire", md.Title)
}

func TestParseOPF_Identifiers(t *testing.T) {
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Test Book</dc:title>
    <dc:identifier opf:scheme="ISBN">978-0-316-76948-8</dc:identifier>
    <dc:identifier opf:scheme="ASIN">B08N5WRWNW</dc:identifier>
    <dc:identifier>urn:uuid:a1b2c3d4-e5f6-7890-abcd-ef1234567890</dc:identifier>
    <dc:identifier opf:scheme="GOODREADS">12345678</dc:identifier>
  </metadata>
</package>`

	md, _, err := parseOPF("test.opf", []byte(opfXML))
	require.NoError(t, err)

	require.Len(t, md.Identifiers, 4)
	idByType := make(map[identifiers.Type]string)
	for _, id := range md.Identifiers {
		idByType[id.Type] = id.Value
	}

	assert.Equal(t, "9780316769488", idByType[identifiers.TypeISBN13], "hyphenated ISBNs are normalized")
	assert.Equal(t, "B08N5WRWNW", idByType[identifiers.TypeASIN])
	assert.Equal(t, "urn:uuid:a1b2c3d4-e5f6-7890-abcd-ef1234567890", idByType[identifiers.TypeUUID])
	assert.Equal(t, "12345678", idByType[identifiers.TypeGoodreads])
}

func TestParseOPF_IdentifiersPatternMatch(t *testing.T) {
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:identifier>9780316769488</dc:identifier>
    <dc:identifier>0316769487</dc:identifier>
    <dc:identifier>not-an-identifier</dc:identifier>
  </metadata>
</package>`

	md, _, err := parseOPF("test.opf", []byte(opfXML))
	require.NoError(t, err)

	require.Len(t, md.Identifiers, 2)
	idByType := make(map[identifiers.Type]string)
	for _, id := range md.Identifiers {
		idByType[id.Type] = id.Value
	}
	assert.Equal(t, "9780316769488", idByType[identifiers.TypeISBN13])
	assert.Equal(t, "0316769487", idByType[identifiers.TypeISBN10])
}

func TestParseOPF_CreatorRoles(t *testing.T) {
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Test Book</dc:title>
    <dc:creator>Terry Pratchett</dc:creator>
    <dc:creator>Neil Gaiman</dc:creator>
    <dc:creator opf:role="ill">Paul Kidby</dc:creator>
  </metadata>
</package>`

	md, _, err := parseOPF("test.opf", []byte(opfXML))
	require.NoError(t, err)
	assert.Equal(t, []string{"Terry Pratchett", "Neil Gaiman"}, md.Authors)
}

func TestParseOPF_CreatorRoleViaRefines(t *testing.T) {
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:creator id="c1">Jeff Szuhay</dc:creator>
    <dc:creator id="c2">Cover Person</dc:creator>
    <meta refines="#c1" property="role">aut</meta>
    <meta refines="#c2" property="role">cov</meta>
  </metadata>
</package>`

	md, _, err := parseOPF("test.opf", []byte(opfXML))
	require.NoError(t, err)
	assert.Equal(t, []string{"Jeff Szuhay"}, md.Authors)
}

func TestParseOPF_EPUB3CoverImage(t *testing.T) {
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
  </metadata>
  <manifest>
    <item id="cover" href="images/cover.jpg" media-type="image/jpeg" properties="cover-image"/>
    <item id="chapter1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
</package>`

	md, coverHref, err := parseOPF("OEBPS/content.opf", []byte(opfXML))
	require.NoError(t, err)
	assert.Equal(t, "OEBPS/images/cover.jpg", coverHref)
	assert.Equal(t, "image/jpeg", md.CoverMimeType)
}

func TestParseOPF_CollectionSeries(t *testing.T) {
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <meta property="belongs-to-collection" id="c01">The Expanse</meta>
    <meta refines="#c01" property="group-position">4</meta>
  </metadata>
</package>`

	md, _, err := parseOPF("test.opf", []byte(opfXML))
	require.NoError(t, err)
	assert.Equal(t, "The Expanse", md.Series)
	require.NotNil(t, md.SeriesNumber)
	assert.Equal(t, 4.0, *md.SeriesNumber)
}

func TestParseOPF_CalibreSeriesWins(t *testing.T) {
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <meta name="calibre:series" content="Discworld"/>
    <meta name="calibre:series_index" content="7.0"/>
    <meta property="belongs-to-collection" id="c01">Ignored Collection</meta>
  </metadata>
</package>`

	md, _, err := parseOPF("test.opf", []byte(opfXML))
	require.NoError(t, err)
	assert.Equal(t, "Discworld", md.Series)
	require.NotNil(t, md.SeriesNumber)
	assert.Equal(t, 7.0, *md.SeriesNumber)
}
