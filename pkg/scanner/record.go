package scanner

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/codexlibris/codex/pkg/bookfile"
	"github.com/codexlibris/codex/pkg/fileutils"
	"github.com/codexlibris/codex/pkg/identifiers"
	"github.com/codexlibris/codex/pkg/metadata"
	"github.com/codexlibris/codex/pkg/sidecar"
)

// unknownAuthor is the backstop when no source names an author.
const unknownAuthor = "Unknown"

var (
	// bracketRE matches the [Author Name] filename convention, e.g.
	// "Dune [Frank Herbert].epub".
	bracketRE = regexp.MustCompile(`\[([^\[\]]*)\]`)

	// isbnRunRE matches digit runs long enough to be an ISBN, hyphens
	// allowed inside, X allowed as the check digit.
	isbnRunRE = regexp.MustCompile(`[0-9][0-9-]{8,16}[0-9Xx]`)
)

// record is the canonical fused view of one file, ready to persist. Per
// field the first source with a value wins, in the order external catalog,
// sidecar, embedded metadata, path.
type record struct {
	Title           string
	AuthorName      string
	Description     string
	Publisher       string
	PublicationDate string
	Language        string
	Series          string
	SeriesNumber    *float64
	Genres          []string
	MaturityRating  string
	PageCount       *int
	ISBN            string
	Format          string
	FileSize        int64

	CoverData      []byte
	CoverExtension string

	// External keeps the resolver result around so author enrichment can
	// reuse it after the book row is settled.
	External *metadata.BookMetadata
}

// fuseRecord merges every metadata source for one file into a record. Nil
// sources are treated as empty. root is the library root the file was found
// under; the <Author>/<Title> directory shape beneath it is the path source.
func fuseRecord(root, path string, ext *metadata.BookMetadata, side *sidecar.Sidecar, fileMeta *bookfile.Metadata) *record {
	if side == nil {
		side = &sidecar.Sidecar{}
	}
	if fileMeta == nil {
		fileMeta = &bookfile.Metadata{}
	}
	extMeta := ext
	if extMeta == nil {
		extMeta = &metadata.BookMetadata{}
	}

	rec := &record{
		Format:   bookfile.DetectFormat(path),
		External: ext,
	}

	rec.Title = firstNonEmpty(extMeta.Title, side.Title, fileMeta.Title, titleFromPath(root, path))
	rec.AuthorName = firstNonEmpty(firstName(extMeta.Authors), firstName(side.Authors), firstName(fileMeta.Authors), authorFromPath(root, path), unknownAuthor)
	rec.Description = firstNonEmpty(extMeta.Description, side.Description, fileMeta.Description)
	rec.Publisher = firstNonEmpty(extMeta.Publisher, side.Publisher, fileMeta.Publisher)
	rec.PublicationDate = firstNonEmpty(extMeta.PublishedDate, side.PublicationDate, fileMeta.PublicationDate)
	rec.Language = firstNonEmpty(extMeta.Language, side.Language, fileMeta.Language)
	rec.Series = firstNonEmpty(extMeta.Series, side.Series, fileMeta.Series)
	rec.MaturityRating = firstNonEmpty(extMeta.MaturityRating, fileMeta.AgeRating)
	rec.ISBN = firstNonEmpty(extMeta.ISBN(), side.ISBN, fileMeta.ISBN(), identifiers.FromFilename(path))

	switch {
	case extMeta.SeriesNumber != nil:
		rec.SeriesNumber = extMeta.SeriesNumber
	case side.SeriesNumber != nil:
		rec.SeriesNumber = side.SeriesNumber
	default:
		rec.SeriesNumber = fileMeta.SeriesNumber
	}

	switch {
	case len(extMeta.Categories) > 0:
		rec.Genres = extMeta.Categories
	case len(side.Genres) > 0:
		rec.Genres = side.Genres
	default:
		rec.Genres = fileMeta.Genres
	}

	if extMeta.PageCount > 0 {
		pages := extMeta.PageCount
		rec.PageCount = &pages
	} else {
		rec.PageCount = fileMeta.PageCount
	}

	rec.CoverData = fileMeta.CoverData
	rec.CoverExtension = fileMeta.CoverExtension()

	return rec
}

// lookupISBN is the identifier used to query external catalogs, taken from
// the most curated source that has one.
func lookupISBN(path string, side *sidecar.Sidecar, fileMeta *bookfile.Metadata) string {
	sideISBN := ""
	if side != nil {
		sideISBN = side.ISBN
	}
	fileISBN := ""
	if fileMeta != nil {
		fileISBN = fileMeta.ISBN()
	}
	return firstNonEmpty(sideISBN, fileISBN, identifiers.FromFilename(path))
}

// pathAttributes reads the <root>/<Author>/<Title>/<file> library layout.
// A file nested at least two directories below its root yields the parent
// directory as title and the grandparent as author; anything shallower, or a
// path outside the root, yields nothing and the filename rules take over.
func pathAttributes(root, path string) (author, title string) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ""
	}

	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) < 3 {
		return "", ""
	}
	return cleanPathName(parts[len(parts)-3]), cleanPathName(parts[len(parts)-2])
}

func cleanPathName(name string) string {
	name = strings.ReplaceAll(name, "_", " ")
	return strings.Join(strings.Fields(name), " ")
}

// titleFromPath derives a display title for one file. The <Author>/<Title>
// directory shape under root names the title when present. Otherwise the
// filename carries it: the extension, any [author] brackets, and validated
// ISBN runs are stripped, then separators collapse. A name that strips down
// to nothing falls back to the bare filename.
func titleFromPath(root, path string) string {
	if _, title := pathAttributes(root, path); title != "" {
		return title
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	title := bracketRE.ReplaceAllString(base, "")
	title = isbnRunRE.ReplaceAllStringFunc(title, func(run string) string {
		normalized := identifiers.NormalizeISBN(run)
		valid := (len(normalized) == 13 && identifiers.ValidateISBN13(normalized)) ||
			(len(normalized) == 10 && identifiers.ValidateISBN10(normalized))
		if valid {
			return ""
		}
		return run
	})
	title = strings.ReplaceAll(title, "_", " ")
	title = strings.Join(strings.Fields(title), " ")
	title = strings.Trim(title, " -.,")

	if title == "" {
		return base
	}
	return title
}

// authorFromPath derives an author name for one file: the grandparent
// directory when the path matches the library layout, else the [Author Name]
// filename convention. Multiple bracketed names take the first; a book row
// carries one author. Returns "" when neither shape applies.
func authorFromPath(root, path string) string {
	if author, _ := pathAttributes(root, path); author != "" {
		return author
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m := bracketRE.FindStringSubmatch(base)
	if m == nil {
		return ""
	}

	names := fileutils.SplitNames(m[1])
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func firstName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimSpace(names[0])
}
