package bookfile

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/codexlibris/codex/pkg/htmlutil"
	"github.com/codexlibris/codex/pkg/identifiers"
	"github.com/pkg/errors"
)

// opfPackage mirrors the OPF package document. Only the elements the library
// cares about are mapped.
type opfPackage struct {
	XMLName  xml.Name `xml:"package"`
	Version  string   `xml:"version,attr"`
	Metadata struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
			Role string `xml:"role,attr"`
		} `xml:"creator"`
		Description []string `xml:"description"`
		Publisher   string   `xml:"publisher"`
		Subject     []string `xml:"subject"`
		Identifier  []struct {
			Text   string `xml:",chardata"`
			ID     string `xml:"id,attr"`
			Scheme string `xml:"scheme,attr"`
		} `xml:"identifier"`
		Date     string `xml:"date"`
		Language string `xml:"language"`
		Meta     []struct {
			Text     string `xml:",chardata"`
			ID       string `xml:"id,attr"`
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Item []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
}

// ParseEPUB extracts metadata from the OPF package document inside an EPUB
// archive, including the cover image bytes when one is declared.
func ParseEPUB(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	stats, err := f.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	zipReader, err := zip.NewReader(f, stats.Size())
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Find the OPF wherever it lives rather than trusting container.xml;
	// malformed containers are common in the wild.
	var md *Metadata
	var coverHref string
	for _, file := range zipReader.File {
		if filepath.Ext(file.Name) != ".opf" {
			continue
		}
		r, err := file.Open()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		b, readErr := io.ReadAll(r)
		r.Close()
		if readErr != nil {
			return nil, errors.WithStack(readErr)
		}
		md, coverHref, err = parseOPF(file.Name, b)
		if err != nil {
			return nil, err
		}
		break
	}

	if md == nil {
		return nil, errors.New("no opf file found")
	}

	if coverHref != "" {
		for _, file := range zipReader.File {
			if file.Name != coverHref {
				continue
			}
			r, err := file.Open()
			if err != nil {
				return nil, errors.WithStack(err)
			}
			b, readErr := io.ReadAll(r)
			r.Close()
			if readErr != nil {
				return nil, errors.WithStack(readErr)
			}
			md.CoverData = b
			break
		}
	}

	return md, nil
}

// parseOPF parses an OPF package document. filename is the path of the OPF
// inside the archive; cover hrefs are resolved relative to it. Returns the
// parsed metadata and the archive path of the declared cover, if any.
func parseOPF(filename string, data []byte) (*Metadata, string, error) {
	pkg := &opfPackage{}
	if err := xml.Unmarshal(data, pkg); err != nil {
		return nil, "", errors.WithStack(err)
	}

	// Hrefs are relative to the OPF's own directory.
	basePath := filepath.Dir(filename)
	if basePath == "." {
		basePath = ""
	} else {
		basePath += "/"
	}

	// Flatten refines/content meta entries into lookup maps.
	metaProperties := map[string]map[string]string{}
	metaContent := map[string]string{}
	for _, m := range pkg.Metadata.Meta {
		if m.Refines != "" {
			key := strings.ReplaceAll(m.Refines, "#", "")
			if _, ok := metaProperties[key]; !ok {
				metaProperties[key] = map[string]string{}
			}
			metaProperties[key][m.Property] = m.Text
		} else if m.Content != "" {
			metaContent[m.Name] = m.Content
		}
	}

	md := &Metadata{}

	// Multiple dc:title entries need the title-type refinement to tell the
	// main title from subtitles and collection titles.
	switch len(pkg.Metadata.Title) {
	case 0:
	case 1:
		md.Title = strings.TrimSpace(pkg.Metadata.Title[0].Text)
	default:
		for _, t := range pkg.Metadata.Title {
			if t.ID != "" && metaProperties[t.ID]["title-type"] == "main" {
				md.Title = strings.TrimSpace(t.Text)
				break
			}
		}
		if md.Title == "" {
			// No refinement marks the main title; take the first entry that
			// is not refined as something else.
			for _, t := range pkg.Metadata.Title {
				if t.ID != "" && metaProperties[t.ID]["title-type"] != "" {
					continue
				}
				if t.ID == "subtitle" {
					continue
				}
				md.Title = strings.TrimSpace(t.Text)
				break
			}
		}
	}

	// Creators with role aut are authors; unroled creators count too since
	// EPUB3 files frequently omit the refinement.
	for _, creator := range pkg.Metadata.Creator {
		role := creator.Role
		if role == "" && creator.ID != "" {
			role = metaProperties[creator.ID]["role"]
		}
		if role != "" && role != "aut" {
			continue
		}
		if name := strings.TrimSpace(creator.Text); name != "" {
			md.Authors = append(md.Authors, name)
		}
	}

	if len(pkg.Metadata.Description) > 0 {
		md.Description = htmlutil.StripTags(pkg.Metadata.Description[0])
	}
	md.Publisher = strings.TrimSpace(pkg.Metadata.Publisher)
	md.Language = strings.TrimSpace(pkg.Metadata.Language)

	if date := strings.TrimSpace(pkg.Metadata.Date); date != "" {
		// dc:date may carry a full timestamp; only the date part matters.
		if i := strings.IndexByte(date, 'T'); i > 0 {
			date = date[:i]
		}
		md.PublicationDate = date
	}

	for _, subject := range pkg.Metadata.Subject {
		if s := strings.TrimSpace(subject); s != "" {
			md.Genres = append(md.Genres, s)
		}
	}

	for _, id := range pkg.Metadata.Identifier {
		value := strings.TrimSpace(id.Text)
		idType := identifiers.DetectType(value, id.Scheme)
		if idType == identifiers.TypeUnknown {
			continue
		}
		if idType == identifiers.TypeISBN10 || idType == identifiers.TypeISBN13 {
			value = identifiers.NormalizeISBN(value)
		}
		md.Identifiers = append(md.Identifiers, Identifier{Type: idType, Value: value})
	}

	// Series from calibre meta tags, with the EPUB3 collection vocabulary as
	// fallback.
	md.Series = metaContent["calibre:series"]
	if indexStr := metaContent["calibre:series_index"]; indexStr != "" {
		if num, err := strconv.ParseFloat(indexStr, 64); err == nil {
			md.SeriesNumber = &num
		}
	}
	if md.Series == "" {
		for _, m := range pkg.Metadata.Meta {
			if m.Refines != "" || m.Property != "belongs-to-collection" {
				continue
			}
			md.Series = strings.TrimSpace(m.Text)
			if pos := metaProperties[m.ID]["group-position"]; pos != "" {
				if num, err := strconv.ParseFloat(pos, 64); err == nil {
					md.SeriesNumber = &num
				}
			}
			break
		}
	}

	// Cover: EPUB2 meta[name=cover] pointing at a manifest item, or the EPUB3
	// cover-image manifest property.
	coverHref := ""
	if coverID := metaContent["cover"]; coverID != "" {
		for _, item := range pkg.Manifest.Item {
			if item.ID == coverID {
				coverHref = basePath + item.Href
				md.CoverMimeType = item.MediaType
			}
		}
	}
	if coverHref == "" {
		for _, item := range pkg.Manifest.Item {
			if strings.Contains(item.Properties, "cover-image") {
				coverHref = basePath + item.Href
				md.CoverMimeType = item.MediaType
				break
			}
		}
	}

	return md, coverHref, nil
}
