package bookfile

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/codexlibris/codex/pkg/fileutils"
	"github.com/codexlibris/codex/pkg/identifiers"
	"github.com/pkg/errors"
)

// ComicInfo mirrors the ComicInfo.xml schema used by CBZ archives. Only the
// elements the library maps are included.
type ComicInfo struct {
	XMLName     xml.Name `xml:"ComicInfo"`
	Title       string   `xml:"Title"`
	Series      string   `xml:"Series"`
	Number      string   `xml:"Number"`
	Summary     string   `xml:"Summary"`
	Year        string   `xml:"Year"`
	Month       string   `xml:"Month"`
	Day         string   `xml:"Day"`
	Writer      string   `xml:"Writer"`
	Publisher   string   `xml:"Publisher"`
	Genre       string   `xml:"Genre"`
	AgeRating   string   `xml:"AgeRating"`
	PageCount   string   `xml:"PageCount"`
	LanguageISO string   `xml:"LanguageISO"`
	GTIN        string   `xml:"GTIN"`
	Pages       struct {
		Page []ComicPageInfo `xml:"Page"`
	} `xml:"Pages"`
}

// ComicPageInfo is a single Page entry inside ComicInfo.xml.
type ComicPageInfo struct {
	Image string `xml:"Image,attr"`
	Type  string `xml:"Type,attr"`
}

// ParseCBZ extracts metadata from a CBZ archive's ComicInfo.xml plus a cover
// image. Archives without ComicInfo.xml still yield a page count and cover
// from the image entries themselves.
func ParseCBZ(path string) (*Metadata, error) {
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

	var comicInfo *ComicInfo
	for _, file := range zipReader.File {
		if strings.ToLower(file.Name) != "comicinfo.xml" {
			continue
		}
		r, err := file.Open()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		comicInfo, err = parseComicInfo(r)
		r.Close()
		if err != nil {
			return nil, err
		}
		break
	}

	md := &Metadata{}

	imageFiles := sortedImageEntries(zipReader)

	coverData, coverMimeType, err := extractComicCover(imageFiles, comicInfo)
	if err != nil {
		return nil, err
	}
	md.CoverData = coverData
	md.CoverMimeType = coverMimeType

	if comicInfo != nil {
		md.Title = strings.TrimSpace(comicInfo.Title)
		md.Series = strings.TrimSpace(comicInfo.Series)
		md.Authors = fileutils.SplitNames(comicInfo.Writer)
		md.Description = strings.TrimSpace(comicInfo.Summary)
		md.Publisher = strings.TrimSpace(comicInfo.Publisher)
		md.Genres = fileutils.SplitNames(comicInfo.Genre)
		md.AgeRating = strings.TrimSpace(comicInfo.AgeRating)
		md.Language = strings.TrimSpace(comicInfo.LanguageISO)
		md.PublicationDate = comicDate(comicInfo)

		if comicInfo.Number != "" {
			if num, err := strconv.ParseFloat(comicInfo.Number, 64); err == nil {
				md.SeriesNumber = &num
			}
		}

		if n, err := strconv.Atoi(comicInfo.PageCount); err == nil && n > 0 {
			md.PageCount = &n
		}

		// GTIN-13 values with a Bookland prefix are ISBNs.
		if gtin := identifiers.NormalizeISBN(comicInfo.GTIN); gtin != "" {
			if idType := identifiers.DetectType(gtin, ""); idType == identifiers.TypeISBN13 || idType == identifiers.TypeISBN10 {
				md.Identifiers = append(md.Identifiers, Identifier{Type: idType, Value: gtin})
			}
		}
	}

	// Fall back to counting page images when ComicInfo is absent or silent.
	if md.PageCount == nil && len(imageFiles) > 0 {
		n := len(imageFiles)
		md.PageCount = &n
	}

	if md.SeriesNumber == nil {
		md.SeriesNumber = seriesNumberFromFilename(filepath.Base(path))
	}

	return md, nil
}

func parseComicInfo(r io.Reader) (*ComicInfo, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	comicInfo := &ComicInfo{}
	if err := xml.Unmarshal(b, comicInfo); err != nil {
		return nil, errors.WithStack(err)
	}
	return comicInfo, nil
}

// sortedImageEntries returns the archive's image entries sorted by name, which
// is the conventional page order for comic archives.
func sortedImageEntries(zipReader *zip.Reader) []*zip.File {
	var imageFiles []*zip.File
	for _, file := range zipReader.File {
		switch strings.ToLower(filepath.Ext(file.Name)) {
		case ".jpg", ".jpeg", ".png", ".gif", ".webp":
			imageFiles = append(imageFiles, file)
		}
	}
	sort.Slice(imageFiles, func(i, j int) bool {
		return imageFiles[i].Name < imageFiles[j].Name
	})
	return imageFiles
}

// extractComicCover picks the cover image: the page ComicInfo marks as
// FrontCover, then InnerCover, then the first page.
func extractComicCover(imageFiles []*zip.File, comicInfo *ComicInfo) ([]byte, string, error) {
	if len(imageFiles) == 0 {
		return nil, "", nil
	}

	var targetFile *zip.File

	if comicInfo != nil && len(comicInfo.Pages.Page) > 0 {
		for _, pageType := range []string{"frontcover", "innercover"} {
			for _, page := range comicInfo.Pages.Page {
				if strings.ToLower(page.Type) != pageType {
					continue
				}
				pageNum, err := strconv.Atoi(page.Image)
				if err == nil && pageNum >= 0 && pageNum < len(imageFiles) {
					targetFile = imageFiles[pageNum]
					break
				}
			}
			if targetFile != nil {
				break
			}
		}
	}

	if targetFile == nil {
		targetFile = imageFiles[0]
	}

	r, err := targetFile.Open()
	if err != nil {
		return nil, "", errors.WithStack(err)
	}
	defer r.Close()

	coverData, err := io.ReadAll(r)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}

	mimeType := ""
	switch strings.ToLower(filepath.Ext(targetFile.Name)) {
	case ".jpg", ".jpeg":
		mimeType = "image/jpeg"
	case ".png":
		mimeType = "image/png"
	case ".gif":
		mimeType = "image/gif"
	case ".webp":
		mimeType = "image/webp"
	}

	return coverData, mimeType, nil
}

// comicDate assembles a publication date from ComicInfo's split fields.
func comicDate(ci *ComicInfo) string {
	year, err := strconv.Atoi(ci.Year)
	if err != nil || year <= 0 {
		return ""
	}

	month, err := strconv.Atoi(ci.Month)
	if err != nil || month < 1 || month > 12 {
		return strconv.Itoa(year)
	}

	day, err := strconv.Atoi(ci.Day)
	if err != nil || day < 1 || day > 31 {
		return fmt.Sprintf("%04d-%02d", year, month)
	}

	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

var filenameVolumePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)#(\d+(?:\.\d+)?)$`),
	regexp.MustCompile(`(?i)\bv(\d+(?:\.\d+)?)$`),
	regexp.MustCompile(`(?i)\s+(\d+(?:\.\d+)?)$`),
}

// seriesNumberFromFilename pulls a trailing volume marker (#7, v7, " 7") out
// of a comic filename.
func seriesNumberFromFilename(filename string) *float64 {
	nameWithoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))

	for _, pattern := range filenameVolumePatterns {
		if matches := pattern.FindStringSubmatch(nameWithoutExt); len(matches) >= 2 {
			if num, err := strconv.ParseFloat(matches[1], 64); err == nil {
				return &num
			}
		}
	}
	return nil
}
