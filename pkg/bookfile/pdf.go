package bookfile

import (
	"os"
	"strings"

	"github.com/codexlibris/codex/pkg/fileutils"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pkg/errors"
)

// ParsePDF reads the page count and document information dictionary from a
// PDF. Files that fail validation still index with empty metadata since the
// bytes may well render fine in a viewer.
func ParsePDF(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	md := &Metadata{}

	info, err := api.PDFInfo(f, path, nil, false, model.NewDefaultConfiguration())
	if err != nil {
		return md, nil
	}

	if info.PageCount > 0 {
		pages := info.PageCount
		md.PageCount = &pages
	}
	md.Title = strings.TrimSpace(info.Title)
	md.Authors = fileutils.SplitNames(info.Author)
	md.Description = strings.TrimSpace(info.Subject)

	return md, nil
}
