package testgen

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// GeneratePDF creates a minimal but valid PDF file at the specified path with
// the given options: a catalog, a page tree with PageCount empty pages, and a
// document information dictionary carrying title/author/subject.
func GeneratePDF(t *testing.T, dir, filename string, opts PDFOptions) string {
	t.Helper()

	pageCount := opts.PageCount
	if pageCount <= 0 {
		pageCount = 1
	}

	var buf bytes.Buffer
	var offsets []int

	buf.WriteString("%PDF-1.4\n")

	addObj := func(body string) int {
		offsets = append(offsets, buf.Len())
		num := len(offsets)
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
		return num
	}

	addObj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, pageCount)
	for i := 0; i < pageCount; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", 4+i)
	}
	addObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pageCount))

	// A single empty content stream shared by every page.
	addObj("<< /Length 0 >>\nstream\n\nendstream")

	for i := 0; i < pageCount; i++ {
		addObj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> /Contents 3 0 R >>")
	}

	info := "<<"
	if opts.Title != "" {
		info += fmt.Sprintf(" /Title (%s)", escapePDFString(opts.Title))
	}
	if opts.Author != "" {
		info += fmt.Sprintf(" /Author (%s)", escapePDFString(opts.Author))
	}
	if opts.Subject != "" {
		info += fmt.Sprintf(" /Subject (%s)", escapePDFString(opts.Subject))
	}
	info += " >>"
	infoNum := addObj(info)

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info %d 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, infoNum, xrefOffset)

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatalf("failed to write PDF file: %v", err)
	}
	return path
}

func escapePDFString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "(", `\(`)
	s = strings.ReplaceAll(s, ")", `\)`)
	return s
}
