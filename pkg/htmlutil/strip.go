package htmlutil

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// multipleSpacesPattern matches multiple consecutive whitespace characters.
var multipleSpacesPattern = regexp.MustCompile(`\s{2,}`)

// blockBreak holds elements whose closing tag ends a visual line. br is
// handled separately since it breaks on open.
var blockBreak = map[atom.Atom]bool{
	atom.P:   true,
	atom.Div: true,
	atom.Li:  true,
	atom.H1:  true,
	atom.H2:  true,
	atom.H3:  true,
	atom.H4:  true,
	atom.H5:  true,
	atom.H6:  true,
}

// StripTags removes all HTML markup from a string and normalizes whitespace.
// Block-level elements (p, div, li, headings) and br become newlines so
// paragraph structure survives; entities are decoded; runs of spaces collapse.
// Provider descriptions arrive as HTML fragments, so this has to tolerate
// unbalanced markup.
func StripTags(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(input))

tokens:
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; either way we keep what we have
			break tokens
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Br {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if blockBreak[atom.Lookup(name)] {
				b.WriteByte('\n')
			}
		}
	}

	result := decodeHTMLEntities(b.String())

	// Collapse runs of spaces within each line but keep the newlines the
	// block tags produced.
	lines := strings.Split(result, "\n")
	nonEmptyLines := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(multipleSpacesPattern.ReplaceAllString(line, " "))
		if line != "" {
			nonEmptyLines = append(nonEmptyLines, line)
		}
	}

	return strings.Join(nonEmptyLines, "\n")
}

// decodeHTMLEntities decodes named and numeric HTML entities. Non-breaking
// spaces become regular spaces so they collapse like any other whitespace.
func decodeHTMLEntities(s string) string {
	return strings.ReplaceAll(html.UnescapeString(s), " ", " ")
}
