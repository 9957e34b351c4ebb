package fileutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitNames(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", nil},
		{"single name", "Brandon Sanderson", []string{"Brandon Sanderson"}},
		{"comma separated", "Terry Pratchett, Neil Gaiman", []string{"Terry Pratchett", "Neil Gaiman"}},
		{"semicolon separated", "Terry Pratchett; Neil Gaiman", []string{"Terry Pratchett", "Neil Gaiman"}},
		{"both delimiters", "Margaret Weis, Tracy Hickman; Larry Elmore", []string{"Margaret Weis", "Tracy Hickman", "Larry Elmore"}},
		{"surrounding whitespace", "  Ann Leckie  ,  Ursula K. Le Guin  ", []string{"Ann Leckie", "Ursula K. Le Guin"}},
		{"empty segments dropped", "Ann Leckie,,;;Ursula K. Le Guin", []string{"Ann Leckie", "Ursula K. Le Guin"}},
		{"only delimiters", ",;,;", nil},
		// Ampersand pairs are a single credit, not a delimiter.
		{"ampersand stays joined", "Terry Pratchett & Neil Gaiman", []string{"Terry Pratchett & Neil Gaiman"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitNames(tt.input))
		})
	}
}
