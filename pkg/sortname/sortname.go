// Package sortname derives the library-style strings used to file authors
// and titles on shelves. "The Hobbit" files under H and "Ludwig van
// Beethoven" under B, the way a card catalog would order them.
package sortname

import "strings"

// articles are the leading words ignored when filing a title.
var articles = []string{"The", "An", "A"}

// honorifics never distinguish two authors and are dropped outright.
var honorifics = map[string]bool{
	"dr":   true,
	"mr":   true,
	"mrs":  true,
	"ms":   true,
	"prof": true,
	"rev":  true,
	"sir":  true,
	"dame": true,
	"lord": true,
	"lady": true,
}

// credentials are trailing qualifications, not part of the name.
var credentials = map[string]bool{
	"phd": true,
	"md":  true,
	"jd":  true,
	"mba": true,
	"esq": true,
}

// generations distinguish authors who share a name and stay at the end of
// the sort form.
var generations = map[string]bool{
	"jr":  true,
	"sr":  true,
	"ii":  true,
	"iii": true,
	"iv":  true,
}

// ForTitle moves a leading article to the end, so "The Hobbit" becomes
// "Hobbit, The" and files under H.
func ForTitle(title string) string {
	title = strings.TrimSpace(title)

	for _, article := range articles {
		prefix := article + " "
		if len(title) <= len(prefix) || !strings.EqualFold(title[:len(prefix)], prefix) {
			continue
		}
		rest := strings.TrimSpace(title[len(prefix):])
		if rest != "" {
			return rest + ", " + title[:len(article)]
		}
	}

	return title
}

// particles travel with the given name rather than the surname, so "Ludwig
// van Beethoven" files as "Beethoven, Ludwig van".
var particles = map[string]bool{
	"van":   true,
	"von":   true,
	"de":    true,
	"da":    true,
	"di":    true,
	"du":    true,
	"del":   true,
	"della": true,
	"la":    true,
	"le":    true,
	"bin":   true,
	"ibn":   true,
}

// ForAuthor converts a display name into "Surname, Given" form. Honorifics
// and credentials are dropped, generational suffixes stay at the end, and
// surname particles stay with the given name.
func ForAuthor(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return ""
	}

	for len(parts) > 1 && honorifics[key(parts[0])] {
		parts = parts[1:]
	}

	var suffixes []string
	for len(parts) > 1 {
		last := key(parts[len(parts)-1])
		if generations[last] {
			suffixes = append([]string{strings.TrimSuffix(parts[len(parts)-1], ",")}, suffixes...)
			parts = parts[:len(parts)-1]
		} else if credentials[last] {
			parts = parts[:len(parts)-1]
		} else {
			break
		}
	}

	if len(parts) == 1 {
		return strings.Join(append(parts, suffixes...), ", ")
	}

	surname := parts[len(parts)-1]
	given := parts[:len(parts)-1]

	var trailing []string
	for len(given) > 1 && particles[key(given[len(given)-1])] {
		trailing = append([]string{given[len(given)-1]}, trailing...)
		given = given[:len(given)-1]
	}

	sorted := surname + ", " + strings.Join(append(given, trailing...), " ")
	if len(suffixes) > 0 {
		sorted += ", " + strings.Join(suffixes, ", ")
	}

	return sorted
}

// key normalizes a name part for table lookups, so "Ph.D." and "Jr.," match
// their entries.
func key(word string) string {
	word = strings.ToLower(word)
	word = strings.ReplaceAll(word, ".", "")
	return strings.TrimSuffix(word, ",")
}
