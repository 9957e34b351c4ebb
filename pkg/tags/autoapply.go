package tags

import (
	"context"
	"strings"

	"github.com/codexlibris/codex/pkg/models"
	"github.com/pkg/errors"
)

// AutoApplyInput is everything a scan knows about a book that can imply
// tags. Empty fields imply nothing.
type AutoApplyInput struct {
	Format         string
	MaturityRating string
	Categories     []string
	Series         string
	Language       string
}

// maturityRatings normalizes the rating vocabularies seen in the wild
// (Google Books maturity flags, ComicInfo age ratings) onto the seeded
// content-rating tags.
var maturityRatings = map[string]string{
	"not_mature":      "Everyone",
	"everyone":        "Everyone",
	"everyone 10+":    "Everyone",
	"g":               "Everyone",
	"teen":            "Teen",
	"pg":              "Teen",
	"kids to adults":  "Teen",
	"mature":          "Mature",
	"mature 17+":      "Mature",
	"ma15+":           "Mature",
	"m":               "Mature",
	"adult":           "Adult",
	"adults only 18+": "Adult",
	"r18+":            "Adult",
	"nsfw":            "NSFW",
	"x18+":            "NSFW",
	"restricted":      "Restricted",
}

// genreAliases maps provider category vocabulary onto catalog tags that
// containment can't reach. BISAC-style top levels name audiences and
// umbrellas ("Computers", "Juvenile Fiction") rather than the genre itself.
var genreAliases = map[string][]string{
	"computers":           {"Technology", "Programming"},
	"juvenile fiction":    {"Children", "Fiction"},
	"juvenile nonfiction": {"Children", "Non-Fiction"},
	"nonfiction":          {"Non-Fiction"},
}

// languageNames maps language codes onto the seeded language tags. Both
// two-letter and the common bibliographic three-letter codes appear in file
// metadata.
var languageNames = map[string]string{
	"en": "English", "eng": "English",
	"ja": "Japanese", "jpn": "Japanese",
	"fr": "French", "fre": "French", "fra": "French",
	"de": "German", "ger": "German", "deu": "German",
	"es": "Spanish", "spa": "Spanish",
	"it": "Italian", "ita": "Italian",
	"pt": "Portuguese", "por": "Portuguese",
	"ru": "Russian", "rus": "Russian",
	"zh": "Chinese", "chi": "Chinese", "zho": "Chinese",
	"ko": "Korean", "kor": "Korean",
}

// AutoApply attaches every tag the input implies and returns the names it
// applied. Rows are marked auto_applied; tags a user attached or detached by
// hand are never touched, so rules only ever add.
func (svc *Service) AutoApply(ctx context.Context, bookID int, input AutoApplyInput) ([]string, error) {
	catalog, err := svc.ListTags(ctx, ListTagsOptions{})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	byCategory := make(map[string][]*models.Tag)
	for _, t := range catalog {
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}

	var matched []*models.Tag

	if input.Format != "" {
		matched = append(matched, matchExact(byCategory[models.TagCategoryFormat], input.Format)...)
	}

	if rating := normalizeMaturityRating(input.MaturityRating); rating != "" {
		matched = append(matched, matchExact(byCategory[models.TagCategoryContentRating], rating)...)
	}

	for _, category := range input.Categories {
		matched = append(matched, matchGenres(byCategory[models.TagCategoryGenre], category)...)
	}

	if strings.TrimSpace(input.Series) != "" {
		matched = append(matched, matchExact(byCategory[models.TagCategoryCollection], "Series")...)
	}

	if name := languageTagName(input.Language); name != "" {
		matched = append(matched, matchExact(byCategory[models.TagCategoryLanguage], name)...)
	}

	applied := make([]string, 0, len(matched))
	seen := make(map[int]bool, len(matched))
	for _, tag := range matched {
		if seen[tag.ID] {
			continue
		}
		seen[tag.ID] = true

		err := svc.AttachTag(ctx, &models.BookTag{
			BookID:      bookID,
			TagID:       tag.ID,
			AutoApplied: true,
		})
		if err != nil {
			return applied, err
		}
		applied = append(applied, tag.Name)
	}

	return applied, nil
}

func matchExact(tags []*models.Tag, name string) []*models.Tag {
	for _, t := range tags {
		if strings.EqualFold(t.Name, strings.TrimSpace(name)) {
			return []*models.Tag{t}
		}
	}
	return nil
}

// matchGenres matches a free-form provider category against the genre tags.
// The category is split on its hierarchy separators; each segment resolves
// through the alias table or, failing that, matches case-insensitively by
// containing a tag name, so "Thrillers" hits "Thriller" and "Fantasy /
// Science Fiction" hits both.
func matchGenres(tags []*models.Tag, category string) []*models.Tag {
	var matched []*models.Tag
	segments := strings.FieldsFunc(category, func(r rune) bool {
		return r == '/' || r == ',' || r == ';'
	})
	for _, segment := range segments {
		matched = append(matched, matchSegment(tags, segment)...)
	}
	return matched
}

func matchSegment(tags []*models.Tag, segment string) []*models.Tag {
	segment = strings.ToLower(strings.TrimSpace(segment))
	if segment == "" {
		return nil
	}

	if aliases, ok := genreAliases[segment]; ok {
		var matched []*models.Tag
		for _, name := range aliases {
			matched = append(matched, matchExact(tags, name)...)
		}
		return matched
	}

	var candidates []*models.Tag
	for _, t := range tags {
		if strings.Contains(segment, strings.ToLower(t.Name)) {
			candidates = append(candidates, t)
		}
	}

	// The most specific name wins within a segment: "science fiction"
	// contains "fiction" and "science" but means neither on its own.
	var matched []*models.Tag
	for _, c := range candidates {
		shadowed := false
		for _, other := range candidates {
			if other == c {
				continue
			}
			cn := strings.ToLower(c.Name)
			on := strings.ToLower(other.Name)
			if cn != on && strings.Contains(on, cn) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			matched = append(matched, c)
		}
	}
	return matched
}

func normalizeMaturityRating(rating string) string {
	rating = strings.ToLower(strings.TrimSpace(rating))
	if rating == "" {
		return ""
	}
	return maturityRatings[rating]
}

func languageTagName(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return ""
	}

	// Region subtags like en-US carry no extra signal here.
	if idx := strings.IndexAny(lang, "-_"); idx > 0 {
		lang = lang[:idx]
	}

	if name, ok := languageNames[lang]; ok {
		return name
	}

	// The metadata may already carry a full language name.
	for _, name := range languageNames {
		if strings.EqualFold(name, lang) {
			return name
		}
	}

	return ""
}
