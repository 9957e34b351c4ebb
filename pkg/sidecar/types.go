package sidecar

// CurrentVersion is written into new sidecar files so the format can evolve
// without guessing at what an old file meant.
const CurrentVersion = 1

// Suffix is appended to a book's path to form its sidecar path.
const Suffix = ".metadata.json"

// Sidecar holds user-maintained metadata stored next to a book file. During a
// scan its fields override anything extracted from the file itself, while
// external provider results still take precedence.
type Sidecar struct {
	Version         int      `json:"version"`
	Title           string   `json:"title,omitempty"`
	Authors         []string `json:"authors,omitempty"`
	Description     string   `json:"description,omitempty"`
	Publisher       string   `json:"publisher,omitempty"`
	PublicationDate string   `json:"publication_date,omitempty"`
	Language        string   `json:"language,omitempty"`
	ISBN            string   `json:"isbn,omitempty"`
	Series          string   `json:"series,omitempty"`
	SeriesNumber    *float64 `json:"series_number,omitempty"`
	Genres          []string `json:"genres,omitempty"`
}

// IsEmpty reports whether the sidecar carries no metadata at all. Empty
// sidecars are not written back to disk.
func (s *Sidecar) IsEmpty() bool {
	return s.Title == "" &&
		len(s.Authors) == 0 &&
		s.Description == "" &&
		s.Publisher == "" &&
		s.PublicationDate == "" &&
		s.Language == "" &&
		s.ISBN == "" &&
		s.Series == "" &&
		s.SeriesNumber == nil &&
		len(s.Genres) == 0
}
