// Package sidecar reads and writes per-book metadata files. A sidecar lives
// next to the book it describes as <filename>.metadata.json and carries
// user edits that must survive rescans and file replacement.
package sidecar

import (
	"encoding/json"
	"os"

	"github.com/codexlibris/codex/pkg/fileutils"
	"github.com/codexlibris/codex/pkg/models"
	"github.com/pkg/errors"
)

// Path returns the sidecar path for a book file.
func Path(bookPath string) string {
	return bookPath + Suffix
}

// Exists reports whether a sidecar file exists for the given book.
func Exists(bookPath string) bool {
	return fileutils.FileExists(Path(bookPath))
}

// Read loads the sidecar for a book. Returns (nil, nil) when no sidecar
// exists, so callers can treat absence as "no overrides".
func Read(bookPath string) (*Sidecar, error) {
	data, err := os.ReadFile(Path(bookPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	s := &Sidecar{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, errors.Wrapf(err, "parsing sidecar for %s", bookPath)
	}

	return s, nil
}

// Write persists the sidecar next to the book file. The write is atomic so a
// concurrent scan never observes a half-written sidecar.
func Write(bookPath string, s *Sidecar) error {
	if s.Version == 0 {
		s.Version = CurrentVersion
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	data = append(data, '\n')

	return fileutils.WriteFileAtomic(Path(bookPath), data, 0644)
}

// Remove deletes a book's sidecar. Missing files are not an error.
func Remove(bookPath string) error {
	if err := os.Remove(Path(bookPath)); err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}

// FromBook builds a sidecar from a book's stored metadata. Tag-derived fields
// like series and genres are left for the caller, which knows the book's tags.
func FromBook(b *models.Book) *Sidecar {
	s := &Sidecar{Version: CurrentVersion, Title: b.Name}

	if b.Author != nil && b.Author.Name != "" {
		s.Authors = []string{b.Author.Name}
	}
	if b.ISBN != nil {
		s.ISBN = *b.ISBN
	}
	if b.Description != nil {
		s.Description = *b.Description
	}
	if b.Publisher != nil {
		s.Publisher = *b.Publisher
	}
	if b.PublicationDate != nil {
		s.PublicationDate = *b.PublicationDate
	}

	return s
}
