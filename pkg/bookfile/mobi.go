package bookfile

import (
	"bytes"
	"encoding/binary"
	"os"
	"strings"

	"github.com/codexlibris/codex/pkg/identifiers"
	"github.com/pkg/errors"
)

const (
	palmHeaderSize      = 78
	palmRecordEntrySize = 8

	// Record 0 holds every header we read; legitimate files keep it small.
	mobiRecordZeroCap = 128 * 1024
)

// EXTH record types that map onto book metadata.
const (
	exthAuthor       = 100
	exthPublisher    = 101
	exthDescription  = 103
	exthISBN         = 104
	exthPublishDate  = 106
	exthLanguage     = 524
	exthUpdatedTitle = 503
)

// ParseMOBI reads metadata from the PalmDB, MOBI, and EXTH headers of a MOBI
// or AZW3 file. The metadata lives in binary headers with self-described
// offsets, so any structural surprise degrades to whatever was readable
// rather than failing the file.
func ParseMOBI(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	stats, err := f.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	header := make([]byte, palmHeaderSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		return &Metadata{}, nil
	}

	md := &Metadata{}

	// The database name is the title truncated to 31 bytes; it is the
	// fallback when the MOBI header is unreadable.
	md.Title = string(bytes.TrimRight(header[0:32], "\x00"))

	dbType := string(header[60:64])
	dbCreator := string(header[64:68])
	if dbType != "BOOK" || dbCreator != "MOBI" {
		return md, nil
	}

	numRecords := binary.BigEndian.Uint16(header[76:78])
	if numRecords == 0 {
		return md, nil
	}

	entries := make([]byte, int(numRecords)*palmRecordEntrySize)
	if _, err := f.ReadAt(entries, palmHeaderSize); err != nil {
		return md, nil
	}

	recordStart := int64(binary.BigEndian.Uint32(entries[0:4]))
	recordEnd := stats.Size()
	if numRecords > 1 {
		recordEnd = int64(binary.BigEndian.Uint32(entries[palmRecordEntrySize : palmRecordEntrySize+4]))
	}
	if recordStart < palmHeaderSize || recordEnd <= recordStart || recordEnd > stats.Size() {
		return md, nil
	}

	size := recordEnd - recordStart
	if size > mobiRecordZeroCap {
		size = mobiRecordZeroCap
	}
	record := make([]byte, size)
	if _, err := f.ReadAt(record, recordStart); err != nil {
		return md, nil
	}

	parseMOBIRecordZero(record, md)
	return md, nil
}

// parseMOBIRecordZero fills md from the MOBI header and the EXTH records that
// follow it. record starts with the 16-byte PalmDOC header.
func parseMOBIRecordZero(record []byte, md *Metadata) {
	const mobiStart = 16
	if len(record) < mobiStart+132 || string(record[mobiStart:mobiStart+4]) != "MOBI" {
		return
	}

	headerLength := binary.BigEndian.Uint32(record[mobiStart+4 : mobiStart+8])

	// The full name supersedes the truncated database name.
	fullNameOffset := binary.BigEndian.Uint32(record[mobiStart+68 : mobiStart+72])
	fullNameLength := binary.BigEndian.Uint32(record[mobiStart+72 : mobiStart+76])
	if fullNameLength > 0 && int(fullNameOffset)+int(fullNameLength) <= len(record) {
		if name := strings.TrimSpace(string(record[fullNameOffset : fullNameOffset+fullNameLength])); name != "" {
			md.Title = name
		}
	}

	exthFlags := binary.BigEndian.Uint32(record[mobiStart+112 : mobiStart+116])
	if exthFlags&0x40 == 0 {
		return
	}

	exthStart := mobiStart + int(headerLength)
	if exthStart+12 > len(record) || string(record[exthStart:exthStart+4]) != "EXTH" {
		return
	}

	recordCount := binary.BigEndian.Uint32(record[exthStart+8 : exthStart+12])
	pos := exthStart + 12
	for i := uint32(0); i < recordCount; i++ {
		if pos+8 > len(record) {
			return
		}
		recType := binary.BigEndian.Uint32(record[pos : pos+4])
		recLength := int(binary.BigEndian.Uint32(record[pos+4 : pos+8]))
		if recLength < 8 || pos+recLength > len(record) {
			return
		}
		value := strings.TrimSpace(string(record[pos+8 : pos+recLength]))
		pos += recLength

		if value == "" {
			continue
		}
		switch recType {
		case exthAuthor:
			md.Authors = append(md.Authors, value)
		case exthPublisher:
			md.Publisher = value
		case exthDescription:
			md.Description = value
		case exthISBN:
			isbn := identifiers.NormalizeISBN(value)
			idType := identifiers.DetectType(isbn, "")
			if idType == identifiers.TypeISBN10 || idType == identifiers.TypeISBN13 {
				md.Identifiers = append(md.Identifiers, Identifier{Type: idType, Value: isbn})
			}
		case exthPublishDate:
			if idx := strings.IndexByte(value, 'T'); idx > 0 {
				value = value[:idx]
			}
			md.PublicationDate = value
		case exthLanguage:
			md.Language = value
		case exthUpdatedTitle:
			md.Title = value
		}
	}
}
