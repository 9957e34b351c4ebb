package testgen

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// GenerateMOBI creates a minimal MOBI file at the specified path with the
// given options: a PalmDB shell with a BOOK/MOBI type signature, a record 0
// carrying the PalmDOC, MOBI, and EXTH headers plus the full book name, and
// one text record.
func GenerateMOBI(t *testing.T, dir, filename string, opts MOBIOptions) string {
	t.Helper()

	text := []byte("Generated for tests.")

	// EXTH block: (type, length, data) records padded to a 4-byte boundary.
	type exthRec struct {
		typ  uint32
		data string
	}
	var recs []exthRec
	add := func(typ uint32, val string) {
		if val != "" {
			recs = append(recs, exthRec{typ: typ, data: val})
		}
	}
	add(100, opts.Author)
	add(101, opts.Publisher)
	add(103, opts.Description)
	add(104, opts.ISBN)
	add(106, opts.Date)
	add(524, opts.Language)

	var exth []byte
	if len(recs) > 0 {
		var body bytes.Buffer
		for _, r := range recs {
			var head [8]byte
			binary.BigEndian.PutUint32(head[0:4], r.typ)
			binary.BigEndian.PutUint32(head[4:8], uint32(8+len(r.data)))
			body.Write(head[:])
			body.WriteString(r.data)
		}
		total := 12 + body.Len()
		pad := (4 - total%4) % 4
		exth = make([]byte, total+pad)
		copy(exth[0:4], "EXTH")
		binary.BigEndian.PutUint32(exth[4:8], uint32(total+pad))
		binary.BigEndian.PutUint32(exth[8:12], uint32(len(recs)))
		copy(exth[12:], body.Bytes())
	}

	const mobiHeaderLen = 232
	fullNameOffset := 16 + mobiHeaderLen + len(exth)
	record0 := make([]byte, fullNameOffset+len(opts.Title)+2)

	// PalmDOC header: no compression, one text record.
	binary.BigEndian.PutUint16(record0[0:2], 1)
	binary.BigEndian.PutUint32(record0[4:8], uint32(len(text)))
	binary.BigEndian.PutUint16(record0[8:10], 1)
	binary.BigEndian.PutUint16(record0[10:12], 4096)

	m := record0[16:]
	copy(m[0:4], "MOBI")
	binary.BigEndian.PutUint32(m[4:8], mobiHeaderLen)
	binary.BigEndian.PutUint32(m[8:12], 2)      // mobi type: book
	binary.BigEndian.PutUint32(m[12:16], 65001) // utf-8
	binary.BigEndian.PutUint32(m[16:20], 42)    // unique id
	binary.BigEndian.PutUint32(m[20:24], 6)     // file version
	binary.BigEndian.PutUint32(m[68:72], uint32(fullNameOffset))
	binary.BigEndian.PutUint32(m[72:76], uint32(len(opts.Title)))
	binary.BigEndian.PutUint32(m[76:80], 9) // locale: en
	binary.BigEndian.PutUint32(m[88:92], 6) // min version
	if len(exth) > 0 {
		binary.BigEndian.PutUint32(m[112:116], 0x40)
	}
	copy(record0[16+mobiHeaderLen:], exth)
	copy(record0[fullNameOffset:], opts.Title)

	// PalmDB shell: header, record list, 2-byte pad, records.
	const numRecords = 2
	record0Offset := 78 + numRecords*8 + 2
	record1Offset := record0Offset + len(record0)

	header := make([]byte, 78)
	name := opts.Title
	if len(name) > 31 {
		name = name[:31]
	}
	copy(header[0:32], name)
	copy(header[60:64], "BOOK")
	copy(header[64:68], "MOBI")
	binary.BigEndian.PutUint32(header[68:72], uint32(numRecords))
	binary.BigEndian.PutUint16(header[76:78], numRecords)

	var out bytes.Buffer
	out.Write(header)

	entry := make([]byte, 8)
	binary.BigEndian.PutUint32(entry[0:4], uint32(record0Offset))
	out.Write(entry)
	binary.BigEndian.PutUint32(entry[0:4], uint32(record1Offset))
	entry[7] = 1
	out.Write(entry)
	out.Write([]byte{0, 0})

	out.Write(record0)
	out.Write(text)

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, out.Bytes(), 0600); err != nil {
		t.Fatalf("failed to write MOBI file: %v", err)
	}
	return path
}
