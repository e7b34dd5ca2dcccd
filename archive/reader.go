// Package archive reads input zip archives and writes the output archive incrementally.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"

	"pixpack/models"
)

// Reader lists and reads entries of an in-memory zip archive.
type Reader struct {
	zr *zip.Reader
}

// Open parses the central directory of data. Entry contents are not touched.
func Open(data []byte) (*Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}
	return &Reader{zr: zr}, nil
}

// Entries returns every file entry in listing order. Directory entries are omitted.
// Data is left empty until ReadEntry.
func (r *Reader) Entries() []models.Entry {
	entries := make([]models.Entry, 0, len(r.zr.File))
	for i, f := range r.zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		entries = append(entries, models.Entry{
			Index:            i,
			RawName:          f.Name,
			UncompressedSize: f.UncompressedSize64,
		})
	}
	return entries
}

// ReadEntry loads the bytes of e into e.Data. limit <= 0 disables the size check.
// The declared size is checked first, then the actual stream, so a lying header cannot
// inflate past limit.
func (r *Reader) ReadEntry(e *models.Entry, limit int64) error {
	if e.Index < 0 || e.Index >= len(r.zr.File) {
		return fmt.Errorf("entry index %d out of range", e.Index)
	}
	f := r.zr.File[e.Index]
	if limit > 0 && f.UncompressedSize64 > uint64(limit) {
		return ErrEntryTooLarge
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	var src io.Reader = rc
	if limit > 0 {
		src = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("failed to read entry %s: %w", f.Name, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return ErrEntryTooLarge
	}
	e.Data = data
	return nil
}
