package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// ChunkFunc receives output bytes in order. The slice is owned by the callee.
type ChunkFunc func(chunk []byte) error

// StreamWriter builds a zip archive and hands it to a sink one entry at a time.
// Only the current entry and the chunk in flight are held in memory.
type StreamWriter struct {
	buf       bytes.Buffer
	zw        *zip.Writer
	sink      ChunkFunc
	names     *NameResolver
	level     int
	finalized bool

	entries int
	written int64
}

// NewStreamWriter returns a writer emitting to sink.
func NewStreamWriter(sink ChunkFunc) *StreamWriter {
	w := &StreamWriter{
		sink:  sink,
		names: NewNameResolver(),
		level: flate.DefaultCompression,
	}
	w.zw = zip.NewWriter(&w.buf)
	return w
}

// AddEntry compresses data under a unique variant of name and emits the finished entry
// as one chunk. It returns the name actually used.
func (w *StreamWriter) AddEntry(name string, data []byte) (string, error) {
	if w.finalized {
		return "", ErrFinalized
	}

	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, w.level)
	if err != nil {
		return "", fmt.Errorf("failed to create compressor: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("failed to compress %s: %w", name, err)
	}
	if err := fw.Close(); err != nil {
		return "", fmt.Errorf("failed to compress %s: %w", name, err)
	}

	resolved := w.names.Resolve(name)
	fh := &zip.FileHeader{
		Name:               resolved,
		Method:             zip.Deflate,
		CRC32:              crc32.ChecksumIEEE(data),
		CompressedSize64:   uint64(compressed.Len()),
		UncompressedSize64: uint64(len(data)),
		Modified:           time.Now().UTC(),
	}
	// CreateRaw writes the header as given, so the timestamp extra is added here.
	fh.Extra = modTimeExtra(fh.Modified)

	raw, err := w.zw.CreateRaw(fh)
	if err != nil {
		return "", fmt.Errorf("failed to write header for %s: %w", resolved, err)
	}
	if _, err := io.Copy(raw, &compressed); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", resolved, err)
	}
	if err := w.zw.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush %s: %w", resolved, err)
	}
	if err := w.emit(); err != nil {
		return "", err
	}
	w.entries++
	return resolved, nil
}

// Finalize writes the central directory, emits the trailing chunk and seals the writer.
func (w *StreamWriter) Finalize() error {
	if w.finalized {
		return ErrFinalized
	}
	w.finalized = true
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("failed to write central directory: %w", err)
	}
	return w.emit()
}

// Entries returns the number of entries written so far.
func (w *StreamWriter) Entries() int { return w.entries }

// BytesWritten returns the number of archive bytes handed to the sink.
func (w *StreamWriter) BytesWritten() int64 { return w.written }

func (w *StreamWriter) emit() error {
	if w.buf.Len() == 0 {
		return nil
	}
	chunk := bytes.Clone(w.buf.Bytes())
	w.buf.Reset()
	if err := w.sink(chunk); err != nil {
		return fmt.Errorf("archive sink failed: %w", err)
	}
	w.written += int64(len(chunk))
	return nil
}

// extTimeID tags the Info-ZIP extended timestamp extra field.
const extTimeID = 0x5455

// modTimeExtra encodes t as an extended timestamp carrying only the modification time.
func modTimeExtra(t time.Time) []byte {
	buf := make([]byte, 9)
	binary.LittleEndian.PutUint16(buf[0:], extTimeID)
	binary.LittleEndian.PutUint16(buf[2:], 5)
	buf[4] = 1
	binary.LittleEndian.PutUint32(buf[5:], uint32(t.Unix()))
	return buf
}
