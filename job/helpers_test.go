package job

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"pixpack/models"
)

type zipFile struct {
	name string
	data []byte
}

func buildArchive(t *testing.T, files ...zipFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.name)
		require.NoError(t, err)
		_, err = w.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func noise(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 255
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func translucentPNG(t *testing.T, w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 100})
		}
	}
	return encodePNG(t, img)
}

// withOrientation splices an EXIF APP1 segment holding only an orientation tag
// in front of an encoded JPEG.
func withOrientation(jpegData []byte, o uint16) []byte {
	var tiff bytes.Buffer
	tiff.WriteString("MM\x00\x2A")
	binary.Write(&tiff, binary.BigEndian, uint32(8))
	binary.Write(&tiff, binary.BigEndian, uint16(1))
	binary.Write(&tiff, binary.BigEndian, uint16(0x0112))
	binary.Write(&tiff, binary.BigEndian, uint16(3))
	binary.Write(&tiff, binary.BigEndian, uint32(1))
	binary.Write(&tiff, binary.BigEndian, o)
	binary.Write(&tiff, binary.BigEndian, uint16(0))
	binary.Write(&tiff, binary.BigEndian, uint32(0))
	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpegData[2:])
	return out.Bytes()
}

// recorder collects messages and rebuilds the output archive.
type recorder struct {
	mu       sync.Mutex
	messages []models.Message
}

func (r *recorder) Emit(msg models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recorder) kinds() []models.MessageKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []models.MessageKind
	for _, m := range r.messages {
		kinds = append(kinds, m.Kind)
	}
	return kinds
}

func (r *recorder) count(kind models.MessageKind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (r *recorder) archive() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []byte
	for _, m := range r.messages {
		if m.Kind == models.KindArchiveChunk {
			out = append(out, m.Chunk...)
		}
	}
	return out
}

func (r *recorder) entries() []models.EntryOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.EntryOutcome
	for _, m := range r.messages {
		if m.Kind == models.KindEntryProgress {
			out = append(out, *m.Entry)
		}
	}
	return out
}

func (r *recorder) overall() []models.OverallProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.OverallProgress
	for _, m := range r.messages {
		if m.Kind == models.KindOverallProgress {
			out = append(out, *m.Overall)
		}
	}
	return out
}

func readOutput(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = body
	}
	return out
}
