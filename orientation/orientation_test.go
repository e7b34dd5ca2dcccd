package orientation

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"

	"pixpack/models"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

// twoByOne is a 2x1 image: red on the left, blue on the right.
func twoByOne() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, red)
	img.SetNRGBA(1, 0, blue)
	return img
}

// jpegWithOrientation encodes a small JPEG and splices in an APP1 segment carrying
// a big-endian EXIF IFD0 with a single orientation entry.
func jpegWithOrientation(t *testing.T, o uint16) []byte {
	t.Helper()
	var enc bytes.Buffer
	require.NoError(t, jpeg.Encode(&enc, image.NewGray(image.Rect(0, 0, 4, 2)), nil))

	var tiff bytes.Buffer
	tiff.WriteString("MM\x00\x2A")
	binary.Write(&tiff, binary.BigEndian, uint32(8))
	binary.Write(&tiff, binary.BigEndian, uint16(1))      // entry count
	binary.Write(&tiff, binary.BigEndian, uint16(0x0112)) // Orientation
	binary.Write(&tiff, binary.BigEndian, uint16(3))      // SHORT
	binary.Write(&tiff, binary.BigEndian, uint32(1))
	binary.Write(&tiff, binary.BigEndian, o)
	binary.Write(&tiff, binary.BigEndian, uint16(0))
	binary.Write(&tiff, binary.BigEndian, uint32(0)) // no next IFD

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(enc.Bytes()[2:])
	return out.Bytes()
}

func TestResolve(t *testing.T) {
	for _, o := range []uint16{1, 3, 6, 8} {
		require.Equal(t, int(o), Resolve(models.FormatJPEG, jpegWithOrientation(t, o)), "orientation %d", o)
	}
	// mirrored variants are not honored
	require.Equal(t, Normal, Resolve(models.FormatJPEG, jpegWithOrientation(t, 2)))
	require.Equal(t, Normal, Resolve(models.FormatJPEG, jpegWithOrientation(t, 5)))
}

func TestResolveFallsBackToNormal(t *testing.T) {
	var plain bytes.Buffer
	require.NoError(t, jpeg.Encode(&plain, image.NewGray(image.Rect(0, 0, 2, 2)), nil))

	require.Equal(t, Normal, Resolve(models.FormatJPEG, plain.Bytes()))
	require.Equal(t, Normal, Resolve(models.FormatJPEG, []byte("garbage")))
	require.Equal(t, Normal, Resolve(models.FormatPNG, jpegWithOrientation(t, 6)))
}

func TestApply(t *testing.T) {
	t.Run("normal is identity", func(t *testing.T) {
		img := twoByOne()
		require.Same(t, img, Apply(img, Normal))
	})

	t.Run("rotate 180", func(t *testing.T) {
		out := Apply(twoByOne(), Rotate180)
		require.Equal(t, image.Rect(0, 0, 2, 1), out.Bounds())
		require.Equal(t, blue, out.At(0, 0))
		require.Equal(t, red, out.At(1, 0))
	})

	t.Run("rotate 90 clockwise swaps dimensions", func(t *testing.T) {
		out := Apply(twoByOne(), Rotate90)
		require.Equal(t, image.Rect(0, 0, 1, 2), out.Bounds())
		require.Equal(t, red, out.At(0, 0))
		require.Equal(t, blue, out.At(0, 1))
	})

	t.Run("rotate 90 counter-clockwise swaps dimensions", func(t *testing.T) {
		out := Apply(twoByOne(), Rotate270)
		require.Equal(t, image.Rect(0, 0, 1, 2), out.Bounds())
		require.Equal(t, blue, out.At(0, 0))
		require.Equal(t, red, out.At(0, 1))
	})

	t.Run("non-zero origin", func(t *testing.T) {
		src := image.NewNRGBA(image.Rect(5, 5, 7, 6))
		src.SetNRGBA(5, 5, red)
		src.SetNRGBA(6, 5, blue)
		out := Apply(src, Rotate180)
		require.Equal(t, blue, out.At(0, 0))
	})
}

func TestSwapsDimensions(t *testing.T) {
	require.True(t, SwapsDimensions(Rotate90))
	require.True(t, SwapsDimensions(Rotate270))
	require.False(t, SwapsDimensions(Rotate180))
	require.False(t, SwapsDimensions(Normal))
}
