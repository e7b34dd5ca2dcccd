package encoder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"pixpack/models"
)

// sizeCodec produces size(w, h, q) bytes and records every probe.
type sizeCodec struct {
	size   func(w, h int, q float64) int
	probes []probe
	last   image.Image
}

type probe struct {
	w, h int
	q    float64
	n    int
}

func (c *sizeCodec) Decode(context.Context, []byte) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func (c *sizeCodec) Encode(_ context.Context, img image.Image, q float64) ([]byte, error) {
	b := img.Bounds()
	n := c.size(b.Dx(), b.Dy(), q)
	c.probes = append(c.probes, probe{w: b.Dx(), h: b.Dy(), q: q, n: n})
	c.last = img
	return make([]byte, n), nil
}

func areaTimesQuality(w, h int, q float64) int { return int(float64(w*h) * q) }

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	return img
}

func rules(maxBytes int64) models.Rules {
	r := models.DefaultRules()
	r.MaxBytes = maxBytes
	return r
}

func TestNeedsProcessing(t *testing.T) {
	r := models.DefaultRules()
	require.False(t, NeedsProcessing(5000, 5000, 1<<30, r), "no limits set")

	r.MaxLongEdge = 1000
	require.True(t, NeedsProcessing(1001, 10, 1, r))
	require.True(t, NeedsProcessing(10, 1001, 1, r))
	require.False(t, NeedsProcessing(1000, 1000, 1, r))

	r = rules(500)
	require.True(t, NeedsProcessing(1, 1, 501, r))
	require.False(t, NeedsProcessing(1, 1, 500, r))
}

func TestTargetFormat(t *testing.T) {
	r := models.DefaultRules()
	require.Equal(t, models.FormatJPEG, TargetFormat(models.FormatJPEG, r))
	require.Equal(t, models.FormatJPEG, TargetFormat(models.FormatPNG, r))

	r.Format = models.FormatPreferencePNG
	require.Equal(t, models.FormatPNG, TargetFormat(models.FormatJPEG, r))
	require.Equal(t, models.FormatJPEG, TargetFormat(models.FormatPNG, r), "png input is always flattened to jpeg")

	r.Format = models.FormatPreferenceAuto
	require.Equal(t, models.FormatJPEG, TargetFormat(models.FormatJPEG, r))
}

func TestTargetDimensions(t *testing.T) {
	r := models.DefaultRules()
	w, h := TargetDimensions(4000, 3000, r)
	require.Equal(t, []int{4000, 3000}, []int{w, h}, "unset long edge leaves dimensions alone")

	r.MaxLongEdge = 2000
	w, h = TargetDimensions(4000, 3000, r)
	require.Equal(t, []int{2000, 1500}, []int{w, h})

	w, h = TargetDimensions(1000, 3001, r)
	require.Equal(t, []int{666, 2000}, []int{w, h})

	r.MaxLongEdge = 10
	w, h = TargetDimensions(3, 1000, r)
	require.Equal(t, []int{1, 10}, []int{w, h}, "sides never drop below one pixel")

	w, h = TargetDimensions(8, 6, r)
	require.Equal(t, []int{8, 6}, []int{w, h}, "dimensions never increase")
}

func TestBudgetFitsAtFirstLevel(t *testing.T) {
	codec := &sizeCodec{size: areaTimesQuality}
	enc := NewBudgetEncoder(Codecs{models.FormatJPEG: codec})

	r := rules(7000)
	res, err := enc.Encode(context.Background(), solid(100, 100), models.FormatJPEG, r)
	require.NoError(t, err)
	require.True(t, res.FitsBudget)
	require.LessOrEqual(t, int64(len(res.Data)), r.MaxBytes)
	require.Equal(t, SearchIterations, res.Iterations)
	require.Equal(t, 1, res.SizeLevels)
	require.Equal(t, 100, res.Width)
	require.Len(t, codec.probes, SearchIterations)

	for _, p := range codec.probes {
		require.GreaterOrEqual(t, p.q, r.MinQuality)
		require.LessOrEqual(t, p.q, r.Quality)
		if p.q > res.Quality {
			require.Greater(t, int64(p.n), r.MaxBytes, "a higher quality probe that fits should have won")
		}
	}
}

func TestBudgetStepsDownDimensions(t *testing.T) {
	codec := &sizeCodec{size: areaTimesQuality}
	enc := NewBudgetEncoder(Codecs{models.FormatJPEG: codec})

	r := rules(3000)
	res, err := enc.Encode(context.Background(), solid(100, 100), models.FormatJPEG, r)
	require.NoError(t, err)
	require.True(t, res.FitsBudget)
	require.Less(t, res.Width, 100)
	require.Greater(t, res.SizeLevels, 1)
	require.Equal(t, SearchIterations*res.SizeLevels, res.Iterations)

	prevW := 100
	for i, p := range codec.probes {
		require.LessOrEqual(t, p.w, prevW, "dimensions never increase")
		if p.w < prevW {
			require.Zero(t, i%SearchIterations, "downscale only after a full quality search")
		}
		prevW = p.w
	}
}

func TestBudgetUnreachableReturnsSmallest(t *testing.T) {
	codec := &sizeCodec{size: func(w, h int, q float64) int { return 1000 + int(q*10) }}
	enc := NewBudgetEncoder(Codecs{models.FormatJPEG: codec})

	res, err := enc.Encode(context.Background(), solid(20, 10), models.FormatJPEG, rules(10))
	require.NoError(t, err)
	require.False(t, res.FitsBudget)
	require.Equal(t, 1, res.Width)
	require.Equal(t, 1, res.Height)
	require.Equal(t, SearchIterations*res.SizeLevels, res.Iterations)

	for _, p := range codec.probes {
		require.GreaterOrEqual(t, p.n, len(res.Data))
	}
}

func TestBudgetUnreachableTiePrefersSmallerLevel(t *testing.T) {
	// Container overhead dominates once the image is small: every level under 20x20 costs the same.
	codec := &sizeCodec{size: func(w, h int, _ float64) int { return max(400, w*h) }}
	enc := NewBudgetEncoder(Codecs{models.FormatJPEG: codec})

	res, err := enc.Encode(context.Background(), solid(64, 32), models.FormatJPEG, rules(10))
	require.NoError(t, err)
	require.False(t, res.FitsBudget)
	require.Len(t, res.Data, 400)
	require.Equal(t, []int{1, 1}, []int{res.Width, res.Height}, "equal sizes resolve to the last level tried")
}

func TestBudgetWithoutMaxBytesEncodesOnce(t *testing.T) {
	codec := &sizeCodec{size: areaTimesQuality}
	enc := NewBudgetEncoder(Codecs{models.FormatJPEG: codec})

	r := models.DefaultRules()
	r.MaxLongEdge = 50
	res, err := enc.Encode(context.Background(), solid(200, 100), models.FormatJPEG, r)
	require.NoError(t, err)
	require.Equal(t, 1, res.Iterations)
	require.Equal(t, []int{50, 25}, []int{res.Width, res.Height})
	require.Equal(t, r.Quality, res.Quality)
	require.True(t, res.FitsBudget)
}

func TestBudgetPNGEncodesOncePerLevel(t *testing.T) {
	codec := &sizeCodec{size: func(w, h int, _ float64) int { return w * h }}
	enc := NewBudgetEncoder(Codecs{models.FormatPNG: codec})

	res, err := enc.Encode(context.Background(), solid(10, 10), models.FormatPNG, rules(50))
	require.NoError(t, err)
	require.True(t, res.FitsBudget)
	require.Equal(t, res.SizeLevels, res.Iterations)
	require.LessOrEqual(t, len(res.Data), 50)
	require.Zero(t, res.Quality)
}

func TestBudgetFlattensAlphaForJPEG(t *testing.T) {
	codec := &sizeCodec{size: areaTimesQuality}
	enc := NewBudgetEncoder(Codecs{models.FormatJPEG: codec})

	transparent := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	_, err := enc.Encode(context.Background(), transparent, models.FormatJPEG, models.DefaultRules())
	require.NoError(t, err)

	r, g, b, a := codec.last.At(0, 0).RGBA()
	require.Equal(t, []uint32{0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF}, []uint32{r, g, b, a})
}

func TestBudgetErrors(t *testing.T) {
	enc := NewBudgetEncoder(Codecs{})
	_, err := enc.Encode(context.Background(), solid(2, 2), models.FormatJPEG, models.DefaultRules())
	require.ErrorIs(t, err, ErrNoCodec)

	enc = NewBudgetEncoder(Codecs{models.FormatJPEG: &sizeCodec{size: areaTimesQuality}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = enc.Encode(ctx, solid(2, 2), models.FormatJPEG, rules(1))
	require.ErrorIs(t, err, context.Canceled)

	enc = NewBudgetEncoder(Codecs{models.FormatJPEG: &sizeCodec{size: func(int, int, float64) int { return 0 }}})
	_, err = enc.Encode(context.Background(), solid(2, 2), models.FormatJPEG, models.DefaultRules())
	require.ErrorIs(t, err, ErrEmptyEncoded)
}

func TestNativeBudgetSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}

	enc := NewBudgetEncoder(Codecs{models.FormatJPEG: NativeJPEG{}})
	r := rules(20000)
	res, err := enc.Encode(context.Background(), img, models.FormatJPEG, r)
	require.NoError(t, err)
	require.True(t, res.FitsBudget)
	require.LessOrEqual(t, int64(len(res.Data)), r.MaxBytes)

	decoded, err := NativeJPEG{}.Decode(context.Background(), res.Data)
	require.NoError(t, err)
	require.Equal(t, res.Width, decoded.Bounds().Dx())
	require.Equal(t, res.Height, decoded.Bounds().Dy())
}

func TestNativePNGRoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 128})

	data, err := NativePNG{}.Encode(context.Background(), src, 0.5)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	img, err := NativePNG{}.Decode(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, src.At(1, 1), img.At(1, 1))

	_, err = NativeJPEG{}.Decode(context.Background(), data)
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	saved := Registry
	Registry = Codecs{}
	defer func() { Registry = saved }()

	RegisterDefaults()
	c, ok := Get(models.FormatJPEG)
	require.True(t, ok)
	require.IsType(t, NativeJPEG{}, c)
	_, ok = Get(models.FormatPNG)
	require.True(t, ok)

	Register(models.FormatJPEG, "pixpack-no-such-binary", MagickCodec{Format: models.FormatJPEG})
	c, _ = Get(models.FormatJPEG)
	require.IsType(t, NativeJPEG{}, c, "missing binary keeps the existing codec")

	require.Equal(t, 1, jpegQuality(0))
	require.Equal(t, 82, jpegQuality(0.82))
	require.Equal(t, 100, jpegQuality(1.5))
}
