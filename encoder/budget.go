package encoder

import (
	"context"
	"fmt"
	"image"
	"math"

	"pixpack/logger"
	"pixpack/models"
)

// SearchIterations is the fixed number of quality probes per size level.
const SearchIterations = 8

// Result is the outcome of a budget search.
type Result struct {
	Data       []byte
	Format     models.Format
	Width      int
	Height     int
	Quality    float64 // 0 for formats without a quality knob
	Iterations int     // encodes performed across all size levels
	SizeLevels int
	FitsBudget bool // false when the search gave up and returned its smallest attempt
}

// NeedsProcessing reports whether an image breaks the long-edge or byte limits.
func NeedsProcessing(w, h int, originalSize int64, rules models.Rules) bool {
	if rules.MaxLongEdge > 0 && max(w, h) > rules.MaxLongEdge {
		return true
	}
	return rules.MaxBytes > 0 && originalSize > rules.MaxBytes
}

// TargetFormat picks the output format. PNG input always becomes JPEG; JPEG input stays
// JPEG unless the rules ask for PNG.
func TargetFormat(in models.Format, rules models.Rules) models.Format {
	if in == models.FormatJPEG && rules.Format == models.FormatPreferencePNG {
		return models.FormatPNG
	}
	return models.FormatJPEG
}

// TargetDimensions fits w x h inside MaxLongEdge, preserving aspect ratio.
func TargetDimensions(w, h int, rules models.Rules) (int, int) {
	longer := max(w, h)
	if rules.MaxLongEdge <= 0 || longer <= rules.MaxLongEdge {
		return w, h
	}
	scale := float64(rules.MaxLongEdge) / float64(longer)
	return scaleDim(w, scale, math.Round), scaleDim(h, scale, math.Round)
}

// stepDown shrinks both sides by ratio. Flooring guarantees progress until 1x1.
func stepDown(w, h int, ratio float64) (int, int) {
	return scaleDim(w, ratio, math.Floor), scaleDim(h, ratio, math.Floor)
}

func scaleDim(v int, scale float64, round func(float64) float64) int {
	return max(1, int(round(float64(v)*scale)))
}

// BudgetEncoder searches quality and dimensions for the best encoding under MaxBytes.
type BudgetEncoder struct {
	codecs Codecs
}

// NewBudgetEncoder returns an encoder backed by codecs. A nil set uses the Registry.
func NewBudgetEncoder(codecs Codecs) *BudgetEncoder {
	if codecs == nil {
		codecs = Registry
	}
	return &BudgetEncoder{codecs: codecs}
}

// Encode produces img in format within rules. Search per size level:
// bisect quality in [MinQuality, Quality] for SearchIterations probes, moving up after a
// fit and down after a miss. The highest fitting quality wins. Without a fit, dimensions
// shrink by StepDownRatio and the search repeats; once they stop shrinking the smallest
// attempt is returned with FitsBudget false.
func (e *BudgetEncoder) Encode(ctx context.Context, img image.Image, format models.Format, rules models.Rules) (*Result, error) {
	codec, ok := e.codecs.Get(format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCodec, format)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}
	if format == models.FormatJPEG {
		img = flatten(img)
	}

	w, h := TargetDimensions(b.Dx(), b.Dy(), rules)
	res := &Result{Format: format}
	var smallest *Result

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.SizeLevels++
		scaled := resize(img, w, h)

		var fit, best *Result
		var err error
		switch {
		case rules.MaxBytes <= 0:
			q := rules.Quality
			if format != models.FormatJPEG {
				q = 0
			}
			fit, err = e.encodeOnce(ctx, codec, scaled, q, format, res)
		case format != models.FormatJPEG:
			fit, best, err = e.encodeLevel(ctx, codec, scaled, format, rules, res)
		default:
			fit, best, err = e.searchQuality(ctx, codec, scaled, rules, res)
		}
		if err != nil {
			return nil, err
		}
		if fit != nil {
			fit.Iterations, fit.SizeLevels = res.Iterations, res.SizeLevels
			fit.FitsBudget = true
			return fit, nil
		}
		if smallest == nil || len(best.Data) <= len(smallest.Data) {
			smallest = best
		}

		nw, nh := stepDown(w, h, rules.StepDownRatio)
		if nw == w && nh == h {
			logger.Debugf("budget search exhausted at %dx%d, best effort %d bytes > %d", w, h, len(smallest.Data), rules.MaxBytes)
			smallest.Iterations, smallest.SizeLevels = res.Iterations, res.SizeLevels
			return smallest, nil
		}
		logger.Debugf("no fit at %dx%d, stepping down to %dx%d", w, h, nw, nh)
		w, h = nw, nh
	}
}

// encodeOnce performs a single unconstrained encode.
func (e *BudgetEncoder) encodeOnce(ctx context.Context, codec Codec, img image.Image, q float64, format models.Format, res *Result) (*Result, error) {
	data, err := encode(ctx, codec, img, q, res)
	if err != nil {
		return nil, err
	}
	return attempt(data, format, img, q), nil
}

// encodeLevel is one encode per size level for formats without a quality knob.
func (e *BudgetEncoder) encodeLevel(ctx context.Context, codec Codec, img image.Image, format models.Format, rules models.Rules, res *Result) (fit, best *Result, err error) {
	data, err := encode(ctx, codec, img, 0, res)
	if err != nil {
		return nil, nil, err
	}
	r := attempt(data, format, img, 0)
	if int64(len(data)) <= rules.MaxBytes {
		return r, r, nil
	}
	return nil, r, nil
}

// searchQuality bisects quality at a fixed size. best is the smallest attempt seen.
func (e *BudgetEncoder) searchQuality(ctx context.Context, codec Codec, img image.Image, rules models.Rules, res *Result) (fit, best *Result, err error) {
	low, high := rules.MinQuality, rules.Quality
	for i := 0; i < SearchIterations; i++ {
		q := (low + high) / 2
		data, err := encode(ctx, codec, img, q, res)
		if err != nil {
			return nil, nil, err
		}
		r := attempt(data, models.FormatJPEG, img, q)
		if best == nil || len(data) < len(best.Data) {
			best = r
		}
		if int64(len(data)) <= rules.MaxBytes {
			fit = r
			low = q
		} else {
			high = q
		}
	}
	return fit, best, nil
}

func encode(ctx context.Context, codec Codec, img image.Image, q float64, res *Result) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Iterations++
	data, err := codec.Encode(ctx, img, q)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyEncoded
	}
	return data, nil
}

func attempt(data []byte, format models.Format, img image.Image, q float64) *Result {
	b := img.Bounds()
	return &Result{Data: data, Format: format, Width: b.Dx(), Height: b.Dy(), Quality: q}
}
