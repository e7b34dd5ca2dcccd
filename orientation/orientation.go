// Package orientation reads the EXIF orientation of JPEG entries and rotates decoded
// pixels upright so re-encoded output no longer depends on the tag.
package orientation

import (
	"bytes"
	"image"
	"image/draw"

	"github.com/rwcarlsen/goexif/exif"

	"pixpack/models"
)

// Orientation values that are honored. Mirrored variants (2, 4, 5, 7) are treated as Normal.
const (
	Normal    = 1
	Rotate180 = 3
	Rotate90  = 6 // 90 degrees clockwise
	Rotate270 = 8 // 90 degrees counter-clockwise
)

// Resolve returns the orientation of data. Only JPEG carries EXIF here; anything missing,
// unreadable or unsupported resolves to Normal.
func Resolve(format models.Format, data []byte) int {
	if format != models.FormatJPEG {
		return Normal
	}
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return Normal
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return Normal
	}
	v, err := tag.Int(0)
	if err != nil {
		return Normal
	}
	switch v {
	case Rotate180, Rotate90, Rotate270:
		return v
	default:
		return Normal
	}
}

// SwapsDimensions reports whether applying o exchanges width and height.
func SwapsDimensions(o int) bool {
	return o == Rotate90 || o == Rotate270
}

// Apply returns img rotated according to o. Normal returns img unchanged.
func Apply(img image.Image, o int) image.Image {
	if o != Rotate180 && o != Rotate90 && o != Rotate270 {
		return img
	}

	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()
	src := toNRGBA(img)

	dw, dh := sw, sh
	if SwapsDimensions(o) {
		dw, dh = sh, sw
	}
	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))

	for sy := 0; sy < sh; sy++ {
		for sx := 0; sx < sw; sx++ {
			var dx, dy int
			switch o {
			case Rotate180:
				dx, dy = sw-1-sx, sh-1-sy
			case Rotate90:
				dx, dy = sh-1-sy, sx
			case Rotate270:
				dx, dy = sy, sw-1-sx
			}
			si := sy*src.Stride + sx*4
			di := dy*dst.Stride + dx*4
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}

// toNRGBA returns img as a zero-origin NRGBA, converting when needed.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	n := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(n, n.Bounds(), img, b.Min, draw.Src)
	return n
}
