package models

import "image"

// Format identifies an image container the pipeline understands.
type Format string

const (
	FormatNone Format = ""
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// Extension returns the canonical file extension for the format.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	default:
		return ""
	}
}

// Entry is one candidate read from the input archive.
type Entry struct {
	Index            int    // position in the archive listing
	RawName          string // name as stored in the input archive
	SanitizedName    string // flattened output name
	UncompressedSize uint64
	Data             []byte // owned, set once when the entry is read
	DetectedFormat   Format
}

// DecodedImage is a pixel buffer owned by the processing of a single entry.
type DecodedImage struct {
	Image       image.Image
	Width       int
	Height      int
	Orientation int // EXIF orientation, 1 when absent
}
