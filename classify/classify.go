// Package classify decides which archive entries are image candidates and which format
// their bytes actually hold.
package classify

import (
	"bytes"
	"path"
	"strings"

	"pixpack/models"
)

// imageExtensions are the names that make an entry a candidate. Only jpeg and png can be
// processed; the rest are counted and reported as skipped.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".heic": true,
	".heif": true,
	".avif": true,
}

// OS metadata directories that never hold user images.
var systemSegments = map[string]bool{
	"__MACOSX":                  true,
	"$RECYCLE.BIN":              true,
	"System Volume Information": true,
}

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// HasJPEGMagic reports whether data starts with SOI and ends with EOI.
func HasJPEGMagic(data []byte) bool {
	n := len(data)
	return n >= 4 &&
		data[0] == 0xFF && data[1] == 0xD8 &&
		data[n-2] == 0xFF && data[n-1] == 0xD9
}

// HasPNGMagic reports whether data starts with the 8-byte PNG signature.
func HasPNGMagic(data []byte) bool {
	return bytes.HasPrefix(data, pngSignature)
}

// nameHint returns the format suggested by the file extension alone.
func nameHint(rawName string) models.Format {
	switch strings.ToLower(path.Ext(normalize(rawName))) {
	case ".jpg", ".jpeg":
		return models.FormatJPEG
	case ".png":
		return models.FormatPNG
	default:
		return models.FormatNone
	}
}

// Classify resolves the real format of an entry. Magic bytes always win; the name only
// decides the order in which signatures are checked.
func Classify(rawName string, data []byte) models.Format {
	hint := nameHint(rawName)
	isJPEG := HasJPEGMagic(data)
	isPNG := HasPNGMagic(data)

	if (hint == models.FormatJPEG || hint == models.FormatNone) && isJPEG {
		return models.FormatJPEG
	}
	if hint == models.FormatPNG && isPNG {
		return models.FormatPNG
	}
	switch {
	case isPNG:
		return models.FormatPNG
	case isJPEG:
		return models.FormatJPEG
	default:
		return models.FormatNone
	}
}

// IsCandidate filters archive listings: directories, hidden or system entries and
// non-image names are dropped before any processing or counting.
func IsCandidate(rawName string) bool {
	if rawName == "" || strings.HasSuffix(rawName, "/") || strings.HasSuffix(rawName, "\\") {
		return false
	}
	name := normalize(rawName)
	for _, segment := range strings.Split(name, "/") {
		if strings.HasPrefix(segment, ".") || systemSegments[segment] {
			return false
		}
	}
	return imageExtensions[strings.ToLower(path.Ext(name))]
}

// SanitizeName flattens an archive path into a safe output entry name.
func SanitizeName(rawName string) string {
	name := normalize(rawName)
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isSafe(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}

// OutputName returns the entry name for an output in format f. The extension is replaced
// when it does not already belong to f (photo.png -> photo.jpg, photo.jpeg stays).
func OutputName(sanitized string, f models.Format) string {
	if f == models.FormatNone || nameHint(sanitized) == f {
		return sanitized
	}
	ext := path.Ext(sanitized)
	stem := strings.TrimSuffix(sanitized, ext)
	if stem == "" {
		stem = "image"
	}
	return stem + f.Extension()
}

func normalize(rawName string) string {
	return strings.ReplaceAll(rawName, "\\", "/")
}

func isSafe(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '.' || r == '_' || r == '-'
}
