package encoder

import (
	"context"
	"image"
	"os/exec"

	"pixpack/logger"
	"pixpack/models"
)

// Codec is the capability boundary to an image backend: bytes in, pixels out and back.
// quality is in [0, 1]; formats without a quality knob ignore it.
type Codec interface {
	Decode(ctx context.Context, data []byte) (image.Image, error)
	Encode(ctx context.Context, img image.Image, quality float64) ([]byte, error)
}

// Codecs maps a format to the backend that reads and writes it.
type Codecs map[models.Format]Codec

// Get returns the codec for format.
func (c Codecs) Get(format models.Format) (Codec, bool) {
	codec, ok := c[format]
	return codec, ok
}

// Registry is the process-wide set of codecs used by the server and the CLI.
var Registry = Codecs{}

// Register adds codec if the underlying command exists, logs status.
// An empty cmdName means the codec is in-process and always available.
func Register(format models.Format, cmdName string, codec Codec) {
	if cmdName != "" {
		if _, err := exec.LookPath(cmdName); err != nil {
			logger.Warnf("codec [%s] skipped: command '%s' not found in PATH", format, cmdName)
			return
		}
	}
	Registry[format] = codec
	if cmdName == "" {
		cmdName = "native"
	}
	logger.Debugf("codec [%s] registered (backend: %s)", format, cmdName)
}

// Get looks up a codec in the Registry.
func Get(format models.Format) (Codec, bool) {
	return Registry.Get(format)
}

// RegisterDefaults installs the in-process jpeg and png codecs.
func RegisterDefaults() {
	Register(models.FormatJPEG, "", NativeJPEG{})
	Register(models.FormatPNG, "", NativePNG{})
}

// RegisterMagick replaces the defaults with ImageMagick where the binary is installed.
// Formats keep their native codec when magick is missing.
func RegisterMagick() {
	Register(models.FormatJPEG, magickCmd, MagickCodec{Format: models.FormatJPEG})
	Register(models.FormatPNG, magickCmd, MagickCodec{Format: models.FormatPNG})
}
