package encoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strings"

	"pixpack/models"
)

const magickCmd = "magick"

// MagickCodec shells out to ImageMagick over stdin/stdout. Pixels cross the pipe as PNG.
type MagickCodec struct {
	Format models.Format
}

func (m MagickCodec) coder() string {
	if m.Format == models.FormatJPEG {
		return "jpg"
	}
	return string(m.Format)
}

func (m MagickCodec) Decode(ctx context.Context, data []byte) (image.Image, error) {
	out, err := magickRun(ctx, data, m.coder()+":-", "png:-")
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("magick decode failed: %w", err)
	}
	return img, nil
}

func (m MagickCodec) Encode(ctx context.Context, img image.Image, quality float64) ([]byte, error) {
	var in bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&in, img); err != nil {
		return nil, fmt.Errorf("magick input encode failed: %w", err)
	}

	args := []string{"png:-", "-strip"}
	if m.Format == models.FormatJPEG {
		args = append(args, "-quality", fmt.Sprint(jpegQuality(quality)))
	}
	args = append(args, m.coder()+":-")
	return magickRun(ctx, in.Bytes(), args...)
}

// Shared helper for magick-based conversions
func magickRun(ctx context.Context, input []byte, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, magickCmd, args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("magick %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, ErrEmptyEncoded
	}
	return stdout.Bytes(), nil
}
