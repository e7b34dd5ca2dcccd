package commands

import (
	"fmt"
	"os"

	"pixpack/config"
	"pixpack/encoder"
)

// ensureDirectories creates all necessary directories for the application
func ensureDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// registerCodecs installs the native codecs, then overlays ImageMagick when configured.
func registerCodecs() {
	encoder.RegisterDefaults()
	if config.GetCodec() == config.CodecMagick {
		encoder.RegisterMagick()
	}
}
