package writerbackends

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pixpack/logger"
)

// FilesRoute is the URL prefix the HTTP server serves the base directory under.
const FilesRoute = "/files/"

// UploadToDirectServe writes the archive below the served base directory and returns its URL path.
// folder is confined to baseDir; a failed copy removes the partial file.
func UploadToDirectServe(ctx context.Context, accessInfo map[string]string, reader io.Reader) (string, error) {
	baseDir := accessInfo["baseDir"] // Base directory where files are served from
	if baseDir == "" {
		return "", fmt.Errorf("missing required accessInfo key: baseDir")
	}
	if accessInfo["filename"] == "" {
		return "", fmt.Errorf("missing required accessInfo key: filename")
	}

	rel := ObjectKey(accessInfo)
	fullPath := filepath.Join(baseDir, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", fullPath, err)
	}

	if _, err := io.Copy(file, &ctxReader{ctx: ctx, r: reader}); err != nil {
		file.Close()
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write to file %s: %w", fullPath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to close file %s: %w", fullPath, err)
	}

	logger.Infof("Successfully saved archive to '%s'", fullPath)
	return FilesRoute + rel, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
