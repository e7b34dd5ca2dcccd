package writerbackends

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// Backend types accepted in a job destination.
const (
	BackendDirectServe = "directServe"
	BackendS3          = "s3"
	BackendGCS         = "gcs"
	BackendSFTP        = "sftp"
)

// WriteArchive streams an output archive from reader to the backend and returns where it landed.
// The reader is consumed as the archive is produced, so uploads start before the job ends.
func WriteArchive(ctx context.Context, accessInfo map[string]string, reader io.Reader, backendType string) (string, error) {
	// we will switch based on the backend type, e.g., directServe, s3, gcs, sftp
	switch backendType {
	case BackendDirectServe, "":
		location, err := UploadToDirectServe(ctx, accessInfo, reader)
		if err != nil {
			return "", fmt.Errorf("failed to upload to direct serve: %w", err)
		}
		return location, nil
	case BackendS3:
		location, err := UploadToS3(ctx, accessInfo, reader)
		if err != nil {
			return "", fmt.Errorf("failed to upload to S3: %w", err)
		}
		return location, nil
	case BackendGCS:
		location, err := UploadToGCS(ctx, accessInfo, reader)
		if err != nil {
			return "", fmt.Errorf("failed to upload to GCS: %w", err)
		}
		return location, nil
	case BackendSFTP:
		location, err := UploadToSFTPWithCreds(ctx, accessInfo, reader)
		if err != nil {
			return "", fmt.Errorf("failed to upload to SFTP: %w", err)
		}
		return location, nil
	default:
		return "", fmt.Errorf("unknown backend type: %s", backendType)
	}
}

// ObjectKey joins folder and filename into a slash-separated key without leading slash
// or parent references.
func ObjectKey(accessInfo map[string]string) string {
	key := path.Join("/", accessInfo["folder"], accessInfo["filename"])
	return strings.TrimPrefix(key, "/")
}
