package writerbackends

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"pixpack/logger"
)

// UploadToGCS streams content to a Google Cloud Storage object.
// credentialsJSON is a base64 service account key; empty uses application default credentials.
func UploadToGCS(ctx context.Context, accessInfo map[string]string, reader io.Reader) (string, error) {
	bucketName := accessInfo["bucket"]
	if bucketName == "" {
		return "", fmt.Errorf("missing required accessInfo key: bucket")
	}
	objectName := ObjectKey(accessInfo)

	var opts []option.ClientOption
	if encoded := accessInfo["credentialsJSON"]; encoded != "" {
		credentialsJSON, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return "", fmt.Errorf("decode credentialsJSON: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("storage.NewClient: %w", err)
	}
	defer client.Close()

	// cancelling the writer's context discards a partial upload
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = "application/zip"

	if _, err = io.Copy(wc, reader); err != nil {
		cancel()
		wc.Close()
		return "", fmt.Errorf("io.Copy: %w", err)
	}
	// Close completes the upload.
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("Writer.Close: %w", err)
	}

	logger.Infof("Successfully uploaded object '%s' to bucket '%s'", objectName, bucketName)
	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}
