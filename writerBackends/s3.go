package writerbackends

import (
	"context"
	"fmt"
	"io"

	"pixpack/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// UploadToS3 streams content to an S3 object through the multipart uploader.
// accessKey/secretKey select static credentials; without them the default AWS chain is used.
// endpoint optionally points at an S3-compatible service.
func UploadToS3(ctx context.Context, accessInfo map[string]string, reader io.Reader) (string, error) {
	bucket := accessInfo["bucket"]
	if bucket == "" {
		return "", fmt.Errorf("missing required accessInfo key: bucket")
	}
	key := ObjectKey(accessInfo)

	s3Client, err := newS3Client(ctx, accessInfo)
	if err != nil {
		return "", err
	}

	// The uploader splits the unknown-length stream into parts as it arrives.
	uploader := manager.NewUploader(s3Client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s to bucket %s: %w", key, bucket, err)
	}

	logger.Infof("Successfully uploaded object '%s' to bucket '%s'", key, bucket)
	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}

func newS3Client(ctx context.Context, accessInfo map[string]string) (*s3.Client, error) {
	endpoint := accessInfo["endpoint"]
	withEndpoint := func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}

	if accessInfo["accessKey"] != "" {
		creds := credentials.NewStaticCredentialsProvider(accessInfo["accessKey"], accessInfo["secretKey"], "")
		return s3.New(s3.Options{
			Region:      accessInfo["region"],
			Credentials: creds,
		}, withEndpoint), nil
	}

	var opts []func(*config.LoadOptions) error
	if region := accessInfo["region"]; region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg, withEndpoint), nil
}
