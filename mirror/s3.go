package mirror

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultKey = "bot_config.json"

// S3Destination uploads the config document to an S3-compatible bucket.
type S3Destination struct {
	client *s3.Client
	bucket string
	key    string
}

var _ Destination = (*S3Destination)(nil)

// NewS3Destination creates an S3 destination from cfg. If cfg.Endpoint
// is non-empty, path-style addressing is enabled (for MinIO and
// similar).
func NewS3Destination(ctx context.Context, cfg Config) (*S3Destination, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("mirror bucket not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	key := cfg.Key
	if key == "" {
		key = defaultKey
	}

	return &S3Destination{
		client: s3.NewFromConfig(awsCfg, s3opts...),
		bucket: cfg.Bucket,
		key:    key,
	}, nil
}

// Write uploads data as the configured object key.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	contentType := "application/json"
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.key),
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}
