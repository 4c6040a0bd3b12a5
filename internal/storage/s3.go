// Package storage persists uploaded avatar images in S3-compatible object
// storage and hands back public URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/contactvault/contactvault/internal/config"
)

// AvatarStore uploads avatar images and returns the public URL.
type AvatarStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// S3Store keeps avatars in a single bucket with public-read objects.
type S3Store struct {
	uploader *manager.Uploader
	bucket   string
	region   string
	endpoint string
}

var _ AvatarStore = (*S3Store)(nil)

// NewS3Store configures an S3 client from the ambient AWS credential chain.
// A non-empty endpoint points the client at S3-compatible storage like MinIO.
func NewS3Store(ctx context.Context, cfg config.Config) (*S3Store, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.AvatarRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AvatarEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AvatarEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		uploader: manager.NewUploader(client),
		bucket:   cfg.AvatarBucket,
		region:   cfg.AvatarRegion,
		endpoint: cfg.AvatarEndpoint,
	}, nil
}

// Upload stores the object and returns its public URL.
func (s *S3Store) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         "public-read",
	})
	if err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}

	escaped := url.PathEscape(key)
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, escaped), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped), nil
}
