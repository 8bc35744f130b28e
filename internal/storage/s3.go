// Package storage talks to S3-compatible object storage through the
// multipart upload API.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"go-talk/internal/apperr"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// CompletedPart is one uploaded part handed back when finalizing.
type CompletedPart struct {
	Number int
	ETag   string
}

// S3 wraps minio.Core, which exposes the low-level multipart calls.
type S3 struct {
	core   *minio.Core
	bucket string
	region string
}

func NewS3(cfg Config) (*S3, error) {
	core, err := minio.NewCore(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return &S3{core: core, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *S3) EnsureBucket(ctx context.Context) error {
	exists, err := s.core.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.core.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *S3) CreateMultipart(ctx context.Context, key, contentType string) (string, error) {
	uploadID, err := s.core.NewMultipartUpload(ctx, s.bucket, key, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("%w: create multipart upload: %v", apperr.ErrUpstream, err)
	}
	return uploadID, nil
}

func (s *S3) UploadPart(ctx context.Context, key, uploadID string, number int, data []byte) (string, error) {
	part, err := s.core.PutObjectPart(ctx, s.bucket, key, uploadID, number,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectPartOptions{})
	if err != nil {
		return "", fmt.Errorf("%w: upload part %d: %v", apperr.ErrUpstream, number, err)
	}
	return part.ETag, nil
}

// CompleteMultipart finalizes the upload and returns the object location.
func (s *S3) CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) (string, error) {
	complete := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		complete = append(complete, minio.CompletePart{PartNumber: p.Number, ETag: p.ETag})
	}
	info, err := s.core.CompleteMultipartUpload(ctx, s.bucket, key, uploadID, complete, minio.PutObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("%w: complete multipart upload: %v", apperr.ErrUpstream, err)
	}
	if info.Location != "" {
		return info.Location, nil
	}
	return s.core.EndpointURL().JoinPath(s.bucket, key).String(), nil
}

func (s *S3) AbortMultipart(ctx context.Context, key, uploadID string) error {
	if err := s.core.AbortMultipartUpload(ctx, s.bucket, key, uploadID); err != nil {
		return fmt.Errorf("%w: abort multipart upload: %v", apperr.ErrUpstream, err)
	}
	return nil
}

// PresignedURL returns a time-limited GET URL for key.
func (s *S3) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.core.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("%w: presign: %v", apperr.ErrUpstream, err)
	}
	return u.String(), nil
}
