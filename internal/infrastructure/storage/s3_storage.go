// Package storage provides object storage backends for the PDF archive.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	infraconfig "github.com/labdocs/backend/internal/infrastructure/config"
	"github.com/labdocs/backend/internal/infrastructure/printing"
)

// Ensure S3Storage implements PDFStorage
var _ printing.PDFStorage = (*S3Storage)(nil)

// S3Storage archives generated PDFs in an S3-compatible bucket
// (AWS S3, MinIO, RustFS, etc.).
type S3Storage struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	prefix            string
	endpoint          string
	presignExpiration time.Duration
	logger            *zap.Logger
}

// S3StorageOption is a functional option for configuring S3Storage
type S3StorageOption func(*S3Storage)

// WithLogger sets a custom logger for S3Storage
func WithLogger(logger *zap.Logger) S3StorageOption {
	return func(s *S3Storage) {
		s.logger = logger
	}
}

// WithPresignExpiration sets a custom presign expiration duration
func WithPresignExpiration(d time.Duration) S3StorageOption {
	return func(s *S3Storage) {
		s.presignExpiration = d
	}
}

// NewS3Storage creates a new S3Storage from configuration.
func NewS3Storage(cfg *infraconfig.StorageConfig, opts ...S3StorageOption) (*S3Storage, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}

	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:9000"
	}

	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}

	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	storage := &S3Storage{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		prefix:            strings.Trim(cfg.Prefix, "/"),
		endpoint:          strings.TrimSuffix(endpoint, "/"),
		presignExpiration: cfg.PresignExpiration,
		logger:            zap.NewNop(),
	}

	for _, opt := range opts {
		opt(storage)
	}

	if storage.presignExpiration == 0 {
		storage.presignExpiration = 15 * time.Minute
	}

	return storage, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup to ensure the bucket is ready.
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating archive bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// Lost a creation race with another instance
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	s.logger.Info("Archive bucket created", zap.String("bucket", s.bucket))
	return nil
}

// key maps a relative archive path to the object key
func (s *S3Storage) key(relative string) string {
	if s.prefix == "" {
		return relative
	}
	return path.Join(s.prefix, relative)
}

// Store uploads a PDF under {prefix}/{document_type}/{year}/{month}/{request_id}.pdf
func (s *S3Storage) Store(ctx context.Context, req *printing.StoreRequest) (*printing.StoreResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	relative := req.ObjectPath()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(relative)),
		Body:        bytes.NewReader(req.PDFData),
		ContentType: aws.String("application/pdf"),
		Metadata: map[string]string{
			"request-id":    req.RequestID,
			"document-type": req.DocumentType,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to upload object: %w", printing.ErrStorage, err)
	}

	s.logger.Info("PDF archived",
		zap.String("request_id", req.RequestID),
		zap.String("bucket", s.bucket),
		zap.String("key", s.key(relative)),
		zap.Int("size", len(req.PDFData)))

	return &printing.StoreResult{
		Path: relative,
		URL:  s.GetURL(relative),
		Size: int64(len(req.PDFData)),
	}, nil
}

// Get downloads an archived PDF by its relative path
func (s *S3Storage) Get(ctx context.Context, relative string) (io.ReadCloser, error) {
	if relative == "" {
		return nil, errors.New("storage key is required")
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(relative)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get object: %w", printing.ErrStorage, err)
	}
	return out.Body, nil
}

// Delete removes an archived PDF
func (s *S3Storage) Delete(ctx context.Context, relative string) error {
	if relative == "" {
		return errors.New("storage key is required")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(relative)),
	})
	if err != nil {
		return fmt.Errorf("%w: failed to delete object: %w", printing.ErrStorage, err)
	}
	return nil
}

// ObjectExists checks if an archived PDF exists.
func (s *S3Storage) ObjectExists(ctx context.Context, relative string) (bool, error) {
	if relative == "" {
		return false, errors.New("storage key is required")
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(relative)),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return false, nil
		}
		// Some S3-compatible services report missing keys differently
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey") {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

// CleanupOlderThan deletes archived PDFs last modified before now-age
func (s *S3Storage) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)
	deleted := 0

	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix + "/")
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("%w: failed to list objects: %w", printing.ErrStorage, err)
		}
		for _, obj := range page.Contents {
			if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
				continue
			}
			if !strings.HasSuffix(aws.ToString(obj.Key), ".pdf") {
				continue
			}
			_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				s.logger.Warn("failed to delete expired PDF",
					zap.String("key", aws.ToString(obj.Key)),
					zap.Error(err))
				continue
			}
			deleted++
		}
	}

	s.logger.Info("archive cleanup completed",
		zap.Int("deleted", deleted),
		zap.Duration("age", age))
	return deleted, nil
}

// GetURL returns the path-style object URL. Buckets are usually private;
// use GenerateDownloadURL for a link that can be shared.
func (s *S3Storage) GetURL(relative string) string {
	return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, s.key(relative))
}

// GenerateDownloadURL generates a presigned URL for downloading an archived PDF.
func (s *S3Storage) GenerateDownloadURL(
	ctx context.Context,
	relative string,
	expiresIn time.Duration,
) (string, time.Time, error) {
	if relative == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}

	if expiresIn <= 0 {
		expiresIn = s.presignExpiration
	}

	presignReq, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(relative)),
	}, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate download URL: %w", err)
	}

	return presignReq.URL, time.Now().Add(expiresIn), nil
}

// GetBucket returns the bucket name
func (s *S3Storage) GetBucket() string {
	return s.bucket
}
