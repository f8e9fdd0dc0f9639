package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"

	"github.com/beamup-io/beamup/pkg/config"
)

// s3API is the subset of the S3 client used by S3Storage, split out so tests
// can substitute a mock
type s3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// s3Presigner mirrors the presign client surface used by S3Storage
type s3Presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Storage implements BlobStorage backed by an S3-compatible object store
type S3Storage struct {
	client  s3API
	presign s3Presigner
	bucket  string
}

// NewS3Storage creates an S3 storage instance from configuration. Credentials
// fall back to the default AWS chain when no static keys are configured.
func NewS3Storage(ctx context.Context, cfg *config.StorageConfig) (*S3Storage, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	log.Info().Str("bucket", cfg.Bucket).Str("region", cfg.Region).Msg("s3 storage initialized")
	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}, nil
}

// newS3StorageWithClient wires a custom API implementation, for tests
func newS3StorageWithClient(client s3API, presign s3Presigner, bucket string) *S3Storage {
	return &S3Storage{client: client, presign: presign, bucket: bucket}
}

// Store saves content to the bucket
func (s *S3Storage) Store(ctx context.Context, key string, content io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   content,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to store object")
		return fmt.Errorf("%w: put object %s: %w", ErrStorageUnavailable, key, err)
	}
	return nil
}

// Retrieve gets the whole object
func (s *S3Storage) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.mapGetError(key, err)
	}
	return out.Body, nil
}

// RetrieveRange streams the inclusive byte range [start, end] of the object.
// The body is handed to the caller as-is, so the range is never buffered here.
func (s *S3Storage) RetrieveRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: bytes=%d-%d of %s", ErrRangeNotSatisfiable, start, end, key)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	})
	if err != nil {
		return nil, s.mapGetError(key, err)
	}

	log.Debug().
		Str("key", key).
		Int64("start", start).
		Int64("end", end).
		Msg("object range opened")
	return out.Body, nil
}

// Delete removes the object
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("%w: delete object %s: %w", ErrStorageUnavailable, key, err)
	}
	return nil
}

// Exists checks whether the object is present
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: head object %s: %w", ErrStorageUnavailable, key, err)
	}
	return true, nil
}

// GetSize probes the object's byte length with a HeadObject call
func (s *S3Storage) GetSize(ctx context.Context, key string) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return 0, fmt.Errorf("%w: head object %s: %w", ErrStorageUnavailable, key, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// PresignUpload issues a presigned PUT URL for direct client uploads
func (s *S3Storage) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, time.Time, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := s.presign.PresignPutObject(ctx, input, func(o *s3.PresignOptions) {
		o.Expires = expiry
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to presign upload for %s: %w", key, err)
	}
	return req.URL, time.Now().Add(expiry), nil
}

// mapGetError translates SDK failures into the storage error taxonomy
func (s *S3Storage) mapGetError(key string, err error) error {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange" {
		return fmt.Errorf("%w: %s: %w", ErrRangeNotSatisfiable, key, err)
	}

	return fmt.Errorf("%w: get object %s: %w", ErrStorageUnavailable, key, err)
}
