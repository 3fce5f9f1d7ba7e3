package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Static errors for object storage operations.
var (
	// ErrStorageWrite is wrapped by every failed PutObject.
	ErrStorageWrite = errors.New("storage write failed")
	// ErrSigning is wrapped by every failed PresignGet.
	ErrSigning = errors.New("signing failed")
	// ErrBucketRequired is returned when S3Config has no bucket.
	ErrBucketRequired = errors.New("S3 bucket is required")
)

// Compile-time check that S3Storage implements ObjectStore.
var _ ObjectStore = (*S3Storage)(nil)

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Storage implements ObjectStore on an S3 bucket.
type S3Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	region    string
}

// NewS3Storage creates a new S3Storage instance.
// Credentials come from cfg when both keys are set, otherwise from the
// default AWS credential chain.
func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg.Region, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, err
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		region:    cfg.Region,
	}, nil
}

// LoadAWSConfig loads the shared AWS configuration for region, using static
// credentials when both accessKeyID and secretAccessKey are provided.
func LoadAWSConfig(ctx context.Context, region, accessKeyID, secretAccessKey string) (aws.Config, error) {
	var configOpts []func(*config.LoadOptions) error
	if region != "" {
		configOpts = append(configOpts, config.WithRegion(region))
	}

	// Use static credentials if provided
	if accessKeyID != "" && secretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return awsCfg, nil
}

// Bucket returns the target bucket name.
func (s *S3Storage) Bucket() string {
	return s.bucket
}

// Region returns the bucket region.
func (s *S3Storage) Region() string {
	return s.region
}

// PutObject uploads data to the bucket under key.
// The body should be seekable when the endpoint is plain HTTP so the SDK can
// compute the payload checksum up front.
func (s *S3Storage) PutObject(ctx context.Context, key string, data io.Reader, contentType string) error {
	if key == "" {
		return fmt.Errorf("%w: key is required", ErrStorageWrite)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   data,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: put %s: %w", ErrStorageWrite, key, ctx.Err())
		}
		return fmt.Errorf("%w: put %s: %w", ErrStorageWrite, key, err)
	}

	return nil
}

// PresignGet returns a presigned GetObject URL for key, valid for expiry
// from now.
func (s *S3Storage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: key is required", ErrSigning)
	}
	if expiry <= 0 {
		return "", fmt.Errorf("%w: expiry must be positive, got %s", ErrSigning, expiry)
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("%w: presign %s: %w", ErrSigning, key, err)
	}

	return req.URL, nil
}
