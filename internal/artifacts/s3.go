package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// S3Config configures an S3-compatible store
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // Custom endpoint for R2/MinIO; enables path-style addressing
	AccessKey string // Empty uses the default AWS credential chain
	SecretKey string

	MaxRetryElapsed time.Duration // Upper bound on upload retries, defaults to 30s
}

// S3Store keeps artifacts in an S3 bucket.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	maxRetry time.Duration
	log      zerolog.Logger
}

// NewS3Store builds a client from cfg
func NewS3Store(ctx context.Context, cfg S3Config, log zerolog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		// R2 and MinIO reject some of the newer default checksum modes
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	maxRetry := cfg.MaxRetryElapsed
	if maxRetry <= 0 {
		maxRetry = 30 * time.Second
	}

	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		maxRetry: maxRetry,
		log:      log.With().Str("component", "s3_store").Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Put uploads the artifact, retrying transient failures with exponential backoff.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader) error {
	// Buffer once so every attempt re-sends the full body
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read artifact %s: %w", key, err)
	}

	objectKey := s.objectKey(key)
	attempt := 0
	operation := func() error {
		attempt++
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectKey),
			Body:   bytes.NewReader(data),
		})
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = s.maxRetry

	notify := func(err error, wait time.Duration) {
		s.log.Warn().Err(err).Str("key", objectKey).Int("attempt", attempt).Dur("retry_in", wait).Msg("Artifact upload failed, retrying")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(strategy, ctx), notify); err != nil {
		return fmt.Errorf("failed to upload artifact %s: %w", objectKey, err)
	}

	s.log.Debug().Str("key", objectKey).Int("bytes", len(data)).Int("attempts", attempt).Msg("Artifact uploaded")
	return nil
}

// Get downloads the artifact
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey := s.objectKey(key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, objectKey)
		}
		return nil, fmt.Errorf("failed to download artifact %s: %w", objectKey, err)
	}
	return out.Body, nil
}
