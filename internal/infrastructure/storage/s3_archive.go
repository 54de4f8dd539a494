// Package storage archives raw partner webhook payloads to object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	infraconfig "github.com/uniorder/backend/internal/infrastructure/config"
)

// ArchivedPayload is one raw webhook body with the metadata used to key it
type ArchivedPayload struct {
	Partner         string
	PlatformOrderID string
	DeliveryID      string
	ReceivedAt      time.Time
	Body            []byte
}

// PayloadArchiver stores raw webhook bodies for later inspection and replay
type PayloadArchiver interface {
	Archive(ctx context.Context, payload ArchivedPayload) (string, error)
}

// s3API is the subset of the S3 client the archiver needs
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Archiver writes payloads to an S3 bucket. It is compatible with any
// S3-compatible store (AWS S3, MinIO, RustFS).
type S3Archiver struct {
	client s3API
	bucket string
	prefix string
	logger *zap.Logger
	newID  func() string
}

// S3ArchiverOption configures an S3Archiver
type S3ArchiverOption func(*S3Archiver)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) S3ArchiverOption {
	return func(s *S3Archiver) {
		s.logger = logger
	}
}

// NewS3Archiver builds the S3 client from configuration
func NewS3Archiver(ctx context.Context, cfg *infraconfig.ArchiveConfig, opts ...S3ArchiverOption) (*S3Archiver, error) {
	if cfg == nil {
		return nil, errors.New("archive configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return newS3Archiver(client, cfg.Bucket, cfg.Prefix, opts...), nil
}

func newS3Archiver(client s3API, bucket, prefix string, opts ...S3ArchiverOption) *S3Archiver {
	a := &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: zap.NewNop(),
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *S3Archiver) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating archive bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Archive stores the body under <prefix>/<partner>/<yyyy>/<mm>/<dd>/<order>-<id>.json
// and returns the object key
func (s *S3Archiver) Archive(ctx context.Context, payload ArchivedPayload) (string, error) {
	if payload.Partner == "" {
		return "", errors.New("archive: partner is required")
	}
	key := s.objectKey(payload)

	metadata := map[string]string{"partner": payload.Partner}
	if payload.PlatformOrderID != "" {
		metadata["platform-order-id"] = payload.PlatformOrderID
	}
	if payload.DeliveryID != "" {
		metadata["delivery-id"] = payload.DeliveryID
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload.Body),
		ContentType: aws.String("application/json"),
		Metadata:    metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive payload: %w", err)
	}

	s.logger.Debug("archived webhook payload",
		zap.String("partner", payload.Partner),
		zap.String("key", key),
		zap.Int("size", len(payload.Body)))
	return key, nil
}

func (s *S3Archiver) objectKey(p ArchivedPayload) string {
	at := p.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	name := s.newID() + ".json"
	if p.PlatformOrderID != "" {
		name = sanitizeKeyPart(p.PlatformOrderID) + "-" + name
	}

	return path.Join(s.prefix, p.Partner, at.Format("2006"), at.Format("01"), at.Format("02"), name)
}

func sanitizeKeyPart(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// Bucket returns the bucket name
func (s *S3Archiver) Bucket() string {
	return s.bucket
}

// NopArchiver discards payloads; used when archival is disabled
type NopArchiver struct{}

// Archive does nothing
func (NopArchiver) Archive(context.Context, ArchivedPayload) (string, error) {
	return "", nil
}

var (
	_ PayloadArchiver = (*S3Archiver)(nil)
	_ PayloadArchiver = NopArchiver{}
)
