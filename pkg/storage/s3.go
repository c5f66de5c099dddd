package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// S3Config holds configuration for the S3-compatible archive backend.
type S3Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKeyID    string
	SecretKey      string
	ForcePathStyle bool
}

// s3API is the subset of the S3 client the archive backend uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Archive stores blobs in an S3-compatible bucket. Object keys are
// the hex SHA-256 of the blob, so the content identifier is
// content-derived by construction (nothing relies on that property;
// CIDs stay opaque to callers).
type S3Archive struct {
	client   s3API
	bucket   string
	endpoint string
	region   string

	pathStyle bool
	logger    *logrus.Entry
}

// NewS3Archive creates an archive backend from static credentials.
func NewS3Archive(ctx context.Context, cfg *S3Config) (*S3Archive, error) {
	if cfg == nil || cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: archive bucket and static credentials are required", ErrNoCredentials)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3Archive{
		client:    client,
		bucket:    cfg.Bucket,
		endpoint:  strings.TrimSuffix(cfg.Endpoint, "/"),
		region:    cfg.Region,
		pathStyle: cfg.ForcePathStyle,
		logger:    logrus.WithField("component", "storage-archive"),
	}, nil
}

// Upload stores data under its hex SHA-256 digest and returns the key.
func (b *S3Archive) Upload(ctx context.Context, data []byte) (string, error) {
	digest := sha256.Sum256(data)
	key := hex.EncodeToString(digest[:])

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put object: %v", ErrUnavailable, err)
	}

	b.logger.WithFields(logrus.Fields{
		"cid":    key,
		"bucket": b.bucket,
		"size":   len(data),
	}).Debug("Uploaded blob to archive bucket")

	return key, nil
}

// Download retrieves the object stored under cid.
func (b *S3Archive) Download(ctx context.Context, cid string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(cid),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, cid)
		}
		return nil, fmt.Errorf("%w: get object: %v", ErrUnavailable, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading object body: %v", ErrUnavailable, err)
	}

	return data, nil
}

// GatewayURL returns a deterministic fetch URL for cid: path-style
// against a custom endpoint, virtual-hosted style against AWS proper.
func (b *S3Archive) GatewayURL(cid string) string {
	if b.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", b.endpoint, b.bucket, cid)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.bucket, b.region, cid)
}

// Name returns the backend variant identifier.
func (b *S3Archive) Name() string {
	return "s3-archive"
}
