// Package storage wraps S3-compatible object storage behind the narrow
// put/delete surface the submission pipeline needs.
package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const cacheControl = "max-age=31536000"

// Config carries the S3 connection settings.
type Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKeyID  string
	SecretKey    string
	UsePathStyle bool
}

// Gateway uploads and deletes image payloads against an S3-compatible bucket.
type Gateway struct {
	bucket    string
	region    string
	publicURL string
	client    *s3.Client
	clock     func() time.Time
	logger    *zap.Logger
}

// NewGateway builds an S3 gateway from static credentials. A custom endpoint
// switches the public URL base to the endpoint host (MinIO and friends).
func NewGateway(ctx context.Context, cfg Config, logger *zap.Logger) (*Gateway, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("storage: bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				URL:           cfg.Endpoint,
				PartitionID:   "aws",
				SigningRegion: cfg.Region,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	publicURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		publicURL = fmt.Sprintf("%s/%s", strings.TrimRight(cfg.Endpoint, "/"), cfg.Bucket)
	}

	return &Gateway{
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		publicURL: publicURL,
		client:    client,
		clock:     time.Now,
		logger:    logger,
	}, nil
}

// Put uploads the payload under a content-addressed key and returns its public URL.
func (g *Gateway) Put(ctx context.Context, data []byte, contentType, folder string) (string, error) {
	key, err := g.objectKey(folder, contentType)
	if err != nil {
		return "", err
	}

	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(g.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", key, err)
	}

	return fmt.Sprintf("%s/%s", g.publicURL, key), nil
}

// Delete removes the object behind a previously returned URL. Failures are
// logged and swallowed: object-store deletion never blocks the owning
// database mutation.
func (g *Gateway) Delete(ctx context.Context, objectURL string) {
	key, err := keyFromURL(objectURL)
	if err != nil {
		g.logger.Warn("object delete skipped, unparseable url",
			zap.String("url", objectURL), zap.Error(err))
		return
	}
	// Path-style URLs carry the bucket as the first path segment.
	key = strings.TrimPrefix(key, g.bucket+"/")

	_, err = g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		g.logger.Warn("object delete failed", zap.String("key", key), zap.Error(err))
		return
	}
	g.logger.Info("object deleted", zap.String("key", key))
}

// objectKey builds a timestamp-plus-random key so concurrent writers never
// collide.
func (g *Gateway) objectKey(folder, contentType string) (string, error) {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("storage: random suffix: %w", err)
	}
	return fmt.Sprintf("%s/%d-%s.%s",
		folder,
		g.clock().UTC().UnixMilli(),
		hex.EncodeToString(suffix),
		extensionFor(contentType),
	), nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}

func keyFromURL(objectURL string) (string, error) {
	parsed, err := url.Parse(objectURL)
	if err != nil {
		return "", err
	}
	key := strings.TrimPrefix(parsed.Path, "/")
	if key == "" {
		return "", fmt.Errorf("no object key in %q", objectURL)
	}
	return key, nil
}
