// Package storage reads catalog asset bytes from S3-compatible object storage
// or a local directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/infrastructure/config"
	"go.uber.org/zap"
)

// maxAssetSize caps how much of an object is read into memory.
const maxAssetSize = 32 << 20

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3AssetReader implements commerce.AssetReader on any S3-compatible store
// (AWS S3, MinIO, RustFS). Asset sources are object keys.
type S3AssetReader struct {
	client objectGetter
	bucket string
	logger *zap.Logger
}

var _ commerce.AssetReader = (*S3AssetReader)(nil)

// NewS3AssetReader creates a reader from the storage configuration.
func NewS3AssetReader(cfg *config.StorageConfig, logger *zap.Logger) (*S3AssetReader, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage access key and secret key are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := endpointURL(cfg.Endpoint, cfg.UseSSL)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &S3AssetReader{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

func endpointURL(endpoint string, useSSL bool) string {
	if endpoint == "" || strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// ReadAsset downloads the object stored under source.
func (r *S3AssetReader) ReadAsset(ctx context.Context, source string) ([]byte, error) {
	key := strings.TrimPrefix(source, "/")
	if key == "" {
		return nil, fmt.Errorf("%w: empty source", commerce.ErrAssetNotFound)
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", commerce.ErrAssetNotFound, key)
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxAssetSize+1))
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	if len(data) > maxAssetSize {
		return nil, fmt.Errorf("asset %s exceeds %d bytes", key, maxAssetSize)
	}
	r.logger.Debug("Asset downloaded", zap.String("key", key), zap.Int("bytes", len(data)))
	return data, nil
}

// Bucket returns the configured bucket
func (r *S3AssetReader) Bucket() string {
	return r.bucket
}
