package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/noah-isme/rootle-api/pkg/config"
)

type ossBucket interface {
	PutObject(objectKey string, reader io.Reader, options ...oss.Option) error
	GetObject(objectKey string, options ...oss.Option) (io.ReadCloser, error)
	DeleteObject(objectKey string, options ...oss.Option) error
}

// OSSStorage stores uploads in an Aliyun OSS bucket.
type OSSStorage struct {
	bucket ossBucket
	prefix string
}

// NewOSSStorage connects to the bucket. The endpoint defaults to the public
// endpoint of the configured region.
func NewOSSStorage(cfg config.OSSConfig) (*OSSStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("oss bucket required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://oss-%s.aliyuncs.com", cfg.Region)
	}
	client, err := oss.New(endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("create oss client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("open oss bucket %s: %w", cfg.Bucket, err)
	}
	return &OSSStorage{bucket: bucket, prefix: cfg.Prefix}, nil
}

// SaveStream uploads the reader as a single object.
func (s *OSSStorage) SaveStream(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	options := []oss.Option{oss.WithContext(ctx)}
	if contentType != "" {
		options = append(options, oss.ContentType(contentType))
	}
	if size > 0 {
		options = append(options, oss.ContentLength(size))
	}
	if err := s.bucket.PutObject(joinKey(s.prefix, key), r, options...); err != nil {
		return "", fmt.Errorf("put oss object: %w", err)
	}
	return key, nil
}

// Open streams the object body.
func (s *OSSStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := s.bucket.GetObject(joinKey(s.prefix, key), oss.WithContext(ctx))
	if err != nil {
		var svcErr oss.ServiceError
		if errors.As(err, &svcErr) && svcErr.StatusCode == http.StatusNotFound {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get oss object: %w", err)
	}
	return body, nil
}

// Delete removes the object. OSS reports success for missing keys.
func (s *OSSStorage) Delete(ctx context.Context, key string) error {
	if err := s.bucket.DeleteObject(joinKey(s.prefix, key), oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete oss object: %w", err)
	}
	return nil
}
