// Package storage copies scraped product images into S3-compatible
// object storage owned by the merchant.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/domain/enrichment"
	infraconfig "github.com/Triple-C-BE/wimood/internal/infrastructure/config"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/httpclient"
)

// Ensure S3ImageMirror implements enrichment.ImageMirror
var _ enrichment.ImageMirror = (*S3ImageMirror)(nil)

// S3ImageMirror stores images under {sku}/{filename} in a bucket and
// returns their public URLs. Objects that already exist are not re-uploaded.
type S3ImageMirror struct {
	client        *s3.Client
	downloader    *httpclient.Client
	bucket        string
	publicBaseURL string
	logger        *zap.Logger
}

// S3ImageMirrorOption is a functional option for configuring S3ImageMirror
type S3ImageMirrorOption func(*S3ImageMirror)

// WithLogger sets a custom logger for S3ImageMirror
func WithLogger(logger *zap.Logger) S3ImageMirrorOption {
	return func(m *S3ImageMirror) {
		if logger != nil {
			m.logger = logger.Named("image_mirror")
		}
	}
}

// NewS3ImageMirror creates a mirror from configuration. It works with any
// S3-compatible backend (AWS S3, MinIO, RustFS, ...).
func NewS3ImageMirror(cfg *infraconfig.StorageConfig, downloader *httpclient.Client, opts ...S3ImageMirrorOption) (*S3ImageMirror, error) {
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
	if downloader == nil {
		return nil, errors.New("image downloader is required")
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

	m := &S3ImageMirror{
		client:        client,
		downloader:    downloader,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Mirror uploads each image that is not stored yet and returns the public
// URLs in the original order. An image that cannot be mirrored keeps its
// source URL. Without a public base URL the result is nil.
func (m *S3ImageMirror) Mirror(ctx context.Context, sku string, images []string) ([]string, error) {
	if len(images) == 0 {
		return nil, nil
	}
	if len(images) > enrichment.MaxImages {
		images = images[:enrichment.MaxImages]
	}

	out := make([]string, 0, len(images))
	var mirrored int
	for i, src := range images {
		key := ObjectKey(sku, src, i+1)

		exists, err := m.ObjectExists(ctx, key)
		if err != nil {
			return nil, err
		}
		if !exists {
			if err := m.copyImage(ctx, src, key); err != nil {
				m.logger.Warn("Failed to mirror image",
					zap.String("sku", sku),
					zap.String("src", src),
					zap.Error(err),
				)
				out = append(out, src)
				continue
			}
		}
		mirrored++
		out = append(out, m.PublicURL(key))
	}

	m.logger.Info("Mirrored product images",
		zap.String("sku", sku),
		zap.Int("mirrored", mirrored),
		zap.Int("total", len(images)),
	)
	if m.publicBaseURL == "" {
		return nil, nil
	}
	return out, nil
}

func (m *S3ImageMirror) copyImage(ctx context.Context, src, key string) error {
	resp, err := m.downloader.Get(ctx, src, nil, http.Header{"Accept": {"image/*"}})
	if err != nil {
		return err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("unexpected content type %q", contentType)
	}
	if len(resp.Body) == 0 {
		return errors.New("empty image")
	}
	return m.Upload(ctx, key, resp.Body, contentType)
}

// ObjectExists checks if an object exists in storage
func (m *S3ImageMirror) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey") {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

// Upload stores data under key
func (m *S3ImageMirror) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// PublicURL returns the URL an object is served from
func (m *S3ImageMirror) PublicURL(key string) string {
	return m.publicBaseURL + "/" + key
}

// ObjectKey builds {sku}/{filename}. Images without a usable file name are
// named image-{index}.jpg.
func ObjectKey(sku, src string, index int) string {
	name := ""
	if u, err := url.Parse(src); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		name = fmt.Sprintf("image-%d.jpg", index)
	}
	return strings.TrimSpace(sku) + "/" + name
}
