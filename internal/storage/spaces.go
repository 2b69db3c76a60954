// Package storage uploads generated artifacts to DigitalOcean Spaces,
// an S3-compatible object store.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Uploader stores artifact bytes under a key and returns a public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// SpacesConfig holds DigitalOcean Spaces settings.
type SpacesConfig struct {
	Bucket   string
	Region   string
	Endpoint string // e.g. https://sgp1.digitaloceanspaces.com
	Key      string
	Secret   string
}

// Configured reports whether enough settings are present to upload.
func (c SpacesConfig) Configured() bool {
	return c.Bucket != "" && c.Key != "" && c.Secret != ""
}

// Compile-time interface satisfaction check.
var _ Uploader = (*SpacesUploader)(nil)

// SpacesUploader implements Uploader against a DigitalOcean Space.
type SpacesUploader struct {
	client *minio.Client
	bucket string
	region string
}

// NewSpacesUploader creates an uploader for the configured Space.
func NewSpacesUploader(cfg SpacesConfig) (*SpacesUploader, error) {
	endpoint := cfg.Endpoint
	secure := true
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme != "http"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Key, cfg.Secret, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("configure spaces client: %w", err)
	}

	return &SpacesUploader{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// Upload stores the object with a public-read ACL and returns its
// public URL.
func (u *SpacesUploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"x-amz-acl": "public-read"},
	})
	if err != nil {
		return "", fmt.Errorf("upload to spaces: %w", err)
	}

	return u.PublicURL(key), nil
}

// PublicURL returns the bucket-subdomain URL for a key.
func (u *SpacesUploader) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.%s.digitaloceanspaces.com/%s", u.bucket, u.region, key)
}
