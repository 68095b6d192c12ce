package storage

import (
	"bytes"
	"context"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Skryldev/image-intake/core"
	apperrors "github.com/Skryldev/image-intake/errors"
)

// MinioConfig holds connection parameters for an S3-compatible store.
type MinioConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	// PublicBaseURL is the externally reachable prefix for stored objects
	// (CDN or reverse proxy).  Empty = the endpoint URL.
	PublicBaseURL string
}

// Minio is a PermanentStore backed by MinIO or any S3-compatible service.
type Minio struct {
	client *minio.Client
	cfg    MinioConfig
}

// NewMinio connects to the endpoint and ensures the bucket exists.
func NewMinio(ctx context.Context, cfg MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "minio.connect", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, apperrors.Transient("minio.bucket_exists", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, apperrors.Transient("minio.make_bucket", err)
		}
	}
	return &Minio{client: client, cfg: cfg}, nil
}

func (m *Minio) StoreImage(ctx context.Context, name string, data []byte, mimeType string) (string, error) {
	return m.put(ctx, path.Join(imagesSubdir, name), data, mimeType)
}

func (m *Minio) StoreThumbnail(ctx context.Context, name string, data []byte, mimeType string) (string, error) {
	return m.put(ctx, path.Join(thumbnailsSubdir, name), data, mimeType)
}

func (m *Minio) put(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: mimeType})
	if err != nil {
		return "", apperrors.Transient("minio.put", err)
	}

	base := m.cfg.PublicBaseURL
	if base == "" {
		base = m.client.EndpointURL().String()
	}
	return base + "/" + path.Join(m.cfg.Bucket, key), nil
}

// compile-time interface check
var _ core.PermanentStore = (*Minio)(nil)
