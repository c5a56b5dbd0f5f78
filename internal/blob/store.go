package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"printrelay/internal/config"
)

// Store is the payload blob contract: written once by ingress, resolved to a
// fetchable URL at claim time, deleted only by the cleanup sweep.
type Store interface {
	Put(ctx context.Context, ref string, r io.Reader, size int64, contentType string) error
	SignedURL(ctx context.Context, ref string) (string, error)
	Remove(ctx context.Context, ref string) error
}

type MinioStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewMinioStore(ctx context.Context, cfg config.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage: %w", err)
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	s := &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		expiry: expiry,
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return s, nil
}

func (s *MinioStore) Put(ctx context.Context, ref string, r io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, ref, r, size, opts); err != nil {
		return fmt.Errorf("failed to store payload %s: %w", ref, err)
	}
	return nil
}

func (s *MinioStore) SignedURL(ctx context.Context, ref string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, ref, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload url for %s: %w", ref, err)
	}
	return u.String(), nil
}

func (s *MinioStore) Remove(ctx context.Context, ref string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove payload %s: %w", ref, err)
	}
	return nil
}
