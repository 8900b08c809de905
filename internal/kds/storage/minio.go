// Package storage archives captured ticket images in S3-compatible storage.
package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/pkg/log"
	"github.com/kdsgrill/kdsgrill/pkg/options"
)

var _ core.SnapshotArchive = (*MinIO)(nil)

// ObjectKey lays snapshots out as {YYYY-MM-DD}/{id}.png.
func ObjectKey(id string, at time.Time) string {
	return fmt.Sprintf("%s/%s.png", at.Format(time.DateOnly), id)
}

type MinIO struct {
	client     *minio.Client
	bucketName string
	region     string
}

// NewMinIO creates the archive. Call EnsureBucket before the first Put.
func NewMinIO(opts *options.S3Options) (*MinIO, error) {
	minioOpts := &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	}
	if opts.UseSSL {
		// Kitchen deployments run MinIO with self-signed certificates.
		minioOpts.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	client, err := minio.New(opts.Endpoint, minioOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIO{client: client, bucketName: opts.BucketName, region: opts.Region}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		log.Info("Bucket does not exist, creating...", "bucket", m.bucketName)
		if err := m.client.MakeBucket(ctx, m.bucketName, minio.MakeBucketOptions{Region: m.region}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

func (m *MinIO) Put(ctx context.Context, id string, at time.Time, png []byte) error {
	key := ObjectKey(id, at)
	_, err := m.client.PutObject(ctx, m.bucketName, key, bytes.NewReader(png), int64(len(png)), minio.PutObjectOptions{
		ContentType:  "image/png",
		UserMetadata: map[string]string{"order-id": id},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// PresignedURL returns a temporary download link for an archived snapshot.
func (m *MinIO) PresignedURL(ctx context.Context, id string, at time.Time, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucketName, ObjectKey(id, at), expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned url: %w", err)
	}
	return u.String(), nil
}
