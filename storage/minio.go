package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"MusicPro/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore stores blobs in a MinIO/S3 bucket using the same audio/,
// covers/, lyrics/ layout as the filesystem backend.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	log.Printf("Connecting to MinIO at %s (bucket %s)...", cfg.MinioEndpoint, cfg.MinioBucket)

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Printf("Created bucket: %s", cfg.MinioBucket)
	}

	return &MinioStore{client: client, bucket: cfg.MinioBucket}, nil
}

// objectName keeps root-level audio blobs under an audio/ prefix so the
// bucket root stays clean.
func objectName(name string) string {
	if strings.HasPrefix(name, "covers/") || strings.HasPrefix(name, "lyrics/") {
		return name
	}
	return "audio/" + name
}

func (s *MinioStore) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName(name), r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", name, err)
	}
	return nil
}

func (s *MinioStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", name, err)
	}
	// GetObject is lazy; Stat forces the existence check.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("open %s: %w", name, ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to stat object %s: %w", name, err)
	}
	return obj, nil
}

func (s *MinioStore) Remove(ctx context.Context, name string) error {
	// Confirm existence first so callers can distinguish already-deleted.
	_, err := s.client.StatObject(ctx, s.bucket, objectName(name), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("remove %s: %w", name, ErrBlobNotFound)
		}
		return fmt.Errorf("failed to stat object %s: %w", name, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, objectName(name), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %s: %w", name, err)
	}
	return nil
}

func (s *MinioStore) ListAudio(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: "audio/"}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		names = append(names, strings.TrimPrefix(obj.Key, "audio/"))
	}
	return names, nil
}
