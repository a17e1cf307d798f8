package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kibikalo/dash-streaming-microservice/internal/config"
)

// Storage provides object storage operations over the raw and processed
// buckets. Object keys are opaque slash-separated paths.
type Storage struct {
	client          *minio.Client
	rawBucket       string
	processedBucket string
	presignedExpiry time.Duration
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// New creates a new storage client and ensures both buckets exist.
func New(cfg config.StorageConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	ctx := context.Background()
	for _, bucket := range []string{cfg.RawBucket, cfg.ProcessedBucket} {
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check bucket existence: %w", err)
		}
		if !exists {
			err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{
				Region: cfg.Region,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
	}

	return &Storage{
		client:          client,
		rawBucket:       cfg.RawBucket,
		processedBucket: cfg.ProcessedBucket,
		presignedExpiry: cfg.PresignedExpiry,
	}, nil
}

// RawBucket returns the raw bucket name.
func (s *Storage) RawBucket() string { return s.rawBucket }

// ProcessedBucket returns the processed bucket name.
func (s *Storage) ProcessedBucket() string { return s.processedBucket }

// UploadFile uploads a file from the local filesystem
func (s *Storage) UploadFile(ctx context.Context, bucket, objectName, filePath string) error {
	contentType := getContentType(filePath)

	_, err := s.client.FPutObject(ctx, bucket, objectName, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}

	return nil
}

// DownloadFile downloads an object to the local filesystem
func (s *Storage) DownloadFile(ctx context.Context, bucket, objectName, filePath string) error {
	err := s.client.FGetObject(ctx, bucket, objectName, filePath, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}

	return nil
}

// Stat returns size and content type for an object.
func (s *Storage) Stat(ctx context.Context, bucket, objectName string) (*ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to stat object %s: %w", objectName, err)
	}

	return &ObjectInfo{
		Key:         info.Key,
		Size:        info.Size,
		ContentType: info.ContentType,
	}, nil
}

// Delete deletes an object from storage
func (s *Storage) Delete(ctx context.Context, bucket, objectName string) error {
	err := s.client.RemoveObject(ctx, bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// PresignedURL returns a time-limited read URL for an object
func (s *Storage) PresignedURL(ctx context.Context, bucket, objectName string) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, bucket, objectName, s.presignedExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate URL: %w", err)
	}

	return url.String(), nil
}

// getContentType returns the content type based on file extension
func getContentType(filePath string) string {
	ext := filepath.Ext(filePath)
	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".aac":
		return "audio/aac"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".mpd":
		return "application/dash+xml"
	case ".m4s":
		return "video/iso.segment"
	default:
		return "application/octet-stream"
	}
}
