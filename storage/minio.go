package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"clipsync/config"
	"clipsync/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	minioClient *minio.Client
	minioBucket string
)

// InitMinio initializes the MinIO client used for session clip storage
// and makes sure the bucket exists.
func InitMinio(cfg *config.Config) error {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	minioClient = client
	minioBucket = cfg.MinioBucket
	return nil
}

// GetMinioClient returns the shared client, or nil when storage is
// unavailable.
func GetMinioClient() *minio.Client {
	return minioClient
}

// PutClip stores one clip payload under the given object key.
func PutClip(ctx context.Context, key string, data []byte, contentType string) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO client not initialized")
	}

	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := minioClient.PutObject(ctx, minioBucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return fmt.Errorf("failed to store clip %s: %w", key, err)
	}

	logger.Debug("clip stored",
		logger.String("key", key),
		logger.Int("size", len(data)))
	return nil
}

// RemovePrefix deletes every object under a key prefix. Used when a
// session closes or its clips are replaced; failures are logged per
// object and do not abort the sweep.
func RemovePrefix(ctx context.Context, prefix string) {
	if minioClient == nil {
		return
	}

	objects := minioClient.ListObjects(ctx, minioBucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objects {
		if object.Err != nil {
			logger.Warn("clip listing failed",
				logger.String("prefix", prefix),
				logger.ErrorField(object.Err))
			continue
		}
		if err := minioClient.RemoveObject(ctx, minioBucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			logger.Warn("clip removal failed",
				logger.String("key", object.Key),
				logger.ErrorField(err))
		}
	}
}
