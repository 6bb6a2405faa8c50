package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"tunevault/config"
	"tunevault/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archive mirrors finished artifacts into a MinIO bucket. It sits off the
// request path: uploads are fire-and-forget and an archive failure never
// fails a fetch.
type Archive struct {
	client *minio.Client
	bucket string
}

// NewArchive connects to MinIO and ensures the bucket exists.
func NewArchive(cfg *config.Config) (*Archive, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("created archive bucket", logger.String("bucket", cfg.MinioBucket))
	}

	return &Archive{client: client, bucket: cfg.MinioBucket}, nil
}

// PutArtifact uploads the artifact under its basename. Re-uploading the
// same path is harmless; the object is simply overwritten with identical
// content.
func (a *Archive) PutArtifact(ctx context.Context, localPath string) {
	object := filepath.Base(localPath)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	info, err := a.client.FPutObject(ctx, a.bucket, object, localPath, minio.PutObjectOptions{})
	if err != nil {
		logger.Warn("artifact archive upload failed",
			logger.String("path", localPath),
			logger.ErrorField(err))
		return
	}

	logger.Info("artifact archived",
		logger.String("object", object),
		logger.Int64("bytes", info.Size))
}
