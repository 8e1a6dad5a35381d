// internal/media/storage.go
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type StorageConfig struct {
	Endpoint  string // S3-compatible endpoint (R2, MinIO, ...); empty = AWS
	AccessKey string
	SecretKey string
	Bucket    string
	PublicURL string
	Region    string
}

// ObjectStore is the S3-compatible client media uploads go through.
type ObjectStore struct {
	client *s3.Client
	cfg    StorageConfig
}

func NewObjectStore(ctx context.Context, cfg StorageConfig) (*ObjectStore, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("missing required storage configuration")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	// Verify bucket exists and we have permissions
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		if strings.Contains(err.Error(), "NotFound") {
			return nil, fmt.Errorf("bucket %s not found or inaccessible", cfg.Bucket)
		}
		return nil, fmt.Errorf("failed to access bucket: %w", err)
	}

	return &ObjectStore{client: client, cfg: cfg}, nil
}

// Upload stores one object.
func (o *ObjectStore) Upload(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// Head verifies an object exists. The processing worker uses this to confirm
// an upload landed before marking an attachment ready.
func (o *ObjectStore) Head(ctx context.Context, key string) error {
	_, err := o.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(o.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return nil
}

// Delete removes an object.
func (o *ObjectStore) Delete(ctx context.Context, key string) error {
	_, err := o.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(o.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// PublicURL maps a storage key to its CDN-facing URL.
func (o *ObjectStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(o.cfg.PublicURL, "/"), key)
}

// UploadMedia reads the file and stores it under a per-user unique key.
func (o *ObjectStore) UploadMedia(ctx context.Context, file io.Reader, originalFileName string, ownerID uuid.UUID) (string, error) {
	if file == nil {
		return "", fmt.Errorf("file reader cannot be nil")
	}
	if originalFileName == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(originalFileName))
	key := fmt.Sprintf("media/%s/%s%s", ownerID, uuid.NewString(), ext)

	contentType := contentTypeForExt(ext)
	if err := o.Upload(ctx, key, content, contentType); err != nil {
		return "", err
	}
	return key, nil
}

func contentTypeForExt(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}
