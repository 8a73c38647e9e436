package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/noteduco342/chatsync/internal/config"
)

var (
	ErrNotConfigured = errors.New("object store not configured")
	ErrInvalidKey    = errors.New("invalid object key")
)

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3ConfigFrom picks the S3_* settings out of the process config. Region may
// stay empty when talking to MinIO.
func S3ConfigFrom(cfg *config.Config) (S3Config, error) {
	if !cfg.S3Configured() {
		return S3Config{}, fmt.Errorf("%w: S3_ENDPOINT, S3_BUCKET, S3_ACCESS_KEY and S3_SECRET_KEY are required", ErrNotConfigured)
	}
	trim := strings.TrimSpace
	return S3Config{
		Endpoint:  trim(cfg.S3Endpoint),
		Region:    trim(cfg.S3Region),
		Bucket:    trim(cfg.S3Bucket),
		AccessKey: trim(cfg.S3AccessKey),
		SecretKey: trim(cfg.S3SecretKey),
		UseSSL:    cfg.S3UseSSL,
	}, nil
}

// S3Storage keeps message attachments and avatars in one bucket.
type S3Storage struct {
	client *minio.Client
	bucket string
}

// NewS3Storage connects to the bucket and creates it when it does not exist yet.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("s3 bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}
	return &S3Storage{client: client, bucket: cfg.Bucket}, nil
}

// ObjectStat is what the media endpoints need to answer conditional requests.
type ObjectStat struct {
	ETag         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

func statOf(info minio.ObjectInfo) ObjectStat {
	return ObjectStat{
		ETag:         info.ETag,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}
}

func (s *S3Storage) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) (ObjectStat, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return ObjectStat{}, err
	}
	return ObjectStat{ETag: info.ETag, Size: info.Size, ContentType: contentType, LastModified: time.Now().UTC()}, nil
}

// Open returns a reader over the object. The caller closes it.
func (s *S3Storage) Open(ctx context.Context, key string) (io.ReadCloser, ObjectStat, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectStat{}, err
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, ObjectStat{}, err
	}
	return obj, statOf(info), nil
}

func (s *S3Storage) DeleteObject(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// IsNotFound reports whether err means the object or its bucket is missing.
func IsNotFound(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return false
	}
	switch resp.Code {
	case "NoSuchKey", "NoSuchObject", "NoSuchBucket":
		return true
	}
	return resp.StatusCode == http.StatusNotFound
}

// SafeJoinKey places key under prefix. Empty, "." and ".." segments and
// backslashes are refused so a request path cannot leave the prefix.
func SafeJoinKey(prefix string, key string) (string, error) {
	var segments []string
	for _, part := range []string{prefix, key} {
		for _, seg := range strings.Split(strings.TrimSpace(part), "/") {
			switch {
			case seg == "":
				continue
			case seg == "." || seg == ".." || strings.ContainsAny(seg, "\\\x00"):
				return "", ErrInvalidKey
			}
			segments = append(segments, seg)
		}
	}
	if len(segments) <= len(strings.FieldsFunc(prefix, func(r rune) bool { return r == '/' })) {
		return "", ErrInvalidKey
	}
	return strings.Join(segments, "/"), nil
}
