package sink

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"archscan/internal/config"
	archerrors "archscan/internal/errors"
)

// ObjectSink writes documents to an S3-compatible bucket
type ObjectSink struct {
	client *minio.Client
	bucket string
	prefix string
	region string

	// bucketReady is set once the bucket is known to exist; a failed check
	// is retried on the next write.
	mu          sync.Mutex
	bucketReady bool
	checkBucket func(ctx context.Context) error
}

// NewObjectSink creates a sink for cfg. No network I/O happens until the
// first write.
func NewObjectSink(cfg config.S3Config) (*ObjectSink, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	s := &ObjectSink{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		region: region,
	}
	s.checkBucket = s.makeBucket
	return s, nil
}

// Key returns the object key for a document name
func (s *ObjectSink) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *ObjectSink) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bucketReady {
		return nil
	}
	if err := s.checkBucket(ctx); err != nil {
		return err
	}
	s.bucketReady = true
	return nil
}

func (s *ObjectSink) makeBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil || exists {
		return err
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
}

// Write uploads data and returns its s3:// location
func (s *ObjectSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", archerrors.New(archerrors.Cancelled, "export cancelled", err)
	}
	if err := s.ensureBucket(ctx); err != nil {
		if ctx.Err() != nil {
			return "", archerrors.New(archerrors.Cancelled, "export cancelled", err)
		}
		return "", archerrors.New(archerrors.SinkError, "ensure bucket "+s.bucket, err)
	}
	contentType := "application/json"
	if strings.HasSuffix(name, ".zst") {
		contentType = "application/zstd"
	}
	key := s.Key(name)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", archerrors.New(archerrors.SinkError, "upload "+key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
