package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defS3Endpoint = "s3.amazonaws.com"

var errEmptyBucket = errors.New("empty bucket")

type s3Provider struct {
	endpoint string
	secure   bool
}

// NewS3Provider talks to any S3 compatible endpoint.
func NewS3Provider(endpoint string, secure bool) Provider {
	if endpoint == "" {
		endpoint = defS3Endpoint
		secure = true
	}

	return &s3Provider{endpoint: endpoint, secure: secure}
}

func (p *s3Provider) Open(_ context.Context, creds Credentials) (Store, error) {
	if creds.Bucket == "" {
		return nil, errEmptyBucket
	}
	client, err := minio.New(p.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(creds.AccessKey, creds.SecretKey, ""),
		Secure: p.secure,
	})
	if err != nil {
		return nil, err
	}

	return &s3Store{client: client, bucket: creds.Bucket}, nil
}

func (p *s3Provider) Close() error {
	return nil
}

type s3Store struct {
	client *minio.Client
	bucket string
}

func (s *s3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})

	return err
}

func (s *s3Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	// GetObject is lazy, Stat surfaces auth and missing-key failures.
	if _, err := obj.Stat(); err != nil {
		return nil, err
	}

	return io.ReadAll(obj)
}
