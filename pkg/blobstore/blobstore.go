// Package blobstore mirrors checkpoint files to remote storage.
//
// Credentials are handed to the selected provider untouched; nothing in
// the training core inspects them.
package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
)

const (
	KindS3     = "s3"
	KindOCI    = "oci"
	KindBadger = "badger"
)

type Credentials struct {
	AccessKey string `toml:"access_key" yaml:"access_key" json:"access_key"`
	SecretKey string `toml:"secret_key" yaml:"secret_key" json:"secret_key"`
	Bucket    string `toml:"bucket"     yaml:"bucket"     json:"bucket"`
}

// Store is a flat key/value blob namespace.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Provider opens stores for a set of credentials.
type Provider interface {
	Open(ctx context.Context, creds Credentials) (Store, error)
	Close() error
}

// NewProvider returns the provider for the configured storage kind.
func NewProvider(kind, endpoint string, secure bool) (Provider, error) {
	switch kind {
	case KindS3:
		return NewS3Provider(endpoint, secure), nil
	case KindOCI:
		return NewOCIProvider(endpoint, secure), nil
	case KindBadger:
		return NewBadgerProvider(endpoint)
	default:
		return nil, fmt.Errorf("%w: unsupported storage kind %q", pkgerrors.ErrConfiguration, kind)
	}
}

// Upload copies a local file into the store under key.
func Upload(ctx context.Context, s Store, filename, key string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrCheckpointIO, err)
	}
	if err := s.Put(ctx, key, data); err != nil {
		return fmt.Errorf("%w: put %s: %w", pkgerrors.ErrRemoteStorage, key, err)
	}

	return nil
}

// Download copies key out of the store into a local file, creating parent
// directories as needed.
func Download(ctx context.Context, s Store, key, filename string) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: get %s: %w", pkgerrors.ErrRemoteStorage, key, err)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrCheckpointIO, err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrCheckpointIO, err)
	}

	return nil
}
