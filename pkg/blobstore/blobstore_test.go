package blobstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/absmach/modelfactory/pkg/blobstore"
	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerUploadDownload(t *testing.T) {
	provider, err := blobstore.NewBadgerProvider("")
	require.NoError(t, err)
	defer provider.Close()

	ctx := context.Background()
	store, err := provider.Open(ctx, blobstore.Credentials{Bucket: "checkpoints"})
	require.NoError(t, err)

	dir := t.TempDir()
	src := filepath.Join(dir, "src.pth")
	require.NoError(t, os.WriteFile(src, []byte("weights"), 0o644))

	require.NoError(t, blobstore.Upload(ctx, store, src, "linear_bengali_fold4.pth"))

	dst := filepath.Join(dir, "nested", "dst.pth")
	require.NoError(t, blobstore.Download(ctx, store, "linear_bengali_fold4.pth", dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
}

func TestBadgerBucketsAreIsolated(t *testing.T) {
	provider, err := blobstore.NewBadgerProvider("")
	require.NoError(t, err)
	defer provider.Close()

	ctx := context.Background()
	a, err := provider.Open(ctx, blobstore.Credentials{Bucket: "a"})
	require.NoError(t, err)
	b, err := provider.Open(ctx, blobstore.Credentials{Bucket: "b"})
	require.NoError(t, err)

	require.NoError(t, a.Put(ctx, "key", []byte("value")))
	_, err = b.Get(ctx, "key")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestDownloadMissingKey(t *testing.T) {
	provider, err := blobstore.NewBadgerProvider("")
	require.NoError(t, err)
	defer provider.Close()

	ctx := context.Background()
	store, err := provider.Open(ctx, blobstore.Credentials{Bucket: "checkpoints"})
	require.NoError(t, err)

	err = blobstore.Download(ctx, store, "missing.pth", filepath.Join(t.TempDir(), "missing.pth"))
	assert.ErrorIs(t, err, pkgerrors.ErrRemoteStorage)
}

func TestDownloadOntoDirectory(t *testing.T) {
	provider, err := blobstore.NewBadgerProvider("")
	require.NoError(t, err)
	defer provider.Close()

	ctx := context.Background()
	store, err := provider.Open(ctx, blobstore.Credentials{Bucket: "checkpoints"})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "fold0.pth", []byte("weights")))

	dst := filepath.Join(t.TempDir(), "fold0.pth")
	require.NoError(t, os.Mkdir(dst, 0o755))

	err = blobstore.Download(ctx, store, "fold0.pth", dst)
	assert.ErrorIs(t, err, pkgerrors.ErrCheckpointIO)
}

func TestUploadMissingFile(t *testing.T) {
	provider, err := blobstore.NewBadgerProvider("")
	require.NoError(t, err)
	defer provider.Close()

	ctx := context.Background()
	store, err := provider.Open(ctx, blobstore.Credentials{Bucket: "checkpoints"})
	require.NoError(t, err)

	err = blobstore.Upload(ctx, store, filepath.Join(t.TempDir(), "absent.pth"), "absent.pth")
	assert.ErrorIs(t, err, pkgerrors.ErrCheckpointIO)
}

func TestNewProviderUnknownKind(t *testing.T) {
	_, err := blobstore.NewProvider("ftp", "", false)
	assert.ErrorIs(t, err, pkgerrors.ErrConfiguration)
}
