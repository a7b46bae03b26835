package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	oras "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

const (
	checkpointArtifactType = "application/vnd.modelfactory.checkpoint"
	checkpointMediaType    = "application/vnd.modelfactory.checkpoint.layer.v1+cbor"
)

var errNoLayers = errors.New("no layers found in manifest")

type ociProvider struct {
	registry string
	secure   bool
}

// NewOCIProvider stores each checkpoint as a single-layer OCI artifact
// tagged with its key. The bucket names the repository.
func NewOCIProvider(registry string, secure bool) Provider {
	return &ociProvider{registry: strings.TrimSuffix(registry, "/"), secure: secure}
}

func (p *ociProvider) Open(_ context.Context, creds Credentials) (Store, error) {
	if creds.Bucket == "" {
		return nil, errEmptyBucket
	}
	repo, err := remote.NewRepository(p.registry + "/" + creds.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository for %s: %w", creds.Bucket, err)
	}
	repo.PlainHTTP = !p.secure

	if creds.AccessKey != "" || creds.SecretKey != "" {
		repo.Client = &auth.Client{
			Client: retry.DefaultClient,
			Cache:  auth.NewCache(),
			Credential: auth.StaticCredential(repo.Reference.Registry, auth.Credential{
				Username: creds.AccessKey,
				Password: creds.SecretKey,
			}),
		}
	}

	return &ociStore{repo: repo}, nil
}

func (p *ociProvider) Close() error {
	return nil
}

type ociStore struct {
	repo *remote.Repository
}

func (s *ociStore) Put(ctx context.Context, key string, data []byte) error {
	layer, err := oras.PushBytes(ctx, s.repo, checkpointMediaType, data)
	if err != nil {
		return fmt.Errorf("failed to push layer: %w", err)
	}

	manifest, err := oras.PackManifest(ctx, s.repo, oras.PackManifestVersion1_1, checkpointArtifactType, oras.PackManifestOptions{
		Layers: []ocispec.Descriptor{layer},
	})
	if err != nil {
		return fmt.Errorf("failed to pack manifest: %w", err)
	}

	return s.repo.Tag(ctx, manifest, tagFor(key))
}

func (s *ociStore) Get(ctx context.Context, key string) ([]byte, error) {
	descriptor, err := s.repo.Resolve(ctx, tagFor(key))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest for %s: %w", key, err)
	}

	manifestData, err := fetchAll(ctx, s.repo, descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest for %s: %w", key, err)
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest for %s: %w", key, err)
	}
	if len(manifest.Layers) == 0 {
		return nil, errNoLayers
	}

	return fetchAll(ctx, s.repo, manifest.Layers[0])
}

func fetchAll(ctx context.Context, repo *remote.Repository, desc ocispec.Descriptor) ([]byte, error) {
	reader, err := repo.Fetch(ctx, desc)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// tagFor maps a checkpoint key onto the OCI tag alphabet.
func tagFor(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	tag := b.String()
	if len(tag) > 128 {
		tag = tag[:128]
	}

	return tag
}
