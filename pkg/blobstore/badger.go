package blobstore

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/dgraph-io/badger/v4"
)

type badgerProvider struct {
	db *badger.DB
}

// NewBadgerProvider keeps checkpoints in an embedded Badger database at
// path. An empty path keeps the database in memory.
func NewBadgerProvider(path string) (Provider, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open Badger database: %w", err)
	}

	return &badgerProvider{db: db}, nil
}

func (p *badgerProvider) Open(_ context.Context, creds Credentials) (Store, error) {
	return &badgerStore{db: p.db, prefix: creds.Bucket + "/"}, nil
}

func (p *badgerProvider) Close() error {
	return p.db.Close()
}

type badgerStore struct {
	db     *badger.DB
	prefix string
}

func (s *badgerStore) Put(_ context.Context, key string, data []byte) error {
	if key == "" {
		return pkgerrors.ErrEmptyKey
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(s.prefix+key), data)
	})
}

func (s *badgerStore) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, pkgerrors.ErrEmptyKey
	}

	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(s.prefix + key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)

		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, pkgerrors.ErrNotFound
	}

	return val, err
}
