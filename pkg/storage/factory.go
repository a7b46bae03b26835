package storage

import (
	"fmt"
	"io"

	"github.com/absmach/modelfactory/pkg/storage/badger"
	"github.com/absmach/modelfactory/pkg/storage/postgres"
	"github.com/absmach/modelfactory/pkg/storage/sqlite"
)

type Config struct {
	Type string `env:"MF_STORAGE_TYPE" envDefault:"memory"`

	PostgresHost    string `env:"MF_POSTGRES_HOST"    envDefault:"localhost"`
	PostgresPort    string `env:"MF_POSTGRES_PORT"    envDefault:"5432"`
	PostgresUser    string `env:"MF_POSTGRES_USER"    envDefault:"modelfactory"`
	PostgresPass    string `env:"MF_POSTGRES_PASS"    envDefault:"modelfactory"`
	PostgresDB      string `env:"MF_POSTGRES_DB"      envDefault:"modelfactory"`
	PostgresSSLMode string `env:"MF_POSTGRES_SSLMODE" envDefault:"disable"`

	SQLitePath string `env:"MF_SQLITE_PATH" envDefault:"./modelfactory.db"`

	BadgerPath string `env:"MF_BADGER_PATH" envDefault:"./data/badger"`
}

type Repositories struct {
	Runs   RunRepository
	Epochs EpochRepository
	// Closer closes the underlying persistent storage connection.
	// It is nil for the in-memory backend.
	Closer io.Closer
}

func NewRepositories(cfg Config) (*Repositories, error) {
	switch cfg.Type {
	case "postgres":
		return newPostgresRepositories(cfg)
	case "sqlite":
		return newSQLiteRepositories(cfg)
	case "badger":
		return newBadgerRepositories(cfg)
	case "memory":
		return newMemoryRepositories(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func newPostgresRepositories(cfg Config) (*Repositories, error) {
	db, err := postgres.NewDatabase(
		cfg.PostgresHost,
		cfg.PostgresPort,
		cfg.PostgresUser,
		cfg.PostgresPass,
		cfg.PostgresDB,
		cfg.PostgresSSLMode,
	)
	if err != nil {
		return nil, err
	}

	repos := postgres.NewRepositories(db)

	return &Repositories{Runs: repos.Runs, Epochs: repos.Epochs, Closer: db}, nil
}

func newSQLiteRepositories(cfg Config) (*Repositories, error) {
	db, err := sqlite.NewDatabase(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	repos := sqlite.NewRepositories(db)

	return &Repositories{Runs: repos.Runs, Epochs: repos.Epochs, Closer: db}, nil
}

func newBadgerRepositories(cfg Config) (*Repositories, error) {
	db, err := badger.NewDatabase(cfg.BadgerPath)
	if err != nil {
		return nil, err
	}

	repos := badger.NewRepositories(db)

	return &Repositories{Runs: repos.Runs, Epochs: repos.Epochs, Closer: db}, nil
}

func newMemoryRepositories() *Repositories {
	return &Repositories{
		Runs:   NewMemoryRunRepository(),
		Epochs: NewMemoryEpochRepository(),
	}
}
