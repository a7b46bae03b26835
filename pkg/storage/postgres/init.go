package postgres

import (
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	ErrDBConnection = errors.New("database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrMigration    = errors.New("database migration error")
	ErrCreate       = errors.New("create error")
	ErrUpdate       = errors.New("update error")
	ErrDelete       = errors.New("delete error")
)

type Repositories struct {
	Runs   *RunRepository
	Epochs *EpochRepository
}

func NewRepositories(db *Database) *Repositories {
	return &Repositories{
		Runs:   NewRunRepository(db),
		Epochs: NewEpochRepository(db),
	}
}

type Database struct {
	*sqlx.DB
}

func NewDatabase(host, port, user, pass, name, sslMode string) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s", host, port, user, pass, name, sslMode)
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &Database{DB: db}

	if err := database.Migrate(); err != nil {
		db.Close()

		return nil, err
	}

	return database, nil
}

func (db *Database) Migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_tables",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS runs (
						id VARCHAR(36) PRIMARY KEY,
						name VARCHAR(255) NOT NULL,
						kind VARCHAR(16) NOT NULL,
						competition VARCHAR(64) NOT NULL,
						state SMALLINT NOT NULL DEFAULT 0,
						engine_state VARCHAR(32),
						best_score DOUBLE PRECISION NOT NULL DEFAULT 0,
						epochs INTEGER NOT NULL DEFAULT 0,
						stopped_early BOOLEAN NOT NULL DEFAULT FALSE,
						folds INTEGER NOT NULL DEFAULT 0,
						checkpoints JSONB,
						submission_path TEXT,
						files JSONB,
						tournaments JSONB,
						error TEXT,
						start_time TIMESTAMPTZ,
						finish_time TIMESTAMPTZ,
						created_at TIMESTAMPTZ NOT NULL,
						updated_at TIMESTAMPTZ NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC)`,
					`CREATE TABLE IF NOT EXISTS epochs (
						id BIGSERIAL PRIMARY KEY,
						run_id VARCHAR(36) NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
						tournament VARCHAR(64) NOT NULL DEFAULT '',
						epoch INTEGER NOT NULL,
						train_loss DOUBLE PRECISION NOT NULL,
						train_score DOUBLE PRECISION NOT NULL,
						val_loss DOUBLE PRECISION NOT NULL,
						val_score DOUBLE PRECISION NOT NULL,
						learning_rate DOUBLE PRECISION NOT NULL,
						checkpointed BOOLEAN NOT NULL DEFAULT FALSE,
						timestamp TIMESTAMPTZ NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_epochs_run_id ON epochs(run_id, id)`,
				},
				Down: []string{
					`DROP INDEX IF EXISTS idx_epochs_run_id`,
					`DROP TABLE IF EXISTS epochs`,
					`DROP INDEX IF EXISTS idx_runs_created_at`,
					`DROP TABLE IF EXISTS runs`,
				},
			},
		},
	}

	if _, err := migrate.Exec(db.DB.DB, "postgres", migrations, migrate.Up); err != nil {
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}

	return nil
}
