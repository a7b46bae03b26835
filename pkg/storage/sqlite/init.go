package sqlite

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
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

func NewDatabase(path string) (*Database, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
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
						id TEXT PRIMARY KEY,
						name TEXT NOT NULL,
						kind TEXT NOT NULL,
						competition TEXT NOT NULL,
						state INTEGER NOT NULL DEFAULT 0,
						engine_state TEXT,
						best_score REAL NOT NULL DEFAULT 0,
						epochs INTEGER NOT NULL DEFAULT 0,
						stopped_early INTEGER NOT NULL DEFAULT 0,
						folds INTEGER NOT NULL DEFAULT 0,
						checkpoints TEXT,
						submission_path TEXT,
						files TEXT,
						tournaments TEXT,
						error TEXT,
						start_time TIMESTAMP,
						finish_time TIMESTAMP,
						created_at TIMESTAMP NOT NULL,
						updated_at TIMESTAMP NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC)`,
					`CREATE TABLE IF NOT EXISTS epochs (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						run_id TEXT NOT NULL,
						tournament TEXT NOT NULL DEFAULT '',
						epoch INTEGER NOT NULL,
						train_loss REAL NOT NULL,
						train_score REAL NOT NULL,
						val_loss REAL NOT NULL,
						val_score REAL NOT NULL,
						learning_rate REAL NOT NULL,
						checkpointed INTEGER NOT NULL DEFAULT 0,
						timestamp TIMESTAMP NOT NULL,
						FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
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

	if _, err := migrate.Exec(db.DB.DB, "sqlite3", migrations, migrate.Up); err != nil {
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}

	return nil
}
