package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/run"
)

const runColumns = `id, name, kind, competition, state, engine_state, best_score, epochs, stopped_early, folds,
	checkpoints, submission_path, files, tournaments, error, start_time, finish_time, created_at, updated_at`

type RunRepository struct {
	db *Database
}

func NewRunRepository(db *Database) *RunRepository {
	return &RunRepository{db: db}
}

type dbRun struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	Kind           string         `db:"kind"`
	Competition    string         `db:"competition"`
	State          uint8          `db:"state"`
	EngineState    sql.NullString `db:"engine_state"`
	BestScore      float64        `db:"best_score"`
	Epochs         int            `db:"epochs"`
	StoppedEarly   bool           `db:"stopped_early"`
	Folds          int            `db:"folds"`
	Checkpoints    []byte         `db:"checkpoints"`
	SubmissionPath sql.NullString `db:"submission_path"`
	Files          []byte         `db:"files"`
	Tournaments    []byte         `db:"tournaments"`
	Error          sql.NullString `db:"error"`
	StartTime      sql.NullTime   `db:"start_time"`
	FinishTime     sql.NullTime   `db:"finish_time"`
	CreatedAt      sql.NullTime   `db:"created_at"`
	UpdatedAt      sql.NullTime   `db:"updated_at"`
}

func (r *RunRepository) Create(ctx context.Context, rn run.Run) (run.Run, error) {
	args, err := runArgs(rn)
	if err != nil {
		return run.Run{}, err
	}
	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return run.Run{}, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return rn, nil
}

func (r *RunRepository) Get(ctx context.Context, id string) (run.Run, error) {
	var dbr dbRun
	if err := r.db.GetContext(ctx, &dbr, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run.Run{}, pkgerrors.ErrNotFound
		}

		return run.Run{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return dbr.toRun()
}

func (r *RunRepository) Update(ctx context.Context, rn run.Run) error {
	args, err := runArgs(rn)
	if err != nil {
		return err
	}
	query := `UPDATE runs SET name = ?, kind = ?, competition = ?, state = ?, engine_state = ?, best_score = ?,
		epochs = ?, stopped_early = ?, folds = ?, checkpoints = ?, submission_path = ?, files = ?, tournaments = ?,
		error = ?, start_time = ?, finish_time = ?, created_at = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, append(args[1:], rn.ID)...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return pkgerrors.ErrNotFound
	}

	return nil
}

func (r *RunRepository) List(ctx context.Context, offset, limit uint64) ([]run.Run, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM runs`); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var rows []dbRun
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	runs := make([]run.Run, len(rows))
	for i, dbr := range rows {
		rn, err := dbr.toRun()
		if err != nil {
			return nil, 0, err
		}
		runs[i] = rn
	}

	return runs, total, nil
}

func (r *RunRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: %w", ErrDelete, err)
	}

	return nil
}

func runArgs(rn run.Run) ([]any, error) {
	checkpoints, err := jsonBytes(rn.Checkpoints)
	if err != nil {
		return nil, fmt.Errorf("marshal error: %w", err)
	}
	files, err := jsonBytes(rn.Files)
	if err != nil {
		return nil, fmt.Errorf("marshal error: %w", err)
	}
	tournaments, err := jsonBytes(rn.Tournaments)
	if err != nil {
		return nil, fmt.Errorf("marshal error: %w", err)
	}

	return []any{
		rn.ID, rn.Name, string(rn.Kind), rn.Competition, uint8(rn.State), nullString(rn.EngineState),
		rn.BestScore, rn.Epochs, rn.StoppedEarly, rn.Folds,
		checkpoints, nullString(rn.SubmissionPath), files, tournaments, nullString(rn.Error),
		nullTime(rn.StartTime), nullTime(rn.FinishTime), rn.CreatedAt, rn.UpdatedAt,
	}, nil
}

func (dbr dbRun) toRun() (run.Run, error) {
	rn := run.Run{
		ID:             dbr.ID,
		Name:           dbr.Name,
		Kind:           run.Kind(dbr.Kind),
		Competition:    dbr.Competition,
		State:          run.State(dbr.State),
		EngineState:    fromNullString(dbr.EngineState),
		BestScore:      dbr.BestScore,
		Epochs:         dbr.Epochs,
		StoppedEarly:   dbr.StoppedEarly,
		Folds:          dbr.Folds,
		SubmissionPath: fromNullString(dbr.SubmissionPath),
		Error:          fromNullString(dbr.Error),
		StartTime:      fromNullTime(dbr.StartTime),
		FinishTime:     fromNullTime(dbr.FinishTime),
		CreatedAt:      fromNullTime(dbr.CreatedAt),
		UpdatedAt:      fromNullTime(dbr.UpdatedAt),
	}
	if err := jsonUnmarshal(dbr.Checkpoints, &rn.Checkpoints); err != nil {
		return run.Run{}, fmt.Errorf("unmarshal error: %w", err)
	}
	if err := jsonUnmarshal(dbr.Files, &rn.Files); err != nil {
		return run.Run{}, fmt.Errorf("unmarshal error: %w", err)
	}
	if err := jsonUnmarshal(dbr.Tournaments, &rn.Tournaments); err != nil {
		return run.Run{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return rn, nil
}

type EpochRepository struct {
	db *Database
}

func NewEpochRepository(db *Database) *EpochRepository {
	return &EpochRepository{db: db}
}

type dbEpoch struct {
	RunID        string       `db:"run_id"`
	Tournament   string       `db:"tournament"`
	Epoch        int          `db:"epoch"`
	TrainLoss    float64      `db:"train_loss"`
	TrainScore   float64      `db:"train_score"`
	ValLoss      float64      `db:"val_loss"`
	ValScore     float64      `db:"val_score"`
	LearningRate float64      `db:"learning_rate"`
	Checkpointed bool         `db:"checkpointed"`
	Timestamp    sql.NullTime `db:"timestamp"`
}

func (r *EpochRepository) CreateEpoch(ctx context.Context, e run.Epoch) error {
	query := `INSERT INTO epochs (run_id, tournament, epoch, train_loss, train_score, val_loss, val_score, learning_rate, checkpointed, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query,
		e.RunID, e.Tournament, e.Epoch, e.TrainLoss, e.TrainScore,
		e.ValLoss, e.ValScore, e.LearningRate, e.Checkpointed, e.Timestamp,
	); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *EpochRepository) ListEpochs(ctx context.Context, runID string, offset, limit uint64) ([]run.Epoch, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM epochs WHERE run_id = ?`, runID); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var rows []dbEpoch
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT run_id, tournament, epoch, train_loss, train_score, val_loss, val_score, learning_rate, checkpointed, timestamp
		FROM epochs WHERE run_id = ? ORDER BY id LIMIT ? OFFSET ?`, runID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	epochs := make([]run.Epoch, len(rows))
	for i, row := range rows {
		epochs[i] = run.Epoch{
			RunID:        row.RunID,
			Tournament:   row.Tournament,
			Epoch:        row.Epoch,
			TrainLoss:    row.TrainLoss,
			TrainScore:   row.TrainScore,
			ValLoss:      row.ValLoss,
			ValScore:     row.ValScore,
			LearningRate: row.LearningRate,
			Checkpointed: row.Checkpointed,
			Timestamp:    fromNullTime(row.Timestamp),
		}
	}

	return epochs, total, nil
}
