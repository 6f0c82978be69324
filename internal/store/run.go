package store

import (
	"database/sql"
	"errors"
	"time"
)

// Run is one recognition session from start to stop.
type Run struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// RunRepository records session runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Create records the start of a run.
func (r *RunRepository) Create(id string, startedAt time.Time) error {
	_, err := r.db.Exec(`INSERT INTO runs (id, started_at) VALUES (?, ?)`, id, startedAt)
	return err
}

// Finish records when and why a run ended.
func (r *RunRepository) Finish(id string, stoppedAt time.Time, reason string) error {
	result, err := r.db.Exec(
		`UPDATE runs SET stopped_at = ?, reason = ? WHERE id = ?`,
		stoppedAt, reason, id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	row := r.db.QueryRow(`SELECT id, started_at, stopped_at, reason FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// List returns the most recent runs first, at most limit rows when limit > 0.
func (r *RunRepository) List(limit int) ([]*Run, error) {
	query := `SELECT id, started_at, stopped_at, reason FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var stoppedAt sql.NullTime
	if err := row.Scan(&run.ID, &run.StartedAt, &stoppedAt, &run.Reason); err != nil {
		return nil, err
	}
	if stoppedAt.Valid {
		t := stoppedAt.Time
		run.StoppedAt = &t
	}
	return run, nil
}
