package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Sample is one recorded feature sequence used for template training.
type Sample struct {
	ID          int64           `json:"id"`
	Label       string          `json:"label"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SampleRepository provides CRUD operations for training samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Append adds samples for a label after any already recorded, in a single
// transaction.
func (r *SampleRepository) Append(label string, samples []json.RawMessage) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(sample_index) + 1, 0) FROM samples WHERE label = ?`, label,
	).Scan(&next); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO samples (label, sample_index, data, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for i, data := range samples {
		if _, err := stmt.Exec(label, next+i, string(data), now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByLabel retrieves all samples for a label.
func (r *SampleRepository) GetByLabel(label string) ([]Sample, error) {
	rows, err := r.db.Query(
		`SELECT id, label, sample_index, data, created_at
		 FROM samples
		 WHERE label = ?
		 ORDER BY sample_index`,
		label,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var data string
		if err := rows.Scan(&s.ID, &s.Label, &s.SampleIndex, &data, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Data = json.RawMessage(data)
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

// Data returns the raw sample payloads for a label.
func (r *SampleRepository) Data(label string) ([]json.RawMessage, error) {
	samples, err := r.GetByLabel(label)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, len(samples))
	for i, s := range samples {
		out[i] = s.Data
	}
	return out, nil
}

// DeleteByLabel removes all samples for a label.
func (r *SampleRepository) DeleteByLabel(label string) error {
	_, err := r.db.Exec(`DELETE FROM samples WHERE label = ?`, label)
	return err
}
