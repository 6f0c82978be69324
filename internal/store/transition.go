package store

import (
	"database/sql"
	"time"
)

// Transition is a persisted change of the committed label.
type Transition struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Label      string    `json:"label"`
	Previous   string    `json:"previous,omitempty"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// LabelStat aggregates the transitions committed to one label.
type LabelStat struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// TransitionRepository records committed transitions.
type TransitionRepository struct {
	db *sql.DB
}

// Transitions returns the transition repository for this store.
func (s *Store) Transitions() *TransitionRepository {
	return &TransitionRepository{db: s.db}
}

// Record inserts t and fills in its ID.
func (r *TransitionRepository) Record(t *Transition) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO transitions (run_id, label, previous, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		t.RunID, t.Label, t.Previous, t.Confidence, t.CreatedAt,
	)
	if err != nil {
		return err
	}

	t.ID, err = result.LastInsertId()
	return err
}

// ListByRun returns the transitions of one run in commit order.
func (r *TransitionRepository) ListByRun(runID string) ([]*Transition, error) {
	rows, err := r.db.Query(
		`SELECT id, run_id, label, previous, confidence, created_at
		 FROM transitions
		 WHERE run_id = ?
		 ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transitions []*Transition
	for rows.Next() {
		t := &Transition{}
		if err := rows.Scan(&t.ID, &t.RunID, &t.Label, &t.Previous, &t.Confidence, &t.CreatedAt); err != nil {
			return nil, err
		}
		transitions = append(transitions, t)
	}

	return transitions, rows.Err()
}

// Stats counts transitions per label across all runs, most frequent first
// and then by label.
func (r *TransitionRepository) Stats() ([]LabelStat, error) {
	rows, err := r.db.Query(
		`SELECT label, COUNT(*) AS n
		 FROM transitions
		 GROUP BY label
		 ORDER BY n DESC, label ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []LabelStat
	total := 0
	for rows.Next() {
		var s LabelStat
		if err := rows.Scan(&s.Label, &s.Count); err != nil {
			return nil, err
		}
		total += s.Count
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range stats {
		stats[i].Percent = float64(stats[i].Count) * 100 / float64(total)
	}
	return stats, nil
}
