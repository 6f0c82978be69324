package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Label is one recognizable label.
type Label struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// LabelRepository manages the label registry.
type LabelRepository struct {
	db *sql.DB
}

// Labels returns the label repository for this store.
func (s *Store) Labels() *LabelRepository {
	return &LabelRepository{db: s.db}
}

// List returns all labels sorted by name.
func (r *LabelRepository) List() ([]*Label, error) {
	rows, err := r.db.Query(`SELECT name, created_at FROM labels ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []*Label
	for rows.Next() {
		l := &Label{}
		if err := rows.Scan(&l.Name, &l.CreatedAt); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}

	return labels, rows.Err()
}

// Names returns the sorted label names.
func (r *LabelRepository) Names() ([]string, error) {
	labels, err := r.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}
	return names, nil
}

// Create adds a label. A taken name fails with ErrDuplicate.
func (r *LabelRepository) Create(name string) (*Label, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	exists, err := r.exists(name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("label %q: %w", name, ErrDuplicate)
	}

	l := &Label{Name: name, CreatedAt: time.Now()}
	if _, err := r.db.Exec(`INSERT INTO labels (name, created_at) VALUES (?, ?)`, l.Name, l.CreatedAt); err != nil {
		return nil, err
	}
	return l, nil
}

// Rename changes a label's name. Samples and templates follow the rename.
func (r *LabelRepository) Rename(oldName, newName string) error {
	newName, err := cleanName(newName)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var taken int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM labels WHERE name = ?`, newName).Scan(&taken); err != nil {
		return err
	}
	if taken > 0 {
		return fmt.Errorf("label %q: %w", newName, ErrDuplicate)
	}

	result, err := tx.Exec(`UPDATE labels SET name = ? WHERE name = ?`, newName, oldName)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// Delete removes a label together with its samples and template.
func (r *LabelRepository) Delete(name string) error {
	result, err := r.db.Exec(`DELETE FROM labels WHERE name = ?`, name)
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

func (r *LabelRepository) exists(name string) (bool, error) {
	var n string
	err := r.db.QueryRow(`SELECT name FROM labels WHERE name = ?`, name).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("label name must not be empty")
	}
	return name, nil
}
