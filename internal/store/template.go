package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Template is a stored centroid for one label.
type Template struct {
	Label     string    `json:"label"`
	Centroid  []float32 `json:"centroid"`
	Samples   int       `json:"samples"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TemplateRepository stores trained templates.
type TemplateRepository struct {
	db *sql.DB
}

// Templates returns the template repository for this store.
func (s *Store) Templates() *TemplateRepository {
	return &TemplateRepository{db: s.db}
}

// Save inserts or replaces the template for t.Label.
func (r *TemplateRepository) Save(t *Template) error {
	centroid, err := json.Marshal(t.Centroid)
	if err != nil {
		return fmt.Errorf("failed to encode centroid: %w", err)
	}
	t.UpdatedAt = time.Now()

	_, err = r.db.Exec(
		`INSERT INTO templates (label, centroid, samples, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(label) DO UPDATE SET centroid = excluded.centroid,
		 samples = excluded.samples, updated_at = excluded.updated_at`,
		t.Label, string(centroid), t.Samples, t.UpdatedAt,
	)
	return err
}

// Get retrieves the template for a label.
func (r *TemplateRepository) Get(label string) (*Template, error) {
	row := r.db.QueryRow(`SELECT label, centroid, samples, updated_at FROM templates WHERE label = ?`, label)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// List returns all templates ordered by label.
func (r *TemplateRepository) List() ([]*Template, error) {
	rows, err := r.db.Query(`SELECT label, centroid, samples, updated_at FROM templates ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}

	return templates, rows.Err()
}

// Delete removes the template for a label.
func (r *TemplateRepository) Delete(label string) error {
	result, err := r.db.Exec(`DELETE FROM templates WHERE label = ?`, label)
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

func scanTemplate(row scanner) (*Template, error) {
	t := &Template{}
	var centroid string
	if err := row.Scan(&t.Label, &centroid, &t.Samples, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(centroid), &t.Centroid); err != nil {
		return nil, fmt.Errorf("failed to decode centroid for %q: %w", t.Label, err)
	}
	return t, nil
}
