package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Labels table - the recognizable label set
		`CREATE TABLE IF NOT EXISTS labels (
			name TEXT PRIMARY KEY,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Runs table - one row per recognition session run
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			stopped_at DATETIME,
			reason TEXT NOT NULL DEFAULT ''
		)`,

		// Transitions table - committed label changes
		`CREATE TABLE IF NOT EXISTS transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			label TEXT NOT NULL,
			previous TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		// Samples table - recorded feature sequences for template training
		`CREATE TABLE IF NOT EXISTS samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			label TEXT NOT NULL REFERENCES labels(name) ON UPDATE CASCADE ON DELETE CASCADE,
			sample_index INTEGER NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Templates table - trained centroid per label
		`CREATE TABLE IF NOT EXISTS templates (
			label TEXT PRIMARY KEY REFERENCES labels(name) ON UPDATE CASCADE ON DELETE CASCADE,
			centroid TEXT NOT NULL,
			samples INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		)`,

		// Settings table - application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_transitions_run_id ON transitions(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_label ON transitions(label)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_label ON samples(label)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
