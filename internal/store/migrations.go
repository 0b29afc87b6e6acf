package store

// runMigrations creates the schema. Every statement is idempotent.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Registered players. Only their analyses are kept.
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE COLLATE NOCASE,
			created_at DATETIME NOT NULL
		)`,

		// One row per completed capture; tips is a JSON array.
		`CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			avg_elbow_angle REAL NOT NULL,
			avg_feet_distance REAL NOT NULL,
			tips TEXT NOT NULL DEFAULT '[]',
			frame_count INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		// The accepted frames behind each analysis, in capture order.
		`CREATE TABLE IF NOT EXISTS analysis_frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
			frame_index INTEGER NOT NULL,
			elbow_angle REAL NOT NULL,
			feet_distance REAL NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_analyses_user_id ON analyses(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_frames_analysis_id ON analysis_frames(analysis_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}
