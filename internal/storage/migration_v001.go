package storage

import "database/sql"

// migrateV001 creates the initial studylog schema: raw input tables, the
// versioned output tables and the compute run ledger. Every statement uses
// IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Input tables ────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS location_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL,
			tab_id     TEXT NOT NULL DEFAULT '',
			tab_index  INTEGER NOT NULL DEFAULT -1,
			url        TEXT NOT NULL DEFAULT '',
			title      TEXT NOT NULL DEFAULT '',
			event_type TEXT NOT NULL,
			visit_date DATETIME NOT NULL,
			log_date   DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS question_events (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id        INTEGER NOT NULL,
			question_index INTEGER NOT NULL,
			time           DATETIME NOT NULL,
			event_type     TEXT NOT NULL
		)`,

		// ── Versioned output tables ─────────────────────────────

		`CREATE TABLE IF NOT EXISTS task_periods (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			compute_index INTEGER NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			user_id       INTEGER NOT NULL,
			task_index    INTEGER NOT NULL,
			concern_index INTEGER NOT NULL,
			start         DATETIME NOT NULL,
			"end"         DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS location_visits (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			compute_index INTEGER NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			user_id       INTEGER NOT NULL,
			task_index    INTEGER NOT NULL,
			concern_index INTEGER NOT NULL,
			tab_id        TEXT NOT NULL DEFAULT '',
			url           TEXT NOT NULL,
			title         TEXT NOT NULL DEFAULT '',
			start         DATETIME NOT NULL,
			"end"         DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS location_ratings (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			compute_index INTEGER NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			user_id       INTEGER NOT NULL,
			task_index    INTEGER NOT NULL,
			concern_index INTEGER NOT NULL,
			event_id      INTEGER NOT NULL,
			url           TEXT NOT NULL,
			title         TEXT NOT NULL DEFAULT '',
			rating        INTEGER NOT NULL,
			visit_date    DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS navigation_vertices (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			compute_index INTEGER NOT NULL,
			page_type     TEXT NOT NULL,
			occurrences   INTEGER NOT NULL DEFAULT 0,
			total_time    REAL NOT NULL DEFAULT 0,
			mean_time     REAL NOT NULL DEFAULT 0,
			UNIQUE(compute_index, page_type)
		)`,

		`CREATE TABLE IF NOT EXISTS navigation_edges (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			compute_index    INTEGER NOT NULL,
			source_vertex_id INTEGER NOT NULL REFERENCES navigation_vertices(id),
			target_vertex_id INTEGER NOT NULL REFERENCES navigation_vertices(id),
			occurrences      INTEGER NOT NULL DEFAULT 0,
			probability      REAL NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS navigation_ngrams (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			compute_index INTEGER NOT NULL,
			user_id       INTEGER NOT NULL,
			concern_index INTEGER NOT NULL,
			length        INTEGER NOT NULL,
			ngram         TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS unique_urls (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			compute_index INTEGER NOT NULL,
			user_id       INTEGER NOT NULL,
			url           TEXT NOT NULL,
			is_unique     BOOLEAN NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS unique_cues (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			compute_index  INTEGER NOT NULL,
			participant_id INTEGER NOT NULL,
			cue            TEXT NOT NULL,
			is_unique      BOOLEAN NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS compute_runs (
			id             TEXT PRIMARY KEY,
			entity         TEXT NOT NULL,
			compute_index  INTEGER NOT NULL,
			upstream_index INTEGER NOT NULL DEFAULT 0,
			started_at     DATETIME NOT NULL,
			finished_at    DATETIME NOT NULL,
			rows_written   INTEGER NOT NULL DEFAULT 0,
			UNIQUE(entity, compute_index)
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_location_events_user_visit ON location_events(user_id, visit_date)`,
		`CREATE INDEX IF NOT EXISTS idx_location_events_event_type ON location_events(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_question_events_user_time  ON question_events(user_id, time)`,
		`CREATE INDEX IF NOT EXISTS idx_task_periods_compute       ON task_periods(compute_index)`,
		`CREATE INDEX IF NOT EXISTS idx_task_periods_user          ON task_periods(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_location_visits_compute    ON location_visits(compute_index)`,
		`CREATE INDEX IF NOT EXISTS idx_location_visits_user       ON location_visits(user_id, concern_index)`,
		`CREATE INDEX IF NOT EXISTS idx_location_ratings_compute   ON location_ratings(compute_index)`,
		`CREATE INDEX IF NOT EXISTS idx_navigation_vertices_compute ON navigation_vertices(compute_index)`,
		`CREATE INDEX IF NOT EXISTS idx_navigation_edges_compute   ON navigation_edges(compute_index)`,
		`CREATE INDEX IF NOT EXISTS idx_navigation_ngrams_compute  ON navigation_ngrams(compute_index)`,
		`CREATE INDEX IF NOT EXISTS idx_unique_urls_compute        ON unique_urls(compute_index)`,
		`CREATE INDEX IF NOT EXISTS idx_unique_cues_compute        ON unique_cues(compute_index)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
