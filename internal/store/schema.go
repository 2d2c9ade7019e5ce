package store

import (
	"database/sql"
	"fmt"

	. "github.com/memoria-dev/memoria/internal/logging"
)

const schemaVersion = 1

// initSchema creates all base tables, FTS5 projections, and sync
// triggers idempotently. Mirrors the teacher's memory/schema.go
// migrateVN pattern: numbered migrations run inside one transaction,
// tracked in a schema_meta table.
func initSchema(db *sql.DB) error {
	L_debug("store: initializing schema", "version", schemaVersion)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		L_warn("store: failed to enable WAL mode", "error", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		L_warn("store: failed to set busy timeout", "error", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		L_warn("store: failed to enable foreign keys", "error", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema_meta: %w", err)
	}

	var currentVersion int
	err := db.QueryRow("SELECT value FROM schema_meta WHERE key = 'schema_version'").Scan(&currentVersion)
	if err == sql.ErrNoRows {
		currentVersion = 0
	} else if err != nil {
		return fmt.Errorf("check schema version: %w", err)
	}

	if currentVersion < schemaVersion {
		if err := migrateSchema(db, currentVersion); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}

	L_debug("store: schema ready", "version", schemaVersion)
	return nil
}

func migrateSchema(db *sql.DB, fromVersion int) error {
	L_info("store: migrating schema", "from", fromVersion, "to", schemaVersion)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if fromVersion < 1 {
		if err := migrateV1(tx); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO schema_meta (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, schemaVersion); err != nil {
		return fmt.Errorf("update schema version: %w", err)
	}

	return tx.Commit()
}

func migrateV1(tx *sql.Tx) error {
	L_debug("store: creating v1 schema")

	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			project_path TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			summary TEXT NOT NULL DEFAULT '',
			task_description TEXT NOT NULL DEFAULT '',
			files_modified TEXT NOT NULL DEFAULT '[]',
			compaction_count INTEGER NOT NULL DEFAULT 0,
			context_utilization_peak REAL,
			parent_session_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_path, started_at)`,

		`CREATE TABLE IF NOT EXISTS actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			timestamp TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			file_path TEXT NOT NULL DEFAULT '',
			action_type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			error_message TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_session ON actions(session_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			project_path TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			category TEXT NOT NULL,
			decision TEXT NOT NULL,
			rationale TEXT NOT NULL DEFAULT '',
			files_affected TEXT NOT NULL DEFAULT '[]',
			supersedes_id INTEGER REFERENCES decisions(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_project ON decisions(project_path, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_supersedes ON decisions(supersedes_id)`,

		`CREATE TABLE IF NOT EXISTS learnings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			project_path TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			category TEXT NOT NULL,
			learning TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			relevance_score REAL NOT NULL DEFAULT 1.0,
			times_referenced INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_learnings_project ON learnings(project_path, relevance_score)`,

		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			timestamp TEXT NOT NULL,
			trigger TEXT NOT NULL,
			current_task TEXT NOT NULL DEFAULT '',
			progress_summary TEXT NOT NULL DEFAULT '',
			open_questions TEXT NOT NULL DEFAULT '[]',
			next_steps TEXT NOT NULL DEFAULT '[]',
			working_files TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_session ON snapshots(session_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			timestamp TEXT NOT NULL,
			metric_name TEXT NOT NULL,
			metric_value REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_session ON metrics(session_id, metric_name)`,

		`CREATE TABLE IF NOT EXISTS prompts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			project_path TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			prompt TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prompts_project ON prompts(project_path, timestamp)`,

		// FTS5 projections, one per mirrored base table, content-linked
		// via content_rowid so the index stores no duplicate text.
		`CREATE VIRTUAL TABLE IF NOT EXISTS sessions_fts USING fts5(
			summary, content='sessions', content_rowid='rowid'
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS decisions_fts USING fts5(
			decision, rationale, content='decisions', content_rowid='rowid'
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS learnings_fts USING fts5(
			learning, context, content='learnings', content_rowid='rowid'
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS prompts_fts USING fts5(
			prompt, content='prompts', content_rowid='rowid'
		)`,

		// Sessions FTS sync
		`CREATE TRIGGER IF NOT EXISTS sessions_ai AFTER INSERT ON sessions BEGIN
			INSERT INTO sessions_fts(rowid, summary) VALUES (new.rowid, new.summary);
		END`,
		`CREATE TRIGGER IF NOT EXISTS sessions_ad AFTER DELETE ON sessions BEGIN
			INSERT INTO sessions_fts(sessions_fts, rowid, summary) VALUES ('delete', old.rowid, old.summary);
		END`,
		`CREATE TRIGGER IF NOT EXISTS sessions_au AFTER UPDATE ON sessions BEGIN
			INSERT INTO sessions_fts(sessions_fts, rowid, summary) VALUES ('delete', old.rowid, old.summary);
			INSERT INTO sessions_fts(rowid, summary) VALUES (new.rowid, new.summary);
		END`,

		// Decisions FTS sync
		`CREATE TRIGGER IF NOT EXISTS decisions_ai AFTER INSERT ON decisions BEGIN
			INSERT INTO decisions_fts(rowid, decision, rationale) VALUES (new.rowid, new.decision, new.rationale);
		END`,
		`CREATE TRIGGER IF NOT EXISTS decisions_ad AFTER DELETE ON decisions BEGIN
			INSERT INTO decisions_fts(decisions_fts, rowid, decision, rationale) VALUES ('delete', old.rowid, old.decision, old.rationale);
		END`,
		`CREATE TRIGGER IF NOT EXISTS decisions_au AFTER UPDATE ON decisions BEGIN
			INSERT INTO decisions_fts(decisions_fts, rowid, decision, rationale) VALUES ('delete', old.rowid, old.decision, old.rationale);
			INSERT INTO decisions_fts(rowid, decision, rationale) VALUES (new.rowid, new.decision, new.rationale);
		END`,

		// Learnings FTS sync
		`CREATE TRIGGER IF NOT EXISTS learnings_ai AFTER INSERT ON learnings BEGIN
			INSERT INTO learnings_fts(rowid, learning, context) VALUES (new.rowid, new.learning, new.context);
		END`,
		`CREATE TRIGGER IF NOT EXISTS learnings_ad AFTER DELETE ON learnings BEGIN
			INSERT INTO learnings_fts(learnings_fts, rowid, learning, context) VALUES ('delete', old.rowid, old.learning, old.context);
		END`,
		`CREATE TRIGGER IF NOT EXISTS learnings_au AFTER UPDATE ON learnings BEGIN
			INSERT INTO learnings_fts(learnings_fts, rowid, learning, context) VALUES ('delete', old.rowid, old.learning, old.context);
			INSERT INTO learnings_fts(rowid, learning, context) VALUES (new.rowid, new.learning, new.context);
		END`,

		// Prompts FTS sync
		`CREATE TRIGGER IF NOT EXISTS prompts_ai AFTER INSERT ON prompts BEGIN
			INSERT INTO prompts_fts(rowid, prompt) VALUES (new.rowid, new.prompt);
		END`,
		`CREATE TRIGGER IF NOT EXISTS prompts_ad AFTER DELETE ON prompts BEGIN
			INSERT INTO prompts_fts(prompts_fts, rowid, prompt) VALUES ('delete', old.rowid, old.prompt);
		END`,
		`CREATE TRIGGER IF NOT EXISTS prompts_au AFTER UPDATE ON prompts BEGIN
			INSERT INTO prompts_fts(prompts_fts, rowid, prompt) VALUES ('delete', old.rowid, old.prompt);
			INSERT INTO prompts_fts(rowid, prompt) VALUES (new.rowid, new.prompt);
		END`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w\n%s", err, stmt)
		}
	}

	return nil
}
