package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CreateSession starts a new session row scoped to projectPath and
// returns its opaque ID. Failure returns an empty string.
func (s *Store) CreateSession(projectPath, parentSessionID string) string {
	id := uuid.NewString()
	now := formatTime(time.Now())

	_, err := s.db.Exec(`
		INSERT INTO sessions (id, project_path, started_at, files_modified, parent_session_id)
		VALUES (?, ?, ?, '[]', ?)
	`, id, projectPath, now, nullIfEmpty(parentSessionID))
	if err != nil {
		logStoreError("create_session", err, "project_path", projectPath)
		return ""
	}
	return id
}

// EnsureSession inserts a session row keyed by the given id if one does
// not already exist, and is a no-op otherwise. Hosts hand memoria a
// stable session_id at SessionStart that every later hook event for
// that session repeats; EnsureSession lets handlers that receive one of
// those later events first (or receive it more than once) satisfy I1
// without clobbering a session already created by SessionStart.
func (s *Store) EnsureSession(id, projectPath, parentSessionID string) {
	if id == "" {
		return
	}
	now := formatTime(time.Now())
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, project_path, started_at, files_modified, parent_session_id)
		VALUES (?, ?, ?, '[]', ?)
		ON CONFLICT(id) DO NOTHING
	`, id, projectPath, now, nullIfEmpty(parentSessionID))
	if err != nil {
		logStoreError("ensure_session", err, "session_id", id)
	}
}

// sessionUpdateColumns is the allow-list of columns UpdateSession may
// touch, keyed by the field name callers pass in.
var sessionUpdateColumns = map[string]string{
	"summary":                 "summary",
	"task_description":        "task_description",
	"compaction_count":        "compaction_count",
	"context_utilization_peak": "context_utilization_peak",
	"ended_at":                "ended_at",
}

// UpdateSession applies a partial update to session id. Only keys
// present in sessionUpdateColumns are honored; unknown keys are
// ignored rather than erroring, so callers can pass a superset without
// fear of a hard failure.
func (s *Store) UpdateSession(id string, fields map[string]interface{}) {
	if len(fields) == 0 {
		return
	}

	setClauses := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields)+1)
	for key, val := range fields {
		col, ok := sessionUpdateColumns[key]
		if !ok {
			continue
		}
		setClauses = append(setClauses, col+" = ?")
		args = append(args, val)
	}
	if len(setClauses) == 0 {
		return
	}

	query := "UPDATE sessions SET " + joinClauses(setClauses) + " WHERE id = ?"
	args = append(args, id)

	if _, err := s.db.Exec(query, args...); err != nil {
		logStoreError("update_session", err, "session_id", id)
	}
}

// SetSessionFilesModified replaces the files_modified JSON array.
func (s *Store) SetSessionFilesModified(id string, files []string) {
	data, err := json.Marshal(files)
	if err != nil {
		logStoreError("set_session_files_modified", err, "session_id", id)
		return
	}
	if _, err := s.db.Exec(`UPDATE sessions SET files_modified = ? WHERE id = ?`, string(data), id); err != nil {
		logStoreError("set_session_files_modified", err, "session_id", id)
	}
}

// GetSession fetches a single session by ID. The zero Session with an
// empty ID is returned if it does not exist or on error.
func (s *Store) GetSession(id string) Session {
	row := s.db.QueryRow(`
		SELECT id, project_path, started_at, ended_at, summary, task_description,
		       files_modified, compaction_count, context_utilization_peak, parent_session_id
		FROM sessions WHERE id = ?
	`, id)

	sess, err := scanSession(row)
	if err != nil {
		if err != sql.ErrNoRows {
			logStoreError("get_session", err, "session_id", id)
		}
		return Session{}
	}
	return sess
}

// RecentSessions returns up to limit sessions for projectPath, newest
// first.
func (s *Store) RecentSessions(projectPath string, limit int) []Session {
	rows, err := s.db.Query(`
		SELECT id, project_path, started_at, ended_at, summary, task_description,
		       files_modified, compaction_count, context_utilization_peak, parent_session_id
		FROM sessions WHERE project_path = ? ORDER BY started_at DESC LIMIT ?
	`, projectPath, limit)
	if err != nil {
		logStoreError("recent_sessions", err, "project_path", projectPath)
		return nil
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			logStoreError("recent_sessions_scan", err, "project_path", projectPath)
			continue
		}
		out = append(out, sess)
	}
	return out
}

// RecentSummarizedSessions returns up to limit sessions for
// projectPath that have a non-empty summary, newest first — used by
// the injector, which has no use for sessions still in progress.
func (s *Store) RecentSummarizedSessions(projectPath string, limit int) []Session {
	rows, err := s.db.Query(`
		SELECT id, project_path, started_at, ended_at, summary, task_description,
		       files_modified, compaction_count, context_utilization_peak, parent_session_id
		FROM sessions
		WHERE project_path = ? AND summary != ''
		ORDER BY started_at DESC LIMIT ?
	`, projectPath, limit)
	if err != nil {
		logStoreError("recent_summarized_sessions", err, "project_path", projectPath)
		return nil
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			logStoreError("recent_summarized_sessions_scan", err, "project_path", projectPath)
			continue
		}
		out = append(out, sess)
	}
	return out
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		sess         Session
		startedAt    string
		endedAt      sql.NullString
		filesJSON    string
		peak         sql.NullFloat64
		parentID     sql.NullString
	)

	if err := row.Scan(&sess.ID, &sess.ProjectPath, &startedAt, &endedAt, &sess.Summary,
		&sess.TaskDescription, &filesJSON, &sess.CompactionCount, &peak, &parentID); err != nil {
		return Session{}, err
	}

	sess.StartedAt = parseTime(startedAt)
	if endedAt.Valid {
		t := parseTime(endedAt.String)
		sess.EndedAt = &t
	}
	if peak.Valid {
		sess.ContextUtilizationPeak = &peak.Float64
	}
	if parentID.Valid {
		sess.ParentSessionID = parentID.String
	}

	var files []string
	if err := json.Unmarshal([]byte(filesJSON), &files); err == nil {
		sess.FilesModified = files
	}

	return sess, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func joinClauses(clauses []string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
