package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// InsertDecision records a durable decision and returns its new ID, or
// 0 on failure.
func (s *Store) InsertDecision(d Decision) int64 {
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}

	filesJSON, err := json.Marshal(d.FilesAffected)
	if err != nil {
		filesJSON = []byte("[]")
	}

	res, err := s.db.Exec(`
		INSERT INTO decisions (session_id, project_path, timestamp, category, decision, rationale, files_affected, supersedes_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.SessionID, d.ProjectPath, formatTime(d.Timestamp), d.Category, d.Decision, d.Rationale,
		string(filesJSON), nullableInt64(d.SupersedesID))
	if err != nil {
		logStoreError("insert_decision", err, "project_path", d.ProjectPath)
		return 0
	}

	id, err := res.LastInsertId()
	if err != nil {
		logStoreError("insert_decision_id", err, "project_path", d.ProjectPath)
		return 0
	}
	return id
}

// ActiveDecisions returns decisions for projectPath that have not been
// superseded, newest first, up to limit (0 = unlimited).
func (s *Store) ActiveDecisions(projectPath string, limit int) []Decision {
	query := `
		SELECT id, session_id, project_path, timestamp, category, decision, rationale, files_affected, supersedes_id
		FROM decisions d
		WHERE d.project_path = ?
		  AND NOT EXISTS (SELECT 1 FROM decisions s WHERE s.supersedes_id = d.id)
		ORDER BY d.timestamp DESC
	`
	args := []interface{}{projectPath}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		logStoreError("active_decisions", err, "project_path", projectPath)
		return nil
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		dec, err := scanDecision(rows)
		if err != nil {
			logStoreError("active_decisions_scan", err, "project_path", projectPath)
			continue
		}
		out = append(out, dec)
	}
	return out
}

// Supersede inserts newDecision as superseding oldID in a single
// transaction and returns the new row's ID, or 0 on failure.
func (s *Store) Supersede(oldID int64, newDecision Decision) int64 {
	newDecision.SupersedesID = &oldID

	tx, err := s.db.Begin()
	if err != nil {
		logStoreError("supersede", err, "old_id", oldID)
		return 0
	}
	defer tx.Rollback()

	if newDecision.Timestamp.IsZero() {
		newDecision.Timestamp = time.Now()
	}
	filesJSON, err := json.Marshal(newDecision.FilesAffected)
	if err != nil {
		filesJSON = []byte("[]")
	}

	res, err := tx.Exec(`
		INSERT INTO decisions (session_id, project_path, timestamp, category, decision, rationale, files_affected, supersedes_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, newDecision.SessionID, newDecision.ProjectPath, formatTime(newDecision.Timestamp), newDecision.Category,
		newDecision.Decision, newDecision.Rationale, string(filesJSON), oldID)
	if err != nil {
		logStoreError("supersede_insert", err, "old_id", oldID)
		return 0
	}

	id, err := res.LastInsertId()
	if err != nil {
		logStoreError("supersede_insert_id", err, "old_id", oldID)
		return 0
	}

	if err := tx.Commit(); err != nil {
		logStoreError("supersede_commit", err, "old_id", oldID)
		return 0
	}
	return id
}

func scanDecision(row rowScanner) (Decision, error) {
	var (
		dec           Decision
		timestamp     string
		filesJSON     string
		supersedesID  sql.NullInt64
	)
	if err := row.Scan(&dec.ID, &dec.SessionID, &dec.ProjectPath, &timestamp, &dec.Category,
		&dec.Decision, &dec.Rationale, &filesJSON, &supersedesID); err != nil {
		return Decision{}, err
	}
	dec.Timestamp = parseTime(timestamp)
	if supersedesID.Valid {
		dec.SupersedesID = &supersedesID.Int64
	}
	var files []string
	if err := json.Unmarshal([]byte(filesJSON), &files); err == nil {
		dec.FilesAffected = files
	}
	return dec, nil
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
