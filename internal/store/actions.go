package store

import "time"

// InsertAction records one observed tool invocation. Returns the new
// row ID, or 0 on failure.
func (s *Store) InsertAction(a Action) int64 {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}

	res, err := s.db.Exec(`
		INSERT INTO actions (session_id, timestamp, tool_name, file_path, action_type, description, outcome, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.SessionID, formatTime(a.Timestamp), a.ToolName, a.FilePath, string(a.ActionType),
		a.Description, string(a.Outcome), a.ErrorMessage)
	if err != nil {
		logStoreError("insert_action", err, "session_id", a.SessionID, "tool_name", a.ToolName)
		return 0
	}

	id, err := res.LastInsertId()
	if err != nil {
		logStoreError("insert_action_id", err, "session_id", a.SessionID)
		return 0
	}
	return id
}

// SessionActions returns every action recorded for sessionID, in the
// order they occurred.
func (s *Store) SessionActions(sessionID string) []Action {
	rows, err := s.db.Query(`
		SELECT id, session_id, timestamp, tool_name, file_path, action_type, description, outcome, error_message
		FROM actions WHERE session_id = ? ORDER BY timestamp ASC, id ASC
	`, sessionID)
	if err != nil {
		logStoreError("session_actions", err, "session_id", sessionID)
		return nil
	}
	defer rows.Close()

	var out []Action
	for rows.Next() {
		var (
			a         Action
			timestamp string
			actType   string
			outcome   string
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &timestamp, &a.ToolName, &a.FilePath,
			&actType, &a.Description, &outcome, &a.ErrorMessage); err != nil {
			logStoreError("session_actions_scan", err, "session_id", sessionID)
			continue
		}
		a.Timestamp = parseTime(timestamp)
		a.ActionType = ActionType(actType)
		a.Outcome = Outcome(outcome)
		out = append(out, a)
	}
	return out
}

// CountSessionFailures returns how many actions in sessionID ended in
// failure, used by the stats session report and the tool server's
// session metrics.
func (s *Store) CountSessionFailures(sessionID string) int {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM actions WHERE session_id = ? AND outcome = ?
	`, sessionID, string(OutcomeFailure)).Scan(&count)
	if err != nil {
		logStoreError("count_session_failures", err, "session_id", sessionID)
		return 0
	}
	return count
}
