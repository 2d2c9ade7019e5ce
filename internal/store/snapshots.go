package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// InsertSnapshot records a pre-compaction or resumption state capture
// and returns its ID, or 0 on failure.
func (s *Store) InsertSnapshot(snap Snapshot) int64 {
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}

	openQ, _ := json.Marshal(snap.OpenQuestions)
	nextSteps, _ := json.Marshal(snap.NextSteps)
	workingFiles, _ := json.Marshal(snap.WorkingFiles)

	res, err := s.db.Exec(`
		INSERT INTO snapshots (session_id, timestamp, trigger, current_task, progress_summary, open_questions, next_steps, working_files)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.SessionID, formatTime(snap.Timestamp), string(snap.Trigger), snap.CurrentTask,
		snap.ProgressSummary, string(openQ), string(nextSteps), string(workingFiles))
	if err != nil {
		logStoreError("insert_snapshot", err, "session_id", snap.SessionID)
		return 0
	}

	id, err := res.LastInsertId()
	if err != nil {
		logStoreError("insert_snapshot_id", err, "session_id", snap.SessionID)
		return 0
	}
	return id
}

// LatestSnapshot returns the most recent snapshot for sessionID, or
// the zero Snapshot if none exists.
func (s *Store) LatestSnapshot(sessionID string) Snapshot {
	row := s.db.QueryRow(`
		SELECT id, session_id, timestamp, trigger, current_task, progress_summary, open_questions, next_steps, working_files
		FROM snapshots WHERE session_id = ? ORDER BY timestamp DESC LIMIT 1
	`, sessionID)

	snap, err := scanSnapshot(row)
	if err != nil {
		if err != sql.ErrNoRows {
			logStoreError("latest_snapshot", err, "session_id", sessionID)
		}
		return Snapshot{}
	}
	return snap
}

// LatestProjectSnapshot returns the most recent snapshot across any
// session that started under projectPath, excluding excludeSessionID
// (normally the current session), used by the injector when resuming.
func (s *Store) LatestProjectSnapshot(projectPath, excludeSessionID string) Snapshot {
	row := s.db.QueryRow(`
		SELECT sn.id, sn.session_id, sn.timestamp, sn.trigger, sn.current_task,
		       sn.progress_summary, sn.open_questions, sn.next_steps, sn.working_files
		FROM snapshots sn
		JOIN sessions se ON se.id = sn.session_id
		WHERE se.project_path = ? AND sn.session_id != ?
		ORDER BY sn.timestamp DESC LIMIT 1
	`, projectPath, excludeSessionID)

	snap, err := scanSnapshot(row)
	if err != nil {
		if err != sql.ErrNoRows {
			logStoreError("latest_project_snapshot", err, "project_path", projectPath)
		}
		return Snapshot{}
	}
	return snap
}

func scanSnapshot(row rowScanner) (Snapshot, error) {
	var (
		snap         Snapshot
		timestamp    string
		trigger      string
		openQ        string
		nextSteps    string
		workingFiles string
	)
	if err := row.Scan(&snap.ID, &snap.SessionID, &timestamp, &trigger, &snap.CurrentTask,
		&snap.ProgressSummary, &openQ, &nextSteps, &workingFiles); err != nil {
		return Snapshot{}, err
	}
	snap.Timestamp = parseTime(timestamp)
	snap.Trigger = SnapshotTrigger(trigger)
	json.Unmarshal([]byte(openQ), &snap.OpenQuestions)
	json.Unmarshal([]byte(nextSteps), &snap.NextSteps)
	json.Unmarshal([]byte(workingFiles), &snap.WorkingFiles)
	return snap, nil
}
