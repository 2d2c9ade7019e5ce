package store

import "time"

// InsertLearning records a new learning and returns its ID, or 0 on
// failure. A zero RelevanceScore is stored as 1.0; any other score is
// clamped into [0,1].
func (s *Store) InsertLearning(l Learning) int64 {
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now()
	}
	if l.RelevanceScore == 0 {
		l.RelevanceScore = 1.0
	}
	l.RelevanceScore = clamp01(l.RelevanceScore)

	res, err := s.db.Exec(`
		INSERT INTO learnings (session_id, project_path, timestamp, category, learning, context, relevance_score, times_referenced)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`, l.SessionID, l.ProjectPath, formatTime(l.Timestamp), l.Category, l.Learning, l.Context, l.RelevanceScore)
	if err != nil {
		logStoreError("insert_learning", err, "project_path", l.ProjectPath)
		return 0
	}

	id, err := res.LastInsertId()
	if err != nil {
		logStoreError("insert_learning_id", err, "project_path", l.ProjectPath)
		return 0
	}
	return id
}

// TopLearnings returns the limit highest-relevance learnings for
// projectPath, descending by relevance_score.
func (s *Store) TopLearnings(projectPath string, limit int) []Learning {
	rows, err := s.db.Query(`
		SELECT id, session_id, project_path, timestamp, category, learning, context, relevance_score, times_referenced
		FROM learnings WHERE project_path = ? ORDER BY relevance_score DESC LIMIT ?
	`, projectPath, limit)
	if err != nil {
		logStoreError("top_learnings", err, "project_path", projectPath)
		return nil
	}
	defer rows.Close()

	var out []Learning
	for rows.Next() {
		l, err := scanLearning(rows)
		if err != nil {
			logStoreError("top_learnings_scan", err, "project_path", projectPath)
			continue
		}
		out = append(out, l)
	}
	return out
}

// IncrementLearningReference bumps times_referenced for id by one.
// Per the resolved relevance-boost question, this does not itself
// raise relevance_score — only decay and explicit re-insertion do.
func (s *Store) IncrementLearningReference(id int64) {
	if _, err := s.db.Exec(`UPDATE learnings SET times_referenced = times_referenced + 1 WHERE id = ?`, id); err != nil {
		logStoreError("increment_learning_reference", err, "learning_id", id)
	}
}

// DecayLearnings applies one step of multiplicative decay to every
// learning's relevance_score: score *= (1 - dailyRate). It is called
// both from session-start and from the scheduled cron loop, and is
// intentionally a single step per call rather than a function of
// elapsed time: the store tracks only the running score, not a
// decay-applied-at marker, so recomputing from elapsed days against an
// already-decayed score would double-count. Callers control cadence.
// Returns the number of rows touched, or 0 on failure.
func (s *Store) DecayLearnings(dailyRate float64) int {
	if dailyRate <= 0 {
		return 0
	}

	res, err := s.db.Exec(`UPDATE learnings SET relevance_score = relevance_score * ?`, 1.0-dailyRate)
	if err != nil {
		logStoreError("decay_learnings", err)
		return 0
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

// GarbageCollectLearnings deletes learnings whose relevance_score has
// fallen below threshold. Returns the number deleted, or 0 on failure.
// Every call, regardless of caller, stamps RecordGCRun — the stats
// report's "last GC" reading reflects whichever of session-start, the
// scheduled serve loop, or the operator gc command ran most recently.
func (s *Store) GarbageCollectLearnings(threshold float64) int {
	res, err := s.db.Exec(`DELETE FROM learnings WHERE relevance_score < ?`, threshold)
	if err != nil {
		logStoreError("garbage_collect_learnings", err, "threshold", threshold)
		return 0
	}

	s.RecordGCRun()

	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

// clamp01 enforces invariant I3 (relevance_score stays within [0,1])
// at the store boundary, independent of caller discipline, mirroring
// the same guard in internal/pruner for its compression ratio.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func scanLearning(row rowScanner) (Learning, error) {
	var (
		l         Learning
		timestamp string
	)
	if err := row.Scan(&l.ID, &l.SessionID, &l.ProjectPath, &timestamp, &l.Category,
		&l.Learning, &l.Context, &l.RelevanceScore, &l.TimesReferenced); err != nil {
		return Learning{}, err
	}
	l.Timestamp = parseTime(timestamp)
	return l, nil
}
