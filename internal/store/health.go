package store

import "time"

const lastGCAtKey = "last_gc_at"

// RecordGCRun stamps schema_meta with the current time, letting the
// stats report surface how long it has been since decay/GC last ran.
func (s *Store) RecordGCRun() {
	now := formatTime(time.Now())
	_, err := s.db.Exec(`
		INSERT INTO schema_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, lastGCAtKey, now)
	if err != nil {
		logStoreError("record_gc_run", err)
	}
}

// LastGCAt returns the time decay/GC last ran, or the zero time if it
// has never run in this database.
func (s *Store) LastGCAt() time.Time {
	var value string
	err := s.db.QueryRow(`SELECT value FROM schema_meta WHERE key = ?`, lastGCAtKey).Scan(&value)
	if err != nil {
		return time.Time{}
	}
	return parseTime(value)
}

// PendingGCCount reports how many learnings are currently below
// threshold and would be removed by the next GarbageCollectLearnings
// call, without actually removing them.
func (s *Store) PendingGCCount(threshold float64) int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM learnings WHERE relevance_score < ?`, threshold).Scan(&n); err != nil {
		logStoreError("pending_gc_count", err, "threshold", threshold)
		return 0
	}
	return n
}

// FTSParityCheck compares each searchable table's row count against
// its external-content FTS5 shadow table (the _docsize table, which
// holds one row per indexed document), returning the tables (if any)
// where the two have drifted apart. The FTS5 virtual table itself is
// not counted: a full scan of an external-content table reads the base
// table. A non-empty result points at a trigger bug or a row inserted
// outside the normal insert path; it is a self-test, not a repair.
func (s *Store) FTSParityCheck() []string {
	pairs := []struct{ base, fts string }{
		{"sessions", "sessions_fts_docsize"},
		{"decisions", "decisions_fts_docsize"},
		{"learnings", "learnings_fts_docsize"},
		{"prompts", "prompts_fts_docsize"},
	}

	var drifted []string
	for _, p := range pairs {
		var baseCount, ftsCount int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM ` + p.base).Scan(&baseCount); err != nil {
			continue
		}
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM ` + p.fts).Scan(&ftsCount); err != nil {
			continue
		}
		if baseCount != ftsCount {
			drifted = append(drifted, p.base)
		}
	}
	return drifted
}
