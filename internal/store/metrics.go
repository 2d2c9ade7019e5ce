package store

import "time"

// RecentActivitySummary aggregates action counts across the most
// recent sessionLimit sessions for projectPath (10 for a "day" period,
// 50 for "week", per the tool server's metrics contract). Sessions
// are selected by recency, not by calendar boundary — the spec names
// the window by session count, not by timestamp range.
func (s *Store) RecentActivitySummary(projectPath string, sessionLimit int) ActivitySummary {
	summary := ActivitySummary{ByType: make(map[ActionType]int)}

	rows, err := s.db.Query(`
		SELECT a.action_type, a.outcome, COUNT(*)
		FROM actions a
		WHERE a.session_id IN (
			SELECT id FROM sessions WHERE project_path = ? ORDER BY started_at DESC LIMIT ?
		)
		GROUP BY a.action_type, a.outcome
	`, projectPath, sessionLimit)
	if err != nil {
		logStoreError("recent_activity_summary", err, "project_path", projectPath)
		return summary
	}
	defer rows.Close()

	for rows.Next() {
		var (
			actionType string
			outcome    string
			count      int
		)
		if err := rows.Scan(&actionType, &outcome, &count); err != nil {
			continue
		}
		summary.ByType[ActionType(actionType)] += count
		summary.ActionCount += count
		if outcome == string(OutcomeFailure) {
			summary.FailureCount += count
		}
	}

	s.db.QueryRow(`
		SELECT COUNT(*) FROM (SELECT id FROM sessions WHERE project_path = ? ORDER BY started_at DESC LIMIT ?)
	`, projectPath, sessionLimit).Scan(&summary.SessionsCounted)

	return summary
}

// InsertMetric records a scalar observation, returning its ID or 0 on
// failure.
func (s *Store) InsertMetric(m Metric) int64 {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}

	res, err := s.db.Exec(`
		INSERT INTO metrics (session_id, timestamp, metric_name, metric_value)
		VALUES (?, ?, ?, ?)
	`, m.SessionID, formatTime(m.Timestamp), m.MetricName, m.Value)
	if err != nil {
		logStoreError("insert_metric", err, "session_id", m.SessionID, "metric_name", m.MetricName)
		return 0
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0
	}
	return id
}

// SessionMetrics returns every metric recorded for sessionID.
func (s *Store) SessionMetrics(sessionID string) []Metric {
	rows, err := s.db.Query(`
		SELECT id, session_id, timestamp, metric_name, metric_value
		FROM metrics WHERE session_id = ? ORDER BY timestamp ASC
	`, sessionID)
	if err != nil {
		logStoreError("session_metrics", err, "session_id", sessionID)
		return nil
	}
	defer rows.Close()

	var out []Metric
	for rows.Next() {
		var (
			m         Metric
			timestamp string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &timestamp, &m.MetricName, &m.Value); err != nil {
			continue
		}
		m.Timestamp = parseTime(timestamp)
		out = append(out, m)
	}
	return out
}

// ProjectMetricsSummary aggregates session/action/decision/learning
// counts and context-utilization peaks for projectPath, backing the
// `memoria stats --project` operator report.
func (s *Store) ProjectMetricsSummary(projectPath string) ProjectMetrics {
	var pm ProjectMetrics

	s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE project_path = ?`, projectPath).Scan(&pm.SessionCount)

	s.db.QueryRow(`
		SELECT COUNT(*) FROM actions a JOIN sessions se ON se.id = a.session_id WHERE se.project_path = ?
	`, projectPath).Scan(&pm.TotalActions)

	s.db.QueryRow(`
		SELECT COUNT(*) FROM actions a JOIN sessions se ON se.id = a.session_id
		WHERE se.project_path = ? AND a.outcome = ?
	`, projectPath, string(OutcomeFailure)).Scan(&pm.TotalFailures)

	s.db.QueryRow(`
		SELECT COALESCE(AVG(context_utilization_peak), 0) FROM sessions
		WHERE project_path = ? AND context_utilization_peak IS NOT NULL
	`, projectPath).Scan(&pm.AvgPeakUtilization)

	s.db.QueryRow(`SELECT COALESCE(SUM(compaction_count), 0) FROM sessions WHERE project_path = ?`,
		projectPath).Scan(&pm.TotalCompactions)

	s.db.QueryRow(`SELECT COUNT(*) FROM decisions WHERE project_path = ?`, projectPath).Scan(&pm.DecisionCount)
	s.db.QueryRow(`SELECT COUNT(*) FROM learnings WHERE project_path = ?`, projectPath).Scan(&pm.LearningCount)
	s.db.QueryRow(`SELECT COUNT(*) FROM prompts WHERE project_path = ?`, projectPath).Scan(&pm.PromptCount)

	return pm
}
