package store

import (
	"strings"
	"time"
)

// InsertPrompt logs a user prompt, returning its ID or 0 on failure.
func (s *Store) InsertPrompt(p Prompt) int64 {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}

	res, err := s.db.Exec(`
		INSERT INTO prompts (session_id, project_path, timestamp, prompt)
		VALUES (?, ?, ?, ?)
	`, p.SessionID, p.ProjectPath, formatTime(p.Timestamp), p.Prompt)
	if err != nil {
		logStoreError("insert_prompt", err, "project_path", p.ProjectPath)
		return 0
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0
	}
	return id
}

// FindSimilarPrompts runs an FTS5 OR-query of ftsTerms (already
// stop-word-filtered and capped by the router) against prior prompts
// in projectPath, excluding excludeSessionID (the current session),
// ordered by ascending raw bm25 rank — more negative is more relevant.
func (s *Store) FindSimilarPrompts(projectPath, excludeSessionID string, ftsTerms []string, limit int) []SimilarPrompt {
	if len(ftsTerms) == 0 {
		return nil
	}

	quoted := make([]string, len(ftsTerms))
	for i, t := range ftsTerms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	query := strings.Join(quoted, " OR ")

	rows, err := s.db.Query(`
		SELECT p.id, p.session_id, p.prompt, p.timestamp, bm25(prompts_fts) AS rank
		FROM prompts_fts
		JOIN prompts p ON p.rowid = prompts_fts.rowid
		WHERE prompts_fts MATCH ? AND p.project_path = ? AND p.session_id != ?
		ORDER BY rank ASC
		LIMIT ?
	`, query, projectPath, excludeSessionID, limit)
	if err != nil {
		logStoreError("find_similar_prompts", err, "project_path", projectPath)
		return nil
	}
	defer rows.Close()

	var out []SimilarPrompt
	for rows.Next() {
		var (
			sp        SimilarPrompt
			timestamp string
		)
		if err := rows.Scan(&sp.ID, &sp.SessionID, &sp.Prompt, &timestamp, &sp.Rank); err != nil {
			continue
		}
		sp.Timestamp = parseTime(timestamp)
		out = append(out, sp)
	}
	return out
}
