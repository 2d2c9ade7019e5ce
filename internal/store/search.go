package store

import (
	"strconv"
	"strings"
)

// SearchMemory runs a full-text query across the categories selected
// by cat and returns unified hits sorted by ascending raw bm25 rank —
// more negative is more relevant. This deliberately does not normalize
// rank into a positive 0-1 score: callers (the query command, the
// search tool) are expected to consume and compare raw rank across sources
// directly, since a single query can span several FTS tables with
// independent rank scales that only agree on sign and ordering.
func (s *Store) SearchMemory(query string, cat SearchCategory, limit int) []SearchHit {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	matchQuery := buildMatchQuery(query)
	if matchQuery == "" {
		return nil
	}

	var hits []SearchHit
	if cat == CategorySessions || cat == CategoryAll {
		hits = append(hits, s.searchSessions(matchQuery, limit)...)
	}
	if cat == CategoryDecisions || cat == CategoryAll {
		hits = append(hits, s.searchDecisions(matchQuery, limit)...)
	}
	if cat == CategoryLearnings || cat == CategoryAll {
		hits = append(hits, s.searchLearnings(matchQuery, limit)...)
	}

	sortHitsByRank(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// buildMatchQuery turns free-text user input into a safe FTS5 MATCH
// query: each whitespace-separated term is quoted as an FTS5 string
// literal (embedded quotes doubled per SQLite string-escaping rules),
// so punctuation like apostrophes, `*`, `-`, or `(` is searched as
// literal text instead of being parsed as FTS5 query syntax. Terms are
// joined with an implicit AND, matching the bare multi-word MATCH
// semantics this replaces. Mirrors the quoting FindSimilarPrompts
// already applies to its OR-joined terms.
func buildMatchQuery(query string) string {
	words := strings.Fields(query)
	if len(words) == 0 {
		return ""
	}

	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

func (s *Store) searchSessions(matchQuery string, limit int) []SearchHit {
	rows, err := s.db.Query(`
		SELECT se.id, snippet(sessions_fts, 0, '**', '**', '...', 32), bm25(sessions_fts) AS rank
		FROM sessions_fts
		JOIN sessions se ON se.rowid = sessions_fts.rowid
		WHERE sessions_fts MATCH ?
		ORDER BY rank ASC LIMIT ?
	`, matchQuery, limit)
	if err != nil {
		logStoreError("search_sessions", err, "query", matchQuery)
		return nil
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var hit SearchHit
		if err := rows.Scan(&hit.ID, &hit.Snippet, &hit.Rank); err != nil {
			continue
		}
		hit.Source = "session"
		out = append(out, hit)
	}
	return out
}

func (s *Store) searchDecisions(matchQuery string, limit int) []SearchHit {
	rows, err := s.db.Query(`
		SELECT d.id, snippet(decisions_fts, 0, '**', '**', '...', 32), bm25(decisions_fts) AS rank
		FROM decisions_fts
		JOIN decisions d ON d.rowid = decisions_fts.rowid
		WHERE decisions_fts MATCH ?
		ORDER BY rank ASC LIMIT ?
	`, matchQuery, limit)
	if err != nil {
		logStoreError("search_decisions", err, "query", matchQuery)
		return nil
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var (
			hit SearchHit
			id  int64
		)
		if err := rows.Scan(&id, &hit.Snippet, &hit.Rank); err != nil {
			continue
		}
		hit.Source = "decision"
		hit.ID = strconv.FormatInt(id, 10)
		out = append(out, hit)
	}
	return out
}

func (s *Store) searchLearnings(matchQuery string, limit int) []SearchHit {
	rows, err := s.db.Query(`
		SELECT l.id, snippet(learnings_fts, 0, '**', '**', '...', 32), bm25(learnings_fts) AS rank
		FROM learnings_fts
		JOIN learnings l ON l.rowid = learnings_fts.rowid
		WHERE learnings_fts MATCH ?
		ORDER BY rank ASC LIMIT ?
	`, matchQuery, limit)
	if err != nil {
		logStoreError("search_learnings", err, "query", matchQuery)
		return nil
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var (
			hit SearchHit
			id  int64
		)
		if err := rows.Scan(&id, &hit.Snippet, &hit.Rank); err != nil {
			continue
		}
		hit.Source = "learning"
		hit.ID = strconv.FormatInt(id, 10)
		out = append(out, hit)
	}
	return out
}

func sortHitsByRank(hits []SearchHit) {
	// Insertion sort is adequate here: result sets are bounded by the
	// per-category LIMIT the caller passes, never the full table.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].Rank < hits[j-1].Rank; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}
