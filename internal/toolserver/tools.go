package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/memoria-dev/memoria/internal/store"
)

type searchArgs struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	Limit    int    `json:"limit"`
}

func (srv *Server) toolSearch(args json.RawMessage) Response {
	var a searchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return errorResponse("invalid search args: " + err.Error())
	}
	if a.Category == "" {
		a.Category = string(store.CategoryAll)
	}
	if a.Limit <= 0 {
		a.Limit = 5
	}

	hits := srv.store.SearchMemory(a.Query, store.SearchCategory(a.Category), a.Limit)
	if len(hits) == 0 {
		return textResponse("No matching memory found.")
	}

	var b strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&b, "%d. [%s:%s] %s\n", i+1, h.Source, h.ID, h.Snippet)
		if h.Source == "learning" {
			if id, err := parseID(h.ID); err == nil {
				srv.store.IncrementLearningReference(id)
			}
		}
	}
	return textResponse(b.String())
}

type recordDecisionArgs struct {
	Decision      string   `json:"decision"`
	Rationale     string   `json:"rationale"`
	Category      string   `json:"category"`
	FilesAffected []string `json:"files_affected"`
}

func (srv *Server) toolRecordDecision(args json.RawMessage) Response {
	var a recordDecisionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return errorResponse("invalid record_decision args: " + err.Error())
	}
	if a.Decision == "" {
		return errorResponse("decision text is required")
	}
	if a.Category == "" {
		a.Category = "general"
	}

	srv.store.EnsureSession(srv.sessionID, srv.projectPath, "")
	id := srv.store.InsertDecision(store.Decision{
		SessionID:     srv.sessionID,
		ProjectPath:   srv.projectPath,
		Category:      a.Category,
		Decision:      a.Decision,
		Rationale:     a.Rationale,
		FilesAffected: a.FilesAffected,
	})
	if id == 0 {
		return errorResponse("failed to record decision")
	}
	return textResponse(fmt.Sprintf("Recorded decision #%d", id))
}

type recordLearningArgs struct {
	Learning string `json:"learning"`
	Category string `json:"category"`
	Context  string `json:"context"`
}

func (srv *Server) toolRecordLearning(args json.RawMessage) Response {
	var a recordLearningArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return errorResponse("invalid record_learning args: " + err.Error())
	}
	if a.Learning == "" {
		return errorResponse("learning text is required")
	}
	if a.Category == "" {
		a.Category = "pattern"
	}

	srv.store.EnsureSession(srv.sessionID, srv.projectPath, "")
	id := srv.store.InsertLearning(store.Learning{
		SessionID:      srv.sessionID,
		ProjectPath:    srv.projectPath,
		Category:       a.Category,
		Learning:       a.Learning,
		Context:        a.Context,
		RelevanceScore: 1.0,
	})
	if id == 0 {
		return errorResponse("failed to record learning")
	}
	return textResponse(fmt.Sprintf("Recorded learning #%d", id))
}

type metricsArgs struct {
	Period string `json:"period"`
}

func (srv *Server) toolMetrics(args json.RawMessage) Response {
	var a metricsArgs
	_ = json.Unmarshal(args, &a)
	if a.Period == "" {
		a.Period = "session"
	}

	var b strings.Builder
	switch a.Period {
	case "day":
		writeActivitySummary(&b, "day", srv.store.RecentActivitySummary(srv.projectPath, 10))
	case "week":
		writeActivitySummary(&b, "week", srv.store.RecentActivitySummary(srv.projectPath, 50))
	default:
		actions := srv.store.SessionActions(srv.sessionID)
		fmt.Fprintf(&b, "Session %s: %d actions, %d failures\n", srv.sessionID, len(actions), srv.store.CountSessionFailures(srv.sessionID))
		for t, n := range countByType(actions) {
			fmt.Fprintf(&b, "  %s: %d\n", t, n)
		}
	}
	return textResponse(b.String())
}

func countByType(actions []store.Action) map[store.ActionType]int {
	counts := make(map[store.ActionType]int)
	for _, a := range actions {
		counts[a.ActionType]++
	}
	return counts
}

func writeActivitySummary(b *strings.Builder, period string, summary store.ActivitySummary) {
	fmt.Fprintf(b, "Last %s (%d sessions): %d actions, %d failures\n", period, summary.SessionsCounted, summary.ActionCount, summary.FailureCount)
	for t, n := range summary.ByType {
		fmt.Fprintf(b, "  %s: %d\n", t, n)
	}
}

type compressArgs struct {
	Text string `json:"text"`
}

func (srv *Server) toolCompress(ctx context.Context, args json.RawMessage) Response {
	if srv.pruner == nil {
		return errorResponse("compress tool is not configured")
	}
	var a compressArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return errorResponse("invalid compress args: " + err.Error())
	}
	return textResponse(srv.pruner.Prune(ctx, a.Text))
}

func parseID(s string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(s, "%d", &id)
	return id, err
}
