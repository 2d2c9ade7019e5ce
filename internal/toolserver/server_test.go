package toolserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/memoria-dev/memoria/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordDecisionThenSearchFindsIt(t *testing.T) {
	s := openTestStore(t)
	srv := New(s, "projA", "s1", nil)

	var out strings.Builder
	in := strings.NewReader(
		`{"tool":"record_decision","args":{"decision":"Adopt JWT for sessions","rationale":"stateless auth"}}` + "\n" +
			`{"tool":"search","args":{"query":"JWT"}}` + "\n",
	)
	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("serve failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 response lines, got %d: %q", len(lines), out.String())
	}

	var recordResp Response
	if err := json.Unmarshal([]byte(lines[0]), &recordResp); err != nil {
		t.Fatalf("failed to parse record response: %v", err)
	}
	if recordResp.IsError || !strings.Contains(recordResp.Content[0].Text, "Recorded decision") {
		t.Fatalf("unexpected record response: %+v", recordResp)
	}

	var searchResp Response
	if err := json.Unmarshal([]byte(lines[1]), &searchResp); err != nil {
		t.Fatalf("failed to parse search response: %v", err)
	}
	if !strings.Contains(searchResp.Content[0].Text, "JWT") {
		t.Fatalf("expected search to find the recorded decision, got %+v", searchResp)
	}

	sess := s.GetSession("s1")
	if sess.ID != "s1" {
		t.Fatalf("expected record_decision to have ensured session s1 exists, got %+v", sess)
	}
}

func TestRecordLearningThenSearchIncrementsReference(t *testing.T) {
	s := openTestStore(t)
	srv := New(s, "projA", "s1", nil)

	srv.handleLine(context.Background(), `{"tool":"record_learning","args":{"learning":"httpOnly cookies for tokens"}}`)

	learnings := s.TopLearnings("projA", 10)
	if len(learnings) != 1 || learnings[0].TimesReferenced != 0 {
		t.Fatalf("expected one fresh learning, got %+v", learnings)
	}

	resp := srv.handleLine(context.Background(), `{"tool":"search","args":{"query":"httpOnly","category":"learnings"}}`)
	if resp.IsError || !strings.Contains(resp.Content[0].Text, "httpOnly") {
		t.Fatalf("expected search to find the learning, got %+v", resp)
	}

	learnings = s.TopLearnings("projA", 10)
	if learnings[0].TimesReferenced != 1 {
		t.Fatalf("expected search to increment times_referenced, got %+v", learnings)
	}
}

func TestMetricsSessionPeriod(t *testing.T) {
	s := openTestStore(t)
	s.EnsureSession("s1", "projA", "")
	s.InsertAction(store.Action{SessionID: "s1", ToolName: "Edit", ActionType: store.ActionEdit, Outcome: store.OutcomeSuccess})
	s.InsertAction(store.Action{SessionID: "s1", ToolName: "Bash", ActionType: store.ActionTest, Outcome: store.OutcomeFailure})

	srv := New(s, "projA", "s1", nil)
	resp := srv.handleLine(context.Background(), `{"tool":"metrics","args":{"period":"session"}}`)
	if resp.IsError || !strings.Contains(resp.Content[0].Text, "2 actions") {
		t.Fatalf("expected session metrics mentioning 2 actions, got %+v", resp)
	}
}

func TestUnknownToolReturnsError(t *testing.T) {
	s := openTestStore(t)
	srv := New(s, "projA", "s1", nil)
	resp := srv.handleLine(context.Background(), `{"tool":"does-not-exist","args":{}}`)
	if !resp.IsError {
		t.Fatalf("expected error response for unknown tool, got %+v", resp)
	}
}

func TestCompressWithoutPrunerReturnsError(t *testing.T) {
	s := openTestStore(t)
	srv := New(s, "projA", "s1", nil)
	resp := srv.handleLine(context.Background(), `{"tool":"compress","args":{"text":"hello"}}`)
	if !resp.IsError {
		t.Fatalf("expected error response when no pruner is configured, got %+v", resp)
	}
}
