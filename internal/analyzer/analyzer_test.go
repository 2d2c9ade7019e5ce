package analyzer

import (
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

func TestAnalyzeActionConfigFileInsertsConvention(t *testing.T) {
	s := openTestStore(t)
	sid := s.CreateSession("/repo", "")

	id := AnalyzeAction(s, store.Action{
		ActionType: store.ActionEdit,
		FilePath:   "/repo/tsconfig.json",
		Outcome:    store.OutcomeSuccess,
	}, sid, "/repo")

	if id == 0 {
		t.Fatal("expected a decision to be inserted")
	}

	decisions := s.ActiveDecisions("/repo", 10)
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}
	if decisions[0].Category != "convention" {
		t.Errorf("expected category convention, got %s", decisions[0].Category)
	}
	if !strings.Contains(decisions[0].Decision, "tsconfig.json") {
		t.Errorf("expected decision text to mention tsconfig.json, got %q", decisions[0].Decision)
	}
}

func TestAnalyzeActionRepeatConfigEditSupersedesPriorDecision(t *testing.T) {
	s := openTestStore(t)
	sid := s.CreateSession("/repo", "")

	firstID := AnalyzeAction(s, store.Action{
		ActionType: store.ActionEdit,
		FilePath:   "/repo/tsconfig.json",
		Outcome:    store.OutcomeSuccess,
	}, sid, "/repo")
	if firstID == 0 {
		t.Fatal("expected first edit to insert a decision")
	}

	secondID := AnalyzeAction(s, store.Action{
		ActionType: store.ActionEdit,
		FilePath:   "/repo/tsconfig.json",
		Outcome:    store.OutcomeSuccess,
	}, sid, "/repo")
	if secondID == 0 || secondID == firstID {
		t.Fatalf("expected second edit to insert a new decision superseding %d, got %d", firstID, secondID)
	}

	decisions := s.ActiveDecisions("/repo", 10)
	if len(decisions) != 1 {
		t.Fatalf("expected the first decision to be superseded, leaving 1 active, got %d", len(decisions))
	}
	if decisions[0].ID != secondID {
		t.Errorf("expected active decision to be %d, got %d", secondID, decisions[0].ID)
	}
	if decisions[0].SupersedesID == nil || *decisions[0].SupersedesID != firstID {
		t.Errorf("expected active decision to supersede %d, got %+v", firstID, decisions[0].SupersedesID)
	}
}

func TestAnalyzeActionInstallCommandInsertsLibraryDecision(t *testing.T) {
	s := openTestStore(t)
	sid := s.CreateSession("/repo", "")

	id := AnalyzeAction(s, store.Action{
		ToolName:    "Bash",
		ActionType:  store.ActionOther,
		Description: "npm install lodash axios",
		Outcome:     store.OutcomeSuccess,
	}, sid, "/repo")

	if id == 0 {
		t.Fatal("expected a decision to be inserted")
	}
	decisions := s.ActiveDecisions("/repo", 10)
	if decisions[0].Category != "library" {
		t.Errorf("expected category library, got %s", decisions[0].Category)
	}
	if !strings.Contains(decisions[0].Decision, "lodash") {
		t.Errorf("expected decision text to mention lodash, got %q", decisions[0].Decision)
	}
}

func TestAnalyzeActionIgnoresUnrelatedBashCommand(t *testing.T) {
	s := openTestStore(t)
	sid := s.CreateSession("/repo", "")

	id := AnalyzeAction(s, store.Action{
		ToolName:    "Bash",
		ActionType:  store.ActionOther,
		Description: "ls -la",
		Outcome:     store.OutcomeSuccess,
	}, sid, "/repo")

	if id != 0 {
		t.Fatalf("expected no decision, got id %d", id)
	}
}

func TestExtractLearningsErrorThenFix(t *testing.T) {
	s := openTestStore(t)
	sid := s.CreateSession("/repo", "")

	actions := []store.Action{
		{ToolName: "Bash", ActionType: store.ActionTest, Outcome: store.OutcomeFailure, ErrorMessage: "TypeError: undefined"},
		{ToolName: "Edit", ActionType: store.ActionEdit, FilePath: "/src/utils.ts", Outcome: store.OutcomeSuccess},
		{ToolName: "Bash", ActionType: store.ActionTest, Outcome: store.OutcomeSuccess},
	}

	ids := ExtractLearnings(s, actions, sid, "/repo")
	if len(ids) != 1 {
		t.Fatalf("expected exactly 1 learning, got %d", len(ids))
	}

	learnings := s.TopLearnings("/repo", 10)
	if len(learnings) != 1 {
		t.Fatalf("expected 1 stored learning, got %d", len(learnings))
	}
	if learnings[0].Category != "gotcha" {
		t.Errorf("expected category gotcha, got %s", learnings[0].Category)
	}
	if !strings.Contains(learnings[0].Learning, "utils.ts") {
		t.Errorf("expected learning text to mention utils.ts, got %q", learnings[0].Learning)
	}
}

func TestExtractLearningsAbortsOnRepeatedFailure(t *testing.T) {
	s := openTestStore(t)
	sid := s.CreateSession("/repo", "")

	actions := []store.Action{
		{ToolName: "Bash", ActionType: store.ActionTest, Outcome: store.OutcomeFailure, ErrorMessage: "boom"},
		{ToolName: "Bash", ActionType: store.ActionTest, Outcome: store.OutcomeFailure, ErrorMessage: "boom again"},
		{ToolName: "Bash", ActionType: store.ActionTest, Outcome: store.OutcomeSuccess},
	}

	// The first failure's search aborts at the second failure, so only
	// the second failure (fixed by the following success) yields a
	// learning, carrying its own error message.
	ids := ExtractLearnings(s, actions, sid, "/repo")
	if len(ids) != 1 {
		t.Fatalf("expected only the second failure to yield a learning, got %d", len(ids))
	}
	learnings := s.TopLearnings("/repo", 10)
	if len(learnings) != 1 || learnings[0].Context != "boom again" {
		t.Fatalf("expected the learning to come from the second failure, got %+v", learnings)
	}
}

func TestExtractLearningsDedupesWithinScan(t *testing.T) {
	s := openTestStore(t)
	sid := s.CreateSession("/repo", "")

	actions := []store.Action{
		{ToolName: "Bash", ActionType: store.ActionBuild, Outcome: store.OutcomeFailure, ErrorMessage: "err1", FilePath: "/src/x.go"},
		{ToolName: "Edit", ActionType: store.ActionEdit, FilePath: "/src/x.go", Outcome: store.OutcomeSuccess},
		{ToolName: "Bash", ActionType: store.ActionBuild, Outcome: store.OutcomeSuccess},
		{ToolName: "Bash", ActionType: store.ActionBuild, Outcome: store.OutcomeFailure, ErrorMessage: "err1", FilePath: "/src/x.go"},
		{ToolName: "Edit", ActionType: store.ActionEdit, FilePath: "/src/x.go", Outcome: store.OutcomeSuccess},
		{ToolName: "Bash", ActionType: store.ActionBuild, Outcome: store.OutcomeSuccess},
	}

	ids := ExtractLearnings(s, actions, sid, "/repo")
	if len(ids) != 1 {
		t.Fatalf("expected dedup to collapse to 1 learning, got %d", len(ids))
	}
}
