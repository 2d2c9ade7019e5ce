package summarizer

import (
	"strings"
	"testing"

	"github.com/memoria-dev/memoria/internal/store"
)

func TestSummarizeEmptyActionsReturnsFixedSentence(t *testing.T) {
	got := Summarize(nil)
	if got != noActionsSentence {
		t.Fatalf("expected fixed sentence %q, got %q", noActionsSentence, got)
	}
}

func TestSummarizeActivityAndScope(t *testing.T) {
	actions := []store.Action{
		{ActionType: store.ActionEdit, FilePath: "/repo/a.go", Outcome: store.OutcomeSuccess},
		{ActionType: store.ActionEdit, FilePath: "/repo/b.go", Outcome: store.OutcomeSuccess},
		{ActionType: store.ActionTest, Outcome: store.OutcomeSuccess},
		{ActionType: store.ActionTest, Outcome: store.OutcomeFailure},
	}

	got := Summarize(actions)
	if !strings.Contains(got, "2 edits") {
		t.Errorf("expected edit count in summary, got %q", got)
	}
	if !strings.Contains(got, "a.go") || !strings.Contains(got, "b.go") {
		t.Errorf("expected file basenames in summary, got %q", got)
	}
}

func TestUniqueFilesDeduplicatesInOrder(t *testing.T) {
	actions := []store.Action{
		{FilePath: "/repo/a.go"},
		{FilePath: "/repo/b.go"},
		{FilePath: "/repo/a.go"},
		{FilePath: ""},
	}
	got := UniqueFiles(actions)
	want := []string{"/repo/a.go", "/repo/b.go"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestCountByType(t *testing.T) {
	actions := []store.Action{
		{ActionType: store.ActionEdit},
		{ActionType: store.ActionEdit},
		{ActionType: store.ActionBuild},
	}
	counts := CountByType(actions)
	if counts[store.ActionEdit] != 2 {
		t.Errorf("expected 2 edits, got %d", counts[store.ActionEdit])
	}
	if counts[store.ActionBuild] != 1 {
		t.Errorf("expected 1 build, got %d", counts[store.ActionBuild])
	}
}
