package injector

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/memoria-dev/memoria/internal/config"
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

func defaultInjectionConfig() *config.InjectionConfig {
	return &config.InjectionConfig{
		Enabled:          true,
		MaxTokens:        2000,
		IncludeSessions:  3,
		IncludeDecisions: true,
		IncludeLearnings: true,
		IncludeSnapshot:  true,
	}
}

// TestBriefAfterOneFinishedSession is scenario S1 from the spec.
func TestBriefAfterOneFinishedSession(t *testing.T) {
	s := openTestStore(t)

	s1 := s.CreateSession("projectA", "")
	s.UpdateSession(s1, map[string]interface{}{"summary": "Implemented auth middleware"})
	s.InsertDecision(store.Decision{SessionID: s1, ProjectPath: "projectA", Category: "architecture", Decision: "Adopt JWT"})
	s.InsertLearning(store.Learning{SessionID: s1, ProjectPath: "projectA", Category: "gotcha", Learning: "httpOnly cookies for tokens", RelevanceScore: 1.0})

	s2 := s.CreateSession("projectA", "")
	brief := Build(s, defaultInjectionConfig(), "projectA", s2, SourceStartup)

	for _, want := range []string{"Recent Sessions", "Active Decisions", "Learnings", "auth middleware", "JWT", "httpOnly"} {
		if !strings.Contains(brief, want) {
			t.Errorf("expected brief to contain %q, got:\n%s", want, brief)
		}
	}
}

// TestResumeWithSnapshot is scenario S2.
func TestResumeWithSnapshot(t *testing.T) {
	s := openTestStore(t)

	s1 := s.CreateSession("projectA", "")
	s.InsertSnapshot(store.Snapshot{
		SessionID:       s1,
		Trigger:         store.TriggerPreCompact,
		CurrentTask:     "Impl email verification",
		ProgressSummary: "halfway done",
		NextSteps:       []string{"send email", "rate-limit"},
	})

	s2 := s.CreateSession("projectA", "")
	brief := Build(s, defaultInjectionConfig(), "projectA", s2, SourceCompact)

	if !strings.HasPrefix(strings.TrimPrefix(brief, briefHeader), "## Snapshot (Resuming)") {
		t.Fatalf("expected first section to be Snapshot (Resuming), got:\n%s", brief)
	}
	for _, want := range []string{"Impl email verification", "send email", "rate-limit"} {
		if !strings.Contains(brief, want) {
			t.Errorf("expected brief to contain %q, got:\n%s", want, brief)
		}
	}
}

func TestBuildDisabledReturnsEmpty(t *testing.T) {
	s := openTestStore(t)
	cfg := defaultInjectionConfig()
	cfg.Enabled = false
	if got := Build(s, cfg, "projectA", "s1", SourceStartup); got != "" {
		t.Fatalf("expected empty string when disabled, got %q", got)
	}
}

// TestMaxTokensBelowHeaderReturnsEmpty is property P11.
func TestMaxTokensBelowHeaderReturnsEmpty(t *testing.T) {
	s := openTestStore(t)
	cfg := defaultInjectionConfig()
	cfg.MaxTokens = 1
	if got := Build(s, cfg, "projectA", "s1", SourceStartup); got != "" {
		t.Fatalf("expected empty string when budget below header, got %q", got)
	}
}

func TestParseNextStepsFallsBackToNewlines(t *testing.T) {
	got := ParseNextSteps("not json\nstep one\nstep two")
	want := []string{"not json", "step one", "step two"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseNextStepsJSON(t *testing.T) {
	got := ParseNextSteps(`["a","b"]`)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
}
