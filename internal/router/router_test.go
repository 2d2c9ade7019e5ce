package router

import (
	"encoding/json"
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

func testConfig() *config.Config {
	return config.Defaults()
}

func TestParseEventEmptyAndInvalid(t *testing.T) {
	if e := ParseEvent(nil); e.SessionID != "" {
		t.Fatalf("expected zero event for nil input, got %+v", e)
	}
	if e := ParseEvent([]byte("not json")); e.SessionID != "" {
		t.Fatalf("expected zero event for invalid input, got %+v", e)
	}
}

func TestDispatchUnknownCommandStaysContinue(t *testing.T) {
	s := openTestStore(t)
	out := dispatch(s, testConfig(), "not-a-real-command", nil, Event{})
	if !out.Continue {
		t.Fatalf("expected continue:true, got %+v", out)
	}
	if out.HookSpecificOutput == nil || !strings.Contains(out.HookSpecificOutput.AdditionalContext, "Unknown command") {
		t.Fatalf("expected unknown-command context, got %+v", out)
	}
}

func TestSessionStartEnsuresSessionAndInjectsBrief(t *testing.T) {
	s := openTestStore(t)
	cfg := testConfig()

	s1 := s.CreateSession("projA", "")
	s.UpdateSession(s1, map[string]interface{}{"summary": "Did the thing"})

	out := dispatch(s, cfg, "session-start", nil, Event{SessionID: "s2", Cwd: "projA", Source: "startup"})
	if !out.Continue {
		t.Fatalf("expected continue:true")
	}
	sess := s.GetSession("s2")
	if sess.ID != "s2" {
		t.Fatalf("expected session s2 to be created, got %+v", sess)
	}
	if out.HookSpecificOutput == nil || !strings.Contains(out.HookSpecificOutput.AdditionalContext, "Did the thing") {
		t.Fatalf("expected brief referencing prior session summary, got %+v", out)
	}
}

// TestCaptureActionConfigFileTriggersAnalyzer exercises scenario S4
// through the full capture-action handler path.
func TestCaptureActionConfigFileTriggersAnalyzer(t *testing.T) {
	s := openTestStore(t)
	cfg := testConfig()

	event := Event{
		SessionID:  "s1",
		Cwd:        "/repo",
		ToolName:   "Edit",
		ToolInput:  json.RawMessage(`{"file_path":"/repo/tsconfig.json"}`),
		ToolOutput: "Enable strict",
	}
	dispatch(s, cfg, "capture-action", nil, event)

	actions := s.SessionActions("s1")
	if len(actions) != 1 || actions[0].ActionType != store.ActionEdit {
		t.Fatalf("expected one edit action, got %+v", actions)
	}

	decisions := s.ActiveDecisions("/repo", 10)
	found := false
	for _, d := range decisions {
		if d.Category == "convention" && strings.Contains(d.Decision, "tsconfig.json") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a convention decision mentioning tsconfig.json, got %+v", decisions)
	}
}

func TestCaptureActionFailureIsDerivedFromOutput(t *testing.T) {
	s := openTestStore(t)
	cfg := testConfig()
	event := Event{SessionID: "s1", ToolName: "Bash", ToolInput: json.RawMessage(`{"command":"go test ./..."}`), ToolOutput: "FAIL: Error: boom"}
	dispatch(s, cfg, "capture-action", nil, event)

	actions := s.SessionActions("s1")
	if len(actions) != 1 || actions[0].Outcome != store.OutcomeFailure || actions[0].ActionType != store.ActionTest {
		t.Fatalf("expected one failed test action, got %+v", actions)
	}
}

func TestCaptureActionRespectsCaptureToolsAllowList(t *testing.T) {
	s := openTestStore(t)
	cfg := testConfig()
	cfg.Capture.CaptureTools = []string{"Edit"}

	dispatch(s, cfg, "capture-action", nil, Event{SessionID: "s1", ToolName: "Bash", ToolInput: json.RawMessage(`{"command":"ls"}`)})
	if len(s.SessionActions("s1")) != 0 {
		t.Fatalf("expected Bash capture to be skipped when not in captureTools")
	}

	dispatch(s, cfg, "capture-action", nil, Event{SessionID: "s1", ToolName: "Edit", ToolInput: json.RawMessage(`{"file_path":"/x.go"}`)})
	if len(s.SessionActions("s1")) != 1 {
		t.Fatalf("expected Edit capture to proceed when listed in captureTools")
	}
}

func TestPreCompactAppendsSnapshotAndIncrementsCounter(t *testing.T) {
	s := openTestStore(t)
	s.CreateSession("projA", "")
	sid := "s1"
	s.EnsureSession(sid, "projA", "")
	s.InsertAction(store.Action{SessionID: sid, ToolName: "Edit", FilePath: "/a.go", ActionType: store.ActionEdit, Outcome: store.OutcomeSuccess})

	dispatch(s, testConfig(), "pre-compact", nil, Event{SessionID: sid})

	sess := s.GetSession(sid)
	if sess.CompactionCount != 1 {
		t.Fatalf("expected compaction_count 1, got %d", sess.CompactionCount)
	}
	snap := s.LatestSnapshot(sid)
	if snap.SessionID != sid {
		t.Fatalf("expected a snapshot for session, got %+v", snap)
	}
}

// TestSessionStopThenSessionEndIsIdempotent is property P10.
func TestSessionStopThenSessionEndIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	sid := "s1"
	s.EnsureSession(sid, "projA", "")
	s.InsertAction(store.Action{SessionID: sid, ToolName: "Edit", FilePath: "/a.go", ActionType: store.ActionEdit, Outcome: store.OutcomeSuccess})

	dispatch(s, testConfig(), "session-stop", nil, Event{SessionID: sid, TranscriptPath: ""})
	afterStop := s.GetSession(sid)
	if afterStop.EndedAt == nil || afterStop.Summary == "" {
		t.Fatalf("expected session-stop to finalize summary and ended_at, got %+v", afterStop)
	}

	dispatch(s, testConfig(), "session-end", nil, Event{SessionID: sid})
	afterEnd := s.GetSession(sid)
	if afterEnd.Summary != afterStop.Summary || !afterEnd.EndedAt.Equal(*afterStop.EndedAt) {
		t.Fatalf("expected session-end to be a no-op after session-stop, before=%+v after=%+v", afterStop, afterEnd)
	}
}

func TestSessionEndRepairsMissingFinalization(t *testing.T) {
	s := openTestStore(t)
	sid := "s1"
	s.EnsureSession(sid, "projA", "")

	dispatch(s, testConfig(), "session-end", nil, Event{SessionID: sid})
	sess := s.GetSession(sid)
	if sess.EndedAt == nil {
		t.Fatalf("expected session-end to set ended_at when Stop never ran, got %+v", sess)
	}
}

// TestUserPromptRepeatedPromptAdvisory is scenario S6.
func TestUserPromptRepeatedPromptAdvisory(t *testing.T) {
	s := openTestStore(t)
	cfg := testConfig()

	older := s.CreateSession("P", "")
	s.InsertPrompt(store.Prompt{
		SessionID:   older,
		ProjectPath: "P",
		Prompt:      "Fix the TypeScript compilation errors in the auth module",
	})

	newer := "s-new"
	out := dispatch(s, cfg, "user-prompt", nil, Event{
		SessionID: newer,
		Cwd:       "P",
		Prompt:    "Fix TypeScript errors in auth",
	})

	if out.HookSpecificOutput == nil || !strings.Contains(strings.ToLower(out.HookSpecificOutput.SystemMessage), "similar") {
		t.Fatalf("expected a similarity advisory, got %+v", out)
	}
}

func TestUserPromptNoOverlapIsSilent(t *testing.T) {
	s := openTestStore(t)
	cfg := testConfig()
	out := dispatch(s, cfg, "user-prompt", nil, Event{SessionID: "s1", Cwd: "P", Prompt: "totally unrelated greeting text"})
	if out.HookSpecificOutput != nil && out.HookSpecificOutput.SystemMessage != "" {
		t.Fatalf("expected no advisory for a non-overlapping prompt, got %+v", out)
	}
}

func TestQueryFormatsNumberedHits(t *testing.T) {
	s := openTestStore(t)
	sid := s.CreateSession("P", "")
	s.InsertDecision(store.Decision{SessionID: sid, ProjectPath: "P", Category: "architecture", Decision: "Adopt JWT for sessions"})

	out := dispatch(s, testConfig(), "query", []string{"JWT"}, Event{Cwd: "P"})
	if out.HookSpecificOutput == nil || !strings.Contains(out.HookSpecificOutput.AdditionalContext, "JWT") {
		t.Fatalf("expected query results mentioning JWT, got %+v", out)
	}
}

func TestQueryEmptyReturnsUsage(t *testing.T) {
	s := openTestStore(t)
	out := dispatch(s, testConfig(), "query", nil, Event{})
	if out.HookSpecificOutput == nil || !strings.Contains(out.HookSpecificOutput.AdditionalContext, "Usage") {
		t.Fatalf("expected usage message for empty query, got %+v", out)
	}
}

func TestStatsIncludesHealthReport(t *testing.T) {
	s := openTestStore(t)
	out := dispatch(s, testConfig(), "stats", []string{"--project"}, Event{Cwd: "P"})
	if out.HookSpecificOutput == nil {
		t.Fatalf("expected stats output")
	}
	ctx := out.HookSpecificOutput.AdditionalContext
	if !strings.Contains(ctx, "last gc: never") {
		t.Fatalf("expected a never-run gc health line before any gc call, got %q", ctx)
	}
	if !strings.Contains(ctx, "fts parity: ok") {
		t.Fatalf("expected fts parity ok on a fresh store, got %q", ctx)
	}
}

// TestGCReportsRemovedCount is scenario S5.
func TestGCReportsRemovedCount(t *testing.T) {
	s := openTestStore(t)
	sid := s.CreateSession("P", "")
	s.InsertLearning(store.Learning{SessionID: sid, ProjectPath: "P", Category: "gotcha", Learning: "fragile thing", RelevanceScore: 0.05})

	for i := 0; i < 5; i++ {
		s.DecayLearnings(0.05)
	}
	out := dispatch(s, testConfig(), "gc", nil, Event{})
	if out.HookSpecificOutput == nil || !strings.Contains(out.HookSpecificOutput.AdditionalContext, `"removed":1`) {
		t.Fatalf("expected removed:1 in gc output, got %+v", out)
	}
}

// TestGCAppliesDecayBeforeThreshold pins the decay-before-GC contract
// (spec.md §4.4 / SPEC_FULL.md §5.4) for the operator gc command
// specifically: a learning that sits just above gcThreshold must still
// be removed by a single "gc" dispatch, because gc is supposed to
// apply one decay step before collecting, the same as session-start
// and the scheduled serve loop. Unlike TestGCReportsRemovedCount, this
// test never calls DecayLearnings directly — if handleGC ever stopped
// decaying first, this is the test that would catch it.
func TestGCAppliesDecayBeforeThreshold(t *testing.T) {
	s := openTestStore(t)
	cfg := testConfig()
	sid := s.CreateSession("P", "")
	// 0.105 is above cfg.Decay.GCThreshold (0.1) before decay, but
	// 0.105 * (1 - 0.05) = 0.09975 is below it after one decay step.
	s.InsertLearning(store.Learning{SessionID: sid, ProjectPath: "P", Category: "gotcha", Learning: "borderline thing", RelevanceScore: 0.105})

	out := dispatch(s, cfg, "gc", nil, Event{})
	if out.HookSpecificOutput == nil || !strings.Contains(out.HookSpecificOutput.AdditionalContext, `"removed":1`) {
		t.Fatalf("expected gc to decay before collecting and report removed:1, got %+v", out)
	}
}

func TestNestedAgentBypassSkipsEverything(t *testing.T) {
	t.Setenv("MEMORIA_NESTED_AGENT", "1")
	out := Run("session-start", nil, strings.NewReader(""))
	if !out.Continue || out.HookSpecificOutput != nil {
		t.Fatalf("expected bare neutral output under nested-agent bypass, got %+v", out)
	}
}
