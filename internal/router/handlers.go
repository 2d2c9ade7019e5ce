package router

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/memoria-dev/memoria/internal/analyzer"
	"github.com/memoria-dev/memoria/internal/config"
	"github.com/memoria-dev/memoria/internal/injector"
	"github.com/memoria-dev/memoria/internal/store"
	"github.com/memoria-dev/memoria/internal/summarizer"
	"github.com/memoria-dev/memoria/internal/utilization"

	. "github.com/memoria-dev/memoria/internal/logging"
)

// projectPathFrom resolves the project scope for an event: the host's
// cwd when present, falling back to the ambient environment variable
// used outside of a hook (e.g. the tool server).
func projectPathFrom(event Event) string {
	if event.Cwd != "" {
		return event.Cwd
	}
	return config.ProjectPathEnv()
}

func mapSource(s string) injector.Source {
	switch s {
	case "startup":
		return injector.SourceStartup
	case "resume":
		return injector.SourceResume
	case "compact":
		return injector.SourceCompact
	case "clear":
		return injector.SourceClear
	default:
		return injector.SourceUnknown
	}
}

func handleSessionStart(s *store.Store, cfg *config.Config, event Event) Output {
	projectPath := projectPathFrom(event)
	s.EnsureSession(event.SessionID, projectPath, "")

	s.DecayLearnings(cfg.Decay.DailyRate)
	s.GarbageCollectLearnings(cfg.Decay.GCThreshold)

	if !cfg.Injection.Enabled {
		return neutral()
	}

	brief := injector.Build(s, &cfg.Injection, projectPath, event.SessionID, mapSource(event.Source))
	if brief == "" {
		return neutral()
	}
	return withContext(brief)
}

func handleUserPrompt(s *store.Store, cfg *config.Config, event Event, args []string) Output {
	projectPath := projectPathFrom(event)
	s.EnsureSession(event.SessionID, projectPath, "")

	prompt := event.Prompt
	if prompt == "" {
		prompt = strings.Join(args, " ")
	}
	if prompt != "" {
		s.InsertPrompt(store.Prompt{SessionID: event.SessionID, ProjectPath: projectPath, Prompt: prompt})
	}

	var systemMessage string
	if terms := buildPromptFTSTerms(prompt); len(terms) > 0 {
		similar := s.FindSimilarPrompts(projectPath, event.SessionID, terms, 1)
		if len(similar) > 0 && similar[0].Rank < -1 {
			systemMessage = fmt.Sprintf(
				"This looks similar to a prompt from an earlier session: %q. Check Active Decisions and Learnings before repeating work.",
				similar[0].Prompt,
			)
		}
	}

	if advisory := utilizationAdvisory(cfg, event.TranscriptPath); advisory != "" {
		if systemMessage != "" {
			systemMessage = systemMessage + " " + advisory
		} else {
			systemMessage = advisory
		}
	}

	if systemMessage == "" {
		return neutral()
	}
	return withMessage("", systemMessage)
}

func utilizationAdvisory(cfg *config.Config, transcriptPath string) string {
	if !cfg.Metrics.Enabled || transcriptPath == "" {
		return ""
	}
	est := utilization.EstimateUtilization(transcriptPath)
	switch {
	case est.Utilization >= cfg.Metrics.CriticalUtilization:
		return fmt.Sprintf("Context utilization is critical (%.0f%%). Expect compaction soon.", est.Utilization*100)
	case est.Utilization >= cfg.Metrics.WarnUtilization:
		return fmt.Sprintf("Context utilization is high (%.0f%%).", est.Utilization*100)
	default:
		return ""
	}
}

func handleCaptureAction(s *store.Store, cfg *config.Config, event Event) Output {
	if !cfg.Capture.Enabled {
		return neutral()
	}
	if !captureToolAllowed(cfg, event.ToolName) {
		return neutral()
	}

	projectPath := projectPathFrom(event)
	s.EnsureSession(event.SessionID, projectPath, "")

	actionType, filePath := classifyAction(event.ToolName, event.ToolInput)
	action := store.Action{
		SessionID:   event.SessionID,
		ToolName:    event.ToolName,
		FilePath:    filePath,
		ActionType:  actionType,
		Description: parseToolInput(event.ToolInput).Command,
		Outcome:     deriveOutcome(event.ToolOutput),
	}
	if action.Outcome == store.OutcomeFailure {
		action.ErrorMessage = event.ToolOutput
	}

	insert := func() {
		id := s.InsertAction(action)
		if id == 0 {
			return
		}
		action.ID = id
		analyzer.AnalyzeAction(s, action, event.SessionID, projectPath)
	}

	if cfg.Capture.AsyncActions {
		go insert()
	} else {
		insert()
	}
	return neutral()
}

// captureToolAllowed honors capture.captureTools: an empty list means
// capture every tool, matching the safe-default direction chosen for
// this config field.
func captureToolAllowed(cfg *config.Config, toolName string) bool {
	if len(cfg.Capture.CaptureTools) == 0 {
		return true
	}
	for _, t := range cfg.Capture.CaptureTools {
		if t == toolName {
			return true
		}
	}
	return false
}

func handlePreCompact(s *store.Store, event Event) Output {
	s.EnsureSession(event.SessionID, projectPathFrom(event), "")

	actions := s.SessionActions(event.SessionID)
	files := summarizer.UniqueFiles(actions)

	progress := strings.TrimSuffix(summarizer.Summarize(actions), "\n")

	s.InsertSnapshot(store.Snapshot{
		SessionID:       event.SessionID,
		Trigger:         store.TriggerPreCompact,
		ProgressSummary: progress,
		WorkingFiles:    files,
	})

	sess := s.GetSession(event.SessionID)
	s.UpdateSession(event.SessionID, map[string]interface{}{
		"compaction_count": sess.CompactionCount + 1,
	})
	return neutral()
}

func handleSessionStop(s *store.Store, event Event) Output {
	s.EnsureSession(event.SessionID, projectPathFrom(event), "")

	actions := s.SessionActions(event.SessionID)
	summary := summarizer.Summarize(actions)
	files := summarizer.UniqueFiles(actions)

	analyzer.ExtractLearnings(s, actions, event.SessionID, projectPathFrom(event))

	est := utilization.EstimateUtilization(event.TranscriptPath)
	s.InsertMetric(store.Metric{SessionID: event.SessionID, MetricName: "context_utilization", Value: est.Utilization})

	sess := s.GetSession(event.SessionID)
	fields := map[string]interface{}{
		"summary":  summary,
		"ended_at": nowFormatted(),
	}
	if sess.ContextUtilizationPeak == nil || est.Utilization > *sess.ContextUtilizationPeak {
		fields["context_utilization_peak"] = est.Utilization
	}
	s.UpdateSession(event.SessionID, fields)
	s.SetSessionFilesModified(event.SessionID, files)
	return neutral()
}

// handleSessionEnd finalizes any fields Stop did not already set. It
// is idempotent: a session already finalized by Stop is left untouched
// (property P10).
func handleSessionEnd(s *store.Store, event Event) Output {
	sess := s.GetSession(event.SessionID)
	if sess.ID == "" {
		return neutral()
	}

	fields := map[string]interface{}{}
	if sess.EndedAt == nil {
		fields["ended_at"] = nowFormatted()
	}
	if sess.Summary == "" {
		actions := s.SessionActions(event.SessionID)
		fields["summary"] = summarizer.Summarize(actions)
		s.SetSessionFilesModified(event.SessionID, summarizer.UniqueFiles(actions))
	}
	if len(fields) > 0 {
		s.UpdateSession(event.SessionID, fields)
	}
	return neutral()
}

func handleQuery(s *store.Store, event Event, args []string) Output {
	query := strings.Join(args, " ")
	if query == "" {
		return withContext("Usage: query <text>")
	}

	hits := s.SearchMemory(query, store.CategoryAll, 10)
	if len(hits) == 0 {
		return withContext("No matching memory found for: " + query)
	}

	var b strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&b, "%d. [%s:%s] %s\n", i+1, h.Source, h.ID, h.Snippet)
	}
	return withContext(b.String())
}

func handleStats(s *store.Store, cfg *config.Config, event Event, args []string) Output {
	projectPath := projectPathFrom(event)
	scope := "project"
	for _, a := range args {
		switch a {
		case "--session":
			scope = "session"
		case "--project":
			scope = "project"
		}
	}

	var b strings.Builder
	if scope == "session" && event.SessionID != "" {
		actions := s.SessionActions(event.SessionID)
		counts := summarizer.CountByType(actions)
		fmt.Fprintf(&b, "Session %s: %d actions, %d failures\n", event.SessionID, len(actions), s.CountSessionFailures(event.SessionID))
		for t, n := range counts {
			fmt.Fprintf(&b, "  %s: %d\n", t, n)
		}
	}

	pm := s.ProjectMetricsSummary(projectPath)
	fmt.Fprintf(&b, "Project %s:\n", projectPath)
	fmt.Fprintf(&b, "  sessions: %d, actions: %d, failures: %d\n", pm.SessionCount, pm.TotalActions, pm.TotalFailures)
	fmt.Fprintf(&b, "  avg peak utilization: %.2f, compactions: %d\n", pm.AvgPeakUtilization, pm.TotalCompactions)
	fmt.Fprintf(&b, "  decisions: %d, learnings: %d, prompts: %d\n", pm.DecisionCount, pm.LearningCount, pm.PromptCount)

	writeHealthReport(&b, s, cfg)

	return withContext(b.String())
}

// writeHealthReport appends decay/GC and FTS self-test lines to a
// stats report: last GC run, learnings currently below the GC
// threshold, and any base/FTS5 row-count drift.
func writeHealthReport(b *strings.Builder, s *store.Store, cfg *config.Config) {
	fmt.Fprintf(b, "Health:\n")

	if last := s.LastGCAt(); !last.IsZero() {
		fmt.Fprintf(b, "  last gc: %s\n", last.UTC().Format("2006-01-02T15:04:05Z"))
	} else {
		fmt.Fprintf(b, "  last gc: never\n")
	}
	fmt.Fprintf(b, "  learnings pending removal: %d\n", s.PendingGCCount(cfg.Decay.GCThreshold))

	if drifted := s.FTSParityCheck(); len(drifted) > 0 {
		fmt.Fprintf(b, "  fts parity: DRIFTED (%s)\n", strings.Join(drifted, ", "))
	} else {
		fmt.Fprintf(b, "  fts parity: ok\n")
	}
}

func handleGC(s *store.Store, cfg *config.Config) Output {
	s.DecayLearnings(cfg.Decay.DailyRate)
	removed := s.GarbageCollectLearnings(cfg.Decay.GCThreshold)
	return withContext(fmt.Sprintf("{\"removed\":%d,\"dailyRate\":%s}", removed, strconv.FormatFloat(cfg.Decay.DailyRate, 'f', -1, 64)))
}

func handleExport(s *store.Store, event Event) Output {
	doc := exportProject(s, projectPathFrom(event))
	return withContext(doc)
}

func handleBackup(s *store.Store) Output {
	path, err := backupDatabase(s)
	if err != nil {
		L_error("router: backup failed", "error", err)
		return withContext("Backup failed: " + err.Error())
	}
	return withContext("Backup written to " + path)
}
