// Package injector composes the token-budgeted context brief that the
// router attaches to a session-start hook response.
package injector

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/memoria-dev/memoria/internal/config"
	"github.com/memoria-dev/memoria/internal/store"
	"github.com/memoria-dev/memoria/internal/tokens"
)

// Source identifies what triggered the session to start.
type Source string

const (
	SourceStartup Source = "startup"
	SourceResume  Source = "resume"
	SourceCompact Source = "compact"
	SourceClear   Source = "clear"
	SourceUnknown Source = "unknown"
)

const briefHeader = "# Project Memory\n\n"

// Build assembles the markdown context brief for projectPath, or
// returns the empty string if nothing fits the budget. currentSessionID
// is excluded when looking up the most recent project snapshot.
func Build(s *store.Store, cfg *config.InjectionConfig, projectPath, currentSessionID string, source Source) string {
	if cfg == nil || !cfg.Enabled {
		return ""
	}

	headerTokens := tokens.Estimate(briefHeader)
	if cfg.MaxTokens <= headerTokens {
		return ""
	}

	sections := gatherSections(s, cfg, projectPath, currentSessionID, source)
	return assemble(sections, cfg.MaxTokens, headerTokens)
}

type section struct {
	title string
	body  string
}

// gatherSections collects each of the four sections in priority order
// (Snapshot, Decisions, Learnings, Sessions); any may be absent.
func gatherSections(s *store.Store, cfg *config.InjectionConfig, projectPath, currentSessionID string, source Source) []section {
	var out []section

	if cfg.IncludeSnapshot && (source == SourceResume || source == SourceCompact) {
		if snap := s.LatestProjectSnapshot(projectPath, currentSessionID); snap.ID != 0 {
			if body := renderSnapshot(snap); body != "" {
				out = append(out, section{title: "Snapshot (Resuming)", body: body})
			}
		}
	}

	if cfg.IncludeDecisions {
		if decisions := s.ActiveDecisions(projectPath, 10); len(decisions) > 0 {
			out = append(out, section{title: "Active Decisions", body: renderDecisions(decisions)})
		}
	}

	if cfg.IncludeLearnings {
		if learnings := s.TopLearnings(projectPath, 10); len(learnings) > 0 {
			out = append(out, section{title: "Learnings", body: renderLearnings(learnings)})
		}
	}

	limit := cfg.IncludeSessions
	if limit > 0 {
		if sessions := s.RecentSummarizedSessions(projectPath, limit); len(sessions) > 0 {
			out = append(out, section{title: "Recent Sessions", body: renderSessions(sessions)})
		}
	}

	return out
}

// assemble composes sections in the order given (already
// priority-sorted by gatherSections) under the token budget, stopping
// at the first section that doesn't fit in full.
func assemble(sections []section, maxTokens, headerTokens int) string {
	if len(sections) == 0 {
		return ""
	}

	var body strings.Builder
	remaining := maxTokens - headerTokens

	for _, sec := range sections {
		rendered := fmt.Sprintf("## %s\n\n%s\n", sec.title, sec.body)
		cost := tokens.Estimate(rendered)

		if cost <= remaining {
			body.WriteString(rendered)
			remaining -= cost
			continue
		}

		truncated := tokens.TruncateToBudget(rendered, remaining)
		if truncated != "" {
			body.WriteString(truncated)
		}
		break
	}

	if body.Len() == 0 {
		return ""
	}
	return briefHeader + body.String()
}

func renderSnapshot(snap store.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Task:** %s\n\n", snap.CurrentTask)
	fmt.Fprintf(&b, "**Progress:** %s\n\n", snap.ProgressSummary)
	if len(snap.NextSteps) > 0 {
		b.WriteString("**Next Steps:**\n")
		for _, step := range snap.NextSteps {
			fmt.Fprintf(&b, "- %s\n", step)
		}
	}
	return b.String()
}

func renderDecisions(decisions []store.Decision) string {
	var b strings.Builder
	for _, d := range decisions {
		fmt.Fprintf(&b, "- [%s] %s\n", d.Category, d.Decision)
	}
	return b.String()
}

func renderLearnings(learnings []store.Learning) string {
	var b strings.Builder
	for _, l := range learnings {
		fmt.Fprintf(&b, "- [%s] %s\n", l.Category, l.Learning)
	}
	return b.String()
}

func renderSessions(sessions []store.Session) string {
	var b strings.Builder
	for _, sess := range sessions {
		fmt.Fprintf(&b, "- %s: %s\n", shortDate(sess.StartedAt), sess.Summary)
	}
	return b.String()
}

func shortDate(t time.Time) string {
	if t.IsZero() {
		return "unknown date"
	}
	return t.Format("2006-01-02")
}

// ParseNextSteps decodes a snapshot's stored next_steps field, which
// is normally a JSON array; if that fails it falls back to splitting
// on newlines, mirroring the checkpoint-response recovery pattern used
// elsewhere for LLM-adjacent free text.
func ParseNextSteps(raw string) []string {
	var steps []string
	if err := json.Unmarshal([]byte(raw), &steps); err == nil {
		return steps
	}

	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
