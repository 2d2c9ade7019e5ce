// Package summarizer turns a session's recorded actions into a short
// human-readable summary. Everything here is a pure function over
// already-persisted data: no storage access, no randomness, no
// external calls.
package summarizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/memoria-dev/memoria/internal/store"
)

const noActionsSentence = "No recorded actions in this session."

// Summarize assembles up to three sentences describing actions: an
// activity sentence, an outcome sentence, and (for small file sets) a
// scope sentence.
func Summarize(actions []store.Action) string {
	if len(actions) == 0 {
		return noActionsSentence
	}

	counts := CountByType(actions)
	files := UniqueFiles(actions)

	var sentences []string
	sentences = append(sentences, activitySentence(counts, files))

	if outcome := outcomeSentence(actions, counts); outcome != "" {
		sentences = append(sentences, outcome)
	}

	if len(files) > 0 && len(files) < 8 {
		sentences = append(sentences, scopeSentence(files))
	}

	return strings.Join(sentences, " ")
}

// UniqueFiles returns the distinct non-empty file paths touched across
// actions, in first-seen order.
func UniqueFiles(actions []store.Action) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range actions {
		if a.FilePath == "" || seen[a.FilePath] {
			continue
		}
		seen[a.FilePath] = true
		out = append(out, a.FilePath)
	}
	return out
}

// CountByType tallies actions by ActionType.
func CountByType(actions []store.Action) map[store.ActionType]int {
	counts := make(map[store.ActionType]int)
	for _, a := range actions {
		counts[a.ActionType]++
	}
	return counts
}

func activitySentence(counts map[store.ActionType]int, files []string) string {
	edits := counts[store.ActionEdit] + counts[store.ActionCreate]
	tests := counts[store.ActionTest]

	var parts []string
	if edits > 0 {
		parts = append(parts, fmt.Sprintf("%d edit%s", edits, plural(edits)))
	}
	if tests > 0 {
		parts = append(parts, fmt.Sprintf("%d test%s", tests, plural(tests)))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Session performed %d action%s.", totalCount(counts), plural(totalCount(counts)))
	}

	activity := strings.Join(parts, ", ")
	if len(files) > 0 {
		return fmt.Sprintf("Session performed %s across %d file%s.", activity, len(files), plural(len(files)))
	}
	return fmt.Sprintf("Session performed %s.", activity)
}

func outcomeSentence(actions []store.Action, counts map[store.ActionType]int) string {
	var failures int
	var testPass, testFail int
	var buildOutcome string
	var commitMessages []string

	for _, a := range actions {
		if a.Outcome == store.OutcomeFailure {
			failures++
		}
		if a.ActionType == store.ActionTest {
			if a.Outcome == store.OutcomeSuccess {
				testPass++
			} else {
				testFail++
			}
		}
		if a.ActionType == store.ActionBuild && buildOutcome == "" {
			buildOutcome = string(a.Outcome)
		}
		if a.ActionType == store.ActionCommit && a.Outcome == store.OutcomeSuccess {
			commitMessages = append(commitMessages, a.Description)
		}
	}

	var parts []string
	if failures > 0 {
		parts = append(parts, fmt.Sprintf("%d action%s failed", failures, plural(failures)))
	}
	if testPass+testFail > 0 {
		parts = append(parts, fmt.Sprintf("tests %d passed/%d failed", testPass, testFail))
	}
	if buildOutcome != "" {
		parts = append(parts, fmt.Sprintf("build %s", buildOutcome))
	}
	if len(commitMessages) > 0 {
		n := len(commitMessages)
		if n > 2 {
			n = 2
		}
		parts = append(parts, fmt.Sprintf("commits: %s", strings.Join(commitMessages[:n], "; ")))
	}

	if len(parts) == 0 {
		return ""
	}
	joined := strings.Join(parts, "; ")
	return strings.ToUpper(joined[:1]) + joined[1:] + "."
}

func scopeSentence(files []string) string {
	bases := make([]string, 0, len(files))
	for i, f := range files {
		if i >= 2 {
			break
		}
		bases = append(bases, basename(f))
	}
	return fmt.Sprintf("Touched %s.", strings.Join(bases, ", "))
}

func basename(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

func totalCount(counts map[store.ActionType]int) int {
	total := 0
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		total += counts[store.ActionType(t)]
	}
	return total
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
