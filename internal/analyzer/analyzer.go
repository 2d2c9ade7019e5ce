// Package analyzer turns raw actions into durable Decisions and
// Learnings: config-file edits and package-install commands become
// Decisions, and error-then-fix action sequences become Learnings.
package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/memoria-dev/memoria/internal/store"
)

var installVerbs = map[string]bool{
	"install": true,
	"i":       true,
	"add":     true,
}

// AnalyzeAction inspects a single action and, if it matches a known
// pattern, records a Decision. It is a no-op (and returns 0) when
// nothing matches or the store write fails.
func AnalyzeAction(s *store.Store, action store.Action, sessionID, projectPath string) int64 {
	if id := analyzeConfigFile(s, action, sessionID, projectPath); id != 0 {
		return id
	}
	return analyzeInstallCommand(s, action, sessionID, projectPath)
}

func analyzeConfigFile(s *store.Store, action store.Action, sessionID, projectPath string) int64 {
	if action.ActionType != store.ActionEdit && action.ActionType != store.ActionCreate {
		return 0
	}
	if action.FilePath == "" {
		return 0
	}

	p := matchConfigPattern(action.FilePath)
	if p == nil {
		return 0
	}

	newDecision := store.Decision{
		SessionID:     sessionID,
		ProjectPath:   projectPath,
		Category:      p.Category,
		Decision:      fmt.Sprintf("Modified %s (%s)", p.Label, action.FilePath),
		Rationale:     fmt.Sprintf("Detected from %s on config file", action.ActionType),
		FilesAffected: []string{action.FilePath},
	}

	// A repeat edit of a config file already covered by an active
	// decision in the same category supersedes that decision instead
	// of accumulating a duplicate: the newer row is the one that
	// reflects the file's current state.
	if priorID := activeDecisionForFile(s, projectPath, p.Category, action.FilePath); priorID != 0 {
		return s.Supersede(priorID, newDecision)
	}
	return s.InsertDecision(newDecision)
}

// activeDecisionForFile looks for an active decision in category that
// already names filePath among its files_affected, returning its ID or
// 0 if none matches.
func activeDecisionForFile(s *store.Store, projectPath, category, filePath string) int64 {
	for _, d := range s.ActiveDecisions(projectPath, 0) {
		if d.Category != category {
			continue
		}
		for _, f := range d.FilesAffected {
			if f == filePath {
				return d.ID
			}
		}
	}
	return 0
}

// analyzeInstallCommand matches the narrow tokenized shape: the
// command's first word is a known package manager, its second word is
// a recognized verb, and everything after is a dependency name or
// flag. This intentionally does not fall back to a broader regex scan
// of the whole description, which risks double-inserting a decision
// for a single Bash invocation (spec's resolved open question).
func analyzeInstallCommand(s *store.Store, action store.Action, sessionID, projectPath string) int64 {
	if !isShellTool(action.ToolName) {
		return 0
	}

	deps := extractInstallDeps(action.Description)
	if len(deps) == 0 {
		return 0
	}

	return s.InsertDecision(store.Decision{
		SessionID:     sessionID,
		ProjectPath:   projectPath,
		Category:      "library",
		Decision:      fmt.Sprintf("Added dependencies: %s", strings.Join(deps, ", ")),
		Rationale:     "Detected from package manager install command",
		FilesAffected: []string{"package.json"},
	})
}

func isShellTool(toolName string) bool {
	switch strings.ToLower(toolName) {
	case "bash", "shell", "exec":
		return true
	default:
		return false
	}
}

// extractInstallDeps tokenizes a shell command description and, if it
// begins with npm/yarn/pnpm followed by a recognized install verb,
// returns the non-flag tokens that follow.
func extractInstallDeps(description string) []string {
	tokens := strings.Fields(description)
	if len(tokens) < 2 {
		return nil
	}

	manager := tokens[0]
	verb := tokens[1]

	switch manager {
	case "npm", "pnpm":
		if !installVerbs[verb] {
			return nil
		}
	case "yarn":
		if verb != "add" {
			return nil
		}
	default:
		return nil
	}

	var deps []string
	for _, tok := range tokens[2:] {
		if strings.HasPrefix(tok, "-") {
			continue
		}
		deps = append(deps, tok)
	}
	return deps
}

const maxErrorSnippet = 100

// lookaheadWindow bounds how many subsequent actions extract_learnings
// scans forward from a failure before giving up.
const lookaheadWindow = 15

// ExtractLearnings scans actions for error->fix sequences and inserts
// one Learning per distinct (failure_type, sorted edit files) found.
func ExtractLearnings(s *store.Store, actions []store.Action, sessionID, projectPath string) []int64 {
	var ids []int64
	seen := make(map[string]bool)

	for i, failure := range actions {
		if !isFailureCandidate(failure) {
			continue
		}

		editedFiles, fixIdx, aborted := scanForFix(actions, i, failure)
		if fixIdx < 0 || aborted {
			continue
		}

		key := dedupeKey(failure.ActionType, editedFiles)
		if seen[key] {
			continue
		}
		seen[key] = true

		category := "pattern"
		if failure.ActionType == store.ActionTest || failure.ActionType == store.ActionBuild {
			category = "gotcha"
		}

		id := s.InsertLearning(store.Learning{
			SessionID:      sessionID,
			ProjectPath:    projectPath,
			Category:       category,
			Learning:       learningText(failure, editedFiles),
			Context:        truncate(failure.ErrorMessage, maxErrorSnippet),
			RelevanceScore: 1.0,
		})
		if id != 0 {
			ids = append(ids, id)
		}
	}

	return ids
}

func isFailureCandidate(a store.Action) bool {
	if a.Outcome != store.OutcomeFailure {
		return false
	}
	return a.ActionType == store.ActionTest || a.ActionType == store.ActionBuild || a.FilePath != ""
}

// scanForFix looks forward from failureIdx for a fix: a subsequent
// success of the same action_type, or a subsequent success on the
// same file_path. It collects intervening edit/create file paths and
// aborts (aborted=true) if it sees another failure of the same type
// first.
func scanForFix(actions []store.Action, failureIdx int, failure store.Action) (editedFiles []string, fixIdx int, aborted bool) {
	fixIdx = -1
	limit := failureIdx + 1 + lookaheadWindow
	if limit > len(actions) {
		limit = len(actions)
	}

	for j := failureIdx + 1; j < limit; j++ {
		a := actions[j]

		if a.ActionType == store.ActionEdit || a.ActionType == store.ActionCreate {
			if a.FilePath != "" {
				editedFiles = append(editedFiles, a.FilePath)
			}
		}

		sameType := a.ActionType == failure.ActionType
		sameFile := failure.FilePath != "" && a.FilePath == failure.FilePath

		if sameType && a.Outcome == store.OutcomeFailure {
			return editedFiles, -1, true
		}
		if a.Outcome == store.OutcomeSuccess && (sameType || sameFile) {
			return editedFiles, j, false
		}
	}

	return editedFiles, -1, false
}

func dedupeKey(failureType store.ActionType, files []string) string {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	return string(failureType) + "|" + strings.Join(sorted, ",")
}

func learningText(failure store.Action, editedFiles []string) string {
	sorted := append([]string(nil), editedFiles...)
	sort.Strings(sorted)

	var fileList string
	if len(sorted) > 0 {
		fileList = strings.Join(sorted, ", ")
	} else if failure.FilePath != "" {
		fileList = failure.FilePath
	} else {
		fileList = "an unspecified file"
	}

	snippet := truncate(failure.ErrorMessage, maxErrorSnippet)
	if snippet == "" {
		return fmt.Sprintf("Fixed a %s failure by changing %s", failure.ActionType, fileList)
	}
	return fmt.Sprintf("Fixed a %s failure (%s) by changing %s", failure.ActionType, snippet, fileList)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
