package router

import (
	"encoding/json"
	"strings"

	"github.com/memoria-dev/memoria/internal/store"
)

// toolInputFields is the narrow shape memoria reads out of tool_input;
// hosts attach many more fields than this, but only file_path and
// command are needed to classify an action.
type toolInputFields struct {
	FilePath string `json:"file_path"`
	Path     string `json:"path"`
	Command  string `json:"command"`
}

func parseToolInput(raw json.RawMessage) toolInputFields {
	var f toolInputFields
	if len(raw) == 0 {
		return f
	}
	_ = json.Unmarshal(raw, &f)
	return f
}

// classifyAction maps a tool_name/tool_input pair to an action type and
// the file path it touched, if any. Bash commands are classified by a
// coarse keyword match on the command text; everything else is keyed
// directly off the tool name.
func classifyAction(toolName string, toolInput json.RawMessage) (store.ActionType, string) {
	fields := parseToolInput(toolInput)
	filePath := fields.FilePath
	if filePath == "" {
		filePath = fields.Path
	}

	switch toolName {
	case "Edit", "MultiEdit", "NotebookEdit":
		return store.ActionEdit, filePath
	case "Write":
		return store.ActionCreate, filePath
	case "Bash":
		return classifyBashCommand(fields.Command), filePath
	default:
		return store.ActionOther, filePath
	}
}

func classifyBashCommand(command string) store.ActionType {
	lower := strings.ToLower(command)
	switch {
	case containsAny(lower, "rm -rf", "rm -f ", "git rm"):
		return store.ActionDelete
	case containsAny(lower, "git commit"):
		return store.ActionCommit
	case containsAny(lower, "npm test", "yarn test", "pnpm test", "go test", "pytest", "jest", " test"):
		return store.ActionTest
	case containsAny(lower, "npm run build", "yarn build", "pnpm build", "go build", "make", "webpack", "vite build", "tsc"):
		return store.ActionBuild
	default:
		return store.ActionOther
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// deriveOutcome applies the spec's case-insensitive "error" search over
// tool output to decide whether an action succeeded or failed.
func deriveOutcome(toolOutput string) store.Outcome {
	if strings.Contains(strings.ToLower(toolOutput), "error") {
		return store.OutcomeFailure
	}
	return store.OutcomeSuccess
}
