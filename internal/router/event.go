// Package router dispatches hook events from the host assistant to the
// memory engine's handlers and guarantees a well-formed, non-blocking
// response on every exit path.
package router

import "encoding/json"

// Event is the subset of the host's hook payload memoria understands.
// All fields are optional; a missing or malformed stdin body parses to
// the zero Event rather than an error.
type Event struct {
	SessionID      string          `json:"session_id"`
	TranscriptPath string          `json:"transcript_path"`
	Cwd            string          `json:"cwd"`
	HookEventName  string          `json:"hook_event_name"`
	ToolName       string          `json:"tool_name"`
	ToolInput      json.RawMessage `json:"tool_input"`
	ToolOutput     string          `json:"tool_output"`
	Source         string          `json:"source"`
	Prompt         string          `json:"prompt"`
}

// ParseEvent parses raw stdin bytes into an Event. Empty or malformed
// input yields the zero Event, never an error — the router has no
// channel to report a parse failure other than proceeding with
// whatever defaults each handler applies.
func ParseEvent(raw []byte) Event {
	var e Event
	if len(raw) == 0 {
		return e
	}
	_ = json.Unmarshal(raw, &e)
	return e
}
