package router

// HookSpecificOutput carries the optional event-specific fields the
// host surfaces to the assistant: the echoed event name, additional
// context to inject into the conversation, and an advisory message.
type HookSpecificOutput struct {
	HookEventName     string `json:"hookEventName,omitempty"`
	AdditionalContext string `json:"additionalContext,omitempty"`
	SystemMessage     string `json:"systemMessage,omitempty"`
}

// Output is the router's top-level response shape. Continue is always
// true: memoria never asks the host to block or abort, on any code
// path (spec property P5).
type Output struct {
	Continue           bool                `json:"continue"`
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// neutral is the response written when there is nothing more specific
// to say: invalid stdin, nested-agent bypass, or a store that failed
// to open. An unknown command instead gets a withContext message.
func neutral() Output {
	return Output{Continue: true}
}

func withContext(ctx string) Output {
	return Output{Continue: true, HookSpecificOutput: &HookSpecificOutput{AdditionalContext: ctx}}
}

func withMessage(ctx, msg string) Output {
	out := Output{Continue: true}
	if ctx != "" || msg != "" {
		out.HookSpecificOutput = &HookSpecificOutput{AdditionalContext: ctx, SystemMessage: msg}
	}
	return out
}
