package router

import (
	"io"

	"github.com/memoria-dev/memoria/internal/config"
	"github.com/memoria-dev/memoria/internal/store"

	. "github.com/memoria-dev/memoria/internal/logging"
)

// Run is the router's single entry point, called once per hook
// process invocation. It owns the full request lifecycle: stdin
// parsing, config/logger bootstrap, the nested-agent bypass, opening
// and closing the database handle, and dispatching to the matching
// handler. It never returns an error; every failure mode degrades to
// the neutral {continue:true} response (spec property P5).
func Run(command string, args []string, stdin io.Reader) Output {
	if config.IsNestedAgent() {
		return neutral()
	}

	raw, _ := io.ReadAll(stdin)
	event := ParseEvent(raw)

	cfg := config.Load()
	Init(&Config{Level: ParseLevel(cfg.Logging.Level), File: cfg.Logging.File})

	s, err := store.Open(config.DBPath())
	if err != nil {
		L_error("router: failed to open store", "error", err)
		return neutral()
	}
	defer s.Close()

	out := dispatch(s, cfg, command, args, event)
	if out.HookSpecificOutput != nil && out.HookSpecificOutput.HookEventName == "" {
		out.HookSpecificOutput.HookEventName = event.HookEventName
	}
	return out
}

func dispatch(s *store.Store, cfg *config.Config, command string, args []string, event Event) Output {
	switch command {
	case "session-start":
		return handleSessionStart(s, cfg, event)
	case "user-prompt":
		return handleUserPrompt(s, cfg, event, args)
	case "capture-action":
		return handleCaptureAction(s, cfg, event)
	case "pre-compact":
		return handlePreCompact(s, event)
	case "session-stop":
		return handleSessionStop(s, event)
	case "session-end":
		return handleSessionEnd(s, event)
	case "query":
		return handleQuery(s, event, args)
	case "stats":
		return handleStats(s, cfg, event, args)
	case "gc":
		return handleGC(s, cfg)
	case "export":
		return handleExport(s, event)
	case "backup":
		return handleBackup(s)
	default:
		return withContext("Unknown command: " + command)
	}
}
