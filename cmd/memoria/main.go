// Command memoria is the hook router and tool server for the memoria
// memory engine: a short-lived process per hook event, plus a
// long-lived `serve` mode exposing the same memory over a line-framed
// tool protocol.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	cronlib "github.com/robfig/cron/v3"
	"github.com/sevlyar/go-daemon"

	"github.com/memoria-dev/memoria/internal/config"
	"github.com/memoria-dev/memoria/internal/pruner"
	"github.com/memoria-dev/memoria/internal/router"
	"github.com/memoria-dev/memoria/internal/store"
	"github.com/memoria-dev/memoria/internal/toolserver"

	. "github.com/memoria-dev/memoria/internal/logging"
)

var version = "dev"

// Context carries the global flags every subcommand's Run receives.
type Context struct {
	Debug bool
}

// CLI is memoria's command surface: the hook handlers the host invokes
// once per event, the tool server for long-lived embedding, and a
// handful of maintenance/daemon-control commands.
type CLI struct {
	Debug bool `help:"Enable debug logging" short:"d"`

	SessionStart  SessionStartCmd  `cmd:"session-start" help:"Hook: create the session and inject the context brief"`
	UserPrompt    UserPromptCmd    `cmd:"user-prompt" help:"Hook: record a prompt and advise on repeats/utilization"`
	CaptureAction CaptureActionCmd `cmd:"capture-action" help:"Hook: record a tool invocation (PostToolUse)"`
	PreCompact    PreCompactCmd    `cmd:"pre-compact" help:"Hook: snapshot progress before compaction"`
	SessionStop   SessionStopCmd   `cmd:"session-stop" help:"Hook: finalize the session (Stop)"`
	SessionEnd    SessionEndCmd    `cmd:"session-end" help:"Hook: idempotent finalization safety net"`
	Query         QueryCmd         `cmd:"query" help:"Search memory and print formatted hits"`
	Stats         StatsCmd         `cmd:"stats" help:"Print session/project statistics"`
	GC            GCCmd            `cmd:"gc" help:"Apply decay and remove learnings below threshold"`
	Export        ExportCmd        `cmd:"export" help:"Export sessions, decisions, and learnings as JSON"`
	Backup        BackupCmd        `cmd:"backup" help:"Copy the database file to a timestamped backup"`
	Serve         ServeCmd         `cmd:"serve" help:"Run the long-lived tool server"`
	Stop          StopCmd          `cmd:"stop" help:"Stop a daemonized tool server"`
	Status        StatusCmd        `cmd:"status" help:"Show whether the tool server daemon is running"`
	Version       VersionCmd       `cmd:"version" help:"Show version"`
}

// runHook invokes the router for command with no extra positional
// arguments, reading the event from standard input.
func runHook(command string) error {
	return runHookArgs(command, nil)
}

func runHookArgs(command string, args []string) error {
	out := safeRun(command, args)
	return writeOutput(out)
}

// safeRun wraps router.Run with the top-level recover that makes the
// never-block guarantee (property P5) hold even against a panic
// somewhere inside config loading, the store, or a handler: every
// exit path from this function yields a well-formed Output.
func safeRun(command string, args []string) (out router.Output) {
	defer func() {
		if r := recover(); r != nil {
			L_error("memoria: recovered from panic", "command", command, "panic", r)
			out = router.Output{Continue: true}
		}
	}()
	return router.Run(command, args, os.Stdin)
}

func writeOutput(out router.Output) error {
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(out); err != nil {
		// Even a broken stdout must not surface as a hook failure; the
		// host only ever expects exit code 0 from these commands.
		L_error("memoria: failed to write hook output", "error", err)
	}
	return nil
}

type SessionStartCmd struct{}

func (c *SessionStartCmd) Run(ctx *Context) error { return runHook("session-start") }

type UserPromptCmd struct {
	Text []string `arg:"" optional:"" help:"Prompt text, if not supplied on stdin"`
}

func (c *UserPromptCmd) Run(ctx *Context) error { return runHookArgs("user-prompt", c.Text) }

type CaptureActionCmd struct{}

func (c *CaptureActionCmd) Run(ctx *Context) error { return runHook("capture-action") }

type PreCompactCmd struct{}

func (c *PreCompactCmd) Run(ctx *Context) error { return runHook("pre-compact") }

type SessionStopCmd struct{}

func (c *SessionStopCmd) Run(ctx *Context) error { return runHook("session-stop") }

type SessionEndCmd struct{}

func (c *SessionEndCmd) Run(ctx *Context) error { return runHook("session-end") }

type QueryCmd struct {
	Text []string `arg:"" help:"Search text"`
}

func (c *QueryCmd) Run(ctx *Context) error { return runHookArgs("query", c.Text) }

type StatsCmd struct {
	Session bool `help:"Add the current session's breakdown ahead of the project report"`
	Project bool `help:"Print only the project report (default)"`
}

func (c *StatsCmd) Run(ctx *Context) error {
	var args []string
	if c.Session {
		args = append(args, "--session")
	}
	if c.Project {
		args = append(args, "--project")
	}
	return runHookArgs("stats", args)
}

type GCCmd struct{}

func (c *GCCmd) Run(ctx *Context) error { return runHook("gc") }

type ExportCmd struct{}

func (c *ExportCmd) Run(ctx *Context) error { return runHook("export") }

type BackupCmd struct{}

func (c *BackupCmd) Run(ctx *Context) error { return runHook("backup") }

type VersionCmd struct{}

func (c *VersionCmd) Run(ctx *Context) error {
	fmt.Println("memoria", version)
	return nil
}

// ServeCmd runs the long-lived tool server over stdio, optionally as a
// background daemon, with a scheduled decay+GC pass running alongside
// it so a process that stays up for days does not need a session-start
// event to keep relevance scores current.
type ServeCmd struct {
	Daemon bool `help:"Run as a background daemon" short:"b"`
}

func (c *ServeCmd) Run(ctx *Context) error {
	cfg := config.Load()
	Init(&Config{Level: ParseLevel(cfg.Logging.Level), File: cfg.Logging.File})

	if c.Daemon {
		paths := daemonPaths()
		if err := os.MkdirAll(paths.dataDir, 0750); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		if isRunningAt(paths.pidFile) {
			return fmt.Errorf("tool server already running")
		}

		dctx := &daemon.Context{
			PidFileName: paths.pidFile,
			PidFilePerm: 0644,
			LogFileName: paths.logFile,
			LogFilePerm: 0640,
			WorkDir:     "./",
			Umask:       027,
		}
		d, err := dctx.Reborn()
		if err != nil {
			return fmt.Errorf("daemonize: %w", err)
		}
		if d != nil {
			L_info("memoria: tool server started", "pid", d.Pid)
			return nil
		}
		defer dctx.Release()
	}

	s, err := store.Open(config.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	sched := cronlib.New()
	if _, err := sched.AddFunc("@daily", func() {
		s.DecayLearnings(cfg.Decay.DailyRate)
		n := s.GarbageCollectLearnings(cfg.Decay.GCThreshold)
		L_info("memoria: scheduled decay+gc ran", "removed", n)
	}); err != nil {
		L_warn("memoria: failed to schedule decay+gc", "error", err)
	}
	sched.Start()
	defer sched.Stop()

	p := pruner.New(cfg.Pruner, config.PrunerURLOverride())
	srv := toolserver.New(s, config.ProjectPathEnv(), config.SessionIDEnv(), p)

	L_info("memoria: tool server listening on stdio")
	return srv.Serve(context.Background(), os.Stdin, os.Stdout)
}

// StopCmd signals a daemonized tool server to exit.
type StopCmd struct{}

func (c *StopCmd) Run(ctx *Context) error {
	paths := daemonPaths()
	pid, running := getPidFromFile(paths.pidFile)
	if !running {
		fmt.Println("memoria: tool server is not running")
		return nil
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("process not found: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("stop tool server: %w", err)
	}
	os.Remove(paths.pidFile)
	fmt.Println("memoria: tool server stopped")
	return nil
}

// StatusCmd reports whether a daemonized tool server is running.
type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *Context) error {
	paths := daemonPaths()
	pid, running := getPidFromFile(paths.pidFile)
	if !running {
		fmt.Println("memoria: tool server is not running")
		return nil
	}
	fmt.Printf("memoria: tool server running (pid %d)\n", pid)
	return nil
}

type daemonRuntimePaths struct {
	dataDir string
	pidFile string
	logFile string
}

func daemonPaths() daemonRuntimePaths {
	dataDir := dirOf(config.DBPath())
	return daemonRuntimePaths{
		dataDir: dataDir,
		pidFile: dataDir + "/memoria.pid",
		logFile: dataDir + "/memoria-serve.log",
	}
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}

func getPidFromFile(pidFile string) (int, bool) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		os.Remove(pidFile)
		return pid, false
	}
	return pid, true
}

func isRunningAt(pidFile string) bool {
	_, running := getPidFromFile(pidFile)
	return running
}

func main() {
	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("memoria"),
		kong.Description("Per-project memory engine for an AI coding assistant"),
		kong.UsageOnError(),
	)

	// --debug forces verbose stderr logging ahead of any subcommand's
	// own Init call, which means it also forces the default stderr
	// sink rather than a configured log file: debug runs are meant to
	// be watched directly, not redirected.
	if cli.Debug {
		SetLevel(LevelDebug)
	}

	if err := kctx.Run(&Context{Debug: cli.Debug}); err != nil {
		L_error("memoria: command failed", "error", err)
		os.Exit(1)
	}
}
