package toolserver

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/memoria-dev/memoria/internal/pruner"
	"github.com/memoria-dev/memoria/internal/store"

	. "github.com/memoria-dev/memoria/internal/logging"
)

// maxLineBytes bounds a single request/response line well above any
// realistic tool call, while still catching a runaway or malformed
// stream instead of growing the scan buffer unbounded.
const maxLineBytes = 8 << 20

// Server is the long-lived handle backing the tool server's request
// loop. It holds the database handle and the ambient project/session
// identifiers for the process's lifetime, unlike the router's
// short-lived per-event Store.
type Server struct {
	store       *store.Store
	projectPath string
	sessionID   string
	pruner      *pruner.Pruner
}

// New constructs a Server bound to s, with the ambient project path
// and session id read from the environment (config.ProjectPathEnv,
// config.SessionIDEnv), and an optional compress tool backed by p.
func New(s *store.Store, projectPath, sessionID string, p *pruner.Pruner) *Server {
	return &Server{store: s, projectPath: projectPath, sessionID: sessionID, pruner: p}
}

// Serve runs the request loop until r is exhausted or ctx is
// cancelled: read one line, dispatch it to the named tool, write one
// response line. A malformed request line yields an error response
// rather than stopping the loop, so one bad call does not take down
// the whole session.
func (srv *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	enc := json.NewEncoder(w)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		resp := srv.handleLine(ctx, line)
		if err := enc.Encode(resp); err != nil {
			L_error("toolserver: failed to write response", "error", err)
		}
	}
	return scanner.Err()
}

func (srv *Server) handleLine(ctx context.Context, line string) Response {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return errorResponse("malformed request: " + err.Error())
	}

	switch req.Tool {
	case "search":
		return srv.toolSearch(req.Args)
	case "record_decision":
		return srv.toolRecordDecision(req.Args)
	case "record_learning":
		return srv.toolRecordLearning(req.Args)
	case "metrics":
		return srv.toolMetrics(req.Args)
	case "compress":
		return srv.toolCompress(ctx, req.Args)
	default:
		return errorResponse("unknown tool: " + req.Tool)
	}
}
