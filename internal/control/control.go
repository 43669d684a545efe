// Package control implements the minimal restart channel described in
// SPEC_FULL.md §6: a Unix domain socket carrying newline-delimited JSON
// requests/responses, letting an external tsgopipectl process drive a
// running pipeline's Abort/RestartStage/Stats without introducing the RPC
// layer pipeline-design.md's Non-goals exclude.
package control

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/tsgopipe/tsgopipe/internal/log"
	"github.com/tsgopipe/tsgopipe/internal/pipeline"
	"github.com/tsgopipe/tsgopipe/pkg/plugin"
)

// Request is one control-socket command, one JSON object per line.
type Request struct {
	// Command is one of "restart", "abort", "status".
	Command string `json:"command"`

	// StageIndex, Args, SameArgs apply to "restart" only.
	StageIndex int            `json:"stage_index,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
	SameArgs   bool           `json:"same_args,omitempty"`
}

// Response is the JSON reply to one Request.
type Response struct {
	OK    bool              `json:"ok"`
	Error string            `json:"error,omitempty"`
	Stats *pipeline.Stats   `json:"stats,omitempty"`
	Log   []string          `json:"log,omitempty"`
}

// Server listens on a Unix domain socket and services control requests
// against one running pipeline.
type Server struct {
	socketPath string
	pipe       *pipeline.Pipeline
	log        log.Logger
	ln         net.Listener
}

// NewServer builds a control server for the given pipeline. It does not
// start listening until Serve is called.
func NewServer(socketPath string, p *pipeline.Pipeline) *Server {
	return &Server{socketPath: socketPath, pipe: p, log: log.L().WithField("component", "control")}
}

// Serve listens on the configured socket and services requests until ctx
// is cancelled or the listener is closed.
func (s *Server) Serve(ctx context.Context) error {
	os.Remove(s.socketPath)
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("control: listen %q: %w", s.socketPath, err)
	}
	s.ln = ln

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("control: accept: %w", err)
		}
		go s.handleConn(conn)
	}
}

// Close stops listening and removes the socket file.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	os.Remove(s.socketPath)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)
	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			enc.Encode(Response{OK: false, Error: fmt.Sprintf("bad request: %v", err)})
			continue
		}
		enc.Encode(s.dispatch(req))
	}
}

func (s *Server) dispatch(req Request) Response {
	switch req.Command {
	case "abort":
		s.pipe.Abort()
		return Response{OK: true}
	case "status":
		stats := s.pipe.Stats()
		return Response{OK: true, Stats: &stats}
	case "restart":
		var captured recordingSink
		err := s.pipe.RestartStage(req.StageIndex, req.Args, req.SameArgs, &captured)
		if err != nil {
			return Response{OK: false, Error: err.Error(), Log: captured.lines}
		}
		return Response{OK: true, Log: captured.lines}
	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Command)}
	}
}

// recordingSink implements plugin.ReportSink by capturing lines for
// return to the requesting tsgopipectl client, matching pipeline-design.md §4.5's
// "restart record's report" surfacing configuration errors to the
// supervisor rather than only to the stage's own log.
type recordingSink struct {
	lines []string
}

func (r *recordingSink) Infof(format string, args ...any) {
	r.lines = append(r.lines, "INFO: "+fmt.Sprintf(format, args...))
}
func (r *recordingSink) Warnf(format string, args ...any) {
	r.lines = append(r.lines, "WARN: "+fmt.Sprintf(format, args...))
}
func (r *recordingSink) Errorf(format string, args ...any) {
	r.lines = append(r.lines, "ERROR: "+fmt.Sprintf(format, args...))
}

var _ plugin.ReportSink = (*recordingSink)(nil)
