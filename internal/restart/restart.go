// Package restart implements the restart record used to reconfigure a
// running stage's plugin without tearing down the pipeline (pipeline-design.md
// §4.5). The record itself carries no ring or plugin knowledge: it is a
// plain completion handshake, installed on a stage by the supervisor and
// serviced by the stage's own worker goroutine.
package restart

import (
	"errors"
	"sync"
)

// ErrSuperseded is the error recorded on a restart request that was
// replaced by a newer one before the worker got to service it.
var ErrSuperseded = errors.New("restart: superseded by a later restart request")

// ReportSink receives diagnostic output during a restart attempt, mirroring
// the "dedicated report sink" carried by pipeline-design.md's restart record.
type ReportSink interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Record is a pending restart request. The supervisor creates one,
// installs it on the target stage, and waits on it; the stage's worker
// services it and marks it completed exactly once.
type Record struct {
	// ArgsMap carries the new plugin options (the Go-native equivalent of
	// pipeline-design.md's argument vector, since options arrive pre-parsed as a
	// map rather than argv). Ignored by the worker when SameArgs is true.
	ArgsMap  map[string]any
	SameArgs bool
	Report   ReportSink

	mu        sync.Mutex
	cond      *sync.Cond
	completed bool
	err       error
}

// NewRecord builds a restart record for the given options. If sameArgs is
// true, args is ignored by the worker and the plugin is restarted with
// its current configuration.
func NewRecord(args map[string]any, sameArgs bool, sink ReportSink) *Record {
	r := &Record{ArgsMap: args, SameArgs: sameArgs, Report: sink}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// MarkCompleted records the outcome and wakes any supervisor waiting on
// this record. Calling it more than once is a no-op after the first call.
func (r *Record) MarkCompleted(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completed {
		return
	}
	r.completed = true
	r.err = err
	r.cond.Broadcast()
}

// Wait blocks until the worker services this record, then returns the
// outcome recorded by MarkCompleted.
func (r *Record) Wait() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for !r.completed {
		r.cond.Wait()
	}
	return r.err
}
