package ring

import (
	"fmt"
	"sync"
	"time"

	"github.com/tsgopipe/tsgopipe/internal/buffer"
	"github.com/tsgopipe/tsgopipe/internal/restart"
)

// Stage is one node of the pipeline ring: identity, links (implicit via
// index into the owning Ring), and window state guarded by the ring's
// shared mutex.
type Stage struct {
	ring  *Ring
	kind  Kind
	index int
	name  string
	uidv  uint64

	cond *sync.Cond

	first      int
	count      int
	inputEnd   bool
	aborting   bool
	bitrate    uint64
	confidence buffer.Confidence

	packetTimeout time.Duration

	pendingRestart *restart.Record

	localPackets uint64
}

// Kind returns the stage's role in the pipeline.
func (s *Stage) Kind() Kind { return s.kind }

// Index returns the stage's ordinal position in the ring.
func (s *Stage) Index() int { return s.index }

// Name returns the stage's display name.
func (s *Stage) Name() string { return s.name }

// UID returns the stage's process-scope identifier.
func (s *Stage) UID() uint64 { return s.uidv }

// SetPacketTimeout sets the duration WaitWork will block before invoking
// the timeout callback. A non-positive duration means wait indefinitely.
func (s *Stage) SetPacketTimeout(d time.Duration) {
	s.ring.mu.Lock()
	defer s.ring.mu.Unlock()
	s.packetTimeout = d
}

// WaitResult is the outcome of a WaitWork call.
type WaitResult struct {
	First          int
	Count          int
	Bitrate        uint64
	Confidence     buffer.Confidence
	InputEnd       bool
	Aborted        bool
	TimedOut       bool
	RestartPending bool
}

// WaitWork blocks stage s until minPktCnt packets are available, input has
// ended, the stage itself or its successor has started aborting, or the
// stage's packet timeout elapses, per pipeline-design.md §4.2. onTimeout is invoked (outside the
// shared mutex) each time the timeout elapses; it must return true to
// keep waiting or false to give up, standing in for the plugin's
// handlePacketTimeout. When the window runs past the end of the buffer,
// only its contiguous head is returned if that head holds at least
// minPktCnt packets; once input has ended the whole window is returned.
func (s *Stage) WaitWork(minPktCnt int, onTimeout func() bool) WaitResult {
	r := s.ring
	cap := r.buf.Capacity()
	if minPktCnt > cap {
		minPktCnt = cap
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		if s.pendingRestart != nil {
			return WaitResult{RestartPending: true}
		}
		nxt := r.next(s)
		ready := s.count >= minPktCnt || s.inputEnd || s.aborting || (s.kind != KindOutput && nxt.aborting)
		if ready {
			break
		}
		if s.packetTimeout <= 0 {
			s.cond.Wait()
			continue
		}
		woke := waitTimeout(s.cond, s.packetTimeout)
		if woke {
			continue
		}
		// Timed out: give the plugin a say, outside the shared mutex.
		r.mu.Unlock()
		keepWaiting := true
		if onTimeout != nil {
			keepWaiting = onTimeout()
		}
		r.mu.Lock()
		if !keepWaiting {
			return WaitResult{TimedOut: true}
		}
	}

	first, count := s.first, s.count
	if count > 0 {
		if first+count > cap && !s.inputEnd {
			headLen := cap - first
			if minPktCnt > 0 && headLen >= minPktCnt {
				count = headLen
			}
		}
	}
	aborted := s.aborting || (s.kind != KindOutput && r.next(s).aborting)
	return WaitResult{
		First:      first,
		Count:      count,
		Bitrate:    s.bitrate,
		Confidence: s.confidence,
		InputEnd:   s.inputEnd,
		Aborted:    aborted,
	}
}

// PassPackets hands count processed packets from s's window to the next
// stage's window and propagates metadata and termination flags, per the
// eight steps of pipeline-design.md §4.2. It returns whether s should keep looping.
func (s *Stage) PassPackets(count int, bitrate uint64, conf buffer.Confidence, inputEnd bool, aborted bool) bool {
	r := s.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	if count > s.count {
		panic(fmt.Sprintf("ring: stage %q passed %d packets but only owns %d", s.name, count, s.count))
	}
	cap := r.buf.Capacity()

	// 1. advance s's own window.
	s.first = (s.first + count) % cap
	s.count -= count
	s.localPackets += uint64(count)
	r.globalPackets.Add(uint64(count))

	// 2-4. grow next(s)'s window and propagate metadata forward.
	nxt := r.next(s)
	nxt.count += count
	nxt.bitrate = bitrate
	nxt.confidence = conf
	nxt.inputEnd = nxt.inputEnd || inputEnd

	// 5. wake next(s) if there's something new for it to see.
	if count > 0 || inputEnd {
		nxt.cond.Signal()
	}

	// 6. a non-output stage inherits its successor's abort.
	if s.kind != KindOutput {
		aborted = aborted || nxt.aborting
	}

	// 7. propagate abort backward.
	if aborted {
		s.aborting = true
		prv := r.prev(s)
		prv.cond.Signal()
	}

	// 8.
	return !inputEnd && !aborted
}

// SignalPluginEvent invokes every registered event handler synchronously
// with a snapshot of this stage's current state, per pipeline-design.md §4.2 "Event
// emission".
func (s *Stage) SignalPluginEvent(code EventCode, plugin any, data any) {
	r := s.ring
	r.mu.Lock()
	ctx := EventContext{
		Code:          code,
		StageIndex:    s.index,
		StageName:     s.name,
		StageCount:    len(r.stages),
		Plugin:        plugin,
		Bitrate:       s.bitrate,
		LocalPackets:  s.localPackets,
		GlobalPackets: r.globalPackets.Load(),
		Data:          data,
	}
	handlers := make([]EventHandler, len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.Unlock()

	for _, h := range handlers {
		h(ctx)
	}
}

// RequestRestart installs rec as this stage's pending restart request,
// superseding any restart already pending, per pipeline-design.md §4.5 supervisor
// side steps 1-2. It does not wait for completion; callers use rec.Wait.
func (s *Stage) RequestRestart(rec *restart.Record) {
	r := s.ring
	r.mu.Lock()
	if s.pendingRestart != nil {
		s.pendingRestart.MarkCompleted(restart.ErrSuperseded)
	}
	s.pendingRestart = rec
	r.mu.Unlock()
	s.cond.Signal()
}

// ServiceRestart is called by the stage's own worker at the top of each
// iteration (pipeline-design.md §4.5 worker side). If a restart is pending it runs
// exec while holding the shared mutex for the duration — matching the
// spec's acknowledged coarse locking discipline — then marks the record
// completed and clears the pending slot. It reports whether a restart was
// serviced.
func (s *Stage) ServiceRestart(exec func(rec *restart.Record) error) bool {
	r := s.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := s.pendingRestart
	if rec == nil {
		return false
	}
	s.pendingRestart = nil
	err := exec(rec)
	rec.MarkCompleted(err)
	return true
}

// waitTimeout blocks on cond until signalled or d elapses, returning true
// if it was signalled first. cond.L must be held by the caller, matching
// the usual sync.Cond calling convention.
func waitTimeout(cond *sync.Cond, d time.Duration) bool {
	timedOut := false
	timer := time.AfterFunc(d, func() {
		cond.L.Lock()
		timedOut = true
		cond.L.Unlock()
		cond.Broadcast()
	})
	cond.Wait()
	timer.Stop()
	return !timedOut
}
