// Package ring implements the lock-protected ring of executor stages that
// share one packet buffer: window bookkeeping, the waitWork/passPackets
// condition-variable protocol, and forward/backward abort propagation.
// Nothing in this package knows about plugins; internal/pipeline wires
// stages to plugin instances and supplies the callbacks this package
// invokes. The timeout callback runs outside the shared mutex; the restart
// callback runs with the mutex held for the whole restart.
package ring

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/tsgopipe/tsgopipe/internal/buffer"
	"github.com/tsgopipe/tsgopipe/internal/uid"
)

// Kind identifies a stage's position in the pipeline.
type Kind int

const (
	KindInput Kind = iota
	KindProcessor
	KindOutput
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindProcessor:
		return "processor"
	case KindOutput:
		return "output"
	default:
		return "unknown"
	}
}

// EventCode identifies a plugin-raised event passed to signalPluginEvent.
type EventCode int

// EventContext is the synchronous payload delivered to a registered event
// handler.
type EventContext struct {
	Code          EventCode
	StageIndex    int
	StageName     string
	StageCount    int
	Plugin        any
	Bitrate       uint64
	LocalPackets  uint64
	GlobalPackets uint64
	Data          any
}

// EventHandler is invoked synchronously from the raising stage's worker
// goroutine. Handlers must not block significantly and must not call back
// into the ring's control surface.
type EventHandler func(EventContext)

// Ring owns the shared mutex, the packet buffer, and the chain of stages.
type Ring struct {
	mu            sync.Mutex
	buf           *buffer.PacketBuffer
	stages        []*Stage
	handlers      []EventHandler
	uids          *uid.Generator
	globalPackets atomic.Uint64
}

// New builds a ring of len(kinds) stages around buf. kinds[0] must be
// KindInput and kinds[len-1] must be KindOutput, with KindProcessor for
// everything between; the ring is otherwise kind-agnostic.
func New(buf *buffer.PacketBuffer, kinds []Kind, names []string) *Ring {
	if len(kinds) < 3 {
		panic("ring: a pipeline needs at least 3 stages (input, one stage, output)")
	}
	if kinds[0] != KindInput || kinds[len(kinds)-1] != KindOutput {
		panic("ring: first stage must be input and last stage must be output")
	}
	r := &Ring{buf: buf, uids: uid.NewGenerator()}
	r.stages = make([]*Stage, len(kinds))
	for i, k := range kinds {
		s := &Stage{
			ring:  r,
			kind:  k,
			index: i,
			name:  names[i],
			uidv:  r.uids.Next(),
		}
		s.cond = sync.NewCond(&r.mu)
		r.stages[i] = s
	}
	// Input owns the whole buffer initially; every other stage starts empty,
	// positioned right after its predecessor, per pipeline-design.md §4.2 initBuffer.
	r.stages[0].first = 0
	r.stages[0].count = buf.Capacity()
	for i := 1; i < len(r.stages); i++ {
		r.stages[i].first = 0
		r.stages[i].count = 0
	}
	return r
}

// Stages returns the ordered stage slice. Callers must not mutate it.
func (r *Ring) Stages() []*Stage {
	return r.stages
}

// Buffer returns the shared packet buffer.
func (r *Ring) Buffer() *buffer.PacketBuffer {
	return r.buf
}

// AddEventHandler registers a handler invoked by every stage's
// SignalPluginEvent call.
func (r *Ring) AddEventHandler(h EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

func (r *Ring) next(s *Stage) *Stage {
	return r.stages[(s.index+1)%len(r.stages)]
}

func (r *Ring) prev(s *Stage) *Stage {
	return r.stages[(s.index-1+len(r.stages))%len(r.stages)]
}

// SetAbort marks stage index i as aborting and wakes its predecessor, per
// pipeline-design.md §4.3 external setAbort().
func (r *Ring) SetAbort(index int) {
	r.mu.Lock()
	s := r.stages[index]
	if s.aborting {
		r.mu.Unlock()
		return
	}
	s.aborting = true
	prv := r.prev(s)
	r.mu.Unlock()
	prv.cond.Signal()
}

// CheckInvariants recomputes the ring invariants from pipeline-design.md §3 and
// panics if any are violated. Intended for use from tests, not from the
// hot path.
func (r *Ring) CheckInvariants() {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := 0
	cap := r.buf.Capacity()
	n := len(r.stages)
	for i, s := range r.stages {
		sum += s.count
		// PassPackets moves packets off the head of a stage's window onto the
		// tail of its successor's, so each window ends where its
		// predecessor's begins.
		prv := r.stages[(i-1+n)%n]
		if (s.first+s.count)%cap != prv.first {
			panic("ring: window contiguity invariant violated")
		}
	}
	if sum != cap {
		panic("ring: sum-of-counts invariant violated")
	}
}
