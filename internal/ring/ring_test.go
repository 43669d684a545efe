package ring

import (
	"sync"
	"testing"
	"time"

	"github.com/tsgopipe/tsgopipe/internal/buffer"
	"github.com/tsgopipe/tsgopipe/internal/restart"
)

func newTestRing(capacity int, n int) *Ring {
	buf := buffer.New(capacity)
	kinds := make([]Kind, n)
	names := make([]string, n)
	kinds[0] = KindInput
	names[0] = "in"
	for i := 1; i < n-1; i++ {
		kinds[i] = KindProcessor
		names[i] = "proc"
	}
	kinds[n-1] = KindOutput
	names[n-1] = "out"
	return New(buf, kinds, names)
}

func TestNewRingInitialWindows(t *testing.T) {
	r := newTestRing(8, 3)
	r.CheckInvariants()
	if r.Stages()[0].count != 8 {
		t.Fatalf("input stage should own the whole buffer, got count=%d", r.Stages()[0].count)
	}
	for _, s := range r.Stages()[1:] {
		if s.count != 0 {
			t.Fatalf("stage %q should start empty, got count=%d", s.Name(), s.count)
		}
	}
}

func TestNewRingPanicsOnTooFewStages(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for < 3 stages")
		}
	}()
	newTestRing(8, 2)
}

func TestNewRingPanicsOnBadEndpoints(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when first stage isn't input")
		}
	}()
	buf := buffer.New(8)
	New(buf, []Kind{KindProcessor, KindProcessor, KindOutput}, []string{"a", "b", "c"})
}

func TestPassPacketsAdvancesWindowsAndPreservesInvariants(t *testing.T) {
	r := newTestRing(8, 3)
	in, mid, out := r.Stages()[0], r.Stages()[1], r.Stages()[2]

	if !in.PassPackets(3, 1000, buffer.ConfidenceHigh, false, false) {
		t.Fatal("expected PassPackets to report keep-looping")
	}
	r.CheckInvariants()
	if in.first != 3 || in.count != 5 {
		t.Errorf("input window = (%d,%d), want (3,5)", in.first, in.count)
	}
	if mid.first != 0 || mid.count != 3 {
		t.Errorf("mid window = (%d,%d), want (0,3)", mid.first, mid.count)
	}

	if !mid.PassPackets(3, 1000, buffer.ConfidenceHigh, false, false) {
		t.Fatal("expected PassPackets to report keep-looping")
	}
	r.CheckInvariants()
	if out.first != 0 || out.count != 3 {
		t.Errorf("output window = (%d,%d), want (0,3)", out.first, out.count)
	}
}

func TestPassPacketsWraparound(t *testing.T) {
	r := newTestRing(4, 3)
	in, mid := r.Stages()[0], r.Stages()[1]

	in.PassPackets(3, 0, buffer.ConfidenceUnknown, false, false)
	mid.PassPackets(3, 0, buffer.ConfidenceUnknown, false, false)
	// in: first=3 count=1 ; mid: first=3 count=0 ; out: first=0 count=3
	if in.first != 3 || in.count != 1 {
		t.Fatalf("input window = (%d,%d), want (3,1)", in.first, in.count)
	}
	in.PassPackets(1, 0, buffer.ConfidenceUnknown, false, false)
	r.CheckInvariants()
	if in.first != 0 {
		t.Errorf("expected input window to wrap to 0, got %d", in.first)
	}
}

func TestPassPacketsPanicsOnOvercount(t *testing.T) {
	r := newTestRing(8, 3)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when passing more packets than owned")
		}
	}()
	r.Stages()[1].PassPackets(1, 0, buffer.ConfidenceUnknown, false, false)
}

func TestWaitWorkReturnsImmediatelyWhenSatisfied(t *testing.T) {
	r := newTestRing(8, 3)
	wr := r.Stages()[0].WaitWork(1, nil)
	if wr.Count != 8 || wr.First != 0 {
		t.Fatalf("unexpected WaitResult: %+v", wr)
	}
}

func TestWaitWorkBlocksUntilSignalled(t *testing.T) {
	r := newTestRing(8, 3)
	mid := r.Stages()[1]

	done := make(chan WaitResult, 1)
	go func() {
		done <- mid.WaitWork(2, nil)
	}()

	// Give the goroutine a chance to block before feeding it work.
	time.Sleep(20 * time.Millisecond)
	r.Stages()[0].PassPackets(2, 500, buffer.ConfidenceHigh, false, false)

	select {
	case wr := <-done:
		if wr.Count != 2 {
			t.Errorf("expected count=2, got %d", wr.Count)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitWork did not unblock")
	}
}

func TestWaitWorkContiguousHeadOnly(t *testing.T) {
	r := newTestRing(4, 3)
	in, mid := r.Stages()[0], r.Stages()[1]
	in.PassPackets(3, 0, buffer.ConfidenceUnknown, false, false) // mid: first=0 count=3
	mid.PassPackets(3, 0, buffer.ConfidenceUnknown, false, false)
	in.PassPackets(1, 0, buffer.ConfidenceUnknown, false, false) // mid: first=3 count=1
	// out now holds first=0 count=3. Recycle those slots to input and pass
	// them on to mid, so mid's window becomes first=3 count=4 and runs past
	// the end of the 4-slot buffer.
	out := r.Stages()[2]
	if out.count != 3 {
		t.Fatalf("expected output to hold 3 packets, got %d", out.count)
	}
	out.PassPackets(3, 0, buffer.ConfidenceUnknown, false, false)
	in.PassPackets(3, 0, buffer.ConfidenceUnknown, false, false)
	wr := mid.WaitWork(1, nil)
	if wr.Count != 1 || wr.First != 3 {
		t.Fatalf("expected only the contiguous head up to the wrap boundary, got %+v", wr)
	}
}

func TestInputEndPropagatesForward(t *testing.T) {
	r := newTestRing(8, 3)
	in, mid, out := r.Stages()[0], r.Stages()[1], r.Stages()[2]

	keepGoing := in.PassPackets(0, 0, buffer.ConfidenceUnknown, true, false)
	if keepGoing {
		t.Fatal("expected input stage to stop looping once it reports inputEnd")
	}
	if !mid.inputEnd {
		t.Fatal("expected inputEnd to propagate to mid")
	}
	// mid forwards its own end-of-input, as stepProcessor does with wr.InputEnd.
	mid.PassPackets(0, 0, buffer.ConfidenceUnknown, true, false)
	if !out.inputEnd {
		t.Fatal("expected inputEnd to propagate through mid to output once mid passes")
	}
}

func TestSetAbortWakesPredecessorAndPropagatesBackward(t *testing.T) {
	r := newTestRing(8, 3)
	in, mid, out := r.Stages()[0], r.Stages()[1], r.Stages()[2]
	_ = out

	r.SetAbort(2) // output aborts
	if !r.Stages()[2].aborting {
		t.Fatal("expected output stage marked aborting")
	}

	// mid.WaitWork should now observe the successor aborting and return
	// even with zero packets available.
	wr := mid.WaitWork(100, nil)
	if !wr.Aborted {
		t.Fatal("expected mid's WaitWork to report aborted once output aborts")
	}

	// Passing packets downstream from mid should now also mark mid
	// aborting and wake `in`.
	keepGoing := mid.PassPackets(0, 0, buffer.ConfidenceUnknown, false, false)
	if keepGoing {
		t.Fatal("expected mid to stop looping once aborted")
	}
	if !mid.aborting {
		t.Fatal("expected mid to be marked aborting")
	}
	_ = in
}

func TestRestartRequestServiceHandshake(t *testing.T) {
	r := newTestRing(8, 3)
	s := r.Stages()[1]

	var executed bool
	var mu sync.Mutex
	go func() {
		for {
			serviced := s.ServiceRestart(func(rec *restart.Record) error {
				mu.Lock()
				executed = true
				mu.Unlock()
				return nil
			})
			if serviced {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	rec := restart.NewRecord(map[string]any{"k": "v"}, false, nil)
	s.RequestRestart(rec)
	if err := rec.Wait(); err != nil {
		t.Fatalf("unexpected restart error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if !executed {
		t.Fatal("expected restart to be serviced")
	}
}

// TestWaitWorkReturnsOnPendingRestartEvenWhenStarved reproduces the
// backpressure condition of scenario 2 (an idle stage with an empty
// window and no timeout configured) and checks that a restart request
// still wakes it, instead of leaving it parked in Wait() forever.
func TestWaitWorkReturnsOnPendingRestartEvenWhenStarved(t *testing.T) {
	r := newTestRing(8, 3)
	mid := r.Stages()[1]

	done := make(chan WaitResult, 1)
	go func() {
		// mid.count is 0 and never becomes non-zero in this test, and no
		// packet_timeout is set: without the pendingRestart check this
		// goroutine blocks forever.
		done <- mid.WaitWork(1, nil)
	}()

	time.Sleep(20 * time.Millisecond)
	rec := restart.NewRecord(nil, true, nil)
	mid.RequestRestart(rec)

	select {
	case wr := <-done:
		if !wr.RestartPending {
			t.Fatalf("expected WaitWork to return with RestartPending=true, got %+v", wr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitWork did not return for a stage starved of packets once a restart was requested")
	}
}

func TestRequestRestartSupersedesPending(t *testing.T) {
	r := newTestRing(8, 3)
	s := r.Stages()[1]

	first := restart.NewRecord(nil, true, nil)
	s.RequestRestart(first)
	second := restart.NewRecord(nil, true, nil)
	s.RequestRestart(second)

	if err := first.Wait(); err != restart.ErrSuperseded {
		t.Fatalf("expected first restart to be superseded, got %v", err)
	}

	s.ServiceRestart(func(rec *restart.Record) error { return nil })
	if err := second.Wait(); err != nil {
		t.Fatalf("expected second restart to succeed, got %v", err)
	}
}
