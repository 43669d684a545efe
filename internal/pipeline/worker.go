package pipeline

import (
	"github.com/tsgopipe/tsgopipe/internal/buffer"
	"github.com/tsgopipe/tsgopipe/internal/restart"
	"github.com/tsgopipe/tsgopipe/internal/ring"
	"github.com/tsgopipe/tsgopipe/pkg/plugin"
)

// windowSlices returns copies of the packet/metadata slices for the
// range [first, first+count) of buf. buf.Packet and buf.Metadata take
// indices modulo the capacity, so a window that runs past the end of the
// buffer is copied in ring order.
func windowSlices(buf *buffer.PacketBuffer, first, count int) ([]buffer.Packet, []buffer.Metadata) {
	pkts := make([]buffer.Packet, count)
	meta := make([]buffer.Metadata, count)
	for i := 0; i < count; i++ {
		pkts[i] = *buf.Packet(first + i)
		meta[i] = *buf.Metadata(first + i)
	}
	return pkts, meta
}

func writeBackSlices(buf *buffer.PacketBuffer, first int, pkts []buffer.Packet, meta []buffer.Metadata) {
	for i := range pkts {
		*buf.Packet(first+i) = pkts[i]
		*buf.Metadata(first+i) = meta[i]
	}
}

func bitrateOf(p plugin.Plugin) (uint64, buffer.Confidence, bool) {
	if br, ok := p.(plugin.BitrateReporter); ok {
		return br.Bitrate()
	}
	return 0, buffer.ConfidenceUnknown, false
}

// runStage is one stage's executor loop (pipeline-design.md §4.4 "conceptual
// executor loop"): service any pending restart, wait for work, invoke
// the plugin's per-kind operation, pass the result downstream. Returns
// when passPackets reports the stage should stop looping.
func (p *Pipeline) runStage(sr *stageRuntime) {
	for {
		sr.rstage.ServiceRestart(func(rec *restart.Record) error {
			return p.doRestart(sr, rec)
		})

		if !p.stepStage(sr) {
			return
		}
	}
}

func (p *Pipeline) stepStage(sr *stageRuntime) bool {
	rs := sr.rstage
	timeoutCB := func() bool { return sr.plug.HandlePacketTimeout() }

	wr := rs.WaitWork(1, timeoutCB)
	if wr.RestartPending {
		// Loop back to runStage's top, where ServiceRestart services the
		// pending request, before waiting on this stage's window again.
		return true
	}
	if wr.TimedOut {
		// The plugin gave up waiting; unwind the ring cleanly instead of
		// spinning forever on a dead upstream.
		return rs.PassPackets(0, wr.Bitrate, wr.Confidence, true, true)
	}

	switch sr.plug.Kind() {
	case plugin.KindInput:
		return p.stepInput(sr, wr)
	case plugin.KindProcessor:
		return p.stepProcessor(sr, wr)
	case plugin.KindOutput:
		return p.stepOutput(sr, wr)
	default:
		return false
	}
}

func (p *Pipeline) stepInput(sr *stageRuntime, wr ring.WaitResult) bool {
	in := sr.plug.(plugin.Input)
	pkts, meta := windowSlices(p.buf, wr.First, wr.Count)
	n, err := in.Receive(pkts, meta)
	if n > 0 {
		writeBackSlices(p.buf, wr.First, pkts[:n], meta[:n])
	}
	p.metrics.InputPackets.Add(uint64(n))
	inputEnd := n == 0
	aborted := err != nil
	rate, conf, ok := bitrateOf(sr.plug)
	if !ok {
		rate, conf = wr.Bitrate, wr.Confidence
	}
	p.metrics.observeStage(sr.rstage.Name(), "received", n, wr.Count, rate)
	return sr.rstage.PassPackets(n, rate, conf, inputEnd, aborted)
}

func (p *Pipeline) stepProcessor(sr *stageRuntime, wr ring.WaitResult) bool {
	proc := sr.plug.(plugin.Processor)
	count := wr.Count
	pkts, meta := windowSlices(p.buf, wr.First, count)

	endEarly := false
	aborted := false
	for i := 0; i < count; i++ {
		switch proc.ProcessPacket(&pkts[i], &meta[i]) {
		case plugin.StatusDrop:
			meta[i].SetLabel(buffer.LabelDropped)
			p.metrics.DroppedPackets.Add(1)
		case plugin.StatusStuffNull:
			pkts[i].SetNull()
			meta[i].SetLabel(buffer.LabelDropped)
			p.metrics.DroppedPackets.Add(1)
		case plugin.StatusEnd:
			endEarly = true
		case plugin.StatusAbort:
			aborted = true
		}
	}
	writeBackSlices(p.buf, wr.First, pkts, meta)

	rate, conf, ok := bitrateOf(sr.plug)
	if !ok {
		rate, conf = wr.Bitrate, wr.Confidence
	}
	p.metrics.observeStage(sr.rstage.Name(), "processed", count, wr.Count, rate)
	return sr.rstage.PassPackets(count, rate, conf, wr.InputEnd || endEarly, wr.Aborted || aborted)
}

func (p *Pipeline) stepOutput(sr *stageRuntime, wr ring.WaitResult) bool {
	out := sr.plug.(plugin.Output)
	pkts, meta := windowSlices(p.buf, wr.First, wr.Count)
	err := out.Send(pkts, meta, wr.Count)
	p.metrics.OutputPackets.Add(uint64(wr.Count))
	p.metrics.observeStage(sr.rstage.Name(), "sent", wr.Count, wr.Count, wr.Bitrate)
	return sr.rstage.PassPackets(wr.Count, wr.Bitrate, wr.Confidence, wr.InputEnd, wr.Aborted || err != nil)
}
