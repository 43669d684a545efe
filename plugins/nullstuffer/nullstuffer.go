// Package nullstuffer implements a processor that converts every packet
// already carrying the ring's well-known "dropped" label into a literal
// null packet (PID 0x1FFF), instead of leaving it logically dropped.
// Placed after a labeldrop (or any other label-setting) stage, it keeps
// the packet count constant for downstream stages that require one.
package nullstuffer

import (
	"github.com/tsgopipe/tsgopipe/internal/buffer"
	"github.com/tsgopipe/tsgopipe/pkg/plugin"
)

// Stuffer replaces already-dropped packets with null packets in place.
type Stuffer struct {
	report plugin.ReportSink
	count  uint64
}

// New constructs a Stuffer. It takes no options.
func New() *Stuffer { return &Stuffer{} }

func (s *Stuffer) Kind() plugin.Kind { return plugin.KindProcessor }

func (s *Stuffer) ResetContext() error {
	s.count = 0
	return nil
}

func (s *Stuffer) Analyze(options map[string]any) error { return nil }

func (s *Stuffer) Start() error { return nil }

func (s *Stuffer) Stop() error {
	if s.report != nil {
		s.report.Infof("nullstuffer: stuffed %d packets", s.count)
	}
	return nil
}

func (s *Stuffer) HandlePacketTimeout() bool { return true }
func (s *Stuffer) IsRealTime() bool          { return false }

func (s *Stuffer) RedirectReport(sink plugin.ReportSink) plugin.ReportSink {
	prev := s.report
	s.report = sink
	return prev
}

// ProcessPacket rewrites an already-dropped packet into a null packet;
// everything else passes through untouched.
func (s *Stuffer) ProcessPacket(pkt *buffer.Packet, meta *buffer.Metadata) plugin.Status {
	if !meta.HasLabel(buffer.LabelDropped) || pkt.IsNull() {
		return plugin.StatusOK
	}
	s.count++
	return plugin.StatusStuffNull
}

func init() {
	plugin.RegisterProcessor("nullstuffer", func() plugin.Processor { return New() })
}
