// Package labeldrop implements the simplest possible consumer of the
// metadata label side channel: a processor that drops, or optionally
// null-stuffs, every packet carrying a configured label.
package labeldrop

import (
	"fmt"

	"github.com/tsgopipe/tsgopipe/internal/buffer"
	"github.com/tsgopipe/tsgopipe/pkg/plugin"
)

// Config is the plugin's decoded option set.
type Config struct {
	// Label is the packet label that selects packets to drop.
	Label int `mapstructure:"label"`
	// Stuff, if true, also replaces matching packets with null packets.
	// Either way matching packets are labelled dropped and still passed
	// on, so the stage's packet count does not change.
	Stuff bool `mapstructure:"stuff"`
}

// Dropper drops or stuffs packets carrying a configured label.
type Dropper struct {
	cfg    Config
	report plugin.ReportSink
	count  uint64
}

// New constructs an unconfigured dropper.
func New() *Dropper { return &Dropper{} }

func (d *Dropper) Kind() plugin.Kind { return plugin.KindProcessor }

func (d *Dropper) ResetContext() error {
	d.count = 0
	return nil
}

func (d *Dropper) Analyze(options map[string]any) error {
	cfg := Config{}
	if err := plugin.Decode(options, &cfg); err != nil {
		return fmt.Errorf("labeldrop: %w", err)
	}
	if cfg.Label < 0 || cfg.Label > buffer.MaxLabel {
		return fmt.Errorf("labeldrop: label %d out of range [0,%d]", cfg.Label, buffer.MaxLabel)
	}
	d.cfg = cfg
	return nil
}

func (d *Dropper) Start() error { return nil }

func (d *Dropper) Stop() error {
	if d.report != nil {
		d.report.Infof("labeldrop: dropped %d packets carrying label %d", d.count, d.cfg.Label)
	}
	return nil
}

func (d *Dropper) HandlePacketTimeout() bool { return true }
func (d *Dropper) IsRealTime() bool          { return false }

func (d *Dropper) RedirectReport(sink plugin.ReportSink) plugin.ReportSink {
	prev := d.report
	d.report = sink
	return prev
}

// ProcessPacket drops or null-stuffs packets matching the configured
// label, leaving everything else untouched.
func (d *Dropper) ProcessPacket(pkt *buffer.Packet, meta *buffer.Metadata) plugin.Status {
	if !meta.HasLabel(d.cfg.Label) {
		return plugin.StatusOK
	}
	d.count++
	if d.cfg.Stuff {
		return plugin.StatusStuffNull
	}
	return plugin.StatusDrop
}

func init() {
	plugin.RegisterProcessor("labeldrop", func() plugin.Processor { return New() })
}
