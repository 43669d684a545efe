// Package plugin defines the contract a stage's plugin must satisfy
// (pipeline-design.md §4.4) and the name-keyed factory registry used to assemble a
// pipeline from configuration. It deliberately has no knowledge of the
// ring: a plugin only ever sees its slice of the buffer, metadata, the
// current bitrate, the end-of-input flag, and a report sink.
package plugin

import "github.com/tsgopipe/tsgopipe/internal/buffer"

// Kind identifies which of the three plugin contracts an implementation
// satisfies.
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

// Status is the outcome a Processor reports for one packet.
type Status int

const (
	// StatusOK passes the packet through unchanged (beyond label edits).
	StatusOK Status = iota
	// StatusDrop marks the packet dropped: the executor loop stamps it
	// with the well-known "dropped" label and still forwards the slot (the
	// drop is logical, via the label, not a removal of the slot from the
	// window - see pipeline-design.md §2).
	StatusDrop
	// StatusStuffNull replaces the packet with a null packet in place.
	StatusStuffNull
	// StatusEnd tells the stage to behave as if input had ended.
	StatusEnd
	// StatusAbort tells the stage to begin aborting.
	StatusAbort
)

// ReportSink receives plugin diagnostics. Any type satisfying this shape
// (notably internal/log.Logger and internal/restart.ReportSink) works as
// a ReportSink without an explicit conversion.
type ReportSink interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Plugin is the lifecycle every plugin, regardless of kind, implements.
type Plugin interface {
	// Kind reports which per-kind operation this plugin exposes.
	Kind() Kind

	// ResetContext reinitializes transient state before a (re)start.
	ResetContext() error

	// Analyze decodes and validates the plugin's options, given as a
	// generic map (already loaded from YAML by internal/config). This is
	// the Go-native stand-in for the source's
	// analyze(name, argv, partial) + getOptions() pair: there is no
	// command-line parser in scope, so options arrive pre-parsed.
	Analyze(options map[string]any) error

	// Start brings the plugin into a running state; on restart, this is
	// the resume point.
	Start() error

	// Stop releases any resources held by the plugin.
	Stop() error

	// HandlePacketTimeout is called when waitWork's packet_timeout
	// elapses. Returning true keeps the stage waiting; false gives up
	// and surfaces a timeout to the stage's loop.
	HandlePacketTimeout() bool

	// IsRealTime reports whether this plugin wants real-time scheduling
	// (informational only; this module does not set OS thread priority).
	IsRealTime() bool

	// RedirectReport swaps the plugin's diagnostic sink, returning the
	// previous one so it can be restored later.
	RedirectReport(sink ReportSink) ReportSink
}

// Input produces packets into the stage's window.
type Input interface {
	Plugin
	// Receive fills as many of pkts/meta as it has data for, up to
	// len(pkts), and returns the count produced. Zero means end-of-input.
	Receive(pkts []buffer.Packet, meta []buffer.Metadata) (int, error)
}

// Processor transforms packets in place within the stage's window.
type Processor interface {
	Plugin
	// ProcessPacket inspects or rewrites one packet/metadata pair.
	ProcessPacket(pkt *buffer.Packet, meta *buffer.Metadata) Status
}

// Output consumes packets from the stage's window.
type Output interface {
	Plugin
	// Send delivers count packets starting at pkts[0]/meta[0]. An error
	// is treated as a send failure (propagated as an abort by the
	// caller).
	Send(pkts []buffer.Packet, meta []buffer.Metadata, count int) error
}
