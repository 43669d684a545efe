package buffer

import "time"

// MetaFlags is a small set of boolean flags carried alongside each packet.
type MetaFlags uint8

const (
	// FlagValid marks a slot as currently holding a valid, live packet.
	FlagValid MetaFlags = 1 << iota
)

// Confidence tags the quality of a propagated bitrate measurement.
type Confidence int

const (
	// ConfidenceUnknown means no bitrate estimate is available yet.
	ConfidenceUnknown Confidence = iota
	// ConfidenceLow means the estimate is based on too little data to trust.
	ConfidenceLow
	// ConfidenceHigh means the estimate is derived from a full measurement window.
	ConfidenceHigh
)

// Metadata is the per-slot record that travels alongside a Packet.
type Metadata struct {
	Labels LabelSet
	// Timestamp is when this slot was last written by a stage.
	Timestamp time.Time
	// InputTimestamp is the wall-clock time the packet entered the pipeline
	// at Input; stages downstream of Input do not overwrite it.
	InputTimestamp time.Time
	Flags          MetaFlags
}

// HasLabel reports whether label n is set on this metadata record.
func (m *Metadata) HasLabel(n int) bool {
	return m.Labels.Test(n)
}

// SetLabel sets label n on this metadata record.
func (m *Metadata) SetLabel(n int) {
	m.Labels = m.Labels.Set(n)
}

// ClearLabel clears label n on this metadata record.
func (m *Metadata) ClearLabel(n int) {
	m.Labels = m.Labels.Clear(n)
}

// Valid reports whether this slot currently holds a valid packet.
func (m *Metadata) Valid() bool {
	return m.Flags&FlagValid != 0
}

// Reset clears a metadata record back to its zero value, except it keeps
// no label or timestamp state from a previous occupant of the slot.
func (m *Metadata) Reset() {
	*m = Metadata{}
}
