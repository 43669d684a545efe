// Package pipeline implements pipeline metrics: in-process atomic
// counters for Stats() plus a thin forwarding layer onto the process-wide
// Prometheus vectors in internal/metrics, labeled by this run's ID.
package pipeline

import (
	"sync/atomic"

	"github.com/tsgopipe/tsgopipe/internal/metrics"
)

// Metrics contains per-pipeline counters, read by Stats() for
// programmatic inspection and mirrored into internal/metrics for
// Prometheus export.
type Metrics struct {
	RunID string

	InputPackets   atomic.Uint64
	OutputPackets  atomic.Uint64
	DroppedPackets atomic.Uint64
	AbortCount     atomic.Uint64
	RestartCount   atomic.Uint64
	RestartErrors  atomic.Uint64
}

// NewMetrics creates a new metrics instance for a pipeline run.
func NewMetrics(runID string) *Metrics {
	return &Metrics{RunID: runID}
}

// observeStage mirrors one stage's packet/bitrate counters into the
// process-wide Prometheus vectors.
func (m *Metrics) observeStage(stage string, direction string, n int, windowCount int, bitrate uint64) {
	if n > 0 {
		metrics.StagePacketsTotal.WithLabelValues(m.RunID, stage, direction).Add(float64(n))
	}
	metrics.StageWindowCount.WithLabelValues(m.RunID, stage).Set(float64(windowCount))
	metrics.StageBitrateBps.WithLabelValues(m.RunID, stage).Set(float64(bitrate))
}

func (m *Metrics) observeAbort() {
	metrics.PipelineAbortsTotal.WithLabelValues(m.RunID).Inc()
}

func (m *Metrics) observeRestart(stage string, outcome string) {
	metrics.StageRestartsTotal.WithLabelValues(m.RunID, stage, outcome).Inc()
}

// Reset resets all counters to zero.
func (m *Metrics) Reset() {
	m.InputPackets.Store(0)
	m.OutputPackets.Store(0)
	m.DroppedPackets.Store(0)
	m.AbortCount.Store(0)
	m.RestartCount.Store(0)
	m.RestartErrors.Store(0)
}
