// Package metrics implements Prometheus metrics for the pipeline ring:
// per-stage packet counters, bitrate gauges, and restart/abort counters,
// relabeled from the teacher's capture-agent metric set to this module's
// run/stage/plugin dimensions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StagePacketsTotal counts packets a stage has handled, by direction
	// (received/processed/sent).
	StagePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsgopipe_stage_packets_total",
			Help: "Total number of packets handled by a pipeline stage",
		},
		[]string{"run", "stage", "direction"},
	)

	// StageBitrateBps reports the latest bitrate propagated out of a stage.
	StageBitrateBps = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tsgopipe_stage_bitrate_bps",
			Help: "Latest bitrate in bits per second propagated downstream from a stage",
		},
		[]string{"run", "stage"},
	)

	// StageWindowCount reports the instantaneous packet count owned by a
	// stage's window, sampled on each passPackets call.
	StageWindowCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tsgopipe_stage_window_count",
			Help: "Number of packet slots currently owned by a stage's window",
		},
		[]string{"run", "stage"},
	)

	// PipelineAbortsTotal counts pipeline-wide abort requests.
	PipelineAbortsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsgopipe_pipeline_aborts_total",
			Help: "Total number of times a pipeline run was aborted",
		},
		[]string{"run"},
	)

	// StageRestartsTotal counts restart attempts per stage, labeled by
	// outcome so failed-fallback restarts are visible separately.
	StageRestartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsgopipe_stage_restarts_total",
			Help: "Total number of restart attempts on a stage",
		},
		[]string{"run", "stage", "outcome"},
	)

	// BitrateMonitorAlarmsTotal counts band-crossing alarms raised by the
	// bitrate monitor plugin, labeled by the state transitioned into.
	BitrateMonitorAlarmsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsgopipe_bitrate_monitor_alarms_total",
			Help: "Total number of bitrate band-crossing alarms raised",
		},
		[]string{"run", "stage", "state"},
	)
)
