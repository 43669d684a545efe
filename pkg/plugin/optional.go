package plugin

import "github.com/tsgopipe/tsgopipe/internal/buffer"

// BitrateReporter is an optional capability a Processor may implement to
// override the bitrate/confidence it passes downstream (e.g. the bitrate
// monitor). Stages that don't implement it simply forward whatever
// bitrate they received from upstream unchanged.
type BitrateReporter interface {
	Bitrate() (rate uint64, confidence buffer.Confidence, ok bool)
}

// StageAware is an optional capability a plugin may implement to learn
// its own run/stage identity for metrics and diagnostics, set once by
// internal/pipeline right after construction, before Analyze.
type StageAware interface {
	SetStageContext(runID, stageName string)
}
