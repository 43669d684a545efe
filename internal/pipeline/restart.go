package pipeline

import (
	"fmt"

	"github.com/tsgopipe/tsgopipe/internal/restart"
)

// doRestart executes pipeline-design.md §4.5's worker-side steps 3-6 for one
// pending restart record. The caller (ring.Stage.ServiceRestart) already
// holds the shared ring mutex for the duration, matching the spec's
// acknowledged coarse locking discipline.
func (p *Pipeline) doRestart(sr *stageRuntime, rec *restart.Record) error {
	prevReport := sr.plug.RedirectReport(rec.Report)
	defer sr.plug.RedirectReport(prevReport)

	if err := sr.plug.Stop(); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	if err := sr.plug.ResetContext(); err != nil {
		return fmt.Errorf("resetContext: %w", err)
	}

	if rec.SameArgs {
		if err := sr.plug.Start(); err != nil {
			return fmt.Errorf("start: %w", err)
		}
		return nil
	}

	previous := sr.lastOptions
	if err := sr.plug.Analyze(rec.ArgsMap); err == nil {
		if startErr := sr.plug.Start(); startErr == nil {
			sr.lastOptions = rec.ArgsMap
			return nil
		} else {
			rec.Report.Warnf("restart: start failed with new configuration (%v); falling back to previous configuration", startErr)
		}
	} else {
		rec.Report.Warnf("restart: new configuration rejected (%v); falling back to previous configuration", err)
	}

	if err := sr.plug.Analyze(previous); err != nil {
		return fmt.Errorf("fallback to previous configuration also failed: %w", err)
	}
	if err := sr.plug.Start(); err != nil {
		return fmt.Errorf("start after fallback to previous configuration also failed: %w", err)
	}
	return fmt.Errorf("new configuration rejected, stage resumed with previous configuration")
}
