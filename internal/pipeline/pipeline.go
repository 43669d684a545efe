// Package pipeline assembles a ring of executor stages around plugin
// instances and drives each stage's worker loop per pipeline-design.md §4.4: wait
// for work, service any pending restart, invoke the plugin, pass the
// result downstream.
package pipeline

import (
	"fmt"
	"time"

	"github.com/sourcegraph/conc"
	uuid "github.com/satori/go.uuid"
	"go.uber.org/multierr"

	"github.com/tsgopipe/tsgopipe/internal/buffer"
	"github.com/tsgopipe/tsgopipe/internal/log"
	"github.com/tsgopipe/tsgopipe/internal/restart"
	"github.com/tsgopipe/tsgopipe/internal/ring"
	"github.com/tsgopipe/tsgopipe/pkg/plugin"
)

// StageConfig describes one ring position: which plugin runs there and
// its initial options.
type StageConfig struct {
	Name          string
	Plugin        plugin.Plugin
	Options       map[string]any
	PacketTimeout time.Duration
}

// Config is the full pipeline assembly description: buffer capacity, the
// ordered stage chain (input first, output last), and cross-cutting
// concerns (event handlers, logging).
type Config struct {
	BufferCapacity int
	Stages         []StageConfig
	EventHandlers  []ring.EventHandler
	Logger         log.Logger
}

type stageRuntime struct {
	rstage      *ring.Stage
	plug        plugin.Plugin
	report      plugin.ReportSink
	lastOptions map[string]any
}

// Pipeline owns the shared buffer, the ring, and the per-stage worker
// goroutines.
type Pipeline struct {
	runID   string
	cfg     Config
	buf     *buffer.PacketBuffer
	r       *ring.Ring
	stages  []*stageRuntime
	metrics *Metrics
	log     log.Logger
	wg      conc.WaitGroup
}

// New constructs a pipeline from cfg without starting it. It runs each
// plugin's Analyze (and the overall assembly) synchronously, matching
// pipeline-design.md §3 Lifecycles: "plugins initialized synchronously before
// workers start."
func New(cfg Config) (*Pipeline, error) {
	if len(cfg.Stages) < 3 {
		return nil, fmt.Errorf("pipeline: need at least 3 stages, got %d", len(cfg.Stages))
	}
	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = 1024
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.L()
	}

	buf := buffer.New(cfg.BufferCapacity)
	kinds := make([]ring.Kind, len(cfg.Stages))
	names := make([]string, len(cfg.Stages))
	for i, sc := range cfg.Stages {
		names[i] = sc.Name
		switch sc.Plugin.Kind() {
		case plugin.KindInput:
			kinds[i] = ring.KindInput
		case plugin.KindProcessor:
			kinds[i] = ring.KindProcessor
		case plugin.KindOutput:
			kinds[i] = ring.KindOutput
		default:
			return nil, fmt.Errorf("pipeline: stage %q has unknown plugin kind", sc.Name)
		}
	}
	if kinds[0] != ring.KindInput {
		return nil, fmt.Errorf("pipeline: first stage must be an input plugin")
	}
	if kinds[len(kinds)-1] != ring.KindOutput {
		return nil, fmt.Errorf("pipeline: last stage must be an output plugin")
	}

	r := ring.New(buf, kinds, names)
	for _, h := range cfg.EventHandlers {
		r.AddEventHandler(h)
	}

	runID := uuid.NewV4().String()
	p := &Pipeline{
		runID:   runID,
		cfg:     cfg,
		buf:     buf,
		r:       r,
		metrics: NewMetrics(runID),
		log:     logger.WithField("run_id", runID),
	}

	for i, sc := range cfg.Stages {
		rs := r.Stages()[i]
		if sc.PacketTimeout > 0 {
			rs.SetPacketTimeout(sc.PacketTimeout)
		}
		if aware, ok := sc.Plugin.(plugin.StageAware); ok {
			aware.SetStageContext(runID, sc.Name)
		}
		if err := sc.Plugin.ResetContext(); err != nil {
			return nil, fmt.Errorf("pipeline: stage %q resetContext: %w", sc.Name, err)
		}
		if err := sc.Plugin.Analyze(sc.Options); err != nil {
			return nil, fmt.Errorf("pipeline: stage %q analyze: %w", sc.Name, err)
		}
		p.stages = append(p.stages, &stageRuntime{
			rstage:      rs,
			plug:        sc.Plugin,
			report:      p.log.WithField("stage", sc.Name),
			lastOptions: sc.Options,
		})
	}
	return p, nil
}

// RunID returns this pipeline instance's correlation id.
func (p *Pipeline) RunID() string { return p.runID }

// Stats returns a snapshot of the pipeline's counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		InputPackets:   p.metrics.InputPackets.Load(),
		OutputPackets:  p.metrics.OutputPackets.Load(),
		DroppedPackets: p.metrics.DroppedPackets.Load(),
		AbortCount:     p.metrics.AbortCount.Load(),
		RestartCount:   p.metrics.RestartCount.Load(),
		RestartErrors:  p.metrics.RestartErrors.Load(),
	}
}

// Stats is a point-in-time snapshot of Metrics, safe to copy.
type Stats struct {
	InputPackets   uint64
	OutputPackets  uint64
	DroppedPackets uint64
	AbortCount     uint64
	RestartCount   uint64
	RestartErrors  uint64
}

// Start calls every plugin's Start and launches one worker goroutine per
// stage, supervised so a panicking plugin surfaces at Join instead of
// silently wedging the ring.
func (p *Pipeline) Start() error {
	for _, sr := range p.stages {
		if err := sr.plug.Start(); err != nil {
			return fmt.Errorf("pipeline: stage start failed: %w", err)
		}
	}
	p.log.Infof("pipeline starting: %d stages, buffer capacity %d", len(p.stages), p.buf.Capacity())
	for _, sr := range p.stages {
		sr := sr
		p.wg.Go(func() {
			defer func() {
				if v := recover(); v != nil {
					// Unblock the other workers so Join can return and re-raise.
					for _, other := range p.stages {
						p.r.SetAbort(other.rstage.Index())
					}
					panic(v)
				}
			}()
			p.runStage(sr)
		})
	}
	return nil
}

// Abort sets every stage aborting, unwinding the ring from every point at
// once (pipeline-design.md §6 abort_pipeline).
func (p *Pipeline) Abort() {
	p.metrics.AbortCount.Add(1)
	p.metrics.observeAbort()
	for _, sr := range p.stages {
		p.r.SetAbort(sr.rstage.Index())
	}
}

// Join waits for every stage's worker to finish, then stops every plugin
// in reverse order and aggregates their errors.
func (p *Pipeline) Join() error {
	p.wg.Wait()
	var err error
	for i := len(p.stages) - 1; i >= 0; i-- {
		if stopErr := p.stages[i].plug.Stop(); stopErr != nil {
			err = multierr.Append(err, fmt.Errorf("stage %q stop: %w", p.stages[i].rstage.Name(), stopErr))
		}
	}
	p.log.Infof("pipeline joined: in=%d out=%d dropped=%d",
		p.metrics.InputPackets.Load(), p.metrics.OutputPackets.Load(), p.metrics.DroppedPackets.Load())
	return err
}

// RestartStage requests an in-place reconfiguration of stage index i
// without stopping the pipeline, per pipeline-design.md §4.5, and blocks until the
// worker has serviced it.
func (p *Pipeline) RestartStage(index int, args map[string]any, sameArgs bool, sink plugin.ReportSink) error {
	if index < 0 || index >= len(p.stages) {
		return fmt.Errorf("pipeline: stage index %d out of range", index)
	}
	rec := restart.NewRecord(args, sameArgs, &restartSinkAdapter{sink: sink})
	p.stages[index].rstage.RequestRestart(rec)
	err := rec.Wait()
	p.metrics.RestartCount.Add(1)
	outcome := "ok"
	if err != nil {
		p.metrics.RestartErrors.Add(1)
		outcome = "error"
	}
	p.metrics.observeRestart(p.stages[index].rstage.Name(), outcome)
	return err
}

type restartSinkAdapter struct {
	sink plugin.ReportSink
}

func (a *restartSinkAdapter) Infof(format string, args ...any) {
	if a.sink != nil {
		a.sink.Infof(format, args...)
	}
}
func (a *restartSinkAdapter) Warnf(format string, args ...any) {
	if a.sink != nil {
		a.sink.Warnf(format, args...)
	}
}
func (a *restartSinkAdapter) Errorf(format string, args ...any) {
	if a.sink != nil {
		a.sink.Errorf(format, args...)
	}
}
