// Package pipeline also offers a fluent Builder as an alternative to
// constructing a Config literal directly.
package pipeline

import (
	"time"

	"github.com/tsgopipe/tsgopipe/internal/log"
	"github.com/tsgopipe/tsgopipe/internal/ring"
	"github.com/tsgopipe/tsgopipe/pkg/plugin"
)

// Builder provides a fluent interface for building pipelines.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new pipeline builder with a default buffer
// capacity.
func NewBuilder() *Builder {
	return &Builder{cfg: Config{BufferCapacity: 1024}}
}

// WithBufferCapacity sets the shared packet buffer's slot count.
func (b *Builder) WithBufferCapacity(capacity int) *Builder {
	b.cfg.BufferCapacity = capacity
	return b
}

// WithLogger sets the logger stages report through by default.
func (b *Builder) WithLogger(l log.Logger) *Builder {
	b.cfg.Logger = l
	return b
}

// WithEventHandlers registers event handlers invoked by every stage.
func (b *Builder) WithEventHandlers(handlers ...ring.EventHandler) *Builder {
	b.cfg.EventHandlers = append(b.cfg.EventHandlers, handlers...)
	return b
}

// AddStage appends one stage to the chain, in order: the first call must
// add an input plugin and the last must add an output plugin.
func (b *Builder) AddStage(name string, p plugin.Plugin, options map[string]any) *Builder {
	b.cfg.Stages = append(b.cfg.Stages, StageConfig{Name: name, Plugin: p, Options: options})
	return b
}

// AddStageWithTimeout is AddStage plus a per-stage packet_timeout.
func (b *Builder) AddStageWithTimeout(name string, p plugin.Plugin, options map[string]any, timeout time.Duration) *Builder {
	b.cfg.Stages = append(b.cfg.Stages, StageConfig{Name: name, Plugin: p, Options: options, PacketTimeout: timeout})
	return b
}

// Build assembles the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	return New(b.cfg)
}
