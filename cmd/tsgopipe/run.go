package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsgopipe/tsgopipe/internal/config"
	"github.com/tsgopipe/tsgopipe/internal/control"
	"github.com/tsgopipe/tsgopipe/internal/log"
	"github.com/tsgopipe/tsgopipe/internal/metrics"
	"github.com/tsgopipe/tsgopipe/internal/pipeline"
	"github.com/tsgopipe/tsgopipe/pkg/plugin"

	_ "github.com/tsgopipe/tsgopipe/plugins/bitratemonitor"
	_ "github.com/tsgopipe/tsgopipe/plugins/labeldrop"
	_ "github.com/tsgopipe/tsgopipe/plugins/nullstuffer"
	_ "github.com/tsgopipe/tsgopipe/plugins/pcapinput"
	_ "github.com/tsgopipe/tsgopipe/plugins/udpio"
)

var pipelineFile string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run a pipeline described by a YAML/JSON config file until end-of-input or abort",
	RunE:  runPipeline,
}

func init() {
	runCmd.Flags().StringVarP(&pipelineFile, "pipeline", "p", "", "pipeline config file path (required)")
	runCmd.MarkFlagRequired("pipeline")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	gcfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load global config: %w", err)
	}
	log.Init(&gcfg.Log)

	data, err := os.ReadFile(pipelineFile)
	if err != nil {
		return fmt.Errorf("read pipeline config %q: %w", pipelineFile, err)
	}
	spec, err := config.ParsePipelineConfigAuto(data, pipelineFile)
	if err != nil {
		return fmt.Errorf("parse pipeline config: %w", err)
	}

	p, err := buildPipeline(spec)
	if err != nil {
		return fmt.Errorf("build pipeline %q: %w", spec.ID, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsSrv *metrics.Server
	if gcfg.Metrics.Enabled {
		metricsSrv = metrics.NewServer(gcfg.Metrics.Listen, gcfg.Metrics.Path)
		if err := metricsSrv.Start(ctx); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	ctrlSrv := control.NewServer(gcfg.Control.Socket, p)
	go func() {
		if err := ctrlSrv.Serve(ctx); err != nil {
			log.L().Errorf("control server: %v", err)
		}
	}()

	if err := p.Start(); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.L().Infof("signal received, aborting pipeline %s", p.RunID())
		p.Abort()
	}()

	joinErr := p.Join()

	cancel()
	ctrlSrv.Close()
	if metricsSrv != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		metricsSrv.Stop(stopCtx)
		stopCancel()
	}

	return joinErr
}

// buildPipeline resolves each stage's named plugin from the registry and
// assembles a pipeline.Config per pipeline-design.md §3 (input first, output last).
func buildPipeline(spec *config.PipelineSpec) (*pipeline.Pipeline, error) {
	b := pipeline.NewBuilder().WithBufferCapacity(spec.BufferCapacity)

	inFactory, err := plugin.GetInputFactory(spec.Input.Name)
	if err != nil {
		return nil, fmt.Errorf("input stage %q: %w", spec.Input.Name, err)
	}
	timeout, err := spec.Input.Timeout()
	if err != nil {
		return nil, fmt.Errorf("input stage %q: packet_timeout: %w", spec.Input.Name, err)
	}
	b.AddStageWithTimeout(spec.Input.Name, inFactory(), spec.Input.Options, timeout)

	for _, ps := range spec.Processors {
		procFactory, err := plugin.GetProcessorFactory(ps.Name)
		if err != nil {
			return nil, fmt.Errorf("processor stage %q: %w", ps.Name, err)
		}
		timeout, err := ps.Timeout()
		if err != nil {
			return nil, fmt.Errorf("processor stage %q: packet_timeout: %w", ps.Name, err)
		}
		b.AddStageWithTimeout(ps.Name, procFactory(), ps.Options, timeout)
	}

	outFactory, err := plugin.GetOutputFactory(spec.Output.Name)
	if err != nil {
		return nil, fmt.Errorf("output stage %q: %w", spec.Output.Name, err)
	}
	timeout, err = spec.Output.Timeout()
	if err != nil {
		return nil, fmt.Errorf("output stage %q: packet_timeout: %w", spec.Output.Name, err)
	}
	b.AddStageWithTimeout(spec.Output.Name, outFactory(), spec.Output.Options, timeout)

	return b.Build()
}
