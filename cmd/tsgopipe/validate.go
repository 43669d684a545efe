package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsgopipe/tsgopipe/internal/config"
	"github.com/tsgopipe/tsgopipe/pkg/plugin"

	_ "github.com/tsgopipe/tsgopipe/plugins/bitratemonitor"
	_ "github.com/tsgopipe/tsgopipe/plugins/labeldrop"
	_ "github.com/tsgopipe/tsgopipe/plugins/nullstuffer"
	_ "github.com/tsgopipe/tsgopipe/plugins/pcapinput"
	_ "github.com/tsgopipe/tsgopipe/plugins/udpio"
)

var validatePipelineFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "validate a pipeline config file without running it",
	RunE:  validatePipeline,
}

func init() {
	validateCmd.Flags().StringVarP(&validatePipelineFile, "pipeline", "p", "", "pipeline config file path (required)")
	validateCmd.MarkFlagRequired("pipeline")
}

func validatePipeline(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(configFile); err != nil {
		return fmt.Errorf("global config: %w", err)
	}

	data, err := os.ReadFile(validatePipelineFile)
	if err != nil {
		return fmt.Errorf("read pipeline config %q: %w", validatePipelineFile, err)
	}
	spec, err := config.ParsePipelineConfigAuto(data, validatePipelineFile)
	if err != nil {
		return fmt.Errorf("parse pipeline config: %w", err)
	}

	if _, err := plugin.GetInputFactory(spec.Input.Name); err != nil {
		return fmt.Errorf("input stage %q: %w", spec.Input.Name, err)
	}
	for _, ps := range spec.Processors {
		if _, err := plugin.GetProcessorFactory(ps.Name); err != nil {
			return fmt.Errorf("processor stage %q: %w", ps.Name, err)
		}
		if _, err := ps.Timeout(); err != nil {
			return fmt.Errorf("processor stage %q: packet_timeout: %w", ps.Name, err)
		}
	}
	if _, err := plugin.GetOutputFactory(spec.Output.Name); err != nil {
		return fmt.Errorf("output stage %q: %w", spec.Output.Name, err)
	}

	fmt.Printf("pipeline %q: OK (%d processor stage(s))\n", spec.ID, len(spec.Processors))
	return nil
}
