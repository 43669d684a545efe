// Package config also parses a pipeline's dynamic stage-chain
// configuration (as opposed to GlobalConfig's static node/control/log
// settings).
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PipelineSpec describes one ring of stages to build and run, the
// configuration-file equivalent of pipeline.Config.
type PipelineSpec struct {
	ID             string      `json:"id" mapstructure:"id"`
	BufferCapacity int         `json:"buffer_capacity" mapstructure:"buffer_capacity"`
	Input          StageSpec   `json:"input" mapstructure:"input"`
	Processors     []StageSpec `json:"processors" mapstructure:"processors"`
	Output         StageSpec   `json:"output" mapstructure:"output"`
}

// StageSpec configures one ring position: which named plugin to load
// (resolved via pkg/plugin's registries) and its options.
type StageSpec struct {
	Name          string         `json:"name" mapstructure:"name"`
	Options       map[string]any `json:"options" mapstructure:"options"`
	PacketTimeout string         `json:"packet_timeout" mapstructure:"packet_timeout"`
}

// Timeout parses PacketTimeout, returning 0 if unset.
func (s *StageSpec) Timeout() (time.Duration, error) {
	if s.PacketTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(s.PacketTimeout)
}

// Validate validates the pipeline spec's structural requirements.
func (ps *PipelineSpec) Validate() error {
	if ps.ID == "" {
		return fmt.Errorf("pipeline id is required")
	}
	if ps.Input.Name == "" {
		return fmt.Errorf("input plugin name is required")
	}
	if ps.Output.Name == "" {
		return fmt.Errorf("output plugin name is required")
	}
	if ps.BufferCapacity <= 0 {
		ps.BufferCapacity = 1024
	}
	for i, proc := range ps.Processors {
		if proc.Name == "" {
			return fmt.Errorf("processors[%d]: name is required", i)
		}
	}
	return nil
}

// ParsePipelineConfig parses a pipeline spec from JSON.
func ParsePipelineConfig(data []byte) (*PipelineSpec, error) {
	var ps PipelineSpec
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline config: %w", err)
	}
	if err := ps.Validate(); err != nil {
		return nil, err
	}
	return &ps, nil
}

// parseYAMLPipelineConfig decodes a YAML pipeline spec through viper,
// the same decoding path GlobalConfig uses, rather than a direct YAML
// library import.
func parseYAMLPipelineConfig(data []byte) (*PipelineSpec, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	var ps PipelineSpec
	if err := v.Unmarshal(&ps); err != nil {
		return nil, err
	}
	return &ps, nil
}

// ParsePipelineConfigAuto detects format (JSON/YAML) based on file
// extension and parses the pipeline spec accordingly.
func ParsePipelineConfigAuto(data []byte, filename string) (*PipelineSpec, error) {
	var ps *PipelineSpec
	var err error

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".yaml", ".yml":
		if ps, err = parseYAMLPipelineConfig(data); err != nil {
			return nil, fmt.Errorf("failed to parse YAML pipeline config: %w", err)
		}
	case ".json", "":
		return ParsePipelineConfig(data)
	default:
		ps, err = ParsePipelineConfig(data)
		if err != nil {
			jsonErr := err
			if ps, err = parseYAMLPipelineConfig(data); err != nil {
				return nil, fmt.Errorf("failed to parse pipeline config (tried JSON and YAML): JSON: %v; YAML: %v", jsonErr, err)
			}
		} else {
			return ps, nil
		}
	}

	if err := ps.Validate(); err != nil {
		return nil, err
	}
	return ps, nil
}
