package log

import "time"

// LoggerConfig is the full logging configuration, decoded by
// internal/config via mapstructure from the pipeline's YAML config.
type LoggerConfig struct {
	Level     string           `mapstructure:"level"`
	Pattern   string           `mapstructure:"pattern"`
	Time      string           `mapstructure:"time"`
	Appenders []AppenderConfig `mapstructure:"appenders"`
	Formatter *FormatterConfig `mapstructure:"formatter"`

	BufferSize    int           `mapstructure:"buffer_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type AppenderConfig struct {
	Type    string                 `mapstructure:"type"`
	Level   string                 `mapstructure:"level"`
	Options map[string]interface{} `mapstructure:"options"`
}

type FormatterConfig struct {
	EnableColors   bool `mapstructure:"enable_colors"`
	FullTimestamp  bool `mapstructure:"full_timestamp"`
	DisableSorting bool `mapstructure:"disable_sorting"`
}
