// Package log's formatter wraps x-cray/logrus-prefixed-formatter, picking
// colors on only when stdout is a real terminal (go-isatty), the same
// split the teacher's hand-rolled formatter tried to approximate.
package log

import (
	"os"

	"github.com/mattn/go-isatty"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

func newFormatter(cfg *LoggerConfig) *prefixed.TextFormatter {
	f := &prefixed.TextFormatter{
		TimestampFormat: cfg.Time,
		FullTimestamp:   true,
		DisableColors:   !isatty.IsTerminal(os.Stdout.Fd()),
	}
	if fc := cfg.Formatter; fc != nil {
		f.FullTimestamp = fc.FullTimestamp
		f.DisableSorting = fc.DisableSorting
		if fc.EnableColors {
			f.ForceColors = true
			f.DisableColors = false
		}
	}
	if f.TimestampFormat == "" {
		f.TimestampFormat = "2006-01-02T15:04:05.000Z07:00"
	}
	return f
}
