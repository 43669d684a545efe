package log

import "testing"

func TestLDefaultDoesNotPanic(t *testing.T) {
	l := L()
	if l == nil {
		t.Fatal("L() returned nil")
	}
	l.Infof("hello %s", "world")
}

func TestWithFieldReturnsIndependentLogger(t *testing.T) {
	base := L()
	child := base.WithField("stage", "input")
	if child == base {
		t.Fatal("WithField should return a distinct logger")
	}
	child.Infof("child message")
	base.Infof("base message")
}

func TestIsLevelEnabledHelpers(t *testing.T) {
	l := L()
	if !l.IsInfoEnabled() {
		t.Fatal("expected info level enabled by default")
	}
}

func TestDecodeFileAppender(t *testing.T) {
	opt := decodeFileAppender(map[string]interface{}{
		"filename":    "/tmp/tsgopipe.log",
		"max_size":    10,
		"max_backups": 3,
		"max_age":     7,
		"compress":    true,
	})
	if opt.Filename != "/tmp/tsgopipe.log" || opt.MaxSize != 10 || opt.MaxBackups != 3 || opt.MaxAge != 7 || !opt.Compress {
		t.Fatalf("unexpected decoded options: %+v", opt)
	}
}
