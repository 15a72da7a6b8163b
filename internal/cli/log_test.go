package cli

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, log.InfoLevel).Info("Server started", "pid", 42)

	line := buf.String()
	if !regexp.MustCompile(`^\d{2}:\d{2}:\d{2}\.\d{2} INFO Server started pid=42\n$`).MatchString(line) {
		t.Errorf("log line = %q", line)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		log     func(*log.Logger)
		wantOut bool
	}{
		{"info at info", log.InfoLevel, func(l *log.Logger) { l.Info("x") }, true},
		{"debug at info", log.InfoLevel, func(l *log.Logger) { l.Debug("x") }, false},
		{"debug at debug", log.DebugLevel, func(l *log.Logger) { l.Debug("x") }, true},
		{"warn at error", log.ErrorLevel, func(l *log.Logger) { l.Warn("x") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.wantOut {
				t.Errorf("wrote output = %v, want %v", got, tt.wantOut)
			}
		})
	}
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	base := newLogger(&buf, log.DebugLevel)
	componentLogger(base, "server").Debug("Spawned process")

	if !strings.Contains(buf.String(), "server: Spawned process") {
		t.Errorf("log line = %q, want component prefix", buf.String())
	}
}

func TestProgressDone(t *testing.T) {
	var buf bytes.Buffer
	prog := newProgress(newLogger(&buf, log.InfoLevel))
	prog.done("Batch finished", "graphs", 3)

	out := buf.String()
	if !strings.Contains(out, "Batch finished graphs=3 elapsed=") {
		t.Errorf("progress output = %q", out)
	}
}
