// Package cli implements the elk command-line interface.
//
// The CLI is built with cobra. Every command shares one [CLI] value that
// holds the logger and the configuration loaded by the root command's
// PersistentPreRunE (see internal/config for the sources and their order).
//
// # Commands
//
//   - layout: lay out one graph and print or write the result
//   - batch: lay out many graphs concurrently
//   - validate: check a graph without starting the server
//   - preview: draw the input graph with Graphviz, no server needed
//   - server: run the ELK server in stdio or socket mode
//   - serve: serve layouts over HTTP
//   - install, java: set up and inspect the server and Java runtime
//   - cache, config: manage the layout cache and show the configuration
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Logs and
// status lines go to stderr so stdout can be piped.
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// newLogger writes "HH:MM:SS.ms LEVEL msg key=value" lines to w.
// Level labels are padded to a fixed width so messages line up.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
	styles := log.DefaultStyles()
	styles.Prefix = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	for lvl, label := range map[log.Level]string{
		log.DebugLevel: "DEBU",
		log.InfoLevel:  "INFO",
		log.WarnLevel:  "WARN",
		log.ErrorLevel: "ERRO",
	} {
		styles.Levels[lvl] = styles.Levels[lvl].SetString(label).Width(4)
	}
	l.SetStyles(styles)
	return l
}

// componentLogger tags every line from l with "name:". The server pool and
// the layout runner each get their own so interleaved output stays readable.
func componentLogger(l *log.Logger, name string) *log.Logger {
	return l.WithPrefix(name)
}

// progress logs how long an operation took. Not safe for concurrent use.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, e.g.
// "Batch of 12 graphs finished elapsed=1.234s".
func (p *progress) done(msg string, keyvals ...any) {
	keyvals = append(keyvals, "elapsed", time.Since(p.start).Round(time.Millisecond))
	p.logger.Info(msg, keyvals...)
}
