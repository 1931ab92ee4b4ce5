// Package consolelog is the logging façade every other package logs
// through. It wraps charmbracelet/log and mirrors the severity taxonomy the
// teacher's textcolor.go named (DW_COLOR_INFO/ERROR/REC/DECODED/XMIT/DEBUG)
// mapped onto the error taxonomy from spec §7: transport and protocol
// errors log at Error, recoverable framing/decode problems at Warn,
// lifecycle events at Info, and per-message tracing at Debug.
package consolelog

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Logger implements the small Debugf/Infof/Warnf/Errorf interface every
// other package (session, inject, dispatch) depends on, so none of them
// import charmbracelet/log directly.
type Logger struct {
	l *log.Logger
}

// New builds a Logger writing to w (os.Stderr in production) at the given
// level ("debug", "info", "warn", "error").
func New(w io.Writer, level string) *Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportCaller:    false,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	l.SetLevel(parseLevel(level))

	return &Logger{l: l}
}

func parseLevel(s string) log.Level {
	switch s {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// SetLevel changes the logger's level in place, for config.WatchFile's
// log_level live-reload.
func (lg *Logger) SetLevel(level string) {
	lg.l.SetLevel(parseLevel(level))
}

func (lg *Logger) Debugf(format string, args ...any) { lg.l.Debugf(format, args...) }
func (lg *Logger) Infof(format string, args ...any)  { lg.l.Infof(format, args...) }
func (lg *Logger) Warnf(format string, args ...any)  { lg.l.Warnf(format, args...) }
func (lg *Logger) Errorf(format string, args ...any) { lg.l.Errorf(format, args...) }

// WithPrefix returns a derived Logger whose lines are tagged with name,
// e.g. consolelog.New(...).WithPrefix("session").
func (lg *Logger) WithPrefix(name string) *Logger {
	return &Logger{l: lg.l.WithPrefix(name)}
}

// Default is a convenience Logger writing to stderr at info level, used by
// tests and package init paths that run before a configured Logger exists.
var Default = New(os.Stderr, "info")
