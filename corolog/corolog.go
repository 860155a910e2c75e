// Package corolog is the structured logging seam used throughout corosock.
//
// The scheduler, notifier and asyncsocket packages never import a concrete
// logging backend directly -- they depend on the small [Logger] interface
// defined here, a package-level, infrastructure cross-cutting concern.
// [NewDefault] wires up github.com/joeycumines/logiface with its built-in
// stumpy backend; embedders can instead call [NewLogiface] with a
// stumpy-backed [logiface.Logger] they already configured, or implement
// [Logger] themselves to route entries to another backend.
package corolog

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Level mirrors the severities corosock components actually emit. It is
// intentionally smaller than logiface.Level -- the runtime never needs
// emergency/alert/critical/notice distinctions.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Fields is an ordered-free bag of structured log attributes.
type Fields map[string]any

// Logger is the structured logging seam. Category groups related log lines
// ("scheduler", "notifier", "socket", "timer"); it is a field, not a
// separate method, so a no-op Logger stays trivial to implement.
type Logger interface {
	Log(level Level, category, msg string, fields Fields)
	Enabled(level Level) bool
}

// noop discards everything; it is the zero value's effective behavior and
// is what Scheduler/Notifier/AsyncSocket fall back to when no Logger is
// configured.
type noop struct{}

func (noop) Log(Level, string, string, Fields) {}
func (noop) Enabled(Level) bool                { return false }

// NoOp returns a Logger that discards all log entries.
func NoOp() Logger { return noop{} }

// logifaceAdapter bridges Logger to a logiface.Logger[*stumpy.Event].
type logifaceAdapter struct {
	root *logiface.Logger[*stumpy.Event]
}

// NewLogiface wraps an existing logiface logger (backed by stumpy) so it can
// be used as corosock's Logger. Use this to share a logger already
// configured (writer, level, fields) by the embedding application.
func NewLogiface(root *logiface.Logger[*stumpy.Event]) Logger {
	if root == nil {
		return NoOp()
	}
	return &logifaceAdapter{root: root}
}

// NewDefault builds a Logger using stumpy's default JSON-lines writer
// (os.Stderr), at the given minimum level.
func NewDefault(level Level) Logger {
	root := stumpy.L.New(
		stumpy.L.WithStumpy(),
		stumpy.L.WithLevel(levelToLogiface(level)),
	)
	return &logifaceAdapter{root: root}
}

func levelToLogiface(l Level) logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

func (a *logifaceAdapter) Enabled(l Level) bool {
	return a.root.Level() >= levelToLogiface(l)
}

func (a *logifaceAdapter) Log(level Level, category, msg string, fields Fields) {
	b := a.root.Build(levelToLogiface(level))
	if !b.Enabled() {
		return
	}
	if category != "" {
		b = b.Str("category", category)
	}
	for k, v := range fields {
		b = b.Field(k, v)
	}
	b.Log(msg)
}
