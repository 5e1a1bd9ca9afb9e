// Package log is a leveled, colorized logger in the go-ethereum idiom: plain
// key-value pairs after a message, colorized level tags when the output is a
// terminal. The teacher's own `log` package was not part of the retrieved
// pack, so this is reconstructed from its go.mod footprint
// (fatih/color + mattn/go-colorable + mattn/go-isatty).
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var levelNames = map[Level]string{
	LevelError: "ERROR",
	LevelWarn:  "WARN",
	LevelInfo:  "INFO",
	LevelDebug: "DEBUG",
	LevelTrace: "TRACE",
}

var levelColors = map[Level]*color.Color{
	LevelError: color.New(color.FgRed, color.Bold),
	LevelWarn:  color.New(color.FgYellow),
	LevelInfo:  color.New(color.FgGreen),
	LevelDebug: color.New(color.FgCyan),
	LevelTrace: color.New(color.FgMagenta),
}

type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel Level
	colorize bool
	ctx      []interface{}
}

var root = New(os.Stderr)

func New(w io.Writer) *Logger {
	colorize := false
	if f, ok := w.(*os.File); ok {
		colorize = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	out := w
	if colorize {
		out = colorable.NewColorable(w.(*os.File))
	}
	return &Logger{out: out, minLevel: LevelInfo, colorize: colorize}
}

func SetLevel(l Level) { root.SetLevel(l) }

func (l *Logger) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = lvl
}

// With returns a child logger that prepends ctx to every record it emits.
func (l *Logger) With(ctx ...interface{}) *Logger {
	nctx := make([]interface{}, 0, len(l.ctx)+len(ctx))
	nctx = append(nctx, l.ctx...)
	nctx = append(nctx, ctx...)
	return &Logger{out: l.out, minLevel: l.minLevel, colorize: l.colorize, ctx: nctx}
}

func (l *Logger) log(lvl Level, msg string, kv []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lvl > l.minLevel {
		return
	}
	tag := levelNames[lvl]
	if l.colorize {
		tag = levelColors[lvl].Sprint(tag)
	}
	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	fmt.Fprintf(l.out, "%s [%s] %s", ts, tag, msg)
	all := append(append([]interface{}{}, l.ctx...), kv...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(l.out, " %v=%v", all[i], all[i+1])
	}
	fmt.Fprintln(l.out)
}

func (l *Logger) Error(msg string, kv ...interface{}) { l.log(LevelError, msg, kv) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.log(LevelWarn, msg, kv) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.log(LevelInfo, msg, kv) }
func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(LevelDebug, msg, kv) }
func (l *Logger) Trace(msg string, kv ...interface{}) { l.log(LevelTrace, msg, kv) }

func Error(msg string, kv ...interface{}) { root.Error(msg, kv...) }
func Warn(msg string, kv ...interface{})  { root.Warn(msg, kv...) }
func Info(msg string, kv ...interface{})  { root.Info(msg, kv...) }
func Debug(msg string, kv ...interface{}) { root.Debug(msg, kv...) }
func Trace(msg string, kv ...interface{}) { root.Trace(msg, kv...) }
func With(ctx ...interface{}) *Logger     { return root.With(ctx...) }
