// Package log provides the leveled, per-module structured logger used
// throughout the node: a log15-style logger keyed by module name,
// built on go-stack for call-site capture and go-colorable for a
// Windows-safe colorized terminal writer, rather than falling back to
// the standard library's log/slog.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Module identifies the subsystem a Logger belongs to. Used to filter
// and to tag every line.
type Module string

const (
	ModuleBlockchain Module = "blockchain"
	ModuleConsensus Module = "consensus"
	ModuleContext Module = "context"
	ModuleStorage Module = "storage"
	ModuleDownloader Module = "downloader"
	ModuleP2P Module = "p2p"
	ModuleNode Module = "node"
)

// Level is a log severity, ordered so that filtering by "at least this
// severe" is a simple integer comparison.
type Level int

const (
	LvlCrit Level = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Level) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	case LvlTrace:
		return "TRACE"
	default:
		return "?????"
	}
}

var levelColor = map[Level]int{
	LvlCrit: 35, // magenta
	LvlError: 31, // red
	LvlWarn: 33, // yellow
	LvlInfo: 32, // green
	LvlDebug: 36, // cyan
	LvlTrace: 90, // bright black
}

// Logger is the handle every package calls through. It never panics on
// a bad ctx pair (odd length) — it drops the trailing key.
type Logger interface {
	Trace(msg string, ctx...interface{})
	Debug(msg string, ctx...interface{})
	Info(msg string, ctx...interface{})
	Warn(msg string, ctx...interface{})
	Error(msg string, ctx...interface{})
	Crit(msg string, ctx...interface{})
	New(ctx...interface{}) Logger
}

var (
	root = &logger{
		mod: "root",
		writer: newWriter(os.Stderr),
	}
	levelMu sync.RWMutex
	minLvl = LvlInfo
)

// SetLevel sets the process-wide minimum level that reaches the
// writer. Individual loggers are not filtered independently; this is
// a single global sink with per-module tagging, not per-module
// verbosity.
func SetLevel(l Level) {
	levelMu.Lock()
	defer levelMu.Unlock()
	minLvl = l
}

func enabled(l Level) bool {
	levelMu.RLock()
	defer levelMu.RUnlock()
	return l <= minLvl
}

// NewModuleLogger returns the Logger for a given subsystem module.
func NewModuleLogger(m Module) Logger {
	return root.New("module", string(m))
}

type logger struct {
	mod string
	ctx []interface{}
	writer *writer
}

func (l *logger) New(ctx...interface{}) Logger {
	nl := &logger{mod: l.mod, writer: l.writer}
	nl.ctx = append(append([]interface{}{}, l.ctx...), ctx...)
	return nl
}

func (l *logger) log(lvl Level, msg string, ctx...interface{}) {
	if !enabled(lvl) {
		return
	}
	all := append(append([]interface{}{}, l.ctx...), ctx...)
	l.writer.write(lvl, msg, all)
	if lvl == LvlCrit {
		os.Exit(1)
	}
}

func (l *logger) Trace(msg string, ctx...interface{}) { l.log(LvlTrace, msg, ctx...) }
func (l *logger) Debug(msg string, ctx...interface{}) { l.log(LvlDebug, msg, ctx...) }
func (l *logger) Info(msg string, ctx...interface{}) { l.log(LvlInfo, msg, ctx...) }
func (l *logger) Warn(msg string, ctx...interface{}) { l.log(LvlWarn, msg, ctx...) }
func (l *logger) Error(msg string, ctx...interface{}) { l.log(LvlError, msg, ctx...) }
func (l *logger) Crit(msg string, ctx...interface{}) { l.log(LvlCrit, msg, ctx...) }

type writer struct {
	mu sync.Mutex
	out io.Writer
	color bool
	frames bool
}

func newWriter(f *os.File) *writer {
	isTTY := false
	if fi, ok := any(f).(*os.File); ok {
		isTTY = isatty.IsTerminal(fi.Fd()) || isatty.IsCygwinTerminal(fi.Fd())
	}
	return &writer{out: colorable.NewColorable(f), color: isTTY}
}

func (w *writer) write(lvl Level, msg string, ctx []interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	if w.color {
		fmt.Fprintf(w.out, "\x1b[%dm%-5s\x1b[0m[%s] %s", levelColor[lvl], lvl, ts, msg)
	} else {
		fmt.Fprintf(w.out, "%-5s[%s] %s", lvl, ts, msg)
	}
	for i := 0; i+1 < len(ctx); i += 2 {
		fmt.Fprintf(w.out, " %v=%v", ctx[i], ctx[i+1])
	}
	if lvl <= LvlWarn {
		// call-site for anything serious enough to ban a peer or abort.
		fmt.Fprintf(w.out, " caller=%v", stack.Caller(3))
	}
	fmt.Fprintln(w.out)
}
