// Package logging provides the host's structured logger: a levelled,
// contextual Logger with a terminal handler for interactive use and a
// plain handler otherwise.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Lvl is a log severity level, ordered from most to least severe.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "crit"
	case LvlError:
		return "eror"
	case LvlWarn:
		return "warn"
	case LvlInfo:
		return "info"
	case LvlDebug:
		return "dbug"
	case LvlTrace:
		return "trce"
	default:
		return "????"
	}
}

// Record is a single log event handed to a Handler.
type Record struct {
	Time time.Time
	Lvl  Lvl
	Msg  string
	Ctx  []interface{}
	Call stack.Call
}

// Handler formats and writes a Record.
type Handler interface {
	Log(r Record) error
}

// Logger writes key/value pairs to its Handler at a given level.
type Logger interface {
	New(ctx ...interface{}) Logger
	SetHandler(h Handler)

	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
}

type logger struct {
	ctx []interface{}
	mu  sync.RWMutex
	h   Handler
}

// Root returns a new top-level logger writing to the default handler
// (terminal handler on stderr if it is a tty, plain handler otherwise).
func Root() Logger {
	return &logger{h: defaultHandler()}
}

func defaultHandler() Handler {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return NewTerminalHandler(colorable.NewColorable(os.Stderr))
	}
	return NewPlainHandler(os.Stderr)
}

func (l *logger) New(ctx ...interface{}) Logger {
	l.mu.RLock()
	h := l.h
	l.mu.RUnlock()
	child := &logger{ctx: append(append([]interface{}{}, l.ctx...), normalize(ctx)...), h: h}
	return child
}

func (l *logger) SetHandler(h Handler) {
	l.mu.Lock()
	l.h = h
	l.mu.Unlock()
}

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	l.mu.RLock()
	h := l.h
	l.mu.RUnlock()
	if h == nil {
		return
	}
	r := Record{
		Time: time.Now(),
		Lvl:  lvl,
		Msg:  msg,
		Ctx:  append(append([]interface{}{}, l.ctx...), normalize(ctx)...),
		Call: stack.Caller(2),
	}
	_ = h.Log(r)
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{}) {
	l.write(LvlCrit, msg, ctx)
	os.Exit(1)
}

func normalize(ctx []interface{}) []interface{} {
	if len(ctx)%2 != 0 {
		ctx = append(ctx, nil)
	}
	return ctx
}

// plainHandler writes "lvl msg key=value ..." lines with no color.
type plainHandler struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPlainHandler returns a Handler that writes uncolored, single-line
// records to w.
func NewPlainHandler(w io.Writer) Handler {
	return &plainHandler{w: w}
}

func (h *plainHandler) Log(r Record) error {
	var b strings.Builder
	b.WriteString(r.Time.Format("2006-01-02T15:04:05-0700"))
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(r.Lvl.String()))
	b.WriteByte(' ')
	b.WriteString(r.Msg)
	writeCtx(&b, r.Ctx)
	b.WriteByte('\n')
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// terminalHandler additionally colorizes the level tag when the
// underlying writer is a real terminal.
type terminalHandler struct {
	plainHandler
}

// NewTerminalHandler returns a Handler that colorizes the level tag for
// interactive terminals.
func NewTerminalHandler(w io.Writer) Handler {
	return &terminalHandler{plainHandler{w: w}}
}

var levelColor = map[Lvl]string{
	LvlCrit:  "35", // magenta
	LvlError: "31", // red
	LvlWarn:  "33", // yellow
	LvlInfo:  "32", // green
	LvlDebug: "36", // cyan
	LvlTrace: "90", // gray
}

func (h *terminalHandler) Log(r Record) error {
	color := levelColor[r.Lvl]
	var b strings.Builder
	b.WriteString(r.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	fmt.Fprintf(&b, "\x1b[%sm%s\x1b[0m", color, strings.ToUpper(r.Lvl.String()))
	b.WriteByte(' ')
	b.WriteString(r.Msg)
	writeCtx(&b, r.Ctx)
	b.WriteByte('\n')
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func writeCtx(b *strings.Builder, ctx []interface{}) {
	for i := 0; i+1 < len(ctx); i += 2 {
		b.WriteByte(' ')
		fmt.Fprintf(b, "%v=%v", ctx[i], ctx[i+1])
	}
}
