// Package testlog provides log handlers for unit tests.
package testlog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Testing interface to log to. Standard Go testing.TB implements this.
type Testing interface {
	Logf(format string, args ...any)
	Helper()
	Name() string
}

// tWriter forwards complete lines to the unit test log.
type tWriter struct {
	t   Testing
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *tWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// incomplete line, keep it for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.t.Logf("%s", strings.TrimSuffix(line, "\n"))
	}
	return len(p), nil
}

// Logger returns a logger which logs to the unit test log of t.
func Logger(t Testing, level slog.Level) log.Logger {
	return log.NewLogger(log.NewTerminalHandlerWithLevel(&tWriter{t: t}, level, false))
}

// CaptureLogger returns a logger that writes to the unit test log, and captures every record for later inspection.
func CaptureLogger(t Testing, level slog.Level) (log.Logger, *CapturingHandler) {
	h := &CapturingHandler{
		handler: log.NewTerminalHandlerWithLevel(&tWriter{t: t}, level, false),
		state:   &captureState{},
	}
	return log.NewLogger(h), h
}

// CapturedRecord is a log record together with the attributes inherited from the logger that emitted it.
type CapturedRecord struct {
	slog.Record
	Inherited []slog.Attr
}

// AttrValue returns the value of the first attribute with the given key, own attributes first.
func (r *CapturedRecord) AttrValue(key string) (slog.Value, bool) {
	var out slog.Value
	found := false
	r.Record.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			out, found = a.Value, true
			return false
		}
		return true
	})
	if found {
		return out, true
	}
	for _, a := range r.Inherited {
		if a.Key == key {
			return a.Value, true
		}
	}
	return slog.Value{}, false
}

type captureState struct {
	mu   sync.Mutex
	logs []*CapturedRecord
}

// CapturingHandler captures all log records and forwards them to a delegate.
// Unlike a plain slice it is safe for loggers shared between goroutines.
type CapturingHandler struct {
	handler slog.Handler
	state   *captureState
	attrs   []slog.Attr
}

func (c *CapturingHandler) Handle(ctx context.Context, r slog.Record) error {
	c.state.mu.Lock()
	c.state.logs = append(c.state.logs, &CapturedRecord{Record: r.Clone(), Inherited: c.attrs})
	c.state.mu.Unlock()
	return c.handler.Handle(ctx, r)
}

func (c *CapturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	inherited := make([]slog.Attr, 0, len(c.attrs)+len(attrs))
	inherited = append(inherited, attrs...)
	inherited = append(inherited, c.attrs...)
	return &CapturingHandler{
		handler: c.handler.WithAttrs(attrs),
		state:   c.state,
		attrs:   inherited,
	}
}

func (c *CapturingHandler) WithGroup(name string) slog.Handler {
	return &CapturingHandler{
		handler: c.handler.WithGroup(name),
		state:   c.state,
		attrs:   c.attrs,
	}
}

func (c *CapturingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return c.handler.Enabled(ctx, level)
}

// Logs returns a snapshot of the captured records.
func (c *CapturingHandler) Logs() []*CapturedRecord {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	out := make([]*CapturedRecord, len(c.state.logs))
	copy(out, c.state.logs)
	return out
}

// FindLogs returns all captured records whose message contains msg.
func (c *CapturingHandler) FindLogs(msg string) []*CapturedRecord {
	var out []*CapturedRecord
	for _, r := range c.Logs() {
		if strings.Contains(r.Message, msg) {
			out = append(out, r)
		}
	}
	return out
}

// FindLog returns the first captured record whose message contains msg, or nil.
func (c *CapturingHandler) FindLog(msg string) *CapturedRecord {
	if logs := c.FindLogs(msg); len(logs) > 0 {
		return logs[0]
	}
	return nil
}
