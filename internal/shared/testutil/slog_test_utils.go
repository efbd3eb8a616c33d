package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// LogRecord is one captured log line, with attrs flattened into a map.
// Group names are joined into the key with dots, so a record logged under
// WithGroup("server") as "port" surfaces as "server.port".
type LogRecord struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]interface{}
}

// logSink is the shared record store. Handlers derived via WithAttrs or
// WithGroup all append here, so a test sees every line regardless of which
// child logger produced it.
type logSink struct {
	mu      sync.Mutex
	records []LogRecord
	t       *testing.T
}

func (s *logSink) append(rec LogRecord) {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()

	// Echo into the test log so -v output interleaves with assertions.
	if s.t != nil {
		s.t.Logf("[%s] %s %v", rec.Level, rec.Message, rec.Attrs)
	}
}

// BufferedSlogHandler captures records in memory for assertions. Unlike a
// plain capture buffer it resolves WithAttrs and WithGroup, so attributes
// bound with logger.With show up in the captured records.
type BufferedSlogHandler struct {
	sink   *logSink
	bound  []slog.Attr
	prefix string
}

// NewBufferedSlogHandler creates a capture handler. t may be nil when the
// handler is used outside a test body.
func NewBufferedSlogHandler(t *testing.T) *BufferedSlogHandler {
	return &BufferedSlogHandler{sink: &logSink{t: t}}
}

// NewTestLogger returns a logger wired to a fresh capture handler.
func NewTestLogger(t *testing.T) (*slog.Logger, *BufferedSlogHandler) {
	handler := NewBufferedSlogHandler(t)
	return slog.New(handler), handler
}

// Enabled reports true for every level; tests want the full stream.
func (h *BufferedSlogHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle implements slog.Handler.
func (h *BufferedSlogHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]interface{}, r.NumAttrs()+len(h.bound))
	for _, a := range h.bound {
		h.flatten(attrs, h.prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.flatten(attrs, h.prefix, a)
		return true
	})

	h.sink.append(LogRecord{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
		Attrs:   attrs,
	})
	return nil
}

// flatten stores a under prefix, expanding slog groups into dotted keys.
func (h *BufferedSlogHandler) flatten(into map[string]interface{}, prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" {
		key = prefix + "." + a.Key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, member := range a.Value.Group() {
			h.flatten(into, key, member)
		}
		return
	}
	into[key] = a.Value.Resolve().Any()
}

// WithAttrs implements slog.Handler. The child shares this handler's sink.
func (h *BufferedSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	child := *h
	child.bound = append(append([]slog.Attr{}, h.bound...), attrs...)
	return &child
}

// WithGroup implements slog.Handler.
func (h *BufferedSlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	child := *h
	if h.prefix != "" {
		child.prefix = h.prefix + "." + name
	} else {
		child.prefix = name
	}
	return &child
}

// GetRecords returns a copy of every captured record.
func (h *BufferedSlogHandler) GetRecords() []LogRecord {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	out := make([]LogRecord, len(h.sink.records))
	copy(out, h.sink.records)
	return out
}

// GetRecordsByLevel returns the captured records at exactly level.
func (h *BufferedSlogHandler) GetRecordsByLevel(level slog.Level) []LogRecord {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	var out []LogRecord
	for _, rec := range h.sink.records {
		if rec.Level == level {
			out = append(out, rec)
		}
	}
	return out
}

// ContainsMessage reports whether any record's message contains message.
func (h *BufferedSlogHandler) ContainsMessage(message string) bool {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	for _, rec := range h.sink.records {
		if strings.Contains(rec.Message, message) {
			return true
		}
	}
	return false
}

// ContainsAttr reports whether any record carries key with exactly value.
func (h *BufferedSlogHandler) ContainsAttr(key string, value interface{}) bool {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	for _, rec := range h.sink.records {
		if got, ok := rec.Attrs[key]; ok && got == value {
			return true
		}
	}
	return false
}

// Count returns how many records were captured.
func (h *BufferedSlogHandler) Count() int {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return len(h.sink.records)
}

// Clear drops all captured records. Useful between phases of one test.
func (h *BufferedSlogHandler) Clear() {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	h.sink.records = h.sink.records[:0]
}

// AssertLogContains fails the test when no record at level contains message.
func AssertLogContains(t *testing.T, handler *BufferedSlogHandler, level slog.Level, message string) {
	t.Helper()

	records := handler.GetRecordsByLevel(level)
	for _, rec := range records {
		if strings.Contains(rec.Message, message) {
			return
		}
	}

	t.Errorf("no %s log containing %q", level, message)
	for _, rec := range records {
		t.Logf("  captured: %s", rec.Message)
	}
}

// AssertLogAttr fails the test when no record carries key=expected.
func AssertLogAttr(t *testing.T, handler *BufferedSlogHandler, key string, expected interface{}) {
	t.Helper()

	if handler.ContainsAttr(key, expected) {
		return
	}

	t.Errorf("no log record with %s=%v", key, expected)
	for _, rec := range handler.GetRecords() {
		t.Logf("  captured: %s %v", rec.Message, rec.Attrs)
	}
}

// AssertNoErrors fails the test when any error-level record was captured.
func AssertNoErrors(t *testing.T, handler *BufferedSlogHandler) {
	t.Helper()

	for _, rec := range handler.GetRecordsByLevel(slog.LevelError) {
		t.Errorf("unexpected error log: %s %v", rec.Message, rec.Attrs)
	}
}
