package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Sink receives diagnostics on three severity channels. A host driver
// registers one to surface messages from a session, including the
// structured error record logged before any fatal abort.
type Sink interface {
	Error(msg string)
	Info(msg string)
	Warn(msg string)
}

// SinkHandler is a slog.Handler that renders records as single lines and
// routes them to a Sink by level. Debug records go to Info when debug is
// enabled and are dropped otherwise.
type SinkHandler struct {
	mu    *sync.Mutex
	sink  Sink
	debug bool
	attrs []slog.Attr
	group string
}

// NewSinkHandler returns a handler writing to sink.
func NewSinkHandler(sink Sink, debug bool) *SinkHandler {
	return &SinkHandler{mu: &sync.Mutex{}, sink: sink, debug: debug}
}

// NewSinkLogger returns a logger writing to sink.
func NewSinkLogger(sink Sink, debug bool) *slog.Logger {
	return slog.New(NewSinkHandler(sink, debug))
}

func (h *SinkHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.debug || level >= slog.LevelInfo
}

func (h *SinkHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})
	line := b.String()

	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case r.Level >= slog.LevelError:
		h.sink.Error(line)
	case r.Level >= slog.LevelWarn:
		h.sink.Warn(line)
	default:
		h.sink.Info(line)
	}
	return nil
}

func (h *SinkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

func (h *SinkHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	if h.group != "" {
		name = h.group + "." + name
	}
	h2.group = name
	return &h2
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, key, ga)
		}
		return
	}
	v := a.Value.String()
	if strings.ContainsAny(v, " =\"") {
		v = fmt.Sprintf("%q", v)
	}
	fmt.Fprintf(b, " %s=%s", key, v)
}

// Lines is a Sink collecting messages in memory, one slice per channel.
type Lines struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Warns  []string
}

func (l *Lines) Error(msg string) { l.mu.Lock(); l.Errors = append(l.Errors, msg); l.mu.Unlock() }
func (l *Lines) Info(msg string)  { l.mu.Lock(); l.Infos = append(l.Infos, msg); l.mu.Unlock() }
func (l *Lines) Warn(msg string)  { l.mu.Lock(); l.Warns = append(l.Warns, msg); l.mu.Unlock() }

// Snapshot returns copies of the collected messages.
func (l *Lines) Snapshot() (errs, infos, warns []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.Errors...), append([]string(nil), l.Infos...), append([]string(nil), l.Warns...)
}
