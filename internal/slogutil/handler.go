// Package slogutil provides the slog handlers and logger construction used by archscan.
package slogutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Pinned attribute keys. Set at the top level, they are printed ahead of the
// message instead of in the attribute tail.
const (
	ScanKey      = "scan"
	ComponentKey = "component"
)

// shortScanLen is how much of a scan id the line prefix shows.
const shortScanLen = 8

// ScanHandler writes one line per record:
//
//	2026-01-02T09:00:00Z WARN  scan=1a2b3c4d src/a.ts: Unreadable file | error="permission denied"
//
// The scan id and the component always appear in that order, however the
// attributes were added. Remaining attributes follow the message in the
// order they were added; groups prefix their keys with "group.".
type ScanHandler struct {
	w     io.Writer
	mu    *sync.Mutex
	level slog.Leveler

	scan      string
	component string
	groups    string
	// tail holds the attributes of WithAttrs, already formatted
	tail []byte
}

// NewScanHandler creates a handler writing to w. A nil opts logs at info.
func NewScanHandler(w io.Writer, opts *slog.HandlerOptions) *ScanHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &ScanHandler{w: w, mu: &sync.Mutex{}, level: level}
}

func (h *ScanHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ScanHandler) Handle(_ context.Context, r slog.Record) error {
	line := lineState{
		scan:      h.scan,
		component: h.component,
		tail:      append([]byte(nil), h.tail...),
	}
	r.Attrs(func(a slog.Attr) bool {
		line.add(h.groups, a)
		return true
	})

	buf := make([]byte, 0, 128+len(line.tail))
	if !r.Time.IsZero() {
		buf = r.Time.UTC().AppendFormat(buf, time.RFC3339)
		buf = append(buf, ' ')
	}
	buf = append(buf, levelLabel(r.Level)...)
	if line.scan != "" {
		buf = append(buf, " scan="...)
		buf = append(buf, line.scan...)
	}
	if line.component != "" {
		buf = append(buf, ' ')
		buf = append(buf, line.component...)
		buf = append(buf, ':')
	}
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)
	if len(line.tail) > 0 {
		buf = append(buf, " |"...)
		buf = append(buf, line.tail...)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *ScanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	line := lineState{
		scan:      h.scan,
		component: h.component,
		tail:      append([]byte(nil), h.tail...),
	}
	for _, a := range attrs {
		line.add(h.groups, a)
	}
	return &ScanHandler{
		w:         h.w,
		mu:        h.mu,
		level:     h.level,
		scan:      line.scan,
		component: line.component,
		groups:    h.groups,
		tail:      line.tail,
	}
}

func (h *ScanHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = h.groups + name + "."
	return &clone
}

// lineState collects the pinned values and the attribute tail of one line.
type lineState struct {
	scan      string
	component string
	tail      []byte
}

func (l *lineState) add(groups string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		prefix := groups
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			l.add(prefix, ga)
		}
		return
	}

	if groups == "" {
		switch a.Key {
		case ScanKey:
			l.scan = shortScan(a.Value.String())
			return
		case ComponentKey:
			l.component = a.Value.String()
			return
		}
	}

	l.tail = append(l.tail, ' ')
	l.tail = append(l.tail, groups...)
	l.tail = append(l.tail, a.Key...)
	l.tail = append(l.tail, '=')
	l.tail = append(l.tail, formatValue(a.Value)...)
}

func shortScan(id string) string {
	if len(id) > shortScanLen {
		return id[:shortScanLen]
	}
	return id
}

// levelLabel pads to five columns so messages line up.
func levelLabel(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "DEBUG"
	case level < slog.LevelWarn:
		return "INFO "
	case level < slog.LevelError:
		return "WARN "
	default:
		return "ERROR"
	}
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " |=\"\t\n") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return strconv.Quote(err.Error())
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}
