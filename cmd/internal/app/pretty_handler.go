package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// prettyHandler renders each record as one line for local development:
//
//	12:04:05.120 WARN  auth.login.lockout addr=192.0.2.7 locked_for=15m0s
//
// Auth and request attributes get their own formatting; everything else is
// key=value, quoted when needed.
type prettyHandler struct {
	w     io.Writer
	opts  slog.HandlerOptions
	color bool

	// prefix is the open group path applied to attrs added from here on.
	prefix string
	// pre holds attrs already rendered by WithAttrs.
	pre string

	mu *sync.Mutex
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &prettyHandler{
		w:     w,
		color: color,
		mu:    &sync.Mutex{},
	}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(paint(ansiDim, ts.Format("15:04:05.000"), h.color))
	b.WriteByte(' ')
	b.WriteString(levelLabel(r.Level, h.color))
	b.WriteByte(' ')
	b.WriteString(eventLabel(r.Message, h.color))

	b.WriteString(h.pre)
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, h.prefix, a)
		return true
	})

	if h.opts.AddSource && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if frame.File != "" {
			b.WriteString(" src=")
			b.WriteString(paint(ansiDim, fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line), h.color))
		}
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var b strings.Builder
	for _, a := range attrs {
		h.writeAttr(&b, h.prefix, a)
	}
	cp := *h
	cp.pre = h.pre + b.String()
	return &cp
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if strings.TrimSpace(name) == "" {
		return h
	}
	cp := *h
	cp.prefix = h.prefix + name + "."
	return &cp
}

func (h *prettyHandler) writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			h.writeAttr(b, p, ga)
		}
		return
	}

	key, val := h.formatAttr(strings.TrimSpace(a.Key), a.Value)
	if key == "" {
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(val)
}

// formatAttr returns the display key and value for one attribute.
func (h *prettyHandler) formatAttr(key string, v slog.Value) (string, string) {
	switch key {
	case "method":
		return key, colorizeHTTPMethod(strings.ToUpper(strings.TrimSpace(v.String())), h.color)
	case "path":
		return key, paint(ansiCyan, strings.TrimSpace(v.String()), h.color)
	case "status":
		if n, ok := valueToInt64(v); ok {
			return key, colorizeStatusCode(int(n), h.color)
		}
	case "status_class":
		return "class", colorizeStatusClass(strings.TrimSpace(v.String()), h.color)
	case "result":
		return key, colorizeResult(strings.ToLower(strings.TrimSpace(v.String())), h.color)
	case "duration_ms":
		if n, ok := valueToInt64(v); ok {
			return "duration", colorizeDurationMS(n, h.color)
		}
	case "request_id":
		return "rid", paint(ansiDim, quoteIfNeeded(v.String()), h.color)
	case "addr", "remote":
		return key, paint(ansiCyan, quoteIfNeeded(v.String()), h.color)
	case "username":
		return "user", paint(ansiBright, quoteIfNeeded(v.String()), h.color)
	case "retry_after_s", "locked_for_s":
		if n, ok := valueToInt64(v); ok {
			d := time.Duration(n) * time.Second
			return strings.TrimSuffix(key, "_s"), paint(ansiYellow, d.String(), h.color)
		}
	case "err":
		return key, paint(ansiRed, quoteIfNeeded(valueToString(v)), h.color)
	}
	return key, quoteIfNeeded(valueToString(v))
}

func levelLabel(level slog.Level, color bool) string {
	switch {
	case level >= slog.LevelError:
		return paint(ansiRed, "ERROR", color)
	case level >= slog.LevelWarn:
		return paint(ansiYellow, "WARN ", color)
	case level < slog.LevelInfo:
		return paint(ansiMagenta, "DEBUG", color)
	default:
		return paint(ansiBlue, "INFO ", color)
	}
}

// eventLabel colors dotted event names by their outcome suffix.
func eventLabel(msg string, color bool) string {
	switch {
	case hasAnySuffix(msg, ".fail", ".lockout", ".not_ready"):
		return paint(ansiRed, msg, color)
	case hasAnySuffix(msg, ".rate_limited", ".weak", ".ephemeral", ".quarantined"):
		return paint(ansiYellow, msg, color)
	case hasAnySuffix(msg, ".success", ".start", ".stopped", ".created"):
		return paint(ansiGreen, msg, color)
	default:
		return paint(ansiBright, msg, color)
	}
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func valueToString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		return fmt.Sprint(v.Any())
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
