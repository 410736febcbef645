// Package logging is a human readable slog handler for terminals.
package logging

import (
	"bytes"
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

	"github.com/fatih/color"
)

type Options struct {
	Level      slog.Leveler
	Color      bool
	ShowSource bool
	// TimeFormat defaults to time.RFC3339; "-" disables the timestamp.
	TimeFormat string
}

type Handler struct {
	opts   Options
	w      io.Writer
	mu     *sync.Mutex
	prefix string // open groups, dot terminated
	attrs  []byte // pre-rendered WithAttrs fields

	dim   func(...any) string
	msg   func(...any) string
	key   func(...any) string
	level map[slog.Level]func(...any) string
}

func NewHandler(w io.Writer, opts Options) *Handler {
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = time.RFC3339
	}
	h := &Handler{opts: opts, w: w, mu: &sync.Mutex{}}
	h.initColors()
	return h
}

// New is a logger on a new Handler.
func New(w io.Writer, opts Options) *slog.Logger {
	return slog.New(NewHandler(w, opts))
}

func (h *Handler) initColors() {
	mk := func(attrs ...color.Attribute) func(...any) string {
		c := color.New(attrs...)
		if h.opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	h.dim = mk(color.FgHiBlack)
	h.msg = mk(color.FgCyan)
	h.key = mk(color.FgWhite)
	h.level = map[slog.Level]func(...any) string{
		slog.LevelDebug: mk(color.FgMagenta),
		slog.LevelInfo:  mk(color.FgBlue),
		slog.LevelWarn:  mk(color.FgYellow),
		slog.LevelError: mk(color.FgRed, color.Bold),
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	if h.opts.TimeFormat != "-" && !r.Time.IsZero() {
		buf.WriteString(h.dim(r.Time.Format(h.opts.TimeFormat)))
		buf.WriteByte(' ')
	}
	buf.WriteString(h.formatLevel(r.Level))
	buf.WriteByte(' ')
	if h.opts.ShowSource && r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		if f.File != "" {
			buf.WriteString(h.dim(filepath.Base(f.File) + ":" + strconv.Itoa(f.Line)))
			buf.WriteByte(' ')
		}
	}
	buf.WriteString(h.msg(r.Message))
	buf.Write(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&buf, h.prefix, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *Handler) formatLevel(l slog.Level) string {
	base := slog.LevelError
	switch {
	case l < slog.LevelInfo:
		base = slog.LevelDebug
	case l < slog.LevelWarn:
		base = slog.LevelInfo
	case l < slog.LevelError:
		base = slog.LevelWarn
	}
	return h.level[base](fmt.Sprintf("%-5s", l.String()))
}

func (h *Handler) appendAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
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
			h.appendAttr(buf, p, ga)
		}
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(h.key(prefix + a.Key + "="))
	buf.WriteString(quote(a.Value))
}

func quote(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		return v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	nh := *h
	var buf bytes.Buffer
	buf.Write(h.attrs)
	for _, a := range attrs {
		h.appendAttr(&buf, h.prefix, a)
	}
	nh.attrs = buf.Bytes()
	return &nh
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(s))
	return l, err
}
