package mapbatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/jba/slog/withsupport"
)

// level controls the minimum severity mapbatch emits. It defaults to Info,
// mirroring the teacher runner's default-quiet, opt-in-verbose posture
// (local/internal/logger.go's V(level) gate).
var level = new(slog.LevelVar)

// SetLogLevel adjusts the minimum severity of operator-emitted log records.
// Tests and demos that want dispatcher/slot chatter set this to
// slog.LevelDebug.
func SetLogLevel(l slog.Level) {
	level.Set(l)
}

var logger = slog.New(newLineHandler(os.Stderr, level))

// lineHandler is a small slog.Handler writing "key=value" lines, built the
// way the teacher's harness logger (internal/harness/logger.go) builds its
// Beam Fn Logging handler: state accumulated via
// github.com/jba/slog/withsupport.GroupOrAttrs so that WithGroup/WithAttrs
// compose cheaply without walking the whole attribute chain per record.
type lineHandler struct {
	mu    *sync.Mutex
	out   io.Writer
	level slog.Leveler
	with  *withsupport.GroupOrAttrs
}

func newLineHandler(w io.Writer, lvl slog.Leveler) *lineHandler {
	return &lineHandler{mu: &sync.Mutex{}, out: w, level: lvl}
}

func (h *lineHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &lineHandler{mu: h.mu, out: h.out, level: h.level, with: h.with.WithGroup(name)}
}

func (h *lineHandler) WithAttrs(as []slog.Attr) slog.Handler {
	if len(as) == 0 {
		return h
	}
	return &lineHandler{mu: h.mu, out: h.out, level: h.level, with: h.with.WithAttrs(as)}
}

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	fields := map[string]string{}
	var order []string
	set := func(groups []string, a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}
		key := a.Key
		for i := len(groups) - 1; i >= 0; i-- {
			key = groups[i] + "." + key
		}
		if _, ok := fields[key]; !ok {
			order = append(order, key)
		}
		fields[key] = a.Value.String()
	}
	h.with.Apply(set)
	r.Attrs(func(a slog.Attr) bool {
		set(nil, a)
		return true
	})
	sort.Strings(order)

	line := fmt.Sprintf("%s %s %s", r.Time.Format(time.RFC3339Nano), r.Level, r.Message)
	for _, k := range order {
		line += fmt.Sprintf(" %s=%s", k, fields[k])
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.out, line)
	return err
}
