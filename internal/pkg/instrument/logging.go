package instrument

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/trace"
)

const redacted = "***"

type logOptions struct {
	service  string
	level    slog.Level
	provider *sdklog.LoggerProvider
	mask     []string
}

func installLogger(opts logOptions) {
	slog.SetDefault(slog.New(newHandler(os.Stdout, opts)))
}

// newHandler writes JSON lines to out and, when a provider is set, mirrors
// every record to the OTLP log pipeline.
func newHandler(out io.Writer, opts logOptions) slog.Handler {
	sinks := []slog.Handler{
		slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       opts.level,
			AddSource:   true,
			ReplaceAttr: renameAttr,
		}),
	}
	if opts.provider != nil {
		sinks = append(sinks, otelslog.NewHandler(opts.service, otelslog.WithLoggerProvider(opts.provider)))
	}

	return &logHandler{
		sinks:   sinks,
		mask:    newRedactor(opts.mask),
		service: opts.service,
	}
}

func renameAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		a.Key = "ts"
	case slog.LevelKey:
		a.Key = "severity"
	case slog.SourceKey:
		src, ok := a.Value.Any().(*slog.Source)
		if !ok {
			return a
		}
		_, rel, found := strings.Cut(src.File, "/internal/")
		if !found {
			return slog.Attr{}
		}
		return slog.String("file", "internal/"+rel+":"+strconv.Itoa(src.Line))
	}
	return a
}

// logHandler fans records out to its sinks after redacting secrets and
// stamping the service, correlation ID and trace IDs.
type logHandler struct {
	sinks   []slog.Handler
	mask    redactor
	service string
}

func (h *logHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *logHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.mask.attr(a))
		return true
	})

	if cID := GetCorrelationID(ctx); cID != "" {
		out.AddAttrs(slog.String("_cID", cID))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		out.AddAttrs(slog.String("trace_id", sc.TraceID().String()), slog.String("span_id", sc.SpanID().String()))
	}
	out.AddAttrs(slog.String("service", h.service))

	var firstErr error
	for _, s := range h.sinks {
		if !s.Enabled(ctx, out.Level) {
			continue
		}
		if err := s.Handle(ctx, out.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *logHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.mask.attr(a)
	}
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithAttrs(clean) })
}

func (h *logHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (h *logHandler) derive(fn func(slog.Handler) slog.Handler) *logHandler {
	sinks := make([]slog.Handler, len(h.sinks))
	for i, s := range h.sinks {
		sinks[i] = fn(s)
	}
	return &logHandler{sinks: sinks, mask: h.mask, service: h.service}
}

// redactor replaces the values of sensitive keys, including keys nested in
// maps and in JSON-encoded strings such as captured error envelopes.
type redactor map[string]struct{}

func newRedactor(fields []string) redactor {
	r := redactor{}
	for _, f := range fields {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			r[f] = struct{}{}
		}
	}
	return r
}

func (r redactor) hides(key string) bool {
	_, ok := r[strings.ToLower(key)]
	return ok
}

func (r redactor) attr(a slog.Attr) slog.Attr {
	if len(r) == 0 {
		return a
	}
	if r.hides(a.Key) {
		return slog.String(a.Key, redacted)
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		clean := make([]slog.Attr, len(group))
		for i, g := range group {
			clean[i] = r.attr(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	case slog.KindString:
		if s, ok := r.json([]byte(a.Value.String())); ok {
			return slog.String(a.Key, s)
		}
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case map[string]any, []any:
			return slog.Any(a.Key, r.value(v))
		case map[string]string:
			m := make(map[string]any, len(v))
			for k, s := range v {
				m[k] = s
			}
			return slog.Any(a.Key, r.value(m))
		case []byte:
			if s, ok := r.json(v); ok {
				return slog.String(a.Key, s)
			}
		}
	}
	return a
}

func (r redactor) json(b []byte) (string, bool) {
	if len(b) == 0 || (b[0] != '{' && b[0] != '[') {
		return "", false
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return "", false
	}
	out, err := json.Marshal(r.value(v))
	if err != nil {
		return "", false
	}
	return string(out), true
}

func (r redactor) value(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			if r.hides(k) {
				out[k] = redacted
				continue
			}
			out[k] = r.value(x)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = r.value(x)
		}
		return out
	}
	return v
}
