package router

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// maxErrorBodyBytes bounds how much of an error envelope is kept for the log.
const maxErrorBodyBytes = 4 << 10

// statusRecorder captures the status and size of a response, and the body
// only once the status marks it as an error. Mail payloads are never logged.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	errBuf bytes.Buffer
	err    error
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if w.status >= http.StatusBadRequest {
		if room := maxErrorBodyBytes - w.errBuf.Len(); room > 0 {
			w.errBuf.Write(p[:min(len(p), room)])
		}
	}

	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusRecorder) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusRecorder) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// errorBody returns the captured error envelope, decoded when it is JSON.
func (w *statusRecorder) errorBody() any {
	if w.errBuf.Len() == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(w.errBuf.Bytes(), &v); err == nil {
		return v
	}
	return strings.TrimSpace(w.errBuf.String())
}

func matchedRoutePath(r *http.Request) string {
	if pattern := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); pattern != "" {
		return pattern
	}
	return r.URL.Path
}

type httpMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newHTTPMetrics(meter metric.Meter) httpMetrics {
	var m httpMetrics
	var err error

	m.requests, err = meter.Int64Counter("gomailer.http.requests",
		metric.WithDescription("API requests by route, method and status"))
	if err != nil {
		slog.Error("router: failed to create request counter", "error", err)
	}

	m.duration, err = meter.Float64Histogram("gomailer.http.duration",
		metric.WithDescription("API request latency"), metric.WithUnit("s"))
	if err != nil {
		slog.Error("router: failed to create latency histogram", "error", err)
	}

	return m
}

// middlewareObservability opens a server span per request, records request
// metrics and writes one access log line. Request bodies are not logged:
// they carry recipients, message content and attachments.
func middlewareObservability(ins instrument.Instrumentation) Middleware {
	if ins == nil {
		ins = instrument.NewNoop()
	}
	tracer := ins.Tracer("mailer.http")
	hm := newHTTPMetrics(ins.Meter("mailer.http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := matchedRoutePath(r)

			ctx, span := tracer.Start(r.Context(), r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRouteKey.String(route),
					semconv.UserAgentOriginal(r.UserAgent()),
					semconv.ClientAddress(r.RemoteAddr),
				),
			)
			defer span.End()

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.code()
			elapsed := time.Since(start)
			attrs := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCodeKey.Int(status),
			}

			span.SetAttributes(semconv.HTTPResponseStatusCodeKey.Int(status), attribute.Int("http.response.body.size", rec.bytes))
			if rec.err != nil {
				span.RecordError(rec.err)
			}
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			if hm.requests != nil {
				hm.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
			}
			if hm.duration != nil {
				hm.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
			}

			logArgs := []any{
				"method", r.Method,
				"route", route,
				"status", status,
				"client_ip", r.RemoteAddr,
				"content_type", r.Header.Get("Content-Type"),
				"content_length", r.ContentLength,
				"bytes", rec.bytes,
				"latency_ms", elapsed.Milliseconds(),
			}

			switch {
			case status >= http.StatusInternalServerError:
				slog.ErrorContext(ctx, "request failed", append(logArgs, "response", rec.errorBody(), "error", rec.err)...)
			case status >= http.StatusBadRequest:
				slog.WarnContext(ctx, "request rejected", append(logArgs, "response", rec.errorBody())...)
			default:
				slog.InfoContext(ctx, "request served", logArgs...)
			}
		})
	}
}
