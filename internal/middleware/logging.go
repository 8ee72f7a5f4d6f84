package middleware

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ecopoints/internal/metrics"
)

// responseTap はステータスコードと書き込みバイト数を記録するResponseWriter。
type responseTap struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (t *responseTap) WriteHeader(code int) {
	if t.status == 0 {
		t.status = code
	}
	t.ResponseWriter.WriteHeader(code)
}

func (t *responseTap) Write(b []byte) (int, error) {
	if t.status == 0 {
		t.status = http.StatusOK
	}
	n, err := t.ResponseWriter.Write(b)
	t.bytes += n
	return n, err
}

// Hijack はWebSocketのアップグレード用。引き渡した時点で101として扱う。
func (t *responseTap) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := t.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if t.status == 0 {
		t.status = http.StatusSwitchingProtocols
	}
	return hj.Hijack()
}

func (t *responseTap) Flush() {
	if f, ok := t.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// statusCode は記録されたステータス。何も書かれなかった場合は200。
func (t *responseTap) statusCode() int {
	if t.status == 0 {
		return http.StatusOK
	}
	return t.status
}

// monitoringPaths はオーケストレーターやPrometheusが定期的に叩くパス。Debugで記録する。
var monitoringPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// requestLogLevel はステータスとパスからアクセスログのレベルを決める。
func requestLogLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case monitoringPaths[path]:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// NewLoggingMiddleware は1リクエスト1行のアクセスログを出力する。
// chiのルートパターン（例: /tools/{tool}）が分かる場合はrouteとして併記する。
func NewLoggingMiddleware(logger *slog.Logger, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			tap := &responseTap{ResponseWriter: w}

			// ユーザーIDは内側のセッションミドルウェアで確定する
			info := &requestInfo{}
			next.ServeHTTP(tap, r.WithContext(withRequestInfo(r.Context(), info)))

			status := tap.statusCode()
			collector.RecordHTTPStatus(status)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", tap.bytes),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			}
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					attrs = append(attrs, slog.String("route", pattern))
				}
			}
			if id := RequestIDFromContext(r.Context()); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			userID := info.userID
			if userID == "" {
				userID, _ = UserIDFromContext(r.Context())
			}
			if userID != "" {
				attrs = append(attrs, slog.String("user_id", userID))
			}

			logger.LogAttrs(r.Context(), requestLogLevel(r.URL.Path, status), "http_request", attrs...)
		})
	}
}
