package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frahmantamala/room-rental/pkg/logger"
)

const (
	redacted = "[FILTERED]"

	// maxLoggedBody caps how much of a body is kept for the log line.
	maxLoggedBody = 4096
)

// secretMarkers match, case-insensitively, any part of a header, query or JSON
// key whose value must not reach the logs. The gateway signature and payout
// account numbers travel through the payment routes.
var secretMarkers = []string{
	"password",
	"token",
	"authorization",
	"secret",
	"api_key",
	"session",
	"credential",
	"securehash",
	"account_number",
	"cookie",
}

func LoggingMiddleware(lg *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger.FromOr(r.Context(), lg)

			reqLogger.Info("incoming request",
				"method", r.Method,
				"path", r.URL.Path,
				"query", RedactQuery(r.URL.RawQuery),
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"headers", redactHeaders(r.Header),
				"body", redactRequestBody(r),
			)

			rec := &bodyRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case rec.status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}

			body := ""
			if rec.size <= maxLoggedBody {
				body = RedactJSON(rec.body.Bytes())
			}
			reqLogger.Log(r.Context(), level, "response",
				"status_code", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"response_size", rec.size,
				"body", body,
			)
		})
	}
}

// bodyRecorder keeps the status and the first maxLoggedBody bytes written.
type bodyRecorder struct {
	http.ResponseWriter
	status int
	size   int
	body   bytes.Buffer
}

func (rw *bodyRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *bodyRecorder) Write(b []byte) (int, error) {
	if free := maxLoggedBody - rw.body.Len(); free > 0 {
		rw.body.Write(b[:min(free, len(b))])
	}
	rw.size += len(b)
	return rw.ResponseWriter.Write(b)
}

func isSecret(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range secretMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// redactRequestBody reads the body for logging and puts it back for the handler.
func redactRequestBody(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	raw, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(raw))

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return RedactQuery(string(raw))
	}
	return RedactJSON(raw)
}

// RedactQuery masks secret url-encoded parameters such as vnp_SecureHash.
func RedactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "[FILTERED - Unparseable query]"
	}
	for name := range values {
		if isSecret(name) {
			values.Set(name, redacted)
		}
	}
	return values.Encode()
}

func redactHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSecret(name) {
			out[name] = redacted
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// RedactJSON masks secret keys at any depth. Bodies that are not JSON are
// dropped entirely when they mention a secret marker.
func RedactJSON(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		if isSecret(string(body)) {
			return "[FILTERED - Contains sensitive data]"
		}
		return string(body)
	}

	out, err := json.Marshal(redactValue(doc))
	if err != nil {
		return "[ERROR - Failed to marshal filtered JSON]"
	}
	return string(out)
}

func redactValue(v interface{}) interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		for key, child := range node {
			if isSecret(key) {
				node[key] = redacted
				continue
			}
			node[key] = redactValue(child)
		}
		return node
	case []interface{}:
		for i := range node {
			node[i] = redactValue(node[i])
		}
		return node
	default:
		return v
	}
}
