package middleware_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/frahmantamala/room-rental/internal/transport/middleware"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

var _ = Describe("Redaction", func() {
	It("masks the gateway signature in query strings", func() {
		out := middleware.RedactQuery("vnp_Amount=300000000&vnp_SecureHash=abcdef&vnp_TxnRef=PAY1")
		Expect(out).To(ContainSubstring("vnp_Amount=300000000"))
		Expect(out).To(ContainSubstring("vnp_SecureHash=%5BFILTERED%5D"))
		Expect(out).NotTo(ContainSubstring("abcdef"))
	})

	It("masks nested JSON secrets", func() {
		out := middleware.RedactJSON([]byte(`{"email":"a@b.vn","password":"hunter2","bank":{"account_number":"0123"},"tokens":[{"access_token":"x"}]}`))
		Expect(out).To(ContainSubstring(`"email":"a@b.vn"`))
		Expect(out).NotTo(ContainSubstring("hunter2"))
		Expect(out).NotTo(ContainSubstring("0123"))
		Expect(out).To(ContainSubstring(`"password":"[FILTERED]"`))
	})

	It("drops plain text that mentions a secret", func() {
		Expect(middleware.RedactJSON([]byte("password=hunter2"))).To(Equal("[FILTERED - Contains sensitive data]"))
		Expect(middleware.RedactJSON([]byte("hello"))).To(Equal("hello"))
	})
})

var _ = Describe("LoggingMiddleware", func() {
	It("passes the request body through and logs without secrets", func() {
		var logs bytes.Buffer
		lg := slog.New(slog.NewJSONHandler(&logs, nil))

		var seen string
		handler := middleware.LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			seen = string(raw)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"a@b.vn","password":"hunter2"}`))
		req.Header.Set("Authorization", "Bearer secret-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(seen).To(ContainSubstring("hunter2"))
		Expect(logs.String()).NotTo(ContainSubstring("hunter2"))
		Expect(logs.String()).NotTo(ContainSubstring("secret-token"))
		Expect(logs.String()).To(ContainSubstring(`"status_code":201`))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("turns a panic into a 500", func() {
		lg := slog.New(slog.NewTextHandler(io.Discard, nil))
		handler := middleware.RecoveryMiddleware(lg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
	})
})

var _ = Describe("CORS", func() {
	handler := middleware.CORS("http://localhost:3000")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	It("answers preflight for allowed origins", func() {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/bookings", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("http://localhost:3000"))
	})

	It("ignores other origins", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})
})

var _ = Describe("TraceID", func() {
	It("echoes an incoming trace id", func() {
		handler := middleware.TraceID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.TraceHeader, "trace-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		Expect(rec.Header().Get(middleware.TraceHeader)).To(Equal("trace-1"))
	})
})
