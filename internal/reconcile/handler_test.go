package reconcile_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/paymentgateway"
	"github.com/frahmantamala/room-rental/internal/reconcile"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubReconciler struct {
	params   map[string]string
	checkout reconcile.CheckoutDTO
	actor    internal.Actor
	ack      paymentgateway.IPNAck
	err      error
}

func (s *stubReconciler) Checkout(_ context.Context, actor internal.Actor, paymentID int64, dto reconcile.CheckoutDTO) (*reconcile.CheckoutResponse, error) {
	s.actor, s.checkout = actor, dto
	if s.err != nil {
		return nil, s.err
	}
	return &reconcile.CheckoutResponse{PaymentID: paymentID, TxnRef: "PAY1", PaymentURL: "https://sandbox.vnpayment.vn/pay?x=1"}, nil
}

func (s *stubReconciler) HandleReturn(_ context.Context, params map[string]string) string {
	s.params = params
	return "http://localhost:3000/payment/success"
}

func (s *stubReconciler) HandleIPN(_ context.Context, params map[string]string) paymentgateway.IPNAck {
	s.params = params
	return s.ack
}

var _ = Describe("Handler", func() {
	var (
		stub    *stubReconciler
		handler *reconcile.Handler
	)

	BeforeEach(func() {
		stub = &stubReconciler{ack: paymentgateway.AckSuccess}
		handler = reconcile.NewHandler(stub, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
	})

	It("redirects the browser after a return", func() {
		rec := httptest.NewRecorder()
		handler.Return(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments/vnpay/return?vnp_TxnRef=PAY1&vnp_ResponseCode=00", nil))

		Expect(rec.Code).To(Equal(http.StatusFound))
		Expect(rec.Header().Get("Location")).To(Equal("http://localhost:3000/payment/success"))
		Expect(stub.params).To(HaveKeyWithValue("vnp_TxnRef", "PAY1"))
	})

	It("acks IPN posted as a form with 200 even on failure codes", func() {
		stub.ack = paymentgateway.AckInvalidSignature
		form := url.Values{"vnp_TxnRef": {"PAY1"}, "vnp_SecureHash": {"bad"}}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/vnpay/ipn", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		handler.IPN(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		var ack paymentgateway.IPNAck
		Expect(json.Unmarshal(rec.Body.Bytes(), &ack)).To(Succeed())
		Expect(ack.RspCode).To(Equal("97"))
		Expect(stub.params).To(HaveKeyWithValue("vnp_SecureHash", "bad"))
	})

	Describe("Checkout", func() {
		request := func(body string) *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/9/checkout", strings.NewReader(body))
			req.RemoteAddr = "203.0.113.7:51234"
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", "9")
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			return req.WithContext(internal.ContextWithActor(ctx, internal.Actor{ID: 3, Role: internal.RoleTenant}))
		}

		It("passes the client ip and returns the payment url", func() {
			rec := httptest.NewRecorder()
			handler.Checkout(rec, request(`{"bank_code":"NCB"}`))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(stub.checkout.ClientIP).To(Equal("203.0.113.7"))
			Expect(stub.checkout.BankCode).To(Equal("NCB"))
			Expect(stub.actor.ID).To(Equal(int64(3)))

			var resp reconcile.CheckoutResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.PaymentID).To(Equal(int64(9)))
			Expect(resp.PaymentURL).To(HavePrefix("https://"))
		})

		It("maps service errors", func() {
			stub.err = internal.NewNotFoundError("Payment not found", internal.ErrCodePaymentNotFound)
			rec := httptest.NewRecorder()
			handler.Checkout(rec, request(""))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("requires authentication", func() {
			rec := httptest.NewRecorder()
			handler.Checkout(rec, httptest.NewRequest(http.MethodPost, "/api/v1/payments/9/checkout", nil))
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
