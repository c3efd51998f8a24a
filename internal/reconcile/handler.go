package reconcile

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/paymentgateway"
	"github.com/frahmantamala/room-rental/internal/transport"
)

type ServiceAPI interface {
	Checkout(ctx context.Context, actor internal.Actor, paymentID int64, dto CheckoutDTO) (*CheckoutResponse, error)
	HandleReturn(ctx context.Context, params map[string]string) string
	HandleIPN(ctx context.Context, params map[string]string) paymentgateway.IPNAck
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// Checkout handles POST /api/v1/payments/{id}/checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	var dto CheckoutDTO
	if r.ContentLength != 0 && !h.DecodeJSON(w, r, &dto) {
		return
	}
	dto.ClientIP = clientIP(r)

	resp, err := h.Service.Checkout(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// Return handles GET /api/v1/payments/vnpay/return. It always redirects.
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	params := paymentgateway.FlattenValues(r.URL.Query())
	target := h.Service.HandleReturn(r.Context(), params)
	http.Redirect(w, r, target, http.StatusFound)
}

// IPN handles GET and POST /api/v1/payments/vnpay/ipn. The gateway only
// understands the ack body, so the status is always 200.
func (h *Handler) IPN(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.Logger.Warn("IPN: malformed request", "error", err)
		h.WriteJSON(w, http.StatusOK, paymentgateway.AckUnknownError)
		return
	}

	ack := h.Service.HandleIPN(r.Context(), paymentgateway.FlattenValues(r.Form))
	h.WriteJSON(w, http.StatusOK, ack)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
