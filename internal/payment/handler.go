package payment

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/payment"
	"github.com/frahmantamala/room-rental/internal/transport"
)

type ServiceAPI interface {
	GetByID(ctx context.Context, actor internal.Actor, id int64) (*payment.Payment, error)
	ListForUser(ctx context.Context, actor internal.Actor, filter ListFilter) ([]*payment.Payment, int64, error)
	GetStats(ctx context.Context, actor internal.Actor, filter StatsFilter) (*Stats, error)
	Backfill(ctx context.Context, actor internal.Actor) (int, error)
	CreateInstallment(ctx context.Context, actor internal.Actor, bookingID int64, month int) (*payment.Payment, error)
	ConfirmBankTransfer(ctx context.Context, actor internal.Actor, id int64, dto BankTransferDTO) (*payment.Payment, error)
	RequestRefund(ctx context.Context, actor internal.Actor, id int64, dto RefundRequestDTO) (*payment.Payment, error)
	CompleteRefund(ctx context.Context, actor internal.Actor, id int64) (*payment.Payment, error)
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

// ListPayments handles GET /api/v1/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := ListFilter{Type: q.Get("type"), Status: q.Get("status")}
	filter.Limit, filter.Offset = transport.Page(r)
	if id, err := strconv.ParseInt(q.Get("booking_id"), 10, 64); err == nil {
		filter.BookingID = id
	}

	list, total, err := h.Service.ListForUser(r.Context(), actor, filter)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"payments": ToResponses(list),
		"total":    total,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

// GetStats handles GET /api/v1/payments/stats?booking_id=&type=&from=&to=
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := StatsFilter{Type: q.Get("type")}
	if id, err := strconv.ParseInt(q.Get("booking_id"), 10, 64); err == nil {
		filter.BookingID = id
	}
	for key, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.HandleError(w, internal.NewValidationFieldError(key, key+" must be an RFC3339 timestamp", internal.ErrCodeInvalidDateRange))
			return
		}
		*dst = &t
	}

	stats, err := h.Service.GetStats(r.Context(), actor, filter)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.Service.GetByID(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToResponse(p))
}

// CreateInstallment handles POST /api/v1/bookings/{id}/installments/{month}/payment
func (h *Handler) CreateInstallment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	bookingID, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}
	month, ok := h.IDParam(w, r, "month")
	if !ok {
		return
	}

	p, err := h.Service.CreateInstallment(r.Context(), actor, bookingID, int(month))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToResponse(p))
}

// ConfirmBankTransfer handles POST /api/v1/payments/{id}/bank-transfer
func (h *Handler) ConfirmBankTransfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	var dto BankTransferDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	p, err := h.Service.ConfirmBankTransfer(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("ConfirmBankTransfer: transfer confirmed", "payment_id", id, "actor_id", actor.ID)
	h.WriteJSON(w, http.StatusOK, ToResponse(p))
}

// RequestRefund handles POST /api/v1/payments/{id}/refund
func (h *Handler) RequestRefund(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	var dto RefundRequestDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	p, err := h.Service.RequestRefund(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToResponse(p))
}

// CompleteRefund handles POST /api/v1/payments/{id}/refund/complete
func (h *Handler) CompleteRefund(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.Service.CompleteRefund(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToResponse(p))
}

// Backfill handles POST /api/v1/payments/backfill
func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	repaired, err := h.Service.Backfill(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("Backfill: deposit payments repaired", "count", repaired, "actor_id", actor.ID)
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"repaired": repaired})
}
