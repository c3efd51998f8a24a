package booking

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/booking"
	"github.com/frahmantamala/room-rental/internal/transport"
)

type ServiceAPI interface {
	Create(ctx context.Context, actor internal.Actor, dto CreateBookingDTO) (*booking.Booking, error)
	Confirm(ctx context.Context, actor internal.Actor, id int64, dto ConfirmBookingDTO) (*booking.Booking, error)
	SetStatus(ctx context.Context, actor internal.Actor, id int64, dto SetStatusDTO) (*booking.Booking, error)
	Cancel(ctx context.Context, actor internal.Actor, id int64, dto CancelBookingDTO) (*booking.Booking, error)
	Get(ctx context.Context, actor internal.Actor, id int64) (*booking.Booking, error)
	List(ctx context.Context, actor internal.Actor, filter ListFilter) ([]*booking.Booking, int64, error)
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

// CreateBooking handles POST /api/v1/bookings
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	var dto CreateBookingDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	b, err := h.Service.Create(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreateBooking: booking created",
		"booking_id", b.ID,
		"room_id", b.RoomID,
		"tenant_id", actor.ID)

	h.WriteJSON(w, http.StatusCreated, ToResponse(b))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	b, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToResponse(b))
}

// ListBookings handles GET /api/v1/bookings?status=&room_id=&limit=&offset=
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := ListFilter{Status: booking.Status(q.Get("status"))}
	filter.Limit, filter.Offset = transport.Page(r)
	if roomID, err := strconv.ParseInt(q.Get("room_id"), 10, 64); err == nil {
		filter.RoomID = roomID
	}
	if actor.IsAdmin() {
		if id, err := strconv.ParseInt(q.Get("tenant_id"), 10, 64); err == nil {
			filter.TenantID = id
		}
		if id, err := strconv.ParseInt(q.Get("landlord_id"), 10, 64); err == nil {
			filter.LandlordID = id
		}
	}

	list, total, err := h.Service.List(r.Context(), actor, filter)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"bookings": ToResponses(list),
		"total":    total,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

// ConfirmBooking handles PATCH /api/v1/bookings/{id}/confirm
func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	var dto ConfirmBookingDTO
	if r.ContentLength != 0 && !h.DecodeJSON(w, r, &dto) {
		return
	}

	b, err := h.Service.Confirm(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("ConfirmBooking: booking confirmed", "booking_id", id, "status", b.Status, "actor_id", actor.ID)
	h.WriteJSON(w, http.StatusOK, ToResponse(b))
}

// SetStatus handles PATCH /api/v1/bookings/{id}/status
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	var dto SetStatusDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	b, err := h.Service.SetStatus(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("SetStatus: booking status updated", "booking_id", id, "status", b.Status, "actor_id", actor.ID)
	h.WriteJSON(w, http.StatusOK, ToResponse(b))
}

// CancelBooking handles PATCH /api/v1/bookings/{id}/cancel
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	var dto CancelBookingDTO
	if r.ContentLength != 0 && !h.DecodeJSON(w, r, &dto) {
		return
	}

	b, err := h.Service.Cancel(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CancelBooking: booking cancelled", "booking_id", id, "actor_id", actor.ID)
	h.WriteJSON(w, http.StatusOK, ToResponse(b))
}
