package room

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/room-rental/internal/core/datamodel/room"
	"github.com/frahmantamala/room-rental/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context, filter ListFilter) ([]*room.Room, int64, error)
	Get(ctx context.Context, id int64) (*room.Room, error)
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

// GetRooms handles GET /api/v1/rooms?city=&max_rent=&occupants=
func (h *Handler) GetRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{City: q.Get("city")}
	filter.Limit, filter.Offset = transport.Page(r)
	if v, err := strconv.ParseInt(q.Get("max_rent"), 10, 64); err == nil {
		filter.MaxRent = v
	}
	if v, err := strconv.Atoi(q.Get("occupants")); err == nil {
		filter.Occupants = v
	}
	if v, err := strconv.ParseInt(q.Get("landlord_id"), 10, 64); err == nil {
		filter.LandlordID = v
	}

	rooms, total, err := h.Service.List(r.Context(), filter)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	resp := RoomsResponse{
		Rooms:  make([]RoomResponse, 0, len(rooms)),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for _, rm := range rooms {
		resp.Rooms = append(resp.Rooms, ToResponse(rm))
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	rm, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToResponse(rm))
}
