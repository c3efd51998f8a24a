package notification

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/notification"
	"github.com/frahmantamala/room-rental/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context, actor internal.Actor, filter ListFilter) ([]*notification.Notification, int64, error)
	MarkRead(ctx context.Context, actor internal.Actor, id int64) (*notification.Notification, error)
}

type NotificationResponse struct {
	ID        int64                  `json:"id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	IsRead    bool                   `json:"is_read"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func ToResponse(n *notification.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
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

// ListNotifications handles GET /api/v1/notifications?unread=true
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	filter := ListFilter{UnreadOnly: r.URL.Query().Get("unread") == "true"}
	filter.Limit, filter.Offset = transport.Page(r)

	list, total, err := h.Service.List(r.Context(), actor, filter)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	out := make([]NotificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, ToResponse(n))
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": out,
		"total":         total,
		"limit":         filter.Limit,
		"offset":        filter.Offset,
	})
}

// MarkRead handles PATCH /api/v1/notifications/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	n, err := h.Service.MarkRead(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToResponse(n))
}
