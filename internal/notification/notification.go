package notification

import (
	"context"

	"github.com/frahmantamala/room-rental/internal/core/datamodel/notification"
)

type Repository interface {
	Create(ctx context.Context, n *notification.Notification) error
	GetByID(ctx context.Context, id int64) (*notification.Notification, error)
	ListByUser(ctx context.Context, filter ListFilter) ([]*notification.Notification, int64, error)
	MarkRead(ctx context.Context, id, userID int64) (bool, error)
}

type ListFilter struct {
	UserID     int64
	UnreadOnly bool
	Limit      int
	Offset     int
}

// Job is one unit of best-effort delivery. Exactly one of Notification and
// Email is set.
type Job struct {
	Notification *notification.Notification
	Email        *EmailMessage
}

type EmailMessage struct {
	To       string
	Template string
	Data     map[string]interface{}
}
