package notification

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/notification"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, lg *slog.Logger) *Service {
	return &Service{repo: repo, logger: lg}
}

func (s *Service) List(ctx context.Context, actor internal.Actor, filter ListFilter) ([]*notification.Notification, int64, error) {
	filter.UserID = actor.ID
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = defaultListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	list, total, err := s.repo.ListByUser(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list notifications", "error", err, "user_id", actor.ID)
		return nil, 0, internal.NewInternalError("failed to list notifications", err)
	}
	return list, total, nil
}

// MarkRead marks one of the caller's notifications read. Marking it twice is fine.
func (s *Service) MarkRead(ctx context.Context, actor internal.Actor, id int64) (*notification.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != actor.ID {
		return nil, internal.ErrUnauthorizedAccess()
	}
	if n.IsRead {
		return n, nil
	}

	if _, err := s.repo.MarkRead(ctx, id, actor.ID); err != nil {
		s.logger.Error("failed to mark notification read", "error", err, "notification_id", id)
		return nil, internal.NewInternalError("failed to update notification", err)
	}
	return s.repo.GetByID(ctx, id)
}
