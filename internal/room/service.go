package room

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/room"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*room.Room, int64, error) {
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = defaultListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	rooms, total, err := s.repo.ListActive(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list rooms", "error", err)
		return nil, 0, internal.NewInternalError("failed to list rooms", err)
	}

	s.logger.Debug("retrieved rooms", "count", len(rooms), "total", total)
	return rooms, total, nil
}

// Get returns a listed room. Inactive rooms are hidden from the catalogue.
func (s *Service) Get(ctx context.Context, id int64) (*room.Room, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != room.StatusActive {
		return nil, internal.ErrRoomNotFound()
	}
	return r, nil
}

// GetByID returns the room whatever its status.
func (s *Service) GetByID(ctx context.Context, id int64) (*room.Room, error) {
	return s.repo.GetByID(ctx, id)
}
