package user

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/user"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetByID(ctx context.Context, id int64) (*user.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if !internal.HasCode(err, internal.ErrCodeUserNotFound) {
			s.logger.Error("failed to load user", "error", err, "user_id", id)
		}
		return nil, err
	}
	return u, nil
}

// Contact returns the address and phone a counterparty should use,
// empty when the user has none on file.
func (s *Service) Contact(ctx context.Context, id int64) (Contact, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return Contact{}, err
	}
	return Contact{Name: u.Name, Email: u.Email, Phone: u.Phone, Address: u.Address}, nil
}
