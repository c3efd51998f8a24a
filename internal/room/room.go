package room

import (
	"context"

	"github.com/frahmantamala/room-rental/internal/core/datamodel/room"
)

type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64) (*room.Room, error)
	// LockByID reads the room under a row lock; only meaningful inside a transaction.
	LockByID(ctx context.Context, id int64) (*room.Room, error)
	ListActive(ctx context.Context, filter ListFilter) ([]*room.Room, int64, error)
	Create(ctx context.Context, r *room.Room) error
}

type ListFilter struct {
	City       string
	LandlordID int64
	MaxRent    int64
	Occupants  int
	Limit      int
	Offset     int
}
