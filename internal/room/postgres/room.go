package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/core/database"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/room"
	roompkg "github.com/frahmantamala/room-rental/internal/room"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

var _ roompkg.RepositoryAPI = (*RoomRepository)(nil)

func (r *RoomRepository) GetByID(ctx context.Context, id int64) (*room.Room, error) {
	var rm room.Room
	if err := database.Conn(ctx, r.db).First(&rm, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &rm, nil
}

func (r *RoomRepository) LockByID(ctx context.Context, id int64) (*room.Room, error) {
	var rm room.Room
	err := database.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&rm, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rm, nil
}

func (r *RoomRepository) ListActive(ctx context.Context, f roompkg.ListFilter) ([]*room.Room, int64, error) {
	q := database.Conn(ctx, r.db).Model(&room.Room{}).
		Where("status = ? AND is_available = ?", room.StatusActive, true)
	if f.City != "" {
		q = q.Where("LOWER(city) LIKE ?", "%"+strings.ToLower(f.City)+"%")
	}
	if f.LandlordID > 0 {
		q = q.Where("landlord_id = ?", f.LandlordID)
	}
	if f.MaxRent > 0 {
		q = q.Where("monthly_rent <= ?", f.MaxRent)
	}
	if f.Occupants > 0 {
		q = q.Where("max_occupants >= ?", f.Occupants)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rooms []*room.Room
	err := q.Order("created_at DESC, id DESC").Limit(f.Limit).Offset(f.Offset).Find(&rooms).Error
	return rooms, total, err
}

func (r *RoomRepository) Create(ctx context.Context, rm *room.Room) error {
	return database.Conn(ctx, r.db).Create(rm).Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return internal.ErrRoomNotFound()
	}
	return err
}
