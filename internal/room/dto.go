package room

import (
	"time"

	"github.com/frahmantamala/room-rental/internal/core/datamodel/room"
)

type RoomResponse struct {
	ID           int64     `json:"id"`
	LandlordID   int64     `json:"landlord_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Address      string    `json:"address"`
	City         string    `json:"city"`
	MonthlyRent  int64     `json:"monthly_rent"`
	Deposit      int64     `json:"deposit"`
	Utilities    int64     `json:"utilities"`
	MaxOccupants int       `json:"max_occupants"`
	Status       string    `json:"status"`
	IsAvailable  bool      `json:"is_available"`
	CreatedAt    time.Time `json:"created_at"`
}

type RoomsResponse struct {
	Rooms  []RoomResponse `json:"rooms"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func ToResponse(r *room.Room) RoomResponse {
	return RoomResponse{
		ID:           r.ID,
		LandlordID:   r.LandlordID,
		Title:        r.Title,
		Description:  r.Description,
		Address:      r.Address,
		City:         r.City,
		MonthlyRent:  r.MonthlyRent,
		Deposit:      r.Deposit,
		Utilities:    r.Utilities,
		MaxOccupants: r.MaxOccupants,
		Status:       r.Status,
		IsAvailable:  r.IsAvailable,
		CreatedAt:    r.CreatedAt,
	}
}
