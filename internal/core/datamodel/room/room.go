package room

import "time"

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type Room struct {
	ID           int64     `gorm:"primaryKey"`
	LandlordID   int64     `gorm:"column:landlord_id;not null;index"`
	Title        string    `gorm:"column:title;not null"`
	Description  string    `gorm:"column:description"`
	Address      string    `gorm:"column:address;not null"`
	City         string    `gorm:"column:city;index"`
	MonthlyRent  int64     `gorm:"column:monthly_rent;not null"`
	Deposit      int64     `gorm:"column:deposit;not null"`
	Utilities    int64     `gorm:"column:utilities;not null"`
	MaxOccupants int       `gorm:"column:max_occupants;not null"`
	Status       string    `gorm:"column:status;not null"`
	IsAvailable  bool      `gorm:"column:is_available"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
