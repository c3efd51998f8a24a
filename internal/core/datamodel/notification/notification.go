package notification

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TypeBookingCreated   = "booking_created"
	TypeBookingConfirmed = "booking_confirmed"
	TypeBookingStatus    = "booking_status"
	TypeBookingCancelled = "booking_cancelled"
	TypePaymentSuccess   = "payment_success"
	TypePaymentReceived  = "payment_received"
	TypePaymentFailed    = "payment_failed"
	TypeRefundRequested  = "refund_requested"
	TypeRefundCompleted  = "refund_completed"
)

type Notification struct {
	ID        int64             `gorm:"primaryKey"`
	UserID    int64             `gorm:"column:user_id;not null;index"`
	Type      string            `gorm:"column:type;not null"`
	Title     string            `gorm:"column:title;not null"`
	Message   string            `gorm:"column:message;not null"`
	Data      datatypes.JSONMap `gorm:"column:data"`
	IsRead    bool              `gorm:"column:is_read"`
	ReadAt    *time.Time        `gorm:"column:read_at"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}
