package booking

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusDepositPaid Status = "deposit_paid"
	StatusActive      Status = "active"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusExpired     Status = "expired"
)

// NonTerminalStatuses hold the room for their date range.
var NonTerminalStatuses = []Status{StatusPending, StatusConfirmed, StatusDepositPaid, StatusActive}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusDepositPaid, StatusActive,
		StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

const (
	DepositPending  = "pending"
	DepositPaid     = "paid"
	DepositRefunded = "refunded"

	InstallmentPending = "pending"
	InstallmentPaid    = "paid"
	InstallmentOverdue = "overdue"

	RefundPending   = "pending"
	RefundCompleted = "completed"
)

type Pricing struct {
	MonthlyRent int64 `gorm:"column:monthly_rent" json:"monthly_rent"`
	Deposit     int64 `gorm:"column:deposit" json:"deposit"`
	Utilities   int64 `gorm:"column:utilities" json:"utilities"`
	TotalAmount int64 `gorm:"column:total_amount" json:"total_amount"`
}

type DepositState struct {
	Status      string     `gorm:"column:status" json:"status"`
	Amount      int64      `gorm:"column:amount" json:"amount"`
	PaidAt      *time.Time `gorm:"column:paid_at" json:"paid_at,omitempty"`
	Method      string     `gorm:"column:method" json:"method,omitempty"`
	ExternalRef string     `gorm:"column:external_ref" json:"external_ref,omitempty"`
}

// Installment is one month of the rent schedule.
type Installment struct {
	Month     int        `json:"month"`
	Amount    int64      `json:"amount"`
	DueDate   time.Time  `json:"due_date"`
	Status    string     `json:"status"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	PaymentID *int64     `json:"payment_id,omitempty"`
}

type Cancellation struct {
	CancelledBy  string     `gorm:"column:by" json:"cancelled_by,omitempty"`
	CancelledAt  *time.Time `gorm:"column:at" json:"cancelled_at,omitempty"`
	Reason       string     `gorm:"column:reason" json:"reason,omitempty"`
	RefundAmount int64      `gorm:"column:refund_amount" json:"refund_amount,omitempty"`
	RefundStatus string     `gorm:"column:refund_status" json:"refund_status,omitempty"`
}

type Booking struct {
	ID             int64                            `gorm:"primaryKey"`
	ContractNumber string                           `gorm:"column:contract_number;uniqueIndex;not null"`
	RoomID         int64                            `gorm:"column:room_id;not null;index"`
	TenantID       int64                            `gorm:"column:tenant_id;not null;index"`
	LandlordID     int64                            `gorm:"column:landlord_id;not null;index"`
	CheckIn        time.Time                        `gorm:"column:check_in;not null"`
	CheckOut       time.Time                        `gorm:"column:check_out;not null"`
	DurationMonths int                              `gorm:"column:duration_months;not null"`
	Occupants      int                              `gorm:"column:occupants;not null"`
	Pricing        Pricing                          `gorm:"embedded;embeddedPrefix:pricing_"`
	Status         Status                           `gorm:"column:status;not null;index"`
	Deposit        DepositState                     `gorm:"embedded;embeddedPrefix:deposit_"`
	Monthly        datatypes.JSONSlice[Installment] `gorm:"column:monthly_schedule"`
	Cancellation   Cancellation                     `gorm:"embedded;embeddedPrefix:cancellation_"`
	Notes          string                           `gorm:"column:notes"`
	CreatedAt      time.Time                        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                        `gorm:"column:updated_at;autoUpdateTime"`
}
