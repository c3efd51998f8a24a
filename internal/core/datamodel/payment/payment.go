package payment

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TypeDeposit     = "deposit"
	TypeMonthlyRent = "monthly_rent"
	TypeUtilities   = "utilities"
	TypePenalty     = "penalty"
	TypeRefund      = "refund"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
	StatusRefunded   = "refunded"
)

const (
	MethodPending      = "pending"
	MethodVNPay        = "vnpay"
	MethodBankTransfer = "bank_transfer"
	MethodCash         = "cash"
	MethodOther        = "other"
)

const (
	RefundRequested = "requested"
	RefundCompleted = "completed"
)

const CurrencyVND = "VND"

type GatewayDetails struct {
	TxnRef        *string           `gorm:"column:txn_ref;uniqueIndex"`
	TransactionNo string            `gorm:"column:transaction_no"`
	BankCode      string            `gorm:"column:bank_code"`
	ResponseCode  string            `gorm:"column:response_code"`
	PayDate       string            `gorm:"column:pay_date"`
	Raw           datatypes.JSONMap `gorm:"column:raw"`
}

type BankTransfer struct {
	BankName      string     `gorm:"column:name"`
	AccountNumber string     `gorm:"column:account_number"`
	Reference     string     `gorm:"column:reference"`
	ConfirmedBy   *int64     `gorm:"column:confirmed_by"`
	ConfirmedAt   *time.Time `gorm:"column:confirmed_at"`
}

type Refund struct {
	Status      string     `gorm:"column:status"`
	Amount      int64      `gorm:"column:amount"`
	Reason      string     `gorm:"column:reason"`
	RequestedBy *int64     `gorm:"column:requested_by"`
	RequestedAt *time.Time `gorm:"column:requested_at"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`
}

type Fees struct {
	Platform int64 `gorm:"column:platform"`
	Gateway  int64 `gorm:"column:gateway"`
}

type Payment struct {
	ID            int64          `gorm:"primaryKey"`
	TransactionID string         `gorm:"column:transaction_id;uniqueIndex;not null"`
	BookingID     int64          `gorm:"column:booking_id;not null;index"`
	PayerID       int64          `gorm:"column:payer_id;not null;index"`
	RecipientID   int64          `gorm:"column:recipient_id;not null;index"`
	Type          string         `gorm:"column:type;not null"`
	Month         *int           `gorm:"column:month"`
	Amount        int64          `gorm:"column:amount;not null"`
	Currency      string         `gorm:"column:currency;not null"`
	Status        string         `gorm:"column:status;not null;index"`
	Method        string         `gorm:"column:method;not null"`
	Description   string         `gorm:"column:description"`
	Gateway       GatewayDetails `gorm:"embedded;embeddedPrefix:gateway_"`
	BankTransfer  BankTransfer   `gorm:"embedded;embeddedPrefix:bank_"`
	Refund        Refund         `gorm:"embedded;embeddedPrefix:refund_"`
	Fees          Fees           `gorm:"embedded;embeddedPrefix:fee_"`
	FailureReason string         `gorm:"column:failure_reason"`
	Backfilled    bool           `gorm:"column:backfilled"`
	InitiatedAt   *time.Time     `gorm:"column:initiated_at"`
	ProcessedAt   *time.Time     `gorm:"column:processed_at"`
	CompletedAt   *time.Time     `gorm:"column:completed_at"`
	FailedAt      *time.Time     `gorm:"column:failed_at"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
