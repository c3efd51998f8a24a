package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/room-rental/internal/core/datamodel/booking"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/payment"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ReasonBookingCancelled = "Booking cancelled"
	ReasonBookingExpired   = "Booking expired"
)

// completable are the statuses a payment may be completed from. A refunded or
// already completed payment is never touched again.
var completable = []string{
	payment.StatusPending,
	payment.StatusProcessing,
	payment.StatusFailed,
	payment.StatusCancelled,
}

var open = []string{payment.StatusPending, payment.StatusProcessing}

var payable = []string{payment.StatusPending, payment.StatusProcessing, payment.StatusFailed}

type Repository interface {
	Create(ctx context.Context, p *payment.Payment) error
	GetByID(ctx context.Context, id int64) (*payment.Payment, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*payment.Payment, error)
	GetByTxnRef(ctx context.Context, txnRef string) (*payment.Payment, error)
	FindLatestByBookingAndType(ctx context.Context, bookingID int64, paymentType string) (*payment.Payment, error)
	FindInstallment(ctx context.Context, bookingID int64, month int) (*payment.Payment, error)
	ListOpenByBooking(ctx context.Context, bookingID int64) ([]*payment.Payment, error)
	List(ctx context.Context, filter ListFilter) ([]*payment.Payment, int64, error)
	// Transition applies updates only while the row is in one of from.
	Transition(ctx context.Context, id int64, from []string, updates map[string]interface{}) (bool, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	// MarkRefundRequested applies updates only to a completed payment with no refund yet.
	MarkRefundRequested(ctx context.Context, id int64, updates map[string]interface{}) (bool, error)
	FindBookingsMissingDeposit(ctx context.Context, userID int64, all bool) ([]*booking.Booking, error)
}

type StatsReader interface {
	Stats(ctx context.Context, filter StatsFilter) (*Stats, error)
}

// BookingLedger is the slice of booking storage that payments write through.
type BookingLedger interface {
	GetByID(ctx context.Context, id int64) (*booking.Booking, error)
	MarkInstallmentPaid(ctx context.Context, bookingID int64, month int, paymentID int64, paidAt time.Time) error
	MarkRefundCompleted(ctx context.Context, bookingID int64, at time.Time) error
}

type Notifier interface {
	Notify(ctx context.Context, userID int64, kind, title, message string, data map[string]interface{})
}

type ListFilter struct {
	UserID    int64
	All       bool
	BookingID int64
	Type      string
	Status    string
	Limit     int
	Offset    int
}

type StatsFilter struct {
	UserID    int64
	All       bool
	BookingID int64
	Type      string
	From      *time.Time
	To        *time.Time
}

type Stats struct {
	TotalAmount      int64 `db:"total_amount" json:"total_amount"`
	TotalCount       int64 `db:"total_count" json:"total_count"`
	SuccessfulAmount int64 `db:"successful_amount" json:"successful_amount"`
	SuccessfulCount  int64 `db:"successful_count" json:"successful_count"`
	PendingAmount    int64 `db:"pending_amount" json:"pending_amount"`
	PendingCount     int64 `db:"pending_count" json:"pending_count"`
}

// Completion describes how a payment was settled.
type Completion struct {
	Method        string
	ExternalRef   string
	TransactionNo string
	BankCode      string
	ResponseCode  string
	PayDate       string
	Raw           map[string]interface{}
	At            time.Time
	Backfilled    bool
}

func NewTransactionID(now time.Time) string {
	return fmt.Sprintf("TXN%s%s", now.Format("20060102"), strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12]))
}

// NewTxnRef returns a fresh gateway reference; every checkout attempt gets its own.
func NewTxnRef() string {
	return "PAY" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// AmountFor derives a payment amount from the booking's pricing.
func AmountFor(b *booking.Booking, paymentType string) int64 {
	switch paymentType {
	case payment.TypeDeposit:
		return b.Pricing.Deposit
	case payment.TypeMonthlyRent:
		return b.Pricing.MonthlyRent
	case payment.TypeUtilities:
		return b.Pricing.Utilities
	}
	return 0
}

func Refundable(p *payment.Payment) bool {
	return p.Status == payment.StatusCompleted && p.Refund.Status == ""
}

func Payable(p *payment.Payment) bool {
	for _, s := range payable {
		if p.Status == s {
			return true
		}
	}
	return false
}

func describe(paymentType, contract string) string {
	switch paymentType {
	case payment.TypeDeposit:
		return "Tiền đặt cọc hợp đồng " + contract
	case payment.TypeMonthlyRent:
		return "Tiền thuê tháng hợp đồng " + contract
	case payment.TypeUtilities:
		return "Phí tiện ích hợp đồng " + contract
	}
	return "Thanh toán hợp đồng " + contract
}

func completionUpdates(c Completion) map[string]interface{} {
	at := c.At
	updates := map[string]interface{}{
		"status":         payment.StatusCompleted,
		"processed_at":   at,
		"completed_at":   at,
		"failure_reason": "",
	}
	if c.Method != "" {
		updates["method"] = c.Method
	}
	if c.TransactionNo != "" {
		updates["gateway_transaction_no"] = c.TransactionNo
	}
	if c.BankCode != "" {
		updates["gateway_bank_code"] = c.BankCode
	}
	if c.ResponseCode != "" {
		updates["gateway_response_code"] = c.ResponseCode
	}
	if c.PayDate != "" {
		updates["gateway_pay_date"] = c.PayDate
	}
	if c.Raw != nil {
		updates["gateway_raw"] = datatypes.JSONMap(c.Raw)
	}
	// gateway payments already carry their reference in gateway_txn_ref
	if c.Method != payment.MethodVNPay && c.ExternalRef != "" {
		updates["bank_reference"] = c.ExternalRef
	}
	if c.Backfilled {
		updates["backfilled"] = true
	}
	return updates
}
