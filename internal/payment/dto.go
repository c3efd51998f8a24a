package payment

import (
	"time"

	"github.com/frahmantamala/room-rental/internal/core/common/validation"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/payment"
)

type RefundRequestDTO struct {
	Amount int64  `json:"amount" validate:"gte=0"`
	Reason string `json:"reason" validate:"required,max=500"`
}

func (d *RefundRequestDTO) Validate() error {
	if appErr := validation.Struct(d); appErr != nil {
		return appErr
	}
	return nil
}

type BankTransferDTO struct {
	BankName      string `json:"bank_name" validate:"required,max=100"`
	AccountNumber string `json:"account_number" validate:"required,max=50"`
	Reference     string `json:"reference" validate:"required,max=100"`
}

func (d *BankTransferDTO) Validate() error {
	if appErr := validation.Struct(d); appErr != nil {
		return appErr
	}
	return nil
}

type PaymentResponse struct {
	ID            int64      `json:"id"`
	TransactionID string     `json:"transaction_id"`
	BookingID     int64      `json:"booking_id"`
	PayerID       int64      `json:"payer_id"`
	RecipientID   int64      `json:"recipient_id"`
	Type          string     `json:"type"`
	Month         *int       `json:"month,omitempty"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	Method        string     `json:"method"`
	Description   string     `json:"description,omitempty"`
	TxnRef        string     `json:"txn_ref,omitempty"`
	TransactionNo string     `json:"transaction_no,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	RefundStatus  string     `json:"refund_status,omitempty"`
	RefundAmount  int64      `json:"refund_amount,omitempty"`
	Backfilled    bool       `json:"backfilled"`
	InitiatedAt   *time.Time `json:"initiated_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func ToResponse(p *payment.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:            p.ID,
		TransactionID: p.TransactionID,
		BookingID:     p.BookingID,
		PayerID:       p.PayerID,
		RecipientID:   p.RecipientID,
		Type:          p.Type,
		Month:         p.Month,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        p.Status,
		Method:        p.Method,
		Description:   p.Description,
		TransactionNo: p.Gateway.TransactionNo,
		FailureReason: p.FailureReason,
		RefundStatus:  p.Refund.Status,
		RefundAmount:  p.Refund.Amount,
		Backfilled:    p.Backfilled,
		InitiatedAt:   p.InitiatedAt,
		CompletedAt:   p.CompletedAt,
		FailedAt:      p.FailedAt,
		CreatedAt:     p.CreatedAt,
	}
	if p.Gateway.TxnRef != nil {
		resp.TxnRef = *p.Gateway.TxnRef
	}
	return resp
}

func ToResponses(list []*payment.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(list))
	for _, p := range list {
		out = append(out, ToResponse(p))
	}
	return out
}
