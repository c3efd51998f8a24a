package reconcile

import (
	"github.com/frahmantamala/room-rental/internal/core/common/validation"
)

type CheckoutDTO struct {
	BankCode string `json:"bank_code" validate:"omitempty,alphanum,max=20"`
	Locale   string `json:"locale" validate:"omitempty,oneof=vn en"`
	// ClientIP is filled from the request, never from the body.
	ClientIP string `json:"-"`
}

func (d *CheckoutDTO) Validate() error {
	if appErr := validation.Struct(d); appErr != nil {
		return appErr
	}
	return nil
}

type CheckoutResponse struct {
	PaymentID  int64  `json:"payment_id"`
	TxnRef     string `json:"txn_ref"`
	Amount     int64  `json:"amount"`
	PaymentURL string `json:"payment_url"`
}
