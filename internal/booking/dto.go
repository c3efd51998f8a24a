package booking

import (
	"time"

	"github.com/frahmantamala/room-rental/internal/core/common/validation"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/booking"
)

type CreateBookingDTO struct {
	RoomID         int64     `json:"room_id" validate:"required,gt=0"`
	CheckIn        time.Time `json:"check_in" validate:"required"`
	CheckOut       time.Time `json:"check_out" validate:"required"`
	DurationMonths int       `json:"duration_months" validate:"gte=0,lte=60"`
	Occupants      int       `json:"occupants" validate:"required,gte=1"`
	Notes          string    `json:"notes" validate:"max=1000"`
}

func (d *CreateBookingDTO) Validate() error {
	if appErr := validation.Struct(d); appErr != nil {
		return appErr
	}
	v := validation.NewValidator()
	v.Field("check_out", d.CheckOut).After(d.CheckIn, "check_in")
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type ConfirmBookingDTO struct {
	// DepositReceived set to false confirms without settling a pending deposit.
	DepositReceived *bool  `json:"deposit_received"`
	ExternalRef     string `json:"external_ref" validate:"max=100"`
}

type SetStatusDTO struct {
	Status        booking.Status `json:"status" validate:"required,oneof=confirmed deposit_paid active completed cancelled expired"`
	Reason        string         `json:"reason" validate:"max=500"`
	PaymentMethod string         `json:"payment_method" validate:"omitempty,oneof=vnpay bank_transfer cash other"`
	ExternalRef   string         `json:"external_ref" validate:"max=100"`
}

func (d *SetStatusDTO) Validate() error {
	if appErr := validation.Struct(d); appErr != nil {
		return appErr
	}
	return nil
}

type CancelBookingDTO struct {
	Reason string `json:"reason" validate:"max=500"`
}

type BookingResponse struct {
	ID             int64                 `json:"id"`
	ContractNumber string                `json:"contract_number"`
	RoomID         int64                 `json:"room_id"`
	TenantID       int64                 `json:"tenant_id"`
	LandlordID     int64                 `json:"landlord_id"`
	CheckIn        time.Time             `json:"check_in"`
	CheckOut       time.Time             `json:"check_out"`
	DurationMonths int                   `json:"duration_months"`
	Occupants      int                   `json:"occupants"`
	Pricing        booking.Pricing       `json:"pricing"`
	Status         booking.Status        `json:"status"`
	PaymentStatus  PaymentStatusResponse `json:"payment_status"`
	Cancellation   *booking.Cancellation `json:"cancellation,omitempty"`
	Notes          string                `json:"notes,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

type PaymentStatusResponse struct {
	Deposit booking.DepositState  `json:"deposit"`
	Monthly []booking.Installment `json:"monthly"`
}

func ToResponse(b *booking.Booking) BookingResponse {
	resp := BookingResponse{
		ID:             b.ID,
		ContractNumber: b.ContractNumber,
		RoomID:         b.RoomID,
		TenantID:       b.TenantID,
		LandlordID:     b.LandlordID,
		CheckIn:        b.CheckIn,
		CheckOut:       b.CheckOut,
		DurationMonths: b.DurationMonths,
		Occupants:      b.Occupants,
		Pricing:        b.Pricing,
		Status:         b.Status,
		PaymentStatus: PaymentStatusResponse{
			Deposit: b.Deposit,
			Monthly: b.Monthly,
		},
		Notes:     b.Notes,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	if b.Cancellation.CancelledAt != nil {
		c := b.Cancellation
		resp.Cancellation = &c
	}
	return resp
}

func ToResponses(list []*booking.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(list))
	for _, b := range list {
		out = append(out, ToResponse(b))
	}
	return out
}
