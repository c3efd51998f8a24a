package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeBookingStatusChanged = "booking.status_changed"
	EventTypePaymentCompleted     = "payment.completed"
	EventTypePaymentFailed        = "payment.failed"
)

type BookingStatusChangedEvent struct {
	BaseEvent
	BookingID  int64  `json:"booking_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	ActorID    int64  `json:"actor_id"`
	ActorRole  string `json:"actor_role"`
	TenantID   int64  `json:"tenant_id"`
	LandlordID int64  `json:"landlord_id"`
}

func NewBookingStatusChangedEvent(bookingID int64, from, to string, actorID int64, actorRole string, tenantID, landlordID int64) *BookingStatusChangedEvent {
	return &BookingStatusChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeBookingStatusChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"booking_id":  bookingID,
				"from":        from,
				"to":          to,
				"actor_id":    actorID,
				"actor_role":  actorRole,
				"tenant_id":   tenantID,
				"landlord_id": landlordID,
			},
		},
		BookingID:  bookingID,
		From:       from,
		To:         to,
		ActorID:    actorID,
		ActorRole:  actorRole,
		TenantID:   tenantID,
		LandlordID: landlordID,
	}
}

type PaymentCompletedEvent struct {
	BaseEvent
	PaymentID     int64  `json:"payment_id"`
	TransactionID string `json:"transaction_id"`
	BookingID     int64  `json:"booking_id"`
	PayerID       int64  `json:"payer_id"`
	RecipientID   int64  `json:"recipient_id"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	ExternalRef   string `json:"external_ref"`
}

func NewPaymentCompletedEvent(paymentID int64, transactionID string, bookingID, payerID, recipientID int64, paymentType string, amount int64, externalRef string) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"transaction_id": transactionID,
				"booking_id":     bookingID,
				"payer_id":       payerID,
				"recipient_id":   recipientID,
				"type":           paymentType,
				"amount":         amount,
				"external_ref":   externalRef,
			},
		},
		PaymentID:     paymentID,
		TransactionID: transactionID,
		BookingID:     bookingID,
		PayerID:       payerID,
		RecipientID:   recipientID,
		Type:          paymentType,
		Amount:        amount,
		ExternalRef:   externalRef,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	PaymentID     int64  `json:"payment_id"`
	BookingID     int64  `json:"booking_id"`
	PayerID       int64  `json:"payer_id"`
	Amount        int64  `json:"amount"`
	FailureReason string `json:"failure_reason"`
}

func NewPaymentFailedEvent(paymentID, bookingID, payerID, amount int64, failureReason string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"booking_id":     bookingID,
				"payer_id":       payerID,
				"amount":         amount,
				"failure_reason": failureReason,
			},
		},
		PaymentID:     paymentID,
		BookingID:     bookingID,
		PayerID:       payerID,
		Amount:        amount,
		FailureReason: failureReason,
	}
}
