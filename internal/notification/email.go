package notification

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/room-rental/internal/core/datamodel/booking"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/payment"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/user"
	"github.com/frahmantamala/room-rental/internal/core/events"
)

type UserReader interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

type PaymentReader interface {
	GetByID(ctx context.Context, id int64) (*payment.Payment, error)
}

type BookingReader interface {
	GetByID(ctx context.Context, id int64) (*booking.Booking, error)
}

type EmailQueue interface {
	Email(ctx context.Context, to, template string, data map[string]interface{})
}

// EmailSubscriber turns committed domain events into confirmation emails.
type EmailSubscriber struct {
	users    UserReader
	payments PaymentReader
	bookings BookingReader
	queue    EmailQueue
	logger   *slog.Logger
}

func NewEmailSubscriber(users UserReader, payments PaymentReader, bookings BookingReader, queue EmailQueue, lg *slog.Logger) *EmailSubscriber {
	return &EmailSubscriber{
		users:    users,
		payments: payments,
		bookings: bookings,
		queue:    queue,
		logger:   lg,
	}
}

func (s *EmailSubscriber) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventTypePaymentCompleted, s.HandlePaymentCompleted)
	bus.Subscribe(events.EventTypeBookingStatusChanged, s.HandleBookingStatusChanged)
}

func (s *EmailSubscriber) HandlePaymentCompleted(ctx context.Context, evt events.Event) error {
	e, ok := evt.(*events.PaymentCompletedEvent)
	if !ok {
		return nil
	}

	p, err := s.payments.GetByID(ctx, e.PaymentID)
	if err != nil {
		return err
	}

	data := map[string]interface{}{
		"amount":         p.Amount,
		"description":    p.Description,
		"transaction_id": p.TransactionID,
	}
	s.send(ctx, p.PayerID, TemplatePaymentSuccess, data)
	s.send(ctx, p.RecipientID, TemplatePaymentReceived, data)
	return nil
}

// HandleBookingStatusChanged mails the tenant when a booking is first created.
func (s *EmailSubscriber) HandleBookingStatusChanged(ctx context.Context, evt events.Event) error {
	e, ok := evt.(*events.BookingStatusChangedEvent)
	if !ok || e.From != "" || e.To != string(booking.StatusPending) {
		return nil
	}

	b, err := s.bookings.GetByID(ctx, e.BookingID)
	if err != nil {
		return err
	}
	s.send(ctx, b.TenantID, TemplateBookingCreated, map[string]interface{}{
		"contract_number": b.ContractNumber,
		"deposit":         b.Pricing.Deposit,
	})
	return nil
}

func (s *EmailSubscriber) send(ctx context.Context, userID int64, templateName string, data map[string]interface{}) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("email recipient not found", "error", err, "user_id", userID, "template", templateName)
		return
	}

	personal := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		personal[k] = v
	}
	personal["name"] = u.Name
	s.queue.Email(ctx, u.Email, templateName, personal)
}
