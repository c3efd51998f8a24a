package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/booking"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/payment"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/room"
	paymentpkg "github.com/frahmantamala/room-rental/internal/payment"
	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, b *booking.Booking) error
	GetByID(ctx context.Context, id int64) (*booking.Booking, error)
	// FindOverlapping returns non-terminal bookings of the room whose stay
	// intersects [checkIn, checkOut].
	FindOverlapping(ctx context.Context, roomID int64, checkIn, checkOut time.Time) ([]*booking.Booking, error)
	List(ctx context.Context, filter ListFilter) ([]*booking.Booking, int64, error)
	// UpdateStatus moves the booking to `to` only while it is in one of from.
	UpdateStatus(ctx context.Context, id int64, from []booking.Status, to booking.Status, extra map[string]interface{}) (bool, error)
	ListStale(ctx context.Context, createdBefore, checkInBefore time.Time) ([]*booking.Booking, error)
}

type RoomRepository interface {
	LockByID(ctx context.Context, id int64) (*room.Room, error)
}

// PaymentManager is the part of the payment record manager the state machine drives.
type PaymentManager interface {
	CreatePlaceholder(ctx context.Context, b *booking.Booking, paymentType string) (*payment.Payment, error)
	FindDeposit(ctx context.Context, bookingID int64) (*payment.Payment, error)
	CompleteDeposit(ctx context.Context, b *booking.Booking, c paymentpkg.Completion) (*payment.Payment, error)
	FailOpenPayments(ctx context.Context, bookingID int64, reason string) (int, error)
	PublishCompleted(ctx context.Context, p *payment.Payment)
}

type Notifier interface {
	Notify(ctx context.Context, userID int64, kind, title, message string, data map[string]interface{})
}

type ListFilter struct {
	// ParticipantID limits results to bookings the user rents or owns.
	ParticipantID int64
	TenantID      int64
	LandlordID    int64
	RoomID        int64
	Status        booking.Status
	Limit         int
	Offset        int
}

// transitions lists the legal next states of each status.
var transitions = map[booking.Status][]booking.Status{
	booking.StatusPending:     {booking.StatusConfirmed, booking.StatusDepositPaid, booking.StatusCancelled, booking.StatusExpired},
	booking.StatusConfirmed:   {booking.StatusDepositPaid, booking.StatusCancelled, booking.StatusExpired},
	booking.StatusDepositPaid: {booking.StatusActive, booking.StatusCancelled},
	booking.StatusActive:      {booking.StatusCompleted},
}

func CanTransition(from, to booking.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func CanBeCancelled(b *booking.Booking) bool {
	return CanTransition(b.Status, booking.StatusCancelled)
}

func Bookable(r *room.Room) bool {
	return r.Status == room.StatusActive && r.IsAvailable
}

// landlordTargets are the statuses a landlord may set on their own bookings.
var landlordTargets = map[booking.Status]bool{
	booking.StatusConfirmed:   true,
	booking.StatusDepositPaid: true,
	booking.StatusActive:      true,
	booking.StatusCompleted:   true,
	booking.StatusCancelled:   true,
}

func authorizeTransition(actor internal.Actor, b *booking.Booking, to booking.Status) error {
	switch actor.Role {
	case internal.RoleAdmin:
		return nil
	case internal.RoleLandlord:
		if b.LandlordID == actor.ID && landlordTargets[to] {
			return nil
		}
	case internal.RoleTenant:
		if b.TenantID == actor.ID && to == booking.StatusCancelled {
			return nil
		}
	}
	// a landlord renting somewhere else acts as that booking's tenant
	if b.TenantID == actor.ID && to == booking.StatusCancelled {
		return nil
	}
	return internal.ErrUnauthorizedAccess()
}

func canView(actor internal.Actor, b *booking.Booking) bool {
	return actor.IsAdmin() || b.TenantID == actor.ID || b.LandlordID == actor.ID
}

// TotalAmount is rent and utilities for the whole stay plus the deposit.
func TotalAmount(p booking.Pricing, months int) int64 {
	return int64(months)*(p.MonthlyRent+p.Utilities) + p.Deposit
}

// Schedule builds one installment per rental month, due on the check-in day.
func Schedule(checkIn time.Time, months int, p booking.Pricing) []booking.Installment {
	out := make([]booking.Installment, 0, months)
	for i := 0; i < months; i++ {
		out = append(out, booking.Installment{
			Month:   i + 1,
			Amount:  p.MonthlyRent + p.Utilities,
			DueDate: checkIn.AddDate(0, i, 0),
			Status:  booking.InstallmentPending,
		})
	}
	return out
}

// MonthsBetween rounds a stay up to whole months, never below one.
func MonthsBetween(checkIn, checkOut time.Time) int {
	months := (checkOut.Year()-checkIn.Year())*12 + int(checkOut.Month()-checkIn.Month())
	if checkIn.AddDate(0, months, 0).Before(checkOut) {
		months++
	}
	if months < 1 {
		months = 1
	}
	return months
}

func NewContractNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("HD%s%s", now.Format("20060102"), suffix)
}
