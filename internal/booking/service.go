package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/core/common/validation"
	"github.com/frahmantamala/room-rental/internal/core/database"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/booking"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/notification"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/payment"
	"github.com/frahmantamala/room-rental/internal/core/events"
	"github.com/frahmantamala/room-rental/internal/core/lock"
	paymentpkg "github.com/frahmantamala/room-rental/internal/payment"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Service is the booking state machine.
type Service struct {
	repo       Repository
	rooms      RoomRepository
	payments   PaymentManager
	tx         database.Transactor
	locker     lock.Locker
	notifier   Notifier
	events     events.Publisher
	logger     *slog.Logger
	now        func() time.Time
	pendingTTL time.Duration
}

func NewService(
	repo Repository,
	rooms RoomRepository,
	payments PaymentManager,
	tx database.Transactor,
	locker lock.Locker,
	notifier Notifier,
	publisher events.Publisher,
	logger *slog.Logger,
	pendingTTL time.Duration,
) *Service {
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		repo:       repo,
		rooms:      rooms,
		payments:   payments,
		tx:         tx,
		locker:     locker,
		notifier:   notifier,
		events:     publisher,
		logger:     logger,
		now:        time.Now,
		pendingTTL: pendingTTL,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Create(ctx context.Context, actor internal.Actor, dto CreateBookingDTO) (*booking.Booking, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Warn("invalid booking request", "error", err, "actor_id", actor.ID)
		return nil, err
	}
	today := startOfDay(s.now())
	if dto.CheckIn.Before(today) {
		return nil, internal.NewValidationFieldError("check_in", "check_in must not be in the past", internal.ErrCodeInvalidDateRange)
	}

	release, err := s.locker.Acquire(ctx, lock.RoomKey(dto.RoomID))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.logger.Info("room is locked by another booking request", "room_id", dto.RoomID, "actor_id", actor.ID)
			return nil, internal.NewConflictError("Room is being booked by someone else, please retry", internal.ErrCodeRoomBusy)
		}
		// the row lock below still serialises creators on this room
		s.logger.Warn("booking lock unavailable", "error", err, "room_id", dto.RoomID)
		release = func() {}
	}
	defer release()

	var created *booking.Booking
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		r, err := s.rooms.LockByID(ctx, dto.RoomID)
		if err != nil {
			return err
		}
		if !Bookable(r) {
			return internal.NewConflictError("Room is not available for booking", internal.ErrCodeRoomUnavailable)
		}
		if r.LandlordID == actor.ID {
			return internal.NewForbiddenError("You cannot book your own room", internal.ErrCodeSelfBooking)
		}
		if appErr := validation.ValidateStayPeriod(dto.CheckIn, dto.CheckOut, dto.Occupants, r.MaxOccupants); appErr != nil {
			return appErr
		}

		overlapping, err := s.repo.FindOverlapping(ctx, r.ID, dto.CheckIn, dto.CheckOut)
		if err != nil {
			return internal.NewInternalError("failed to check room availability", err)
		}
		if len(overlapping) > 0 {
			s.logger.Info("room already booked for requested dates",
				"room_id", r.ID,
				"conflicting_booking_id", overlapping[0].ID)
			return internal.NewConflictError("Room is already booked for the selected dates", internal.ErrCodeRoomDoubleBooked)
		}

		months := dto.DurationMonths
		if months == 0 {
			months = MonthsBetween(dto.CheckIn, dto.CheckOut)
		}
		pricing := booking.Pricing{
			MonthlyRent: r.MonthlyRent,
			Deposit:     r.Deposit,
			Utilities:   r.Utilities,
		}
		pricing.TotalAmount = TotalAmount(pricing, months)

		b := &booking.Booking{
			ContractNumber: NewContractNumber(s.now()),
			RoomID:         r.ID,
			TenantID:       actor.ID,
			LandlordID:     r.LandlordID,
			CheckIn:        dto.CheckIn,
			CheckOut:       dto.CheckOut,
			DurationMonths: months,
			Occupants:      dto.Occupants,
			Pricing:        pricing,
			Status:         booking.StatusPending,
			Deposit:        booking.DepositState{Status: booking.DepositPending, Amount: pricing.Deposit},
			Monthly:        Schedule(dto.CheckIn, months, pricing),
			Notes:          dto.Notes,
		}
		if err := s.repo.Create(ctx, b); err != nil {
			return internal.NewInternalError("failed to create booking", err)
		}

		if pricing.Deposit > 0 {
			if _, err := s.payments.CreatePlaceholder(ctx, b, payment.TypeDeposit); err != nil {
				return err
			}
		}
		created = b
		return nil
	})
	if err != nil {
		s.logger.Warn("booking creation rejected", "error", err, "room_id", dto.RoomID, "actor_id", actor.ID)
		return nil, err
	}

	s.logger.Info("booking created",
		"booking_id", created.ID,
		"contract_number", created.ContractNumber,
		"room_id", created.RoomID,
		"tenant_id", created.TenantID,
		"total_amount", created.Pricing.TotalAmount)

	data := bookingData(created)
	s.notifier.Notify(ctx, created.TenantID, notification.TypeBookingCreated,
		"Đặt phòng thành công",
		fmt.Sprintf("Yêu cầu đặt phòng %s đã được gửi tới chủ nhà", created.ContractNumber),
		data)
	s.notifier.Notify(ctx, created.LandlordID, notification.TypeBookingCreated,
		"Yêu cầu đặt phòng mới",
		fmt.Sprintf("Bạn có yêu cầu đặt phòng mới %s", created.ContractNumber),
		data)
	s.publishStatusChanged(ctx, created, "", created.Status, actor)

	return created, nil
}

// Confirm is the landlord accepting a pending booking. Unless the landlord
// says otherwise, a pending deposit is taken as received by bank transfer.
func (s *Service) Confirm(ctx context.Context, actor internal.Actor, id int64, dto ConfirmBookingDTO) (*booking.Booking, error) {
	if appErr := validation.Struct(dto); appErr != nil {
		return nil, appErr
	}

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && b.LandlordID != actor.ID {
		s.logger.Warn("unauthorized booking confirmation", "booking_id", id, "actor_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess()
	}
	if b.Status != booking.StatusPending {
		return nil, internal.NewStateConflictError(fmt.Sprintf("Booking is %s, only pending bookings can be confirmed", b.Status))
	}

	var deposit *payment.Payment
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.repo.UpdateStatus(ctx, id, []booking.Status{booking.StatusPending}, booking.StatusConfirmed, nil)
		if err != nil {
			return internal.NewInternalError("failed to confirm booking", err)
		}
		if !ok {
			return internal.NewStateConflictError("Booking was changed by another request")
		}
		b.Status = booking.StatusConfirmed

		if dto.DepositReceived != nil && !*dto.DepositReceived {
			return nil
		}
		existing, err := s.payments.FindDeposit(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil || existing.Status != payment.StatusPending {
			return nil
		}
		deposit, err = s.applyDepositPaid(ctx, b, paymentpkg.Completion{
			Method:      payment.MethodBankTransfer,
			ExternalRef: dto.ExternalRef,
		}, booking.StatusConfirmed)
		return err
	})
	if err != nil {
		s.logger.Error("booking confirmation failed", "error", err, "booking_id", id)
		return nil, err
	}

	s.logger.Info("booking confirmed", "booking_id", id, "status", b.Status, "actor_id", actor.ID)

	message := fmt.Sprintf("Chủ nhà đã xác nhận đặt phòng %s", b.ContractNumber)
	if deposit != nil {
		message = fmt.Sprintf("Chủ nhà đã xác nhận đặt phòng %s và tiền đặt cọc", b.ContractNumber)
	}
	s.notifier.Notify(ctx, b.TenantID, notification.TypeBookingConfirmed, "Đặt phòng đã được xác nhận", message, bookingData(b))

	s.publishStatusChanged(ctx, b, booking.StatusPending, b.Status, actor)
	if deposit != nil {
		s.payments.PublishCompleted(ctx, deposit)
	}

	return s.repo.GetByID(ctx, id)
}

// SetStatus is the general transition entry point used by every role.
func (s *Service) SetStatus(ctx context.Context, actor internal.Actor, id int64, dto SetStatusDTO) (*booking.Booking, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(actor, b, dto.Status); err != nil {
		s.logger.Warn("unauthorized booking transition",
			"booking_id", id,
			"actor_id", actor.ID,
			"actor_role", actor.Role,
			"target", dto.Status)
		return nil, err
	}
	if b.Status == dto.Status {
		return nil, internal.NewStateConflictError(fmt.Sprintf("Booking is already %s", b.Status))
	}
	if !CanTransition(b.Status, dto.Status) {
		return nil, internal.NewStateConflictError(fmt.Sprintf("Cannot change booking from %s to %s", b.Status, dto.Status))
	}

	from := b.Status
	var deposit *payment.Payment
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		switch dto.Status {
		case booking.StatusDepositPaid:
			var err error
			deposit, err = s.applyDepositPaid(ctx, b, paymentpkg.Completion{
				Method:      dto.PaymentMethod,
				ExternalRef: dto.ExternalRef,
			}, from)
			return err
		case booking.StatusCancelled:
			return s.applyCancel(ctx, b, actor, dto.Reason)
		case booking.StatusExpired:
			return s.applyExpire(ctx, b)
		default:
			return s.move(ctx, b, dto.Status, nil)
		}
	})
	if err != nil {
		s.logger.Error("booking transition failed", "error", err, "booking_id", id, "from", from, "to", dto.Status)
		return nil, err
	}

	s.logger.Info("booking status changed",
		"booking_id", id,
		"from", from,
		"to", b.Status,
		"actor_id", actor.ID,
		"actor_role", actor.Role)

	s.notifyTransition(ctx, b, actor)
	s.publishStatusChanged(ctx, b, from, b.Status, actor)
	if deposit != nil {
		s.payments.PublishCompleted(ctx, deposit)
	}

	return s.repo.GetByID(ctx, id)
}

func (s *Service) Cancel(ctx context.Context, actor internal.Actor, id int64, dto CancelBookingDTO) (*booking.Booking, error) {
	if appErr := validation.Struct(dto); appErr != nil {
		return nil, appErr
	}

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(actor, b, booking.StatusCancelled); err != nil {
		return nil, err
	}
	if !CanBeCancelled(b) {
		return nil, internal.NewStateConflictError(fmt.Sprintf("Booking is %s and can no longer be cancelled", b.Status))
	}

	from := b.Status
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.applyCancel(ctx, b, actor, dto.Reason)
	})
	if err != nil {
		s.logger.Error("booking cancellation failed", "error", err, "booking_id", id)
		return nil, err
	}

	s.logger.Info("booking cancelled",
		"booking_id", id,
		"from", from,
		"cancelled_by", b.Cancellation.CancelledBy,
		"refund_amount", b.Cancellation.RefundAmount)

	s.notifyTransition(ctx, b, actor)
	s.publishStatusChanged(ctx, b, from, b.Status, actor)

	return s.repo.GetByID(ctx, id)
}

func (s *Service) Get(ctx context.Context, actor internal.Actor, id int64) (*booking.Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, b) {
		s.logger.Warn("unauthorized access to booking", "booking_id", id, "actor_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess()
	}
	return b, nil
}

func (s *Service) List(ctx context.Context, actor internal.Actor, filter ListFilter) ([]*booking.Booking, int64, error) {
	if !actor.IsAdmin() {
		filter.ParticipantID = actor.ID
		filter.TenantID = 0
		filter.LandlordID = 0
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, internal.NewValidationFieldError("status", "unknown booking status", internal.ErrCodeInvalidStatus)
	}
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = defaultListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list bookings", "error", err, "actor_id", actor.ID)
		return nil, 0, internal.NewInternalError("failed to list bookings", err)
	}
	return list, total, nil
}

// ExpireStale expires pending bookings older than the pending TTL and any
// pending or confirmed booking whose check-in date has passed.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	var createdBefore time.Time
	if s.pendingTTL > 0 {
		createdBefore = now.Add(-s.pendingTTL)
	}

	stale, err := s.repo.ListStale(ctx, createdBefore, startOfDay(now))
	if err != nil {
		return 0, internal.NewInternalError("failed to list stale bookings", err)
	}

	expired := 0
	for _, b := range stale {
		from := b.Status
		err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			return s.applyExpire(ctx, b)
		})
		if err != nil {
			if internal.HasCode(err, internal.ErrCodeIllegalTransition) {
				s.logger.Debug("booking moved on before expiry", "booking_id", b.ID)
				continue
			}
			s.logger.Error("failed to expire booking", "error", err, "booking_id", b.ID)
			continue
		}

		expired++
		s.logger.Info("booking expired", "booking_id", b.ID, "from", from)
		s.notifyTransition(ctx, b, internal.SystemActor)
		s.publishStatusChanged(ctx, b, from, b.Status, internal.SystemActor)
	}
	return expired, nil
}

// MarkDepositPaid advances a pending or confirmed booking whose deposit
// payment was just completed. It runs inside the caller's transaction and
// leaves notification to the caller. The bool reports whether the booking moved.
func (s *Service) MarkDepositPaid(ctx context.Context, bookingID int64, p *payment.Payment) (bool, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if b.Status != booking.StatusPending && b.Status != booking.StatusConfirmed {
		s.logger.Info("deposit completed on booking that cannot advance",
			"booking_id", bookingID,
			"status", b.Status,
			"payment_id", p.ID)
		return false, nil
	}

	ok, err := s.repo.UpdateStatus(ctx, bookingID,
		[]booking.Status{booking.StatusPending, booking.StatusConfirmed},
		booking.StatusDepositPaid,
		depositUpdates(p, s.now()))
	if err != nil {
		return false, internal.NewInternalError("failed to update booking deposit", err)
	}
	return ok, nil
}

func (s *Service) applyDepositPaid(ctx context.Context, b *booking.Booking, c paymentpkg.Completion, from booking.Status) (*payment.Payment, error) {
	if b.Pricing.Deposit == 0 {
		// nothing to collect, so no payment record
		now := s.now()
		if err := s.move(ctx, b, booking.StatusDepositPaid, map[string]interface{}{
			"deposit_status":  booking.DepositPaid,
			"deposit_paid_at": now,
		}); err != nil {
			return nil, err
		}
		b.Deposit.Status = booking.DepositPaid
		b.Deposit.PaidAt = &now
		return nil, nil
	}

	p, err := s.payments.CompleteDeposit(ctx, b, c)
	if err != nil {
		return nil, err
	}
	extra := depositUpdates(p, s.now())
	if c.ExternalRef != "" {
		extra["deposit_external_ref"] = c.ExternalRef
	}
	if err := s.move(ctx, b, booking.StatusDepositPaid, extra); err != nil {
		return nil, err
	}
	b.Deposit.Status = booking.DepositPaid
	b.Deposit.Amount = p.Amount
	b.Deposit.PaidAt = p.CompletedAt
	b.Deposit.Method = p.Method
	return p, nil
}

func (s *Service) applyCancel(ctx context.Context, b *booking.Booking, actor internal.Actor, reason string) error {
	now := s.now()
	c := booking.Cancellation{
		CancelledBy: string(actor.Role),
		CancelledAt: &now,
		Reason:      reason,
	}
	extra := map[string]interface{}{
		"cancellation_by":     c.CancelledBy,
		"cancellation_at":     now,
		"cancellation_reason": reason,
	}
	if b.Status == booking.StatusDepositPaid {
		c.RefundAmount = b.Deposit.Amount
		if c.RefundAmount == 0 {
			c.RefundAmount = b.Pricing.Deposit
		}
		c.RefundStatus = booking.RefundPending
		extra["cancellation_refund_amount"] = c.RefundAmount
		extra["cancellation_refund_status"] = c.RefundStatus
	}

	if err := s.move(ctx, b, booking.StatusCancelled, extra); err != nil {
		return err
	}
	b.Cancellation = c

	failed, err := s.payments.FailOpenPayments(ctx, b.ID, paymentpkg.ReasonBookingCancelled)
	if err != nil {
		return err
	}
	if failed > 0 {
		s.logger.Info("open payments failed on cancellation", "booking_id", b.ID, "count", failed)
	}
	return nil
}

func (s *Service) applyExpire(ctx context.Context, b *booking.Booking) error {
	if err := s.move(ctx, b, booking.StatusExpired, nil); err != nil {
		return err
	}
	_, err := s.payments.FailOpenPayments(ctx, b.ID, paymentpkg.ReasonBookingExpired)
	return err
}

// move applies a compare-and-swap from the booking's current status.
func (s *Service) move(ctx context.Context, b *booking.Booking, to booking.Status, extra map[string]interface{}) error {
	ok, err := s.repo.UpdateStatus(ctx, b.ID, []booking.Status{b.Status}, to, extra)
	if err != nil {
		return internal.NewInternalError("failed to update booking status", err)
	}
	if !ok {
		return internal.NewStateConflictError("Booking was changed by another request")
	}
	b.Status = to
	return nil
}

func (s *Service) notifyTransition(ctx context.Context, b *booking.Booking, actor internal.Actor) {
	data := bookingData(b)
	switch b.Status {
	case booking.StatusConfirmed:
		s.notifier.Notify(ctx, b.TenantID, notification.TypeBookingConfirmed,
			"Đặt phòng đã được xác nhận",
			fmt.Sprintf("Chủ nhà đã xác nhận đặt phòng %s", b.ContractNumber), data)
	case booking.StatusDepositPaid:
		s.notifier.Notify(ctx, b.TenantID, notification.TypeBookingStatus,
			"Đã nhận tiền đặt cọc",
			fmt.Sprintf("Tiền đặt cọc cho hợp đồng %s đã được xác nhận", b.ContractNumber), data)
	case booking.StatusActive:
		s.notifier.Notify(ctx, b.TenantID, notification.TypeBookingStatus,
			"Hợp đồng đã bắt đầu",
			fmt.Sprintf("Hợp đồng %s đã có hiệu lực", b.ContractNumber), data)
	case booking.StatusCompleted:
		s.notifier.Notify(ctx, b.TenantID, notification.TypeBookingStatus,
			"Hợp đồng đã kết thúc",
			fmt.Sprintf("Hợp đồng %s đã hoàn tất", b.ContractNumber), data)
	case booking.StatusExpired:
		s.notifier.Notify(ctx, b.TenantID, notification.TypeBookingStatus,
			"Đặt phòng đã hết hạn",
			fmt.Sprintf("Đặt phòng %s đã hết hạn", b.ContractNumber), data)
	case booking.StatusCancelled:
		message := fmt.Sprintf("Đặt phòng %s đã bị hủy", b.ContractNumber)
		if b.Cancellation.Reason != "" {
			message += ": " + b.Cancellation.Reason
		}
		notifyTenant := actor.ID != b.TenantID
		notifyLandlord := actor.ID != b.LandlordID
		if notifyTenant {
			s.notifier.Notify(ctx, b.TenantID, notification.TypeBookingCancelled, "Đặt phòng đã bị hủy", message, data)
		}
		if notifyLandlord {
			s.notifier.Notify(ctx, b.LandlordID, notification.TypeBookingCancelled, "Đặt phòng đã bị hủy", message, data)
		}
	}
}

func (s *Service) publishStatusChanged(ctx context.Context, b *booking.Booking, from, to booking.Status, actor internal.Actor) {
	evt := events.NewBookingStatusChangedEvent(b.ID, string(from), string(to), actor.ID, string(actor.Role), b.TenantID, b.LandlordID)
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Error("failed to publish booking status event", "error", err, "booking_id", b.ID)
	}
}

func depositUpdates(p *payment.Payment, now time.Time) map[string]interface{} {
	paidAt := now
	if p.CompletedAt != nil {
		paidAt = *p.CompletedAt
	}
	ref := p.BankTransfer.Reference
	if p.Gateway.TransactionNo != "" {
		ref = p.Gateway.TransactionNo
	}
	return map[string]interface{}{
		"deposit_status":       booking.DepositPaid,
		"deposit_amount":       p.Amount,
		"deposit_paid_at":      paidAt,
		"deposit_method":       p.Method,
		"deposit_external_ref": ref,
	}
}

func bookingData(b *booking.Booking) map[string]interface{} {
	return map[string]interface{}{
		"booking_id":      b.ID,
		"contract_number": b.ContractNumber,
		"room_id":         b.RoomID,
		"status":          string(b.Status),
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
