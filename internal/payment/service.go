package payment

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/core/database"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/booking"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/notification"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/payment"
	"github.com/frahmantamala/room-rental/internal/core/events"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Service is the payment record manager: it owns every payment status change.
type Service struct {
	repo     Repository
	stats    StatsReader
	ledger   BookingLedger
	tx       database.Transactor
	notifier Notifier
	events   events.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, stats StatsReader, ledger BookingLedger, tx database.Transactor, notifier Notifier, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		repo:     repo,
		stats:    stats,
		ledger:   ledger,
		tx:       tx,
		notifier: notifier,
		events:   publisher,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreatePlaceholder records the payment a booking is expected to receive.
// A booking already holding a deposit payment gets that record back.
func (s *Service) CreatePlaceholder(ctx context.Context, b *booking.Booking, paymentType string) (*payment.Payment, error) {
	if paymentType == payment.TypeDeposit {
		existing, err := s.repo.FindLatestByBookingAndType(ctx, b.ID, payment.TypeDeposit)
		if err == nil {
			s.logger.Warn("deposit payment already exists, reusing it",
				"booking_id", b.ID,
				"payment_id", existing.ID,
				"status", existing.Status)
			return existing, nil
		}
		if !internal.HasCode(err, internal.ErrCodePaymentNotFound) {
			return nil, err
		}
	}

	amount := AmountFor(b, paymentType)
	if amount <= 0 {
		return nil, internal.NewValidationError("payment amount must be positive", internal.ErrCodeInvalidAmount)
	}

	p := &payment.Payment{
		TransactionID: NewTransactionID(s.now()),
		BookingID:     b.ID,
		PayerID:       b.TenantID,
		RecipientID:   b.LandlordID,
		Type:          paymentType,
		Amount:        amount,
		Currency:      payment.CurrencyVND,
		Status:        payment.StatusPending,
		Method:        payment.MethodPending,
		Description:   describe(paymentType, b.ContractNumber),
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.logger.Error("failed to create placeholder payment", "error", err, "booking_id", b.ID, "type", paymentType)
		return nil, internal.NewInternalError("failed to create payment", err)
	}

	s.logger.Info("placeholder payment created",
		"payment_id", p.ID,
		"booking_id", b.ID,
		"type", paymentType,
		"amount", amount)
	return p, nil
}

// FindDeposit returns the booking's deposit payment, or nil when none exists.
func (s *Service) FindDeposit(ctx context.Context, bookingID int64) (*payment.Payment, error) {
	p, err := s.repo.FindLatestByBookingAndType(ctx, bookingID, payment.TypeDeposit)
	if err != nil {
		if internal.HasCode(err, internal.ErrCodePaymentNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// CompleteDeposit finds or creates the deposit payment and completes it.
// Completing an already completed deposit is a no-op.
func (s *Service) CompleteDeposit(ctx context.Context, b *booking.Booking, c Completion) (*payment.Payment, error) {
	p, err := s.CreatePlaceholder(ctx, b, payment.TypeDeposit)
	if err != nil {
		return nil, err
	}
	if p.Status == payment.StatusCompleted {
		return p, nil
	}
	if p.Status == payment.StatusRefunded {
		return nil, internal.NewInvalidStateError("Deposit has already been refunded", internal.ErrCodeNotPayable)
	}

	if c.At.IsZero() {
		c.At = s.now()
	}
	if c.Method == "" {
		c.Method = payment.MethodBankTransfer
	}

	applied, err := s.repo.Transition(ctx, p.ID, completable, completionUpdates(c))
	if err != nil {
		return nil, internal.NewInternalError("failed to complete deposit", err)
	}

	updated, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if !applied && updated.Status != payment.StatusCompleted {
		return nil, internal.NewStateConflictError("Deposit payment changed concurrently")
	}

	s.logger.Info("deposit payment completed",
		"payment_id", p.ID,
		"booking_id", b.ID,
		"method", c.Method)
	return updated, nil
}

// MarkCompleted settles a payment unless it is already completed or refunded.
// The returned bool reports whether this call changed anything.
func (s *Service) MarkCompleted(ctx context.Context, id int64, c Completion) (bool, *payment.Payment, error) {
	if c.At.IsZero() {
		c.At = s.now()
	}
	return s.complete(ctx, id, completable, completionUpdates(c), c.At)
}

func (s *Service) complete(ctx context.Context, id int64, from []string, updates map[string]interface{}, at time.Time) (bool, *payment.Payment, error) {
	applied, err := s.repo.Transition(ctx, id, from, updates)
	if err != nil {
		s.logger.Error("failed to mark payment completed", "error", err, "payment_id", id)
		return false, nil, internal.NewInternalError("failed to update payment", err)
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, nil, err
	}

	if !applied {
		s.logger.Info("payment already settled, skipping", "payment_id", id, "status", p.Status)
		return false, p, nil
	}

	if p.Type == payment.TypeMonthlyRent && p.Month != nil && s.ledger != nil {
		if err := s.ledger.MarkInstallmentPaid(ctx, p.BookingID, *p.Month, p.ID, at); err != nil {
			s.logger.Error("failed to mark installment paid", "error", err, "payment_id", id, "month", *p.Month)
			return false, nil, err
		}
	}

	s.logger.Info("payment completed", "payment_id", id, "booking_id", p.BookingID, "type", p.Type)
	return true, p, nil
}

// MarkFailed fails a pending or processing payment. Completed payments are left alone.
func (s *Service) MarkFailed(ctx context.Context, id int64, reason string) (bool, error) {
	now := s.now()
	applied, err := s.repo.Transition(ctx, id, open, map[string]interface{}{
		"status":         payment.StatusFailed,
		"failed_at":      now,
		"processed_at":   now,
		"failure_reason": reason,
	})
	if err != nil {
		return false, internal.NewInternalError("failed to update payment", err)
	}
	if !applied {
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}

	s.logger.Info("payment marked failed", "payment_id", id, "reason", reason)
	return true, nil
}

// FailOpenPayments fails every pending or processing payment of a booking.
func (s *Service) FailOpenPayments(ctx context.Context, bookingID int64, reason string) (int, error) {
	list, err := s.repo.ListOpenByBooking(ctx, bookingID)
	if err != nil {
		return 0, internal.NewInternalError("failed to load booking payments", err)
	}

	failed := 0
	for _, p := range list {
		ok, err := s.MarkFailed(ctx, p.ID, reason)
		if err != nil {
			return failed, err
		}
		if ok {
			failed++
		}
	}
	return failed, nil
}

// StartGatewayAttempt moves a payable payment to processing under a fresh txnRef.
func (s *Service) StartGatewayAttempt(ctx context.Context, id int64, txnRef string) (*payment.Payment, error) {
	applied, err := s.repo.Transition(ctx, id, payable, map[string]interface{}{
		"status":          payment.StatusProcessing,
		"method":          payment.MethodVNPay,
		"gateway_txn_ref": txnRef,
		"initiated_at":    s.now(),
		"failure_reason":  "",
	})
	if err != nil {
		return nil, internal.NewInternalError("failed to start checkout", err)
	}
	if !applied {
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, internal.NewInvalidStateError("Payment can no longer be paid", internal.ErrCodeNotPayable)
	}
	return s.repo.GetByID(ctx, id)
}

// Lock reloads the payment under a row lock. Call it inside a transaction.
func (s *Service) Lock(ctx context.Context, id int64) (*payment.Payment, error) {
	return s.repo.GetByIDForUpdate(ctx, id)
}

func (s *Service) GetByTxnRef(ctx context.Context, txnRef string) (*payment.Payment, error) {
	return s.repo.GetByTxnRef(ctx, txnRef)
}

func (s *Service) GetByID(ctx context.Context, actor internal.Actor, id int64) (*payment.Payment, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, p) {
		s.logger.Warn("unauthorized access to payment", "payment_id", id, "actor_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess()
	}
	return p, nil
}

// ListForUser repairs missing deposit records for the caller's bookings
// before listing the payments they paid or received.
func (s *Service) ListForUser(ctx context.Context, actor internal.Actor, filter ListFilter) ([]*payment.Payment, int64, error) {
	if _, err := s.Backfill(ctx, actor); err != nil {
		s.logger.Error("deposit backfill failed during listing", "error", err, "actor_id", actor.ID)
	}

	filter.UserID = actor.ID
	filter.All = actor.IsAdmin()
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = defaultListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list payments", "error", err, "actor_id", actor.ID)
		return nil, 0, internal.NewInternalError("failed to list payments", err)
	}
	return list, total, nil
}

func (s *Service) GetStats(ctx context.Context, actor internal.Actor, filter StatsFilter) (*Stats, error) {
	filter.UserID = actor.ID
	filter.All = actor.IsAdmin()

	stats, err := s.stats.Stats(ctx, filter)
	if err != nil {
		s.logger.Error("failed to aggregate payment stats", "error", err, "actor_id", actor.ID)
		return nil, internal.NewInternalError("failed to load payment stats", err)
	}
	return stats, nil
}

// Backfill repairs deposit_paid bookings visible to actor that have no
// completed deposit payment.
func (s *Service) Backfill(ctx context.Context, actor internal.Actor) (int, error) {
	bookings, err := s.repo.FindBookingsMissingDeposit(ctx, actor.ID, actor.IsAdmin())
	if err != nil {
		return 0, internal.NewInternalError("failed to find bookings missing deposit", err)
	}
	return s.BackfillMissing(ctx, bookings)
}

// BackfillMissing builds a completed deposit payment for each booking that
// owes a deposit, using the best historical timestamp available. Failures are
// logged per booking.
func (s *Service) BackfillMissing(ctx context.Context, bookings []*booking.Booking) (int, error) {
	repaired := 0
	for _, b := range bookings {
		amount := b.Deposit.Amount
		if amount <= 0 {
			amount = b.Pricing.Deposit
		}
		if amount <= 0 {
			s.logger.Debug("booking requires no deposit, skipping backfill", "booking_id", b.ID)
			continue
		}
		at := backfillTime(b, s.now())
		method := b.Deposit.Method
		if method == "" {
			method = payment.MethodBankTransfer
		}
		completion := Completion{
			Method:      method,
			ExternalRef: b.Deposit.ExternalRef,
			At:          at,
			Backfilled:  true,
		}

		var created bool
		err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			existing, err := s.FindDeposit(ctx, b.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.Status == payment.StatusCompleted {
					return nil
				}
				applied, err := s.repo.Transition(ctx, existing.ID, completable, completionUpdates(completion))
				created = applied
				return err
			}

			p := &payment.Payment{
				TransactionID: NewTransactionID(at),
				BookingID:     b.ID,
				PayerID:       b.TenantID,
				RecipientID:   b.LandlordID,
				Type:          payment.TypeDeposit,
				Amount:        amount,
				Currency:      payment.CurrencyVND,
				Status:        payment.StatusCompleted,
				Method:        method,
				Description:   describe(payment.TypeDeposit, b.ContractNumber),
				Backfilled:    true,
				InitiatedAt:   &at,
				ProcessedAt:   &at,
				CompletedAt:   &at,
			}
			if method != payment.MethodVNPay && b.Deposit.ExternalRef != "" {
				p.BankTransfer.Reference = b.Deposit.ExternalRef
			}
			created = true
			return s.repo.Create(ctx, p)
		})
		if err != nil {
			s.logger.Error("failed to backfill deposit payment", "error", err, "booking_id", b.ID)
			continue
		}
		if created {
			repaired++
			s.logger.Info("deposit payment backfilled", "booking_id", b.ID, "completed_at", at)
		}
	}
	return repaired, nil
}

func backfillTime(b *booking.Booking, now time.Time) time.Time {
	if b.Deposit.PaidAt != nil && !b.Deposit.PaidAt.IsZero() {
		return *b.Deposit.PaidAt
	}
	if !b.UpdatedAt.IsZero() {
		return b.UpdatedAt
	}
	return now
}

// CreateInstallment returns the payment collecting one month of rent,
// creating it when the month has none open.
func (s *Service) CreateInstallment(ctx context.Context, actor internal.Actor, bookingID int64, month int) (*payment.Payment, error) {
	b, err := s.ledger.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != b.TenantID && actor.ID != b.LandlordID {
		return nil, internal.ErrUnauthorizedAccess()
	}
	if b.Status != booking.StatusDepositPaid && b.Status != booking.StatusActive {
		return nil, internal.NewInvalidStateError("Rent is collected only after the deposit is paid", internal.ErrCodeNotPayable)
	}
	if month < 1 || month > len(b.Monthly) {
		return nil, internal.NewValidationFieldError("month", "month is outside the rental schedule", internal.ErrCodeValidationFailed)
	}

	entry := b.Monthly[month-1]
	if entry.Status == booking.InstallmentPaid {
		return nil, internal.NewInvalidStateError("Month is already paid", internal.ErrCodeNotPayable)
	}

	existing, err := s.repo.FindInstallment(ctx, bookingID, month)
	if err == nil && existing.Status != payment.StatusCancelled && existing.Status != payment.StatusRefunded {
		return existing, nil
	}
	if err != nil && !internal.HasCode(err, internal.ErrCodePaymentNotFound) {
		return nil, err
	}

	m := month
	p := &payment.Payment{
		TransactionID: NewTransactionID(s.now()),
		BookingID:     b.ID,
		PayerID:       b.TenantID,
		RecipientID:   b.LandlordID,
		Type:          payment.TypeMonthlyRent,
		Month:         &m,
		Amount:        entry.Amount,
		Currency:      payment.CurrencyVND,
		Status:        payment.StatusPending,
		Method:        payment.MethodPending,
		Description:   describe(payment.TypeMonthlyRent, b.ContractNumber),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, internal.NewInternalError("failed to create installment payment", err)
	}

	s.logger.Info("installment payment created", "payment_id", p.ID, "booking_id", b.ID, "month", month)
	return p, nil
}

// ConfirmBankTransfer records a manual transfer attested by the recipient.
// Deposits go through the booking status flow instead.
func (s *Service) ConfirmBankTransfer(ctx context.Context, actor internal.Actor, id int64, dto BankTransferDTO) (*payment.Payment, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != p.RecipientID {
		return nil, internal.ErrUnauthorizedAccess()
	}
	if p.Type == payment.TypeDeposit {
		return nil, internal.NewInvalidStateError("Deposit transfers are confirmed on the booking", internal.ErrCodeNotPayable)
	}
	if !Payable(p) {
		return nil, internal.NewInvalidStateError("Payment can no longer be paid", internal.ErrCodeNotPayable)
	}

	now := s.now()
	updates := completionUpdates(Completion{Method: payment.MethodBankTransfer, ExternalRef: dto.Reference, At: now})
	updates["bank_name"] = dto.BankName
	updates["bank_account_number"] = dto.AccountNumber
	updates["bank_confirmed_by"] = actor.ID
	updates["bank_confirmed_at"] = now

	var (
		applied bool
		updated *payment.Payment
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		applied, updated, err = s.complete(ctx, id, payable, updates, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, internal.NewInvalidStateError("Payment can no longer be paid", internal.ErrCodeNotPayable)
	}

	s.notifier.Notify(ctx, updated.PayerID, notification.TypePaymentSuccess,
		"Thanh toán thành công",
		"Chủ nhà đã xác nhận chuyển khoản cho "+updated.Description,
		map[string]interface{}{"payment_id": updated.ID, "booking_id": updated.BookingID})
	s.PublishCompleted(ctx, updated)

	return updated, nil
}

func (s *Service) RequestRefund(ctx context.Context, actor internal.Actor, id int64, dto RefundRequestDTO) (*payment.Payment, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != p.PayerID {
		return nil, internal.ErrUnauthorizedAccess()
	}
	if !Refundable(p) {
		s.logger.Warn("refund requested on non-refundable payment", "payment_id", id, "status", p.Status, "refund_status", p.Refund.Status)
		return nil, internal.NewInvalidStateError("Payment is not refundable", internal.ErrCodeNotRefundable)
	}

	amount := dto.Amount
	if amount == 0 {
		amount = p.Amount
	}
	if amount > p.Amount {
		return nil, internal.NewValidationFieldError("amount", "refund amount exceeds payment amount", internal.ErrCodeInvalidAmount)
	}

	now := s.now()
	applied, err := s.repo.MarkRefundRequested(ctx, id, map[string]interface{}{
		"refund_status":       payment.RefundRequested,
		"refund_amount":       amount,
		"refund_reason":       dto.Reason,
		"refund_requested_by": actor.ID,
		"refund_requested_at": now,
	})
	if err != nil {
		return nil, internal.NewInternalError("failed to request refund", err)
	}
	if !applied {
		return nil, internal.NewInvalidStateError("Payment is not refundable", internal.ErrCodeNotRefundable)
	}

	s.logger.Info("refund requested", "payment_id", id, "amount", amount, "actor_id", actor.ID)
	s.notifier.Notify(ctx, p.RecipientID, notification.TypeRefundRequested,
		"Yêu cầu hoàn tiền",
		"Người thuê yêu cầu hoàn tiền cho "+p.Description,
		map[string]interface{}{"payment_id": p.ID, "amount": amount})

	return s.repo.GetByID(ctx, id)
}

func (s *Service) CompleteRefund(ctx context.Context, actor internal.Actor, id int64) (*payment.Payment, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrUnauthorizedAccess()
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Refund.Status != payment.RefundRequested {
		return nil, internal.NewInvalidStateError("No refund has been requested", internal.ErrCodeNotRefundable)
	}

	now := s.now()
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		applied, err := s.repo.Transition(ctx, id, []string{payment.StatusCompleted}, map[string]interface{}{
			"status":              payment.StatusRefunded,
			"refund_status":       payment.RefundCompleted,
			"refund_processed_at": now,
		})
		if err != nil {
			return internal.NewInternalError("failed to complete refund", err)
		}
		if !applied {
			return internal.NewInvalidStateError("Payment is not refundable", internal.ErrCodeNotRefundable)
		}
		if p.Type == payment.TypeDeposit && s.ledger != nil {
			return s.ledger.MarkRefundCompleted(ctx, p.BookingID, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("refund completed", "payment_id", id, "amount", p.Refund.Amount)
	s.notifier.Notify(ctx, p.PayerID, notification.TypeRefundCompleted,
		"Hoàn tiền thành công",
		"Khoản hoàn tiền cho "+p.Description+" đã được xử lý",
		map[string]interface{}{"payment_id": p.ID, "amount": p.Refund.Amount})

	return s.repo.GetByID(ctx, id)
}

// PublishCompleted announces a committed completion; email delivery hangs off it.
func (s *Service) PublishCompleted(ctx context.Context, p *payment.Payment) {
	ref := p.BankTransfer.Reference
	if p.Gateway.TxnRef != nil {
		ref = *p.Gateway.TxnRef
	}
	evt := events.NewPaymentCompletedEvent(p.ID, p.TransactionID, p.BookingID, p.PayerID, p.RecipientID, p.Type, p.Amount, ref)
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Error("failed to publish payment completed event", "error", err, "payment_id", p.ID)
	}
}

func canView(actor internal.Actor, p *payment.Payment) bool {
	return actor.IsAdmin() || actor.ID == p.PayerID || actor.ID == p.RecipientID
}
