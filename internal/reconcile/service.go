package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/core/database"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/booking"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/notification"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/payment"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/room"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/user"
	"github.com/frahmantamala/room-rental/internal/core/events"
	paymentpkg "github.com/frahmantamala/room-rental/internal/payment"
	"github.com/frahmantamala/room-rental/internal/paymentgateway"
)

// Payments is the payment record manager as seen by the reconciler.
type Payments interface {
	GetByID(ctx context.Context, actor internal.Actor, id int64) (*payment.Payment, error)
	GetByTxnRef(ctx context.Context, txnRef string) (*payment.Payment, error)
	Lock(ctx context.Context, id int64) (*payment.Payment, error)
	StartGatewayAttempt(ctx context.Context, id int64, txnRef string) (*payment.Payment, error)
	MarkCompleted(ctx context.Context, id int64, c paymentpkg.Completion) (bool, *payment.Payment, error)
	MarkFailed(ctx context.Context, id int64, reason string) (bool, error)
	PublishCompleted(ctx context.Context, p *payment.Payment)
}

type BookingReader interface {
	GetByID(ctx context.Context, id int64) (*booking.Booking, error)
}

type DepositSettler interface {
	MarkDepositPaid(ctx context.Context, bookingID int64, p *payment.Payment) (bool, error)
}

type UserReader interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

type RoomReader interface {
	GetByID(ctx context.Context, id int64) (*room.Room, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID int64, kind, title, message string, data map[string]interface{})
}

// Gateway signs outgoing checkouts and parses gateway callbacks.
type Gateway interface {
	BuildPaymentURL(req paymentgateway.PaymentRequest) (string, error)
	ParseResult(params map[string]string) paymentgateway.Result
}

type Deps struct {
	Payments    Payments
	Bookings    BookingReader
	Deposits    DepositSettler
	Users       UserReader
	Rooms       RoomReader
	Gateway     Gateway
	Tx          database.Transactor
	Notifier    Notifier
	Publisher   events.Publisher
	FrontendURL string
}

// Service applies gateway results to payments and bookings. The return and
// IPN entry points share process, which settles each TxnRef at most once.
type Service struct {
	payments    Payments
	bookings    BookingReader
	deposits    DepositSettler
	users       UserReader
	rooms       RoomReader
	gateway     Gateway
	tx          database.Transactor
	notifier    Notifier
	events      events.Publisher
	frontendURL string
	logger      *slog.Logger
}

func NewService(deps Deps, logger *slog.Logger) *Service {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		payments:    deps.Payments,
		bookings:    deps.Bookings,
		deposits:    deps.Deposits,
		users:       deps.Users,
		rooms:       deps.Rooms,
		gateway:     deps.Gateway,
		tx:          deps.Tx,
		notifier:    deps.Notifier,
		events:      publisher,
		frontendURL: strings.TrimRight(deps.FrontendURL, "/"),
		logger:      logger,
	}
}

// Checkout starts a gateway attempt for a payment and returns the signed URL.
func (s *Service) Checkout(ctx context.Context, actor internal.Actor, paymentID int64, dto CheckoutDTO) (*CheckoutResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	p, err := s.payments.GetByID(ctx, actor, paymentID)
	if err != nil {
		return nil, err
	}
	if p.PayerID != actor.ID {
		s.logger.Warn("checkout attempted by non-payer", "payment_id", paymentID, "actor_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess()
	}
	if !paymentpkg.Payable(p) {
		return nil, internal.NewInvalidStateError("Payment can no longer be paid", internal.ErrCodeNotPayable)
	}

	b, err := s.bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	if b.Status.Terminal() {
		return nil, internal.NewInvalidStateError(fmt.Sprintf("Booking is %s", b.Status), internal.ErrCodeNotPayable)
	}

	txnRef := paymentpkg.NewTxnRef()
	payURL, err := s.gateway.BuildPaymentURL(paymentgateway.PaymentRequest{
		TxnRef:    txnRef,
		Amount:    p.Amount,
		OrderInfo: fmt.Sprintf("Thanh toan %s cho hop dong %s", p.Type, b.ContractNumber),
		IPAddr:    dto.ClientIP,
		BankCode:  dto.BankCode,
		Locale:    dto.Locale,
	})
	if err != nil {
		s.logger.Error("failed to build payment url", "error", err, "payment_id", paymentID)
		if errors.Is(err, paymentgateway.ErrNotConfigured) {
			return nil, internal.NewExternalDependencyError("Payment gateway is not configured", internal.ErrCodeGatewayNotConfigured, err)
		}
		return nil, internal.NewInternalError("failed to build payment url", err)
	}

	updated, err := s.payments.StartGatewayAttempt(ctx, paymentID, txnRef)
	if err != nil {
		return nil, err
	}

	s.logger.Info("gateway checkout started",
		"payment_id", paymentID,
		"booking_id", p.BookingID,
		"txn_ref", txnRef,
		"amount", p.Amount)

	return &CheckoutResponse{
		PaymentID:  updated.ID,
		TxnRef:     txnRef,
		Amount:     updated.Amount,
		PaymentURL: payURL,
	}, nil
}

// HandleReturn processes the browser redirect and returns where to send the user.
func (s *Service) HandleReturn(ctx context.Context, params map[string]string) string {
	res := s.gateway.ParseResult(params)
	out := s.process(ctx, res)

	switch {
	case out.ack == paymentgateway.AckSuccess && out.succeeded:
		return s.successURL(ctx, out.payment)
	case out.ack == paymentgateway.AckSuccess:
		return s.failureURL(res.ResponseCode, res.Message)
	case out.ack == paymentgateway.AckInvalidSignature:
		return s.failureURL("97", "Chữ ký không hợp lệ")
	case out.ack == paymentgateway.AckOrderNotFound:
		return s.failureURL("01", "Không tìm thấy giao dịch")
	case out.ack == paymentgateway.AckInvalidAmount:
		return s.failureURL("04", "Số tiền không hợp lệ")
	default:
		return s.failureURL("99", "Có lỗi xảy ra, vui lòng thử lại")
	}
}

// HandleIPN processes the server-to-server notification and returns the ack.
func (s *Service) HandleIPN(ctx context.Context, params map[string]string) paymentgateway.IPNAck {
	res := s.gateway.ParseResult(params)
	return s.process(ctx, res).ack
}

type outcome struct {
	ack       paymentgateway.IPNAck
	payment   *payment.Payment
	succeeded bool
}

func (s *Service) process(ctx context.Context, res paymentgateway.Result) outcome {
	log := s.logger.With("txn_ref", res.TxnRef, "response_code", res.ResponseCode)

	if !res.IsValid {
		log.Warn("gateway callback with invalid signature")
		return outcome{ack: paymentgateway.AckInvalidSignature}
	}

	p, err := s.payments.GetByTxnRef(ctx, res.TxnRef)
	if err != nil {
		if internal.HasCode(err, internal.ErrCodePaymentNotFound) {
			log.Warn("gateway callback for unknown payment")
			return outcome{ack: paymentgateway.AckOrderNotFound}
		}
		log.Error("failed to look up payment", "error", err)
		return outcome{ack: paymentgateway.AckUnknownError}
	}
	log = log.With("payment_id", p.ID, "booking_id", p.BookingID)

	if res.Amount != p.Amount {
		log.Warn("gateway amount does not match payment", "gateway_amount", res.Amount, "payment_amount", p.Amount)
		return outcome{ack: paymentgateway.AckInvalidAmount, payment: p}
	}

	if !res.Succeeded() {
		return s.applyFailure(ctx, log, p, res)
	}

	updated, err := s.applySuccess(ctx, log, p.ID, res)
	if err != nil {
		log.Error("failed to apply gateway success", "error", err)
		return outcome{ack: paymentgateway.AckUnknownError, payment: p}
	}
	return outcome{ack: paymentgateway.AckSuccess, payment: updated, succeeded: true}
}

// applySuccess commits the payment and, for deposits, the booking in one
// transaction. Notifications and events follow only a change this call made.
func (s *Service) applySuccess(ctx context.Context, log *slog.Logger, paymentID int64, res paymentgateway.Result) (*payment.Payment, error) {
	raw := make(map[string]interface{}, len(res.Raw))
	for k, v := range res.Raw {
		raw[k] = v
	}

	var (
		applied bool
		moved   bool
		updated *payment.Payment
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.payments.Lock(ctx, paymentID)
		if err != nil {
			return err
		}
		if locked.Status == payment.StatusCompleted || locked.Status == payment.StatusRefunded {
			updated = locked
			return nil
		}

		applied, updated, err = s.payments.MarkCompleted(ctx, paymentID, paymentpkg.Completion{
			Method:        payment.MethodVNPay,
			ExternalRef:   res.TxnRef,
			TransactionNo: res.TransactionNo,
			BankCode:      res.BankCode,
			ResponseCode:  res.ResponseCode,
			PayDate:       res.PayDate,
			Raw:           raw,
		})
		if err != nil || !applied {
			return err
		}

		if updated.Type == payment.TypeDeposit {
			moved, err = s.deposits.MarkDepositPaid(ctx, updated.BookingID, updated)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !applied {
		log.Info("payment already settled, skipping duplicate callback", "status", updated.Status)
		return updated, nil
	}

	log.Info("gateway payment completed", "transaction_no", res.TransactionNo, "booking_moved", moved)

	s.notifySuccess(ctx, updated)
	s.payments.PublishCompleted(ctx, updated)
	if moved {
		evt := events.NewBookingStatusChangedEvent(updated.BookingID, "", string(booking.StatusDepositPaid),
			internal.SystemActor.ID, string(internal.SystemActor.Role), updated.PayerID, updated.RecipientID)
		if err := s.events.Publish(ctx, evt); err != nil {
			log.Error("failed to publish booking status event", "error", err)
		}
	}
	return updated, nil
}

func (s *Service) applyFailure(ctx context.Context, log *slog.Logger, p *payment.Payment, res paymentgateway.Result) outcome {
	failed, err := s.payments.MarkFailed(ctx, p.ID, res.Message)
	if err != nil {
		log.Error("failed to mark payment failed", "error", err)
		return outcome{ack: paymentgateway.AckUnknownError, payment: p}
	}
	if !failed {
		log.Info("gateway failure for payment that is not open, ignoring", "status", p.Status)
		return outcome{ack: paymentgateway.AckSuccess, payment: p}
	}

	log.Info("gateway payment failed", "reason", res.Message)
	s.notifier.Notify(ctx, p.PayerID, notification.TypePaymentFailed,
		"Thanh toán thất bại",
		res.Message,
		map[string]interface{}{"payment_id": p.ID, "booking_id": p.BookingID, "response_code": res.ResponseCode})
	if err := s.events.Publish(ctx, events.NewPaymentFailedEvent(p.ID, p.BookingID, p.PayerID, p.Amount, res.Message)); err != nil {
		log.Error("failed to publish payment failed event", "error", err)
	}
	return outcome{ack: paymentgateway.AckSuccess, payment: p}
}

func (s *Service) notifySuccess(ctx context.Context, p *payment.Payment) {
	data := map[string]interface{}{
		"payment_id":     p.ID,
		"booking_id":     p.BookingID,
		"amount":         p.Amount,
		"transaction_id": p.TransactionID,
	}
	amount := formatVND(p.Amount)
	s.notifier.Notify(ctx, p.PayerID, notification.TypePaymentSuccess,
		"Thanh toán thành công",
		fmt.Sprintf("Bạn đã thanh toán %s cho %s", amount, p.Description),
		data)
	s.notifier.Notify(ctx, p.RecipientID, notification.TypePaymentReceived,
		"Đã nhận thanh toán",
		fmt.Sprintf("Bạn đã nhận %s cho %s", amount, p.Description),
		data)
}

// contact resolves the recipient's contact details, falling back to the
// booked room's address when the recipient has none on file.
func (s *Service) contact(ctx context.Context, p *payment.Payment) (name, phone, address string) {
	if u, err := s.users.GetByID(ctx, p.RecipientID); err == nil {
		name, phone, address = u.Name, u.Phone, u.Address
	} else {
		s.logger.Warn("failed to load payment recipient", "error", err, "recipient_id", p.RecipientID)
	}
	if address != "" {
		return name, phone, address
	}

	b, err := s.bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		return name, phone, address
	}
	if r, err := s.rooms.GetByID(ctx, b.RoomID); err == nil {
		address = r.Address
	}
	return name, phone, address
}

func (s *Service) successURL(ctx context.Context, p *payment.Payment) string {
	name, phone, address := s.contact(ctx, p)
	q := url.Values{}
	q.Set("payment_id", strconv.FormatInt(p.ID, 10))
	q.Set("booking_id", strconv.FormatInt(p.BookingID, 10))
	q.Set("amount", strconv.FormatInt(p.Amount, 10))
	q.Set("type", p.Type)
	if name != "" {
		q.Set("contact_name", name)
	}
	if phone != "" {
		q.Set("contact_phone", phone)
	}
	if address != "" {
		q.Set("contact_address", address)
	}
	return s.frontendURL + "/payment/success?" + q.Encode()
}

func (s *Service) failureURL(code, message string) string {
	q := url.Values{}
	q.Set("code", code)
	q.Set("message", message)
	return s.frontendURL + "/payment/failed?" + q.Encode()
}

func formatVND(amount int64) string {
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	return b.String() + " VND"
}
