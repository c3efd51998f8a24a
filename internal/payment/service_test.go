package payment_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/room-rental/internal"
	bookingPostgres "github.com/frahmantamala/room-rental/internal/booking/postgres"
	"github.com/frahmantamala/room-rental/internal/core/database"
	"github.com/frahmantamala/room-rental/internal/core/database/dbtest"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/booking"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/notification"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/payment"
	"github.com/frahmantamala/room-rental/internal/core/events"
	paymentpkg "github.com/frahmantamala/room-rental/internal/payment"
	paymentPostgres "github.com/frahmantamala/room-rental/internal/payment/postgres"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestPayment(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Payment Suite")
}

type recordingNotifier struct {
	mu    sync.Mutex
	kinds map[int64][]string
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, kind, _, _ string, _ map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.kinds == nil {
		n.kinds = map[int64][]string{}
	}
	n.kinds[userID] = append(n.kinds[userID], kind)
}

func (n *recordingNotifier) sentTo(userID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.kinds[userID]
}

type countingPublisher struct {
	mu        sync.Mutex
	completed int
}

func (p *countingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if evt.EventType() == events.EventTypePaymentCompleted {
		p.completed++
	}
	return nil
}

const (
	landlordID = int64(2)
	tenantID   = int64(3)
)

var (
	tenant   = internal.Actor{ID: tenantID, Role: internal.RoleTenant}
	landlord = internal.Actor{ID: landlordID, Role: internal.RoleLandlord}
	admin    = internal.Actor{ID: 1, Role: internal.RoleAdmin}
)

var _ = Describe("Payment Service", func() {
	var (
		ctx       context.Context
		db        *gorm.DB
		repo      *paymentPostgres.PaymentRepository
		ledger    *bookingPostgres.BookingRepository
		notifier  *recordingNotifier
		publisher *countingPublisher
		service   *paymentpkg.Service
		seq       int
	)

	newBooking := func(status booking.Status) *booking.Booking {
		seq++
		checkIn := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		pricing := booking.Pricing{MonthlyRent: 3_000_000, Deposit: 3_000_000, Utilities: 200_000, TotalAmount: 12_600_000}
		monthly := make([]booking.Installment, 0, 3)
		for i := 0; i < 3; i++ {
			monthly = append(monthly, booking.Installment{
				Month: i + 1, Amount: 3_200_000, DueDate: checkIn.AddDate(0, i, 0), Status: booking.InstallmentPending,
			})
		}
		b := &booking.Booking{
			ContractNumber: fmt.Sprintf("HD20260301TEST%04d", seq),
			RoomID:         10,
			TenantID:       tenantID,
			LandlordID:     landlordID,
			CheckIn:        checkIn,
			CheckOut:       checkIn.AddDate(0, 3, 0),
			DurationMonths: 3,
			Occupants:      1,
			Pricing:        pricing,
			Status:         status,
			Deposit:        booking.DepositState{Status: booking.DepositPending, Amount: pricing.Deposit},
			Monthly:        monthly,
		}
		Expect(ledger.Create(ctx, b)).To(Succeed())
		return b
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = dbtest.Open()
		Expect(err).NotTo(HaveOccurred())

		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())

		repo = paymentPostgres.NewPaymentRepository(db)
		ledger = bookingPostgres.NewBookingRepository(db)
		notifier = &recordingNotifier{}
		publisher = &countingPublisher{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		stats := paymentPostgres.NewStatsRepository(sqlx.NewDb(sqlDB, "sqlite3"))
		service = paymentpkg.NewService(repo, stats, ledger, database.NewTransactor(db), notifier, publisher, logger)
	})

	Describe("CreatePlaceholder", func() {
		It("hands back the existing deposit record", func() {
			b := newBooking(booking.StatusPending)
			first, err := service.CreatePlaceholder(ctx, b, payment.TypeDeposit)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.TransactionID).To(HavePrefix("TXN"))
			Expect(first.Currency).To(Equal(payment.CurrencyVND))

			second, err := service.CreatePlaceholder(ctx, b, payment.TypeDeposit)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ID).To(Equal(first.ID))
		})

		It("refuses a zero amount", func() {
			b := newBooking(booking.StatusPending)
			b.Pricing.Utilities = 0

			_, err := service.CreatePlaceholder(ctx, b, payment.TypeUtilities)
			Expect(internal.HasCode(err, internal.ErrCodeInvalidAmount)).To(BeTrue())
		})
	})

	Describe("MarkCompleted and MarkFailed", func() {
		var p *payment.Payment

		BeforeEach(func() {
			var err error
			p, err = service.CreatePlaceholder(ctx, newBooking(booking.StatusPending), payment.TypeDeposit)
			Expect(err).NotTo(HaveOccurred())
		})

		It("completes once", func() {
			applied, updated, err := service.MarkCompleted(ctx, p.ID, paymentpkg.Completion{Method: payment.MethodCash})
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(BeTrue())
			Expect(updated.Status).To(Equal(payment.StatusCompleted))
			Expect(updated.Method).To(Equal(payment.MethodCash))

			applied, _, err = service.MarkCompleted(ctx, p.ID, paymentpkg.Completion{})
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(BeFalse())
		})

		It("does not fail a completed payment", func() {
			_, _, err := service.MarkCompleted(ctx, p.ID, paymentpkg.Completion{})
			Expect(err).NotTo(HaveOccurred())

			failed, err := service.MarkFailed(ctx, p.ID, "late failure")
			Expect(err).NotTo(HaveOccurred())
			Expect(failed).To(BeFalse())

			stored, err := repo.GetByID(ctx, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(payment.StatusCompleted))
		})

		It("reports unknown payments", func() {
			_, err := service.MarkFailed(ctx, 999, "x")
			Expect(internal.HasCode(err, internal.ErrCodePaymentNotFound)).To(BeTrue())
		})
	})

	Describe("CreateInstallment", func() {
		It("needs the deposit to be paid first", func() {
			b := newBooking(booking.StatusPending)
			_, err := service.CreateInstallment(ctx, tenant, b.ID, 1)
			Expect(internal.HasCode(err, internal.ErrCodeNotPayable)).To(BeTrue())
		})

		It("creates one payment per month and reuses it", func() {
			b := newBooking(booking.StatusDepositPaid)
			p, err := service.CreateInstallment(ctx, tenant, b.ID, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Type).To(Equal(payment.TypeMonthlyRent))
			Expect(*p.Month).To(Equal(2))
			Expect(p.Amount).To(Equal(int64(3_200_000)))

			again, err := service.CreateInstallment(ctx, landlord, b.ID, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.ID).To(Equal(p.ID))
		})

		It("rejects months outside the schedule", func() {
			b := newBooking(booking.StatusActive)
			_, err := service.CreateInstallment(ctx, tenant, b.ID, 4)
			Expect(internal.HasType(err, internal.ErrorTypeValidation)).To(BeTrue())
		})

		It("keeps strangers out", func() {
			b := newBooking(booking.StatusActive)
			_, err := service.CreateInstallment(ctx, internal.Actor{ID: 77, Role: internal.RoleTenant}, b.ID, 1)
			Expect(internal.HasCode(err, internal.ErrCodeUnauthorizedAccess)).To(BeTrue())
		})
	})

	Describe("ConfirmBankTransfer", func() {
		var (
			b   *booking.Booking
			p   *payment.Payment
			dto paymentpkg.BankTransferDTO
		)

		BeforeEach(func() {
			var err error
			b = newBooking(booking.StatusActive)
			p, err = service.CreateInstallment(ctx, tenant, b.ID, 1)
			Expect(err).NotTo(HaveOccurred())
			dto = paymentpkg.BankTransferDTO{BankName: "Vietcombank", AccountNumber: "0011001234567", Reference: "FT2603011234"}
		})

		It("settles the month on the booking schedule", func() {
			updated, err := service.ConfirmBankTransfer(ctx, landlord, p.ID, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Status).To(Equal(payment.StatusCompleted))
			Expect(updated.Method).To(Equal(payment.MethodBankTransfer))
			Expect(updated.BankTransfer.Reference).To(Equal("FT2603011234"))
			Expect(*updated.BankTransfer.ConfirmedBy).To(Equal(landlordID))

			stored, err := ledger.GetByID(ctx, b.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Monthly[0].Status).To(Equal(booking.InstallmentPaid))
			Expect(*stored.Monthly[0].PaymentID).To(Equal(p.ID))
			Expect(stored.Monthly[1].Status).To(Equal(booking.InstallmentPending))

			Expect(notifier.sentTo(tenantID)).To(ContainElement(notification.TypePaymentSuccess))
			Expect(publisher.completed).To(Equal(1))
		})

		It("cannot be confirmed twice", func() {
			_, err := service.ConfirmBankTransfer(ctx, landlord, p.ID, dto)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.ConfirmBankTransfer(ctx, landlord, p.ID, dto)
			Expect(internal.HasCode(err, internal.ErrCodeNotPayable)).To(BeTrue())
			Expect(publisher.completed).To(Equal(1))
		})

		It("is reserved to the recipient", func() {
			_, err := service.ConfirmBankTransfer(ctx, tenant, p.ID, dto)
			Expect(internal.HasCode(err, internal.ErrCodeUnauthorizedAccess)).To(BeTrue())
		})

		It("sends deposits through the booking instead", func() {
			deposit, err := service.CreatePlaceholder(ctx, b, payment.TypeDeposit)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.ConfirmBankTransfer(ctx, landlord, deposit.ID, dto)
			Expect(internal.HasType(err, internal.ErrorTypeInvalidState)).To(BeTrue())
		})

		It("validates the transfer details", func() {
			_, err := service.ConfirmBankTransfer(ctx, landlord, p.ID, paymentpkg.BankTransferDTO{BankName: "VCB"})
			Expect(internal.HasType(err, internal.ErrorTypeValidation)).To(BeTrue())
		})
	})

	Describe("Refunds", func() {
		var (
			b *booking.Booking
			p *payment.Payment
		)

		BeforeEach(func() {
			var err error
			b = newBooking(booking.StatusPending)
			p, err = service.CompleteDeposit(ctx, b, paymentpkg.Completion{Method: payment.MethodBankTransfer, ExternalRef: "FT1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Model(&booking.Booking{}).Where("id = ?", b.ID).Updates(map[string]interface{}{
				"status":                     booking.StatusCancelled,
				"cancellation_refund_status": booking.RefundPending,
				"cancellation_refund_amount": int64(3_000_000),
			}).Error).To(Succeed())
		})

		It("runs from request to completion", func() {
			requested, err := service.RequestRefund(ctx, tenant, p.ID, paymentpkg.RefundRequestDTO{Reason: "Chủ nhà hủy"})
			Expect(err).NotTo(HaveOccurred())
			Expect(requested.Refund.Status).To(Equal(payment.RefundRequested))
			Expect(requested.Refund.Amount).To(Equal(int64(3_000_000)))
			Expect(notifier.sentTo(landlordID)).To(ContainElement(notification.TypeRefundRequested))

			done, err := service.CompleteRefund(ctx, admin, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(done.Status).To(Equal(payment.StatusRefunded))
			Expect(done.Refund.Status).To(Equal(payment.RefundCompleted))
			Expect(notifier.sentTo(tenantID)).To(ContainElement(notification.TypeRefundCompleted))

			stored, err := ledger.GetByID(ctx, b.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Cancellation.RefundStatus).To(Equal(booking.RefundCompleted))
			Expect(stored.Deposit.Status).To(Equal(booking.DepositRefunded))
		})

		It("accepts only one request", func() {
			_, err := service.RequestRefund(ctx, tenant, p.ID, paymentpkg.RefundRequestDTO{Reason: "a"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.RequestRefund(ctx, tenant, p.ID, paymentpkg.RefundRequestDTO{Reason: "b"})
			Expect(internal.HasCode(err, internal.ErrCodeNotRefundable)).To(BeTrue())
		})

		It("caps the amount at what was paid", func() {
			_, err := service.RequestRefund(ctx, tenant, p.ID, paymentpkg.RefundRequestDTO{Reason: "a", Amount: 5_000_000})
			Expect(internal.HasCode(err, internal.ErrCodeInvalidAmount)).To(BeTrue())
		})

		It("leaves completion to admins", func() {
			_, err := service.RequestRefund(ctx, tenant, p.ID, paymentpkg.RefundRequestDTO{Reason: "a"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.CompleteRefund(ctx, landlord, p.ID)
			Expect(internal.HasCode(err, internal.ErrCodeUnauthorizedAccess)).To(BeTrue())
		})

		It("needs a request before completing", func() {
			_, err := service.CompleteRefund(ctx, admin, p.ID)
			Expect(internal.HasCode(err, internal.ErrCodeNotRefundable)).To(BeTrue())
		})
	})

	Describe("Backfill", func() {
		It("creates the missing deposit with the historical paid date", func() {
			paidAt := time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)
			b := newBooking(booking.StatusDepositPaid)
			Expect(db.Model(&booking.Booking{}).Where("id = ?", b.ID).Updates(map[string]interface{}{
				"deposit_paid_at":      paidAt,
				"deposit_method":       payment.MethodCash,
				"deposit_external_ref": "BIENLAI-01",
			}).Error).To(Succeed())

			repaired, err := service.Backfill(ctx, tenant)
			Expect(err).NotTo(HaveOccurred())
			Expect(repaired).To(Equal(1))

			p, err := repo.FindLatestByBookingAndType(ctx, b.ID, payment.TypeDeposit)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Status).To(Equal(payment.StatusCompleted))
			Expect(p.Backfilled).To(BeTrue())
			Expect(p.Method).To(Equal(payment.MethodCash))
			Expect(p.Amount).To(Equal(int64(3_000_000)))
			Expect(p.BankTransfer.Reference).To(Equal("BIENLAI-01"))
			Expect(*p.CompletedAt).To(BeTemporally("==", paidAt))

			repaired, err = service.Backfill(ctx, tenant)
			Expect(err).NotTo(HaveOccurred())
			Expect(repaired).To(BeZero())
		})

		It("completes a stale placeholder instead of adding a second record", func() {
			b := newBooking(booking.StatusDepositPaid)
			placeholder, err := service.CreatePlaceholder(ctx, b, payment.TypeDeposit)
			Expect(err).NotTo(HaveOccurred())

			repaired, err := service.Backfill(ctx, admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(repaired).To(Equal(1))

			stored, err := repo.GetByID(ctx, placeholder.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(payment.StatusCompleted))
			Expect(stored.Backfilled).To(BeTrue())

			var count int64
			Expect(db.Model(&payment.Payment{}).Where("booking_id = ?", b.ID).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})

		It("falls back to the booking's last update when the paid date is missing", func() {
			b := newBooking(booking.StatusDepositPaid)
			Expect(db.Model(&booking.Booking{}).Where("id = ?", b.ID).Update("deposit_paid_at", nil).Error).To(Succeed())
			reloaded, err := ledger.GetByID(ctx, b.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Deposit.PaidAt).To(BeNil())

			repaired, err := service.Backfill(ctx, admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(repaired).To(Equal(1))

			p, err := repo.FindLatestByBookingAndType(ctx, b.ID, payment.TypeDeposit)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.CompletedAt).NotTo(BeNil())
			Expect(*p.CompletedAt).To(BeTemporally("==", reloaded.UpdatedAt))
		})

		It("skips bookings that require no deposit", func() {
			b := newBooking(booking.StatusDepositPaid)
			Expect(db.Model(&booking.Booking{}).Where("id = ?", b.ID).Updates(map[string]interface{}{
				"pricing_deposit": 0,
				"deposit_amount":  0,
			}).Error).To(Succeed())

			repaired, err := service.Backfill(ctx, admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(repaired).To(BeZero())

			b.Pricing.Deposit = 0
			b.Deposit.Amount = 0
			repaired, err = service.BackfillMissing(ctx, []*booking.Booking{b})
			Expect(err).NotTo(HaveOccurred())
			Expect(repaired).To(BeZero())

			_, err = repo.FindLatestByBookingAndType(ctx, b.ID, payment.TypeDeposit)
			Expect(internal.HasCode(err, internal.ErrCodePaymentNotFound)).To(BeTrue())
		})

		It("only repairs the caller's own bookings", func() {
			newBooking(booking.StatusDepositPaid)

			repaired, err := service.Backfill(ctx, internal.Actor{ID: 77, Role: internal.RoleTenant})
			Expect(err).NotTo(HaveOccurred())
			Expect(repaired).To(BeZero())
		})
	})

	Describe("ListForUser", func() {
		It("repairs deposits before listing and scopes to the caller", func() {
			newBooking(booking.StatusDepositPaid)

			list, total, err := service.ListForUser(ctx, tenant, paymentpkg.ListFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(1)))
			Expect(list[0].Backfilled).To(BeTrue())

			list, _, err = service.ListForUser(ctx, internal.Actor{ID: 77, Role: internal.RoleTenant}, paymentpkg.ListFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
		})

		It("hides other users' payments from GetByID", func() {
			p, err := service.CreatePlaceholder(ctx, newBooking(booking.StatusPending), payment.TypeDeposit)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.GetByID(ctx, internal.Actor{ID: 77, Role: internal.RoleTenant}, p.ID)
			Expect(internal.HasCode(err, internal.ErrCodeUnauthorizedAccess)).To(BeTrue())
			_, err = service.GetByID(ctx, landlord, p.ID)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("GetStats", func() {
		It("aggregates by status", func() {
			b := newBooking(booking.StatusDepositPaid)
			_, err := service.CompleteDeposit(ctx, b, paymentpkg.Completion{})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.CreateInstallment(ctx, tenant, b.ID, 1)
			Expect(err).NotTo(HaveOccurred())

			stats, err := service.GetStats(ctx, tenant, paymentpkg.StatsFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.TotalCount).To(Equal(int64(2)))
			Expect(stats.TotalAmount).To(Equal(int64(6_200_000)))
			Expect(stats.SuccessfulCount).To(Equal(int64(1)))
			Expect(stats.SuccessfulAmount).To(Equal(int64(3_000_000)))
			Expect(stats.PendingCount).To(Equal(int64(1)))
			Expect(stats.PendingAmount).To(Equal(int64(3_200_000)))

			stats, err = service.GetStats(ctx, tenant, paymentpkg.StatsFilter{Type: payment.TypeMonthlyRent})
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.TotalCount).To(Equal(int64(1)))

			stats, err = service.GetStats(ctx, internal.Actor{ID: 77, Role: internal.RoleTenant}, paymentpkg.StatsFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.TotalCount).To(BeZero())
		})
	})
})
