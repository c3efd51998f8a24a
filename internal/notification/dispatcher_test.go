package notification_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/room-rental/internal/core/database/dbtest"
	notificationDatamodel "github.com/frahmantamala/room-rental/internal/core/datamodel/notification"
	"github.com/frahmantamala/room-rental/internal/notification"
	notificationPostgres "github.com/frahmantamala/room-rental/internal/notification/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestNotification(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Notification Suite")
}

type sentMail struct {
	To       string
	Template string
	Data     map[string]interface{}
}

// fakeMailer records deliveries; block, when set, holds every Send until closed.
type fakeMailer struct {
	mu    sync.Mutex
	sent  []sentMail
	err   error
	block chan struct{}
}

func (m *fakeMailer) Send(ctx context.Context, to, templateName string, data map[string]interface{}) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Template: templateName, Data: data})
	return nil
}

func (m *fakeMailer) deliveries() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var _ = Describe("Dispatcher", func() {
	var (
		db         *gorm.DB
		mailer     *fakeMailer
		dispatcher *notification.Dispatcher
		ctx        context.Context
	)

	storedFor := func(userID int64) func() int64 {
		return func() int64 {
			var count int64
			db.Model(&notificationDatamodel.Notification{}).Where("user_id = ?", userID).Count(&count)
			return count
		}
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		mailer = &fakeMailer{}
	})

	AfterEach(func() {
		if dispatcher != nil {
			dispatcher.Shutdown()
		}
	})

	It("stores in-app notifications in the background", func() {
		dispatcher = notification.NewDispatcher(notification.DispatcherConfig{MaxWorkers: 2}, notificationPostgres.NewNotificationRepository(db), mailer, quietLogger())

		dispatcher.Notify(ctx, 3, notificationDatamodel.TypePaymentSuccess, "Thanh toán thành công", "Bạn đã thanh toán 3.000.000 VND",
			map[string]interface{}{"payment_id": 9})
		dispatcher.Notify(ctx, 3, notificationDatamodel.TypeBookingCreated, "Đặt phòng thành công", "HD1", nil)

		Eventually(storedFor(3)).Should(Equal(int64(2)))

		var n notificationDatamodel.Notification
		Expect(db.Where("type = ?", notificationDatamodel.TypePaymentSuccess).First(&n).Error).To(Succeed())
		Expect(n.Title).To(Equal("Thanh toán thành công"))
		Expect(n.IsRead).To(BeFalse())
		Expect(n.Data).To(HaveKeyWithValue("payment_id", BeNumerically("==", 9)))
	})

	It("sends queued emails through the mailer", func() {
		dispatcher = notification.NewDispatcher(notification.DispatcherConfig{}, notificationPostgres.NewNotificationRepository(db), mailer, quietLogger())

		dispatcher.Email(ctx, "khach@mail.com", notification.TemplatePaymentSuccess, map[string]interface{}{"amount": 100})
		dispatcher.Email(ctx, "", notification.TemplatePaymentSuccess, nil)

		Eventually(mailer.deliveries).Should(HaveLen(1))
		Consistently(mailer.deliveries, 100*time.Millisecond).Should(HaveLen(1))
		Expect(mailer.deliveries()[0].To).To(Equal("khach@mail.com"))
	})

	It("swallows delivery failures", func() {
		mailer.err = errors.New("smtp: connection refused")
		dispatcher = notification.NewDispatcher(notification.DispatcherConfig{MaxWorkers: 1}, notificationPostgres.NewNotificationRepository(db), mailer, quietLogger())

		dispatcher.Email(ctx, "khach@mail.com", notification.TemplatePaymentSuccess, nil)
		dispatcher.Notify(ctx, 5, notificationDatamodel.TypePaymentFailed, "Thanh toán thất bại", "x", nil)

		Eventually(storedFor(5)).Should(Equal(int64(1)))
	})

	It("never blocks the caller when the queue is full", func() {
		mailer.block = make(chan struct{})
		dispatcher = notification.NewDispatcher(notification.DispatcherConfig{MaxWorkers: 1, JobQueueSize: 1}, notificationPostgres.NewNotificationRepository(db), mailer, quietLogger())

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 20; i++ {
				dispatcher.Email(ctx, "khach@mail.com", notification.TemplatePaymentSuccess, nil)
			}
		}()
		Eventually(done).Should(BeClosed())

		close(mailer.block)
		Eventually(mailer.deliveries).ShouldNot(BeEmpty())
		Expect(len(mailer.deliveries())).To(BeNumerically("<", 20))
	})
})

var _ = Describe("Render", func() {
	It("splits the subject from the body", func() {
		subject, body, err := notification.Render(notification.TemplatePaymentSuccess, map[string]interface{}{
			"name":           "Khách",
			"amount":         3000000,
			"description":    "Tiền đặt cọc hợp đồng HD1",
			"transaction_id": "TXN1",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(subject).To(Equal("Thanh toan thanh cong TXN1"))
		Expect(body).To(HavePrefix("Xin chao Khách,"))
		Expect(body).To(ContainSubstring("3000000 VND cho Tiền đặt cọc hợp đồng HD1"))
	})

	It("fails on unknown templates", func() {
		_, _, err := notification.Render("welcome", nil)
		Expect(err).To(HaveOccurred())
	})

	It("renders through the log mailer", func() {
		mailer := notification.NewLogMailer(quietLogger())
		Expect(mailer.Send(context.Background(), "a@b.vn", notification.TemplateBookingCreated,
			map[string]interface{}{"contract_number": "HD1", "deposit": 1})).To(Succeed())
	})
})
