package notification_test

import (
	"context"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/booking"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/payment"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/user"
	"github.com/frahmantamala/room-rental/internal/core/events"
	"github.com/frahmantamala/room-rental/internal/notification"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type userStore map[int64]*user.User

func (s userStore) GetByID(_ context.Context, id int64) (*user.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, internal.NewNotFoundError("User not found", internal.ErrCodeUserNotFound)
}

type paymentStore map[int64]*payment.Payment

func (s paymentStore) GetByID(_ context.Context, id int64) (*payment.Payment, error) {
	if p, ok := s[id]; ok {
		return p, nil
	}
	return nil, internal.NewNotFoundError("Payment not found", internal.ErrCodePaymentNotFound)
}

type bookingStore map[int64]*booking.Booking

func (s bookingStore) GetByID(_ context.Context, id int64) (*booking.Booking, error) {
	if b, ok := s[id]; ok {
		return b, nil
	}
	return nil, internal.NewNotFoundError("Booking not found", internal.ErrCodeBookingNotFound)
}

type recordingQueue struct {
	sent []sentMail
}

func (q *recordingQueue) Email(_ context.Context, to, template string, data map[string]interface{}) {
	q.sent = append(q.sent, sentMail{To: to, Template: template, Data: data})
}

var _ = Describe("EmailSubscriber", func() {
	var (
		queue *recordingQueue
		bus   *events.EventBus
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		queue = &recordingQueue{}
		bus = events.NewEventBus(quietLogger())

		users := userStore{
			2: {ID: 2, Name: "Chủ nhà", Email: "chunha@mail.com"},
			3: {ID: 3, Name: "Khách", Email: "khach@mail.com"},
		}
		payments := paymentStore{
			7: {ID: 7, TransactionID: "PAY1", BookingID: 5, PayerID: 3, RecipientID: 2,
				Amount: 3000000, Description: "Tiền đặt cọc hợp đồng HD1"},
			8: {ID: 8, TransactionID: "PAY2", BookingID: 5, PayerID: 3, RecipientID: 99, Amount: 1},
		}
		bookings := bookingStore{
			5: {ID: 5, ContractNumber: "HD1", TenantID: 3, LandlordID: 2,
				Pricing: booking.Pricing{Deposit: 3000000}},
		}

		notification.NewEmailSubscriber(users, payments, bookings, queue, quietLogger()).Register(bus)
	})

	It("mails both parties when a payment completes", func() {
		evt := events.NewPaymentCompletedEvent(7, "PAY1", 5, 3, 2, payment.TypeDeposit, 3000000, "14123456")
		Expect(bus.PublishSync(ctx, evt)).To(Succeed())

		Expect(queue.sent).To(HaveLen(2))
		Expect(queue.sent[0].To).To(Equal("khach@mail.com"))
		Expect(queue.sent[0].Template).To(Equal(notification.TemplatePaymentSuccess))
		Expect(queue.sent[0].Data).To(HaveKeyWithValue("name", "Khách"))
		Expect(queue.sent[0].Data).To(HaveKeyWithValue("transaction_id", "PAY1"))
		Expect(queue.sent[1].To).To(Equal("chunha@mail.com"))
		Expect(queue.sent[1].Template).To(Equal(notification.TemplatePaymentReceived))
		Expect(queue.sent[1].Data).To(HaveKeyWithValue("name", "Chủ nhà"))
	})

	It("skips recipients it cannot resolve", func() {
		evt := events.NewPaymentCompletedEvent(8, "PAY2", 5, 3, 99, payment.TypeDeposit, 1, "")
		Expect(bus.PublishSync(ctx, evt)).To(Succeed())

		Expect(queue.sent).To(HaveLen(1))
		Expect(queue.sent[0].To).To(Equal("khach@mail.com"))
	})

	It("mails the tenant only when a booking is created", func() {
		created := events.NewBookingStatusChangedEvent(5, "", string(booking.StatusPending), 3, string(internal.RoleTenant), 3, 2)
		Expect(bus.PublishSync(ctx, created)).To(Succeed())

		moved := events.NewBookingStatusChangedEvent(5, string(booking.StatusPending), string(booking.StatusConfirmed), 2, string(internal.RoleLandlord), 3, 2)
		Expect(bus.PublishSync(ctx, moved)).To(Succeed())

		Expect(queue.sent).To(HaveLen(1))
		Expect(queue.sent[0].To).To(Equal("khach@mail.com"))
		Expect(queue.sent[0].Template).To(Equal(notification.TemplateBookingCreated))
		Expect(queue.sent[0].Data).To(HaveKeyWithValue("contract_number", "HD1"))
		Expect(queue.sent[0].Data).To(HaveKeyWithValue("deposit", int64(3000000)))
	})
})
