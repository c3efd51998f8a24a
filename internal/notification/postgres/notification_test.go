package postgres_test

import (
	"context"
	"testing"

	"github.com/frahmantamala/room-rental/internal/core/database/dbtest"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/notification"
	notificationpkg "github.com/frahmantamala/room-rental/internal/notification"
	notificationPostgres "github.com/frahmantamala/room-rental/internal/notification/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestNotificationPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Notification Postgres Suite")
}

var _ = Describe("Notification PostgreSQL Repository", func() {
	var (
		repo *notificationPostgres.NotificationRepository
		ctx  context.Context
	)

	create := func(userID int64, title string) *notification.Notification {
		n := &notification.Notification{UserID: userID, Type: notification.TypeBookingStatus, Title: title}
		Expect(repo.Create(ctx, n)).To(Succeed())
		return n
	}

	BeforeEach(func() {
		ctx = context.Background()
		db, err := dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		repo = notificationPostgres.NewNotificationRepository(db)
	})

	It("lists newest first with a full total", func() {
		create(1, "first")
		create(1, "second")
		create(1, "third")
		create(2, "someone else")

		list, total, err := repo.ListByUser(ctx, notificationpkg.ListFilter{UserID: 1, Limit: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(int64(3)))
		Expect(list).To(HaveLen(2))
		Expect(list[0].Title).To(Equal("third"))

		rest, _, err := repo.ListByUser(ctx, notificationpkg.ListFilter{UserID: 1, Limit: 2, Offset: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(rest).To(HaveLen(1))
		Expect(rest[0].Title).To(Equal("first"))
	})

	It("marks read only once and only for the owner", func() {
		n := create(1, "x")

		ok, err := repo.MarkRead(ctx, n.ID, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())

		ok, err = repo.MarkRead(ctx, n.ID, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		ok, err = repo.MarkRead(ctx, n.ID, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())

		unread, total, err := repo.ListByUser(ctx, notificationpkg.ListFilter{UserID: 1, UnreadOnly: true, Limit: 10})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(BeZero())
		Expect(unread).To(BeEmpty())
	})
})
