package notification_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/core/database/dbtest"
	notificationDatamodel "github.com/frahmantamala/room-rental/internal/core/datamodel/notification"
	"github.com/frahmantamala/room-rental/internal/notification"
	notificationPostgres "github.com/frahmantamala/room-rental/internal/notification/postgres"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("Service", func() {
	var (
		db      *gorm.DB
		service *notification.Service
		ctx     context.Context
		tenant  = internal.Actor{ID: 3, Role: internal.RoleTenant}
		other   = internal.Actor{ID: 4, Role: internal.RoleTenant}
	)

	seed := func(userID int64, read bool) *notificationDatamodel.Notification {
		n := &notificationDatamodel.Notification{
			UserID:  userID,
			Type:    notificationDatamodel.TypeBookingStatus,
			Title:   "Cập nhật đặt phòng",
			Message: "HD1",
			IsRead:  read,
		}
		Expect(db.Create(n).Error).To(Succeed())
		return n
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		service = notification.NewService(notificationPostgres.NewNotificationRepository(db), quietLogger())
	})

	Describe("List", func() {
		It("only returns the caller's notifications", func() {
			seed(tenant.ID, false)
			seed(tenant.ID, true)
			seed(other.ID, false)

			list, total, err := service.List(ctx, tenant, notification.ListFilter{UserID: other.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(2)))
			for _, n := range list {
				Expect(n.UserID).To(Equal(tenant.ID))
			}

			unread, total, err := service.List(ctx, tenant, notification.ListFilter{UnreadOnly: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(1)))
			Expect(unread[0].IsRead).To(BeFalse())
		})
	})

	Describe("MarkRead", func() {
		It("marks the notification read once", func() {
			n := seed(tenant.ID, false)

			got, err := service.MarkRead(ctx, tenant, n.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.IsRead).To(BeTrue())
			Expect(got.ReadAt).NotTo(BeNil())
			readAt := *got.ReadAt

			again, err := service.MarkRead(ctx, tenant, n.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*again.ReadAt).To(BeTemporally("==", readAt))
		})

		It("refuses other users' notifications", func() {
			n := seed(tenant.ID, false)

			_, err := service.MarkRead(ctx, other, n.ID)
			Expect(internal.HasCode(err, internal.ErrCodeUnauthorizedAccess)).To(BeTrue())
		})

		It("reports unknown notifications", func() {
			_, err := service.MarkRead(ctx, tenant, 404)
			Expect(internal.HasCode(err, internal.ErrCodeNotificationNotFound)).To(BeTrue())
		})
	})

	Describe("Handler", func() {
		var handler *notification.Handler

		BeforeEach(func() {
			handler = notification.NewHandler(service, quietLogger())
		})

		asActor := func(req *http.Request, actor internal.Actor) *http.Request {
			return req.WithContext(internal.ContextWithActor(req.Context(), actor))
		}

		It("lists unread notifications", func() {
			seed(tenant.ID, false)
			seed(tenant.ID, true)

			req := asActor(httptest.NewRequest(http.MethodGet, "/api/v1/notifications?unread=true&limit=5", nil), tenant)
			rec := httptest.NewRecorder()
			handler.ListNotifications(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body struct {
				Notifications []notification.NotificationResponse `json:"notifications"`
				Total         int64                               `json:"total"`
				Limit         int                                 `json:"limit"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Total).To(Equal(int64(1)))
			Expect(body.Limit).To(Equal(5))
			Expect(body.Notifications).To(HaveLen(1))
		})

		It("requires authentication", func() {
			rec := httptest.NewRecorder()
			handler.ListNotifications(rec, httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil))
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("marks a notification read", func() {
			n := seed(tenant.ID, false)

			req := asActor(httptest.NewRequest(http.MethodPatch, "/api/v1/notifications/x/read", nil), tenant)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", strconv.FormatInt(n.ID, 10))
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
			rec := httptest.NewRecorder()
			handler.MarkRead(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body notification.NotificationResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.ID).To(Equal(n.ID))
			Expect(body.IsRead).To(BeTrue())
		})
	})
})
