package room_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/frahmantamala/room-rental/internal/core/database/dbtest"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/room"
	roompkg "github.com/frahmantamala/room-rental/internal/room"
	roomPostgres "github.com/frahmantamala/room-rental/internal/room/postgres"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

var _ = Describe("Room Handler Integration", func() {
	var (
		handler  *roompkg.Handler
		hidden   *room.Room
		featured *room.Room
	)

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		db, err := dbtest.Open()
		Expect(err).NotTo(HaveOccurred())

		repo := roomPostgres.NewRoomRepository(db)
		handler = roompkg.NewHandler(roompkg.NewService(repo, slogger), slogger)

		ctx := context.Background()
		featured = &room.Room{LandlordID: 2, Title: "Studio Cầu Giấy", Address: "12 Trần Thái Tông", City: "Hà Nội",
			MonthlyRent: 3_500_000, Deposit: 3_500_000, Utilities: 300_000, MaxOccupants: 2, Status: room.StatusActive, IsAvailable: true}
		Expect(repo.Create(ctx, featured)).To(Succeed())
		Expect(repo.Create(ctx, &room.Room{LandlordID: 2, Title: "Phòng Quận 1", Address: "5 Lê Lợi", City: "Hồ Chí Minh",
			MonthlyRent: 5_000_000, Deposit: 5_000_000, MaxOccupants: 3, Status: room.StatusActive, IsAvailable: true})).To(Succeed())
		hidden = &room.Room{LandlordID: 2, Title: "Đang sửa", Address: "1 Kim Mã", City: "Hà Nội",
			MonthlyRent: 2_000_000, MaxOccupants: 1, Status: room.StatusInactive}
		Expect(repo.Create(ctx, hidden)).To(Succeed())
	})

	It("should handle GET /rooms request successfully", func() {
		req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
		w := httptest.NewRecorder()

		handler.GetRooms(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))

		var response roompkg.RoomsResponse
		Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())
		Expect(response.Total).To(Equal(int64(2)))
		Expect(response.Limit).To(Equal(20))

		titles := make([]string, len(response.Rooms))
		for i, rm := range response.Rooms {
			titles[i] = rm.Title
		}
		Expect(titles).To(ConsistOf("Studio Cầu Giấy", "Phòng Quận 1"))
	})

	It("should filter by city and rent", func() {
		req := httptest.NewRequest(http.MethodGet, "/rooms?city=h%C3%A0+n%E1%BB%99i&max_rent=4000000", nil)
		w := httptest.NewRecorder()

		handler.GetRooms(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var response roompkg.RoomsResponse
		Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())
		Expect(response.Rooms).To(HaveLen(1))
		Expect(response.Rooms[0].ID).To(Equal(featured.ID))
	})

	It("should return a single active room", func() {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/rooms/1", nil), "id", "1")
		w := httptest.NewRecorder()

		handler.GetRoom(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var response roompkg.RoomResponse
		Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())
		Expect(response.MonthlyRent).To(Equal(int64(3_500_000)))
	})

	It("should return 404 for an inactive room", func() {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/rooms/x", nil), "id", "3")
		w := httptest.NewRecorder()

		handler.GetRoom(w, req)

		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(w.Body.String()).To(ContainSubstring("ROOM_NOT_FOUND"))
	})

	It("should reject a malformed id", func() {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/rooms/abc", nil), "id", "abc")
		w := httptest.NewRecorder()

		handler.GetRoom(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
