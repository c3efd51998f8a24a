package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/room-rental/internal"
	bookingpkg "github.com/frahmantamala/room-rental/internal/booking"
	"github.com/frahmantamala/room-rental/internal/core/database"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/booking"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

var _ bookingpkg.Repository = (*BookingRepository)(nil)

func (r *BookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	return database.Conn(ctx, r.db).Create(b).Error
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*booking.Booking, error) {
	var b booking.Booking
	if err := database.Conn(ctx, r.db).First(&b, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (r *BookingRepository) FindOverlapping(ctx context.Context, roomID int64, checkIn, checkOut time.Time) ([]*booking.Booking, error) {
	var list []*booking.Booking
	err := database.Conn(ctx, r.db).
		Where("room_id = ? AND status IN ?", roomID, booking.NonTerminalStatuses).
		Where("check_in <= ? AND check_out >= ?", checkOut, checkIn).
		Find(&list).Error
	return list, err
}

func (r *BookingRepository) List(ctx context.Context, f bookingpkg.ListFilter) ([]*booking.Booking, int64, error) {
	q := database.Conn(ctx, r.db).Model(&booking.Booking{})
	if f.ParticipantID > 0 {
		q = q.Where("(tenant_id = ? OR landlord_id = ?)", f.ParticipantID, f.ParticipantID)
	}
	if f.TenantID > 0 {
		q = q.Where("tenant_id = ?", f.TenantID)
	}
	if f.LandlordID > 0 {
		q = q.Where("landlord_id = ?", f.LandlordID)
	}
	if f.RoomID > 0 {
		q = q.Where("room_id = ?", f.RoomID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []*booking.Booking
	err := q.Order("created_at DESC, id DESC").Limit(f.Limit).Offset(f.Offset).Find(&list).Error
	return list, total, err
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, id int64, from []booking.Status, to booking.Status, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}

	res := database.Conn(ctx, r.db).
		Model(&booking.Booking{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *BookingRepository) ListStale(ctx context.Context, createdBefore, checkInBefore time.Time) ([]*booking.Booking, error) {
	var list []*booking.Booking
	err := database.Conn(ctx, r.db).
		Where("(status = ? AND created_at < ?) OR (status IN ? AND check_in < ?)",
			booking.StatusPending, createdBefore,
			[]booking.Status{booking.StatusPending, booking.StatusConfirmed}, checkInBefore).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

// MarkInstallmentPaid rewrites the schedule entry of one month under a row lock.
func (r *BookingRepository) MarkInstallmentPaid(ctx context.Context, bookingID int64, month int, paymentID int64, paidAt time.Time) error {
	conn := database.Conn(ctx, r.db)

	var b booking.Booking
	if err := conn.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, bookingID).Error; err != nil {
		return notFound(err)
	}

	found := false
	for i := range b.Monthly {
		if b.Monthly[i].Month != month {
			continue
		}
		pid := paymentID
		at := paidAt
		b.Monthly[i].Status = booking.InstallmentPaid
		b.Monthly[i].PaidAt = &at
		b.Monthly[i].PaymentID = &pid
		found = true
	}
	if !found {
		return internal.NewValidationFieldError("month", "month is outside the rental schedule", internal.ErrCodeValidationFailed)
	}

	return conn.Model(&booking.Booking{}).Where("id = ?", bookingID).
		Updates(map[string]interface{}{"monthly_schedule": b.Monthly}).Error
}

func (r *BookingRepository) MarkRefundCompleted(ctx context.Context, bookingID int64, at time.Time) error {
	return database.Conn(ctx, r.db).Model(&booking.Booking{}).
		Where("id = ? AND cancellation_refund_status = ?", bookingID, booking.RefundPending).
		Updates(map[string]interface{}{
			"cancellation_refund_status": booking.RefundCompleted,
			"deposit_status":             booking.DepositRefunded,
		}).Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return internal.ErrBookingNotFound()
	}
	return err
}
