package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/core/database"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/booking"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/room-rental/internal/payment"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{
		db: db,
	}
}

var _ paymentpkg.Repository = (*PaymentRepository)(nil)

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	return database.Conn(ctx, r.db).Create(p).Error
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*payment.Payment, error) {
	var p payment.Payment
	if err := database.Conn(ctx, r.db).First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, id int64) (*payment.Payment, error) {
	var p payment.Payment
	err := database.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *PaymentRepository) GetByTxnRef(ctx context.Context, txnRef string) (*payment.Payment, error) {
	var p payment.Payment
	err := database.Conn(ctx, r.db).Where("gateway_txn_ref = ?", txnRef).First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *PaymentRepository) FindLatestByBookingAndType(ctx context.Context, bookingID int64, paymentType string) (*payment.Payment, error) {
	var p payment.Payment
	err := database.Conn(ctx, r.db).
		Where("booking_id = ? AND type = ?", bookingID, paymentType).
		Order("id DESC").
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *PaymentRepository) FindInstallment(ctx context.Context, bookingID int64, month int) (*payment.Payment, error) {
	var p payment.Payment
	err := database.Conn(ctx, r.db).
		Where("booking_id = ? AND type = ? AND month = ?", bookingID, payment.TypeMonthlyRent, month).
		Order("id DESC").
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *PaymentRepository) ListOpenByBooking(ctx context.Context, bookingID int64) ([]*payment.Payment, error) {
	var list []*payment.Payment
	err := database.Conn(ctx, r.db).
		Where("booking_id = ? AND status IN ?", bookingID, []string{payment.StatusPending, payment.StatusProcessing}).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

func (r *PaymentRepository) List(ctx context.Context, f paymentpkg.ListFilter) ([]*payment.Payment, int64, error) {
	q := database.Conn(ctx, r.db).Model(&payment.Payment{})
	if !f.All {
		q = q.Where("(payer_id = ? OR recipient_id = ?)", f.UserID, f.UserID)
	}
	if f.BookingID > 0 {
		q = q.Where("booking_id = ?", f.BookingID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []*payment.Payment
	err := q.Order("created_at DESC, id DESC").Limit(f.Limit).Offset(f.Offset).Find(&list).Error
	return list, total, err
}

func (r *PaymentRepository) Transition(ctx context.Context, id int64, from []string, updates map[string]interface{}) (bool, error) {
	res := database.Conn(ctx, r.db).
		Model(&payment.Payment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PaymentRepository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	return database.Conn(ctx, r.db).Model(&payment.Payment{}).Where("id = ?", id).Updates(updates).Error
}

func (r *PaymentRepository) MarkRefundRequested(ctx context.Context, id int64, updates map[string]interface{}) (bool, error) {
	res := database.Conn(ctx, r.db).
		Model(&payment.Payment{}).
		Where("id = ? AND status = ? AND (refund_status IS NULL OR refund_status = '')", id, payment.StatusCompleted).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindBookingsMissingDeposit returns deposit_paid bookings that require a
// deposit but have no completed deposit payment, limited to bookings userID
// rents or owns unless all is set.
func (r *PaymentRepository) FindBookingsMissingDeposit(ctx context.Context, userID int64, all bool) ([]*booking.Booking, error) {
	q := database.Conn(ctx, r.db).
		Where("status = ?", booking.StatusDepositPaid).
		Where("pricing_deposit > 0").
		Where("NOT EXISTS (SELECT 1 FROM payments p WHERE p.booking_id = bookings.id AND p.type = ? AND p.status IN ?)",
			payment.TypeDeposit, []string{payment.StatusCompleted, payment.StatusRefunded})
	if !all {
		q = q.Where("(tenant_id = ? OR landlord_id = ?)", userID, userID)
	}

	var list []*booking.Booking
	err := q.Order("id ASC").Find(&list).Error
	return list, err
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return internal.ErrPaymentNotFound()
	}
	return err
}
