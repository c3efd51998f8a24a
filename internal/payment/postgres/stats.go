package postgres

import (
	"context"
	"strings"

	"github.com/frahmantamala/room-rental/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/room-rental/internal/payment"
	"github.com/jmoiron/sqlx"
)

// StatsRepository answers aggregate queries with hand-written SQL.
type StatsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

const statsSelect = `
SELECT
	COALESCE(SUM(amount), 0) AS total_amount,
	COUNT(*) AS total_count,
	COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS successful_amount,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS successful_count,
	COALESCE(SUM(CASE WHEN status IN (?, ?) THEN amount ELSE 0 END), 0) AS pending_amount,
	COALESCE(SUM(CASE WHEN status IN (?, ?) THEN 1 ELSE 0 END), 0) AS pending_count
FROM payments`

func (r *StatsRepository) Stats(ctx context.Context, f paymentpkg.StatsFilter) (*paymentpkg.Stats, error) {
	args := []interface{}{
		payment.StatusCompleted,
		payment.StatusCompleted,
		payment.StatusPending, payment.StatusProcessing,
		payment.StatusPending, payment.StatusProcessing,
	}

	var where []string
	if !f.All {
		where = append(where, "(payer_id = ? OR recipient_id = ?)")
		args = append(args, f.UserID, f.UserID)
	}
	if f.BookingID > 0 {
		where = append(where, "booking_id = ?")
		args = append(args, f.BookingID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		where = append(where, "created_at < ?")
		args = append(args, *f.To)
	}

	query := statsSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	var stats paymentpkg.Stats
	if err := r.db.GetContext(ctx, &stats, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return &stats, nil
}
