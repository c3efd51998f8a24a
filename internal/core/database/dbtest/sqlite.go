// Package dbtest opens throwaway SQLite databases for repository specs.
package dbtest

import (
	"time"

	"github.com/frahmantamala/room-rental/internal/core/datamodel/booking"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/notification"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/payment"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/room"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open returns an in-memory database with every table migrated. The pool is
// pinned to one connection so that all sessions see the same memory database.
func Open() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&user.User{},
		&room.Room{},
		&booking.Booking{},
		&payment.Payment{},
		&notification.Notification{},
	); err != nil {
		return nil, err
	}
	return db, nil
}
