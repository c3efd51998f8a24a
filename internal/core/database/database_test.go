package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/frahmantamala/room-rental/internal/core/database"
	"github.com/frahmantamala/room-rental/internal/core/database/dbtest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestDatabase(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Database Suite")
}

type widget struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

var _ = Describe("GormTransactor", func() {
	var (
		db *gorm.DB
		tx *database.GormTransactor
	)

	BeforeEach(func() {
		var err error
		db, err = dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		Expect(db.AutoMigrate(&widget{})).To(Succeed())
		tx = database.NewTransactor(db)
	})

	It("commits work done through the bound connection", func() {
		err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
			return database.Conn(ctx, db).Create(&widget{Name: "a"}).Error
		})
		Expect(err).NotTo(HaveOccurred())

		var count int64
		db.Model(&widget{}).Count(&count)
		Expect(count).To(Equal(int64(1)))
	})

	It("rolls back when fn fails", func() {
		boom := errors.New("boom")
		err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
			Expect(database.Conn(ctx, db).Create(&widget{Name: "a"}).Error).To(Succeed())
			return boom
		})
		Expect(err).To(MatchError(boom))

		var count int64
		db.Model(&widget{}).Count(&count)
		Expect(count).To(BeZero())
	})

	It("joins an outer transaction instead of nesting", func() {
		err := tx.WithinTransaction(context.Background(), func(outer context.Context) error {
			return tx.WithinTransaction(outer, func(inner context.Context) error {
				Expect(database.Conn(inner, db)).To(BeIdenticalTo(database.Conn(outer, db)))
				return nil
			})
		})
		Expect(err).NotTo(HaveOccurred())
	})
})
