package main_test

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRoomRental(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "RoomRental Suite")
}

var _ = Describe("OpenAPI document", func() {
	var doc *openapi3.T

	BeforeEach(func() {
		var err error
		doc, err = openapi3.NewLoader().LoadFromFile("api/openapi.yml")
		Expect(err).NotTo(HaveOccurred())
	})

	It("is a valid document", func() {
		Expect(doc.Validate(context.Background())).To(Succeed())
	})

	It("describes the booking and payment routes", func() {
		for _, path := range []string{
			"/rooms",
			"/bookings",
			"/bookings/{id}/confirm",
			"/bookings/{id}/status",
			"/bookings/{id}/cancel",
			"/bookings/{id}/installments/{month}/payment",
			"/payments/{id}/checkout",
			"/payments/vnpay/return",
			"/payments/vnpay/ipn",
			"/payments/{id}/refund",
			"/notifications/{id}/read",
		} {
			Expect(doc.Paths.Find(path)).NotTo(BeNil(), path)
		}
	})
})
