package events_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/frahmantamala/room-rental/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Suite")
}

var _ = Describe("EventBus", func() {
	var bus *events.EventBus

	BeforeEach(func() {
		bus = events.NewEventBus(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
	})

	It("delivers published events to subscribers asynchronously", func() {
		received := make(chan events.Event, 1)
		bus.Subscribe(events.EventTypePaymentCompleted, func(ctx context.Context, e events.Event) error {
			received <- e
			return nil
		})

		evt := events.NewPaymentCompletedEvent(1, "TXN-1", 2, 3, 4, "deposit", 3000000, "REF")
		Expect(bus.Publish(context.Background(), evt)).To(Succeed())
		Eventually(received).Should(Receive(Equal(events.Event(evt))))
	})

	It("keeps handlers running after the publishing ctx is cancelled", func() {
		received := make(chan error, 1)
		bus.Subscribe(events.EventTypePaymentFailed, func(ctx context.Context, e events.Event) error {
			received <- ctx.Err()
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(bus.Publish(ctx, events.NewPaymentFailedEvent(1, 2, 3, 100, "x"))).To(Succeed())
		Eventually(received).Should(Receive(BeNil()))
	})

	It("returns the first handler error from PublishSync", func() {
		bus.Subscribe(events.EventTypeBookingStatusChanged, func(ctx context.Context, e events.Event) error {
			return errors.New("handler down")
		})

		err := bus.PublishSync(context.Background(), events.NewBookingStatusChangedEvent(1, "pending", "confirmed", 9, "landlord", 2, 9))
		Expect(err).To(MatchError(ContainSubstring("handler down")))
	})

	It("ignores events with no subscribers", func() {
		Expect(bus.PublishSync(context.Background(), events.NewPaymentFailedEvent(1, 2, 3, 4, "x"))).To(Succeed())
	})

	It("drains in-flight handlers", func() {
		release := make(chan struct{})
		bus.Subscribe(events.EventTypePaymentCompleted, func(ctx context.Context, e events.Event) error {
			<-release
			return nil
		})
		Expect(bus.Publish(context.Background(), events.NewPaymentCompletedEvent(1, "TXN-1", 2, 3, 4, "deposit", 1, ""))).To(Succeed())

		short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		Expect(bus.Drain(short)).To(MatchError(context.DeadlineExceeded))

		close(release)
		Expect(bus.Drain(context.Background())).To(Succeed())
	})

	It("drops events published after draining starts", func() {
		calls := make(chan struct{}, 1)
		bus.Subscribe(events.EventTypePaymentCompleted, func(ctx context.Context, e events.Event) error {
			calls <- struct{}{}
			return nil
		})
		Expect(bus.Drain(context.Background())).To(Succeed())

		Expect(bus.Publish(context.Background(), events.NewPaymentCompletedEvent(1, "TXN-1", 2, 3, 4, "deposit", 1, ""))).To(Succeed())
		Consistently(calls, 50*time.Millisecond).ShouldNot(Receive())
		Expect(bus.Drain(context.Background())).To(Succeed())
	})
})
