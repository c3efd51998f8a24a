package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/room-rental/internal/core/events"
	"github.com/frahmantamala/room-rental/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish domain events onto an in-process bus to check subscriber wiring`,
}

var publishEventCmd = &cobra.Command{
	Use:       "publish [event-type]",
	Short:     "Publish a test event",
	Long:      `Publish a booking.status_changed, payment.completed or payment.failed event with a logging subscriber`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{events.EventTypeBookingStatusChanged, events.EventTypePaymentCompleted, events.EventTypePaymentFailed},
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestEvent(args[0])
	},
}

var (
	eventBookingID int64
	eventPaymentID int64
	eventAmount    int64
)

func buildTestEvent(eventType string) (events.Event, error) {
	switch eventType {
	case events.EventTypeBookingStatusChanged:
		return events.NewBookingStatusChangedEvent(eventBookingID, "pending", "confirmed", 0, "admin", 0, 0), nil
	case events.EventTypePaymentCompleted:
		return events.NewPaymentCompletedEvent(eventPaymentID, fmt.Sprintf("TEST-%d", time.Now().Unix()), eventBookingID, 0, 0, "deposit", eventAmount, ""), nil
	case events.EventTypePaymentFailed:
		return events.NewPaymentFailedEvent(eventPaymentID, eventBookingID, 0, eventAmount, "cli test"), nil
	}
	return nil, fmt.Errorf("unknown event type %q", eventType)
}

func publishTestEvent(eventType string) error {
	lg := logger.LoggerWrapper()
	eventBus := events.NewEventBus(lg)

	eventBus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		lg.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	evt, err := buildTestEvent(eventType)
	if err != nil {
		return err
	}

	lg.Info("publishing test event", "event_type", eventType, "event_id", evt.EventID())
	return eventBus.PublishSync(context.Background(), evt)
}

func init() {
	publishEventCmd.Flags().Int64Var(&eventBookingID, "booking-id", 1, "Booking id carried by the event")
	publishEventCmd.Flags().Int64Var(&eventPaymentID, "payment-id", 1, "Payment id carried by the event")
	publishEventCmd.Flags().Int64Var(&eventAmount, "amount", 0, "Amount carried by payment events")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
