package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/notification"
	"github.com/frahmantamala/room-rental/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run scheduled jobs",
	Long:  `Run the booking expiry sweep, deposit backfill and mail checks outside the API process.`,
}

var expireWorkerCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire stale bookings",
	Long:  `Expire pending bookings past their TTL and pending or confirmed bookings whose check-in has passed`,
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, app *App) error {
			if expireOnce {
				_, err := app.Bookings.ExpireStale(ctx, time.Now())
				return err
			}
			interval := expireInterval
			if interval <= 0 {
				interval = app.Config.Booking.ExpireInterval
			}
			runExpireLoop(ctx, app, interval)
			return nil
		})
	},
}

var backfillWorkerCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Repair deposit payments",
	Long:  `Create completed deposit payments for deposit_paid bookings that have none`,
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, app *App) error {
			repaired, err := app.Payments.Backfill(ctx, internal.SystemActor)
			if err != nil {
				return err
			}
			app.Logger.Info("deposit backfill finished", "repaired", repaired)
			return nil
		})
	},
}

var mailWorkerCmd = &cobra.Command{
	Use:   "notifications [email]",
	Short: "Send a test email through the notification workers",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, app *App) error {
			app.Dispatcher.Email(ctx, args[0], mailTemplate, map[string]interface{}{
				"name":            "Test",
				"contract_number": "HD00000000TEST0000",
				"deposit":         0,
				"amount":          0,
				"description":     "test",
				"transaction_id":  "TEST",
			})
			// Shutdown drops queued jobs; give the worker a moment to pick it up.
			time.Sleep(2 * time.Second)
			return nil
		})
	},
}

var (
	expireOnce     bool
	expireInterval time.Duration
	mailTemplate   string
)

// withApp loads config, wires the app and runs fn until it returns or a signal arrives.
func withApp(fn func(ctx context.Context, app *App) error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	app, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := fn(ctx, app); err != nil {
		app.Logger.Error("worker failed", "error", err)
		app.Close()
		os.Exit(1)
	}
}

func runExpireLoop(ctx context.Context, app *App, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	lg := logger.FromOr(ctx, app.Logger).With("job", "expire_stale_bookings")
	lg.Info("booking expiry sweep started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := app.Bookings.ExpireStale(ctx, time.Now())
		if err != nil {
			lg.Error("booking expiry sweep failed", "error", err)
		} else if n > 0 {
			lg.Info("expired stale bookings", "count", n)
		}

		select {
		case <-ctx.Done():
			lg.Info("booking expiry sweep stopped")
			return
		case <-ticker.C:
		}
	}
}

func init() {
	expireWorkerCmd.Flags().BoolVar(&expireOnce, "once", false, "Run a single sweep and exit")
	expireWorkerCmd.Flags().DurationVar(&expireInterval, "interval", 0, "Sweep interval (overrides config)")
	mailWorkerCmd.Flags().StringVar(&mailTemplate, "template", notification.TemplatePaymentSuccess, "Email template to render")

	workerCmd.AddCommand(expireWorkerCmd)
	workerCmd.AddCommand(backfillWorkerCmd)
	workerCmd.AddCommand(mailWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
