package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/notification"
	"github.com/frahmantamala/room-rental/pkg/logger"
	"gorm.io/datatypes"
)

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, lg *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     lg,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("notification worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("notification worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type DispatcherConfig struct {
	MaxWorkers   int
	JobQueueSize int
	// JobTimeout bounds a single store write or email send.
	JobTimeout time.Duration
}

// Dispatcher is the fire-and-forget notification and email sink. Enqueueing
// never blocks; a full queue drops the job with a warning.
type Dispatcher struct {
	repo       Repository
	mailer     Mailer
	logger     *slog.Logger
	jobTimeout time.Duration

	jobQueue   chan Job
	workerPool chan chan Job
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

func NewDispatcher(cfg DispatcherConfig, repo Repository, mailer Mailer, lg *slog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	jobQueueSize := cfg.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}
	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 10 * time.Second
	}
	if mailer == nil {
		mailer = NewLogMailer(lg)
	}

	d := &Dispatcher{
		repo:       repo,
		mailer:     mailer,
		logger:     lg,
		jobTimeout: jobTimeout,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan Job, jobQueueSize),
		workerPool: make(chan chan Job, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	d.start()
	return d
}

func (d *Dispatcher) start() {
	d.once.Do(func() {
		for i := 0; i < d.maxWorkers; i++ {
			worker := NewWorker(i, d.workerPool, d.logger)
			worker.Start(d.ctx, &d.wg, d.process)
		}

		d.wg.Add(1)
		go d.dispatch()

		d.logger.Info("notification worker pool started",
			"max_workers", d.maxWorkers,
			"queue_size", cap(d.jobQueue))
	})
}

func (d *Dispatcher) dispatch() {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.jobQueue:
			select {
			case jobChannel := <-d.workerPool:
				select {
				case jobChannel <- job:
				case <-d.ctx.Done():
					d.logger.Info("notification dispatcher shutting down")
					return
				}
			case <-d.ctx.Done():
				d.logger.Info("notification dispatcher shutting down")
				return
			}
		case <-d.ctx.Done():
			d.logger.Info("notification dispatcher shutting down")
			return
		}
	}
}

// Shutdown stops the workers. Jobs still queued are dropped.
func (d *Dispatcher) Shutdown() {
	d.logger.Info("shutting down notification dispatcher", "pending_jobs", len(d.jobQueue))
	d.cancel()
	d.wg.Wait()
	d.logger.Info("notification dispatcher shutdown complete")
}

// Notify queues an in-app notification for userID.
func (d *Dispatcher) Notify(ctx context.Context, userID int64, kind, title, message string, data map[string]interface{}) {
	d.enqueue(ctx, Job{Notification: &notification.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Data:    datatypes.JSONMap(data),
	}})
}

// Email queues a templated email.
func (d *Dispatcher) Email(ctx context.Context, to, template string, data map[string]interface{}) {
	if to == "" {
		return
	}
	d.enqueue(ctx, Job{Email: &EmailMessage{To: to, Template: template, Data: data}})
}

func (d *Dispatcher) enqueue(ctx context.Context, job Job) {
	select {
	case d.jobQueue <- job:
	default:
		logger.FromOr(ctx, d.logger).Warn("notification queue full, dropping job",
			"queue_capacity", cap(d.jobQueue),
			"is_email", job.Email != nil)
	}
}

func (d *Dispatcher) process(job Job) {
	ctx, cancel := context.WithTimeout(d.ctx, d.jobTimeout)
	defer cancel()

	switch {
	case job.Notification != nil:
		n := job.Notification
		if err := d.repo.Create(ctx, n); err != nil {
			d.logger.Error("failed to store notification",
				"error", internal.NewExternalDependencyError("notification store failed", internal.ErrCodeNotificationFailed, err),
				"user_id", n.UserID,
				"type", n.Type)
			return
		}
		d.logger.Debug("notification stored", "notification_id", n.ID, "user_id", n.UserID, "type", n.Type)
	case job.Email != nil:
		m := job.Email
		if err := d.mailer.Send(ctx, m.To, m.Template, m.Data); err != nil {
			d.logger.Error("failed to send email",
				"error", internal.NewExternalDependencyError("email delivery failed", internal.ErrCodeEmailFailed, err),
				"template", m.Template)
			return
		}
		d.logger.Debug("email sent", "template", m.Template)
	}
}
