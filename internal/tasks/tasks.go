// Package tasks runs background jobs over asynq. The only job today is the
// stale-hold reclaimer: a periodic sweep that returns seats whose hold expiry
// has passed back to the available pool.
package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

const TypeReclaimStaleHolds = "holds:reclaim"

// Reclaimer frees expired seat holds and reports how many seats were freed.
type Reclaimer interface {
	ReclaimStaleHolds(ctx context.Context) (int64, error)
}

type Handler struct {
	reclaimer Reclaimer
	log       *slog.Logger
}

func NewHandler(reclaimer Reclaimer, log *slog.Logger) *Handler {
	return &Handler{reclaimer: reclaimer, log: log}
}

func (h *Handler) HandleReclaimStaleHolds(ctx context.Context, _ *asynq.Task) error {
	const op = "tasks.HandleReclaimStaleHolds"

	freed, err := h.reclaimer.ReclaimStaleHolds(ctx)
	if err != nil {
		h.log.Error("reclaim stale holds failed", "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}

	if freed > 0 {
		h.log.Info("reclaimed stale holds", "seats_freed", freed)
	}

	return nil
}

// Runner owns the asynq worker server and the cron-style scheduler that
// enqueues the periodic reclaim task.
type Runner struct {
	srv       *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
}

// NewRunner wires the worker server and scheduler against the given Redis
// connection. cronSpec uses standard five-field cron syntax, e.g.
// "*/1 * * * *" for every minute.
func NewRunner(redisOpt asynq.RedisClientOpt, h *Handler, cronSpec string) (*Runner, error) {
	const op = "tasks.NewRunner"

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Queues: map[string]int{
			"default": 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReclaimStaleHolds, h.HandleReclaimStaleHolds)

	scheduler := asynq.NewScheduler(redisOpt, nil)
	if _, err := scheduler.Register(cronSpec, asynq.NewTask(TypeReclaimStaleHolds, nil)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Runner{srv: srv, scheduler: scheduler, mux: mux}, nil
}

// Run starts the scheduler and the worker server. It blocks until the server
// stops and is intended to be driven from an errgroup.
func (r *Runner) Run() error {
	const op = "tasks.Run"

	if err := r.scheduler.Start(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := r.srv.Run(r.mux); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Shutdown stops the scheduler and drains the worker server.
func (r *Runner) Shutdown() {
	r.scheduler.Shutdown()
	r.srv.Shutdown()
}
