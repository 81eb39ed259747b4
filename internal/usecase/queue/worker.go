package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default worker intervals.
const (
	DefaultDrainInterval = 5 * time.Minute
	DefaultSweepInterval = time.Hour
)

// WorkerConfig holds the timer settings of the background worker.
type WorkerConfig struct {
	// DrainInterval is how often the queue is drained without a trigger.
	DrainInterval time.Duration
	// SweepInterval is how often stale placements are enqueued for refresh. Zero disables.
	SweepInterval time.Duration
}

// DefaultWorkerConfig returns the default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{DrainInterval: DefaultDrainInterval, SweepInterval: DefaultSweepInterval}
}

// Worker is the single background goroutine that drains the queue on a ticker, on
// explicit triggers, and on delayed follow-ups.
type Worker struct {
	svc        *Service
	placements PlacementReader
	cfg        WorkerConfig
	logger     *zap.Logger

	trigger chan struct{}

	mu       sync.Mutex
	running  bool
	followUp *time.Timer
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWorker creates a worker and registers it as the service's follow-up scheduler.
// placements may be nil when the refresh sweep is not wanted.
func NewWorker(svc *Service, placements PlacementReader, cfg WorkerConfig, logger *zap.Logger) *Worker {
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = DefaultDrainInterval
	}
	w := &Worker{
		svc:        svc,
		placements: placements,
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "queue-worker")),
		trigger:    make(chan struct{}, 1),
	}
	svc.WithScheduler(w)
	return w
}

// Trigger requests a drain as soon as the worker is idle. Coalesces with pending triggers.
func (w *Worker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// TriggerAfter requests a drain after delay, replacing any pending follow-up.
func (w *Worker) TriggerAfter(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.followUp != nil {
		w.followUp.Stop()
	}
	w.followUp = time.AfterFunc(delay, w.Trigger)
}

// Start launches the worker loop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("worker already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("Starting queue worker",
		zap.Duration("drain_interval", w.cfg.DrainInterval),
		zap.Duration("sweep_interval", w.cfg.SweepInterval),
	)

	go w.run(ctx)
	return nil
}

// Stop stops the loop, cancels pending follow-ups, and waits for the current drain.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	if w.followUp != nil {
		w.followUp.Stop()
		w.followUp = nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("Queue worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	drainTicker := time.NewTicker(w.cfg.DrainInterval)
	defer drainTicker.Stop()

	var sweepC <-chan time.Time
	if w.placements != nil && w.cfg.SweepInterval > 0 {
		sweepTicker := time.NewTicker(w.cfg.SweepInterval)
		defer sweepTicker.Stop()
		sweepC = sweepTicker.C
	}

	// Drain leftovers from a previous run immediately.
	w.drain(ctx)

	for {
		select {
		case <-drainTicker.C:
			w.drain(ctx)
		case <-w.trigger:
			w.drain(ctx)
		case <-sweepC:
			w.sweep(ctx)
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	res, err := w.svc.Drain(ctx, 0)
	if err != nil {
		w.logger.Error("Drain failed", zap.Error(err))
		return
	}
	if res.Busy || res.Processed+res.Failed == 0 {
		return
	}
	w.logger.Info("Drain completed",
		zap.Int("processed", res.Processed),
		zap.Int("failed", res.Failed),
		zap.Int("remaining", res.Remaining),
	)
}

func (w *Worker) sweep(ctx context.Context) {
	n, err := w.svc.EnqueueStale(ctx, w.placements)
	if err != nil {
		w.logger.Error("Refresh sweep failed", zap.Error(err))
	}
	if n > 0 {
		w.Trigger()
	}
}
