// Package queue runs queued background tasks under a time-bounded drain lease.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/affilink/internal/domain"
	"github.com/kailas-cloud/affilink/internal/domain/task"
	"github.com/kailas-cloud/affilink/internal/metrics"
)

// Defaults.
const (
	DefaultBatchSize   = 5
	DefaultLeaseTTL    = 5 * time.Minute
	DefaultTaskTimeout = time.Minute
	DefaultFollowUp    = time.Minute
	DefaultStaleAfter  = 24 * time.Hour
	DefaultSweepLimit  = 50
)

// Config tunes the drain loop.
type Config struct {
	BatchSize   int
	LeaseTTL    time.Duration
	TaskTimeout time.Duration
	FollowUp    time.Duration
	StaleAfter  time.Duration
	SweepLimit  int
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:   DefaultBatchSize,
		LeaseTTL:    DefaultLeaseTTL,
		TaskTimeout: DefaultTaskTimeout,
		FollowUp:    DefaultFollowUp,
		StaleAfter:  DefaultStaleAfter,
		SweepLimit:  DefaultSweepLimit,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = d.LeaseTTL
	}
	if c.TaskTimeout <= 0 || c.TaskTimeout >= c.LeaseTTL {
		c.TaskTimeout = min(d.TaskTimeout, c.LeaseTTL/2)
	}
	if c.FollowUp <= 0 {
		c.FollowUp = d.FollowUp
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.SweepLimit <= 0 {
		c.SweepLimit = d.SweepLimit
	}
	return c
}

// DrainResult summarizes one drain call.
type DrainResult struct {
	Busy      bool `json:"busy"`
	Processed int  `json:"processed"`
	Failed    int  `json:"failed"`
	Remaining int  `json:"remaining"`
}

// Service is the task queue orchestrator.
type Service struct {
	repo      Repository
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
	newToken  func() string
	mu        sync.RWMutex
	handlers  map[task.Action]Handler
	scheduler Scheduler
}

// New creates a queue service.
func New(repo Repository, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
		newToken: uuid.NewString,
		handlers: make(map[task.Action]Handler),
	}
}

// Handle registers the handler of an action, replacing any previous one.
func (s *Service) Handle(action task.Action, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[action] = h
}

// WithScheduler sets where follow-up drains are scheduled.
func (s *Service) WithScheduler(sch Scheduler) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduler = sch
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// Enqueue appends a validated task.
func (s *Service) Enqueue(ctx context.Context, t task.Task) error {
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = s.now()
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.repo.Push(ctx, t); err != nil {
		return fmt.Errorf("enqueue %s: %w", t.Action, err)
	}
	metrics.QueueTasksTotal.WithLabelValues(string(t.Action), "enqueued").Inc()
	return nil
}

// EnqueueAutoLink enqueues an auto-link task unless one is already pending for the
// document. Reports whether a task was enqueued.
func (s *Service) EnqueueAutoLink(ctx context.Context, documentID string) (bool, error) {
	marked, err := s.repo.MarkQueued(ctx, documentID)
	if err != nil {
		return false, err
	}
	if !marked {
		return false, nil
	}

	if err := s.Enqueue(ctx, task.AutoLink(documentID, s.now())); err != nil {
		if cerr := s.repo.ClearMarker(ctx, documentID); cerr != nil {
			s.logger.Warn("Failed to roll back queued marker",
				zap.String("document_id", documentID), zap.Error(cerr))
		}
		return false, err
	}
	return true, nil
}

// State returns the pending auto-link state of a document (unlinked when none).
func (s *Service) State(ctx context.Context, documentID string) (task.State, error) {
	st, err := s.repo.Marker(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("marker: %w", err)
	}
	return st, nil
}

// ClearState drops the pending marker of a document.
func (s *Service) ClearState(ctx context.Context, documentID string) error {
	return s.repo.ClearMarker(ctx, documentID)
}

// Drain runs up to batchSize oldest tasks under the drain lease (batchSize <= 0 uses the
// configured size). A held lease yields DrainResult{Busy: true} and no error. Every
// peeked task is popped once it ran, whatever its outcome; a follow-up drain is
// scheduled while tasks remain.
func (s *Service) Drain(ctx context.Context, batchSize int) (DrainResult, error) {
	if batchSize <= 0 {
		batchSize = s.cfg.BatchSize
	}

	token, acquired, err := s.acquire(ctx)
	if err != nil {
		return DrainResult{}, fmt.Errorf("drain: %w", err)
	}
	if !acquired {
		metrics.DrainBusyTotal.Inc()
		s.logger.Debug("Drain skipped, lease held", zap.Error(domain.ErrQueueBusy))
		return DrainResult{Busy: true}, nil
	}
	leaseStart := s.now()
	defer s.release(ctx, token)

	entries, err := s.repo.Peek(ctx, batchSize)
	if err != nil {
		return DrainResult{}, fmt.Errorf("drain: %w", err)
	}

	var res DrainResult
	for i, e := range entries {
		// Stop before a task could outlive the lease.
		if s.now().Sub(leaseStart)+s.cfg.TaskTimeout > s.cfg.LeaseTTL {
			s.logger.Warn("Drain stopped early to stay within lease",
				zap.Int("ran", i), zap.Int("batch", len(entries)))
			break
		}

		if err := s.run(ctx, e.Task); err != nil {
			res.Failed++
		} else {
			res.Processed++
		}

		popped, err := s.repo.PopHead(ctx, e)
		if err != nil {
			return res, fmt.Errorf("drain: %w", err)
		}
		if !popped {
			s.logger.Warn("Queue head changed during drain, ending batch",
				zap.Int("ran", i+1), zap.Int("batch", len(entries)))
			break
		}
	}

	remaining, err := s.repo.Len(ctx)
	if err != nil {
		return res, fmt.Errorf("drain: %w", err)
	}
	res.Remaining = remaining
	metrics.QueueDepth.Set(float64(remaining))

	if remaining > 0 {
		s.scheduleFollowUp()
	}
	return res, nil
}

func (s *Service) acquire(ctx context.Context) (string, bool, error) {
	token := s.newToken()
	ok, err := s.repo.AcquireLease(ctx, token, s.cfg.LeaseTTL)
	return token, ok, err
}

func (s *Service) release(ctx context.Context, token string) {
	ctx = context.WithoutCancel(ctx)
	released, err := s.repo.ReleaseLease(ctx, token)
	if err != nil {
		s.logger.Error("Failed to release drain lease", zap.Error(err))
		return
	}
	if !released {
		s.logger.Warn("Drain lease expired before release")
	}
}

func (s *Service) scheduleFollowUp() {
	s.mu.RLock()
	sch := s.scheduler
	s.mu.RUnlock()
	if sch != nil {
		sch.TriggerAfter(s.cfg.FollowUp)
	}
}

// run executes one task under the task timeout; failures are logged, never propagated
// past the batch.
func (s *Service) run(ctx context.Context, t task.Task) error {
	log := s.logger.With(
		zap.String("action", string(t.Action)),
		zap.String("document_id", t.DocumentID),
	)

	if err := t.Validate(); err != nil {
		metrics.QueueTasksTotal.WithLabelValues(string(t.Action), "invalid").Inc()
		log.Warn("Dropping invalid task", zap.Error(err))
		return err
	}

	s.mu.RLock()
	h, ok := s.handlers[t.Action]
	s.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("no handler for %s: %w", t.Action, domain.ErrInvalidTask)
		metrics.QueueTasksTotal.WithLabelValues(string(t.Action), "invalid").Inc()
		log.Warn("Dropping unhandled task", zap.Error(err))
		return err
	}

	if t.Action == task.ActionAutoLink {
		if err := s.repo.SetMarker(ctx, t.DocumentID, task.StateProcessing); err != nil {
			log.Warn("Failed to mark processing", zap.Error(err))
		}
		defer func() {
			if err := s.repo.ClearMarker(context.WithoutCancel(ctx), t.DocumentID); err != nil {
				log.Warn("Failed to clear marker", zap.Error(err))
			}
		}()
	}

	taskCtx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	defer cancel()

	start := s.now()
	err := h(taskCtx, t)
	metrics.QueueTaskDuration.WithLabelValues(string(t.Action)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.QueueTasksTotal.WithLabelValues(string(t.Action), "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error("Task timed out", zap.Duration("timeout", s.cfg.TaskTimeout), zap.Error(err))
		} else {
			log.Error("Task failed", zap.Error(err))
		}
		return err
	}

	metrics.QueueTasksTotal.WithLabelValues(string(t.Action), "ok").Inc()
	log.Debug("Task completed")
	return nil
}

// Size returns the number of queued tasks.
func (s *Service) Size(ctx context.Context) (int, error) {
	n, err := s.repo.Len(ctx)
	if err != nil {
		return 0, fmt.Errorf("queue size: %w", err)
	}
	return n, nil
}

// List returns up to limit oldest tasks without consuming them.
func (s *Service) List(ctx context.Context, limit int) ([]task.Task, error) {
	entries, err := s.repo.Peek(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("queue list: %w", err)
	}
	tasks := make([]task.Task, len(entries))
	for i, e := range entries {
		tasks[i] = e.Task
	}
	return tasks, nil
}

// Clear drops every queued task and every pending marker. It takes the drain lease
// first and returns ErrQueueBusy while a drain holds it.
func (s *Service) Clear(ctx context.Context) error {
	token, acquired, err := s.acquire(ctx)
	if err != nil {
		return fmt.Errorf("queue clear: %w", err)
	}
	if !acquired {
		return fmt.Errorf("queue clear: %w", domain.ErrQueueBusy)
	}
	defer s.release(ctx, token)

	if err := s.repo.Clear(ctx); err != nil {
		return fmt.Errorf("queue clear: %w", err)
	}
	metrics.QueueDepth.Set(0)
	s.logger.Info("Queue cleared")
	return nil
}

// EnqueueStale scans documents holding placements and enqueues a refresh task for
// every placement not refreshed within StaleAfter. At most SweepLimit documents
// contribute tasks per sweep. Returns the number of tasks enqueued.
func (s *Service) EnqueueStale(ctx context.Context, placements PlacementReader) (int, error) {
	ids, err := placements.ListPlacementDocuments(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("refresh sweep: %w", err)
	}

	cutoff := s.now().Add(-s.cfg.StaleAfter)
	enqueued, docs := 0, 0
	for _, id := range ids {
		if docs >= s.cfg.SweepLimit {
			break
		}
		set, err := placements.GetPlacements(ctx, id)
		if err != nil {
			s.logger.Warn("Refresh sweep skipped document", zap.String("document_id", id), zap.Error(err))
			continue
		}

		stale := 0
		for instanceID, p := range set {
			if p.LastRefresh().After(cutoff) {
				continue
			}
			if err := s.Enqueue(ctx, task.RefreshProduct(id, instanceID, s.now())); err != nil {
				return enqueued, err
			}
			stale++
		}
		if stale > 0 {
			docs++
			enqueued += stale
		}
	}

	if enqueued > 0 {
		s.logger.Info("Refresh sweep enqueued stale placements",
			zap.Int("tasks", enqueued), zap.Int("documents", docs))
	}
	return enqueued, nil
}
