package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"payment-service/internal/service"
	"payment-service/internal/util"

	"go.uber.org/zap"
)

// ReconcileRunner runs one reconciliation sweep
type ReconcileRunner interface {
	Run(ctx context.Context) (*service.ReconcileSummary, error)
}

// EventProcessor drains one batch of the event queue
type EventProcessor interface {
	ProcessPending(ctx context.Context) ([]service.EventResult, error)
}

// Config sets how often each job runs. A zero interval disables the job.
type Config struct {
	ReconcileInterval time.Duration
	EventPollInterval time.Duration
	RunTimeout        time.Duration
}

// Scheduler runs reconciliation and event processing in the background
type Scheduler struct {
	reconciler ReconcileRunner
	events     EventProcessor
	cfg        Config
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewScheduler creates a new background scheduler
func NewScheduler(reconciler ReconcileRunner, events EventProcessor, cfg Config) *Scheduler {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	return &Scheduler{
		reconciler: reconciler,
		events:     events,
		cfg:        cfg,
		logger:     util.GetLogger(),
	}
}

// Start launches one goroutine per enabled job. They stop when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cfg.ReconcileInterval > 0 {
		log.Printf("Starting reconcile scheduler: every %s", s.cfg.ReconcileInterval)
		s.loop(ctx, "reconcile", s.cfg.ReconcileInterval, s.runReconcile)
	}
	if s.cfg.EventPollInterval > 0 {
		log.Printf("Starting event worker: every %s", s.cfg.EventPollInterval)
		s.loop(ctx, "events", s.cfg.EventPollInterval, s.runEvents)
	}
}

// Wait blocks until every job goroutine has returned
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Printf("Stopping %s job...", name)
				return
			case <-ticker.C:
				runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
				run(runCtx)
				cancel()
			}
		}
	}()
}

func (s *Scheduler) runReconcile(ctx context.Context) {
	summary, err := s.reconciler.Run(ctx)
	if err != nil {
		s.logger.Error("Scheduled reconciliation failed", zap.Error(err))
		return
	}
	if summary.Scanned > 0 {
		s.logger.Info("Scheduled reconciliation",
			zap.Int("scanned", summary.Scanned),
			zap.Int("recovered", summary.Recovered),
			zap.Int("failed", summary.Failed))
	}
}

func (s *Scheduler) runEvents(ctx context.Context) {
	results, err := s.events.ProcessPending(ctx)
	if err != nil {
		s.logger.Error("Scheduled event processing failed", zap.Error(err))
		return
	}
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if len(results) > 0 {
		s.logger.Info("Processed events", zap.Int("processed", len(results)), zap.Int("failed", failed))
	}
}
