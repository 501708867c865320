package agenda

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	appLog "famcal/internal/log"
)

// Hook runs after every successful refresh.
type Hook func(ctx context.Context, snap *Snapshot)

// Scheduler drives a Refresher on a cron schedule ("@every 5m",
// "*/10 * * * *", ...). Overlapping runs are skipped.
type Scheduler struct {
	schedule  string
	refresher *Refresher
	hooks     []Hook

	cron *cron.Cron

	mu      sync.Mutex
	started bool
}

// NewScheduler validates schedule and returns a scheduler that has not started.
func NewScheduler(schedule string, r *Refresher, hooks ...Hook) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return &Scheduler{schedule: schedule, refresher: r, hooks: hooks, cron: c}, nil
}

// Start runs one refresh immediately and then hands the refresher to cron.
// The first refresh failing is logged, not returned: the server still comes
// up and the next tick retries.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}

	s.RunOnce(ctx)
	s.cron.Start()
	s.started = true
	appLog.Info("refresh scheduler started", "schedule", s.schedule)
	return nil
}

// RunOnce refreshes and fires the hooks when a snapshot was published.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	snap, err := s.refresher.Refresh(ctx)
	if err != nil {
		return
	}
	for _, h := range s.hooks {
		h(ctx, snap)
	}
}

// Stop halts the schedule and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
	appLog.Info("refresh scheduler stopped")
}

// cronLogger forwards robfig/cron's logging into the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
