package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the syncer on a fixed interval. A run already in
// flight is never overlapped: the next tick is skipped instead.
type Scheduler struct {
	syncer   *Syncer
	interval time.Duration
	limit    int
	logger   *zap.SugaredLogger

	cron  *cron.Cron
	entry cron.EntryID

	mu      sync.Mutex
	running bool
	inRun   bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a periodic sync scheduler. An interval of zero
// or less disables scheduling; Start becomes a no-op.
func NewScheduler(syncer *Syncer, interval time.Duration, limit int, logger *zap.SugaredLogger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		limit:    limit,
		logger:   logger,
		cron:     cron.New(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the periodic sync.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || s.interval <= 0 {
		return nil
	}

	entry, err := s.cron.AddFunc("@every "+s.interval.String(), s.runOnce)
	if err != nil {
		return err
	}
	s.entry = entry
	s.cron.Start()
	s.running = true

	s.logger.Infow("Sync scheduler started", "interval", s.interval, "limit", s.limit)
	return nil
}

// Stop halts the schedule and waits for a run in flight to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Infow("Sync scheduler stopped")
}

// IsRunning reports whether the schedule is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runOnce() {
	s.mu.Lock()
	if s.inRun {
		s.mu.Unlock()
		s.logger.Debugw("Skipping scheduled sync, previous run still in flight")
		return
	}
	s.inRun = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inRun = false
		s.mu.Unlock()
	}()

	if _, err := s.syncer.Run(s.ctx, s.limit); err != nil {
		s.logger.Errorw("Scheduled sync failed", "error", err)
	}
}
