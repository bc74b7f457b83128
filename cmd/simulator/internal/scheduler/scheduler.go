package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/generator"
	"github.com/shubham-shewale/market-beat/pkg/models"
)

const (
	DefaultInterval = 2 * time.Second
	DefaultCooldown = 3 * time.Second
)

// Store is what a tick reads from and writes into.
type Store interface {
	IDs() []string
	MergeUpdate(id string, patch models.AssetPatch) error
}

// Updater produces the patch for one asset.
type Updater interface {
	Next(id string, now time.Time) (models.AssetPatch, error)
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// TickReport summarizes one tick, in candidate order.
type TickReport struct {
	Candidates []string
	Applied    []string
	Throttled  []string
	Failed     []string
}

type Options struct {
	Interval time.Duration
	Cooldown time.Duration
}

// Scheduler drives the simulated feed: Stopped -> Running -> Stopped.
type Scheduler struct {
	logger   *zap.Logger
	store    Store
	updater  Updater
	notifier Notifier
	rand     generator.Rand
	clock    generator.Clock
	interval time.Duration
	cooldown time.Duration

	lifeMu sync.Mutex // orders transitions and their notifications
	mu     sync.Mutex // guards cancel / done
	cancel context.CancelFunc
	done   chan struct{}

	tickMu      sync.Mutex // serializes ticks, guards lastApplied
	lastApplied map[string]time.Time
}

func New(
	logger *zap.Logger,
	store Store,
	updater Updater,
	notifier Notifier,
	rnd generator.Rand,
	clock generator.Clock,
	opts Options,
) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	return &Scheduler{
		logger:      logger,
		store:       store,
		updater:     updater,
		notifier:    notifier,
		rand:        rnd,
		clock:       clock,
		interval:    opts.Interval,
		cooldown:    opts.Cooldown,
		lastApplied: make(map[string]time.Time),
	}
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Start begins ticking. Calling it while running does nothing.
// Cancelling ctx stops the feed the same way Stop does.
func (s *Scheduler) Start(ctx context.Context) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	s.logger.Info("Feed started", zap.Duration("interval", s.interval), zap.Duration("cooldown", s.cooldown))
	s.emit(ctx, models.Notification{
		Title:       "Market Feed Connected",
		Description: "Live price updates are now streaming",
		Severity:    models.SeverityInfo,
	})

	go s.run(ctx, runCtx, done)
}

// Stop cancels the ticker and waits for an in-flight tick to finish.
// Calling it while stopped does nothing.
func (s *Scheduler) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done
	s.stopped()
}

// release clears the running state left behind when the parent context of
// Start ends. A Stop that already took the state wins.
func (s *Scheduler) release(done chan struct{}) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if s.done != done {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	s.stopped()
}

// stopped runs with lifeMu held.
func (s *Scheduler) stopped() {
	s.logger.Info("Feed stopped")
	s.emit(context.Background(), models.Notification{
		Title:       "Market Feed Disconnected",
		Description: "Price updates have been paused",
		Severity:    models.SeverityDestructive,
	})
}

func (s *Scheduler) run(parent, ctx context.Context, done chan struct{}) {
	s.loop(ctx)
	// done must close before release takes lifeMu, which Stop holds while waiting on it
	close(done)
	if parent.Err() != nil {
		s.release(done)
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a Stop racing the ticker wins
			if ctx.Err() != nil {
				return
			}
			s.Tick()
		}
	}
}

// Tick picks one or two random assets and applies an update to each that is off cooldown.
func (s *Scheduler) Tick() TickReport {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	ids := s.store.IDs()
	var report TickReport
	if len(ids) == 0 {
		return report
	}

	k := s.rand.Intn(2) + 1
	generator.Shuffle(ids, s.rand)
	if k > len(ids) {
		k = len(ids)
	}
	report.Candidates = ids[:k]

	for _, id := range report.Candidates {
		now := s.clock.Now()
		if last, ok := s.lastApplied[id]; ok && now.Sub(last) < s.cooldown {
			report.Throttled = append(report.Throttled, id)
			continue
		}

		if err := s.apply(id, now); err != nil {
			if errors.Is(err, models.ErrAssetNotFound) {
				s.logger.Warn("Skipping update for missing asset", zap.String("asset", id), zap.Error(err))
			} else {
				s.logger.Error("Update failed", zap.String("asset", id), zap.Error(err))
			}
			report.Failed = append(report.Failed, id)
			continue
		}
		s.lastApplied[id] = now
		report.Applied = append(report.Applied, id)
	}

	s.logger.Debug("Tick",
		zap.Strings("candidates", report.Candidates),
		zap.Strings("applied", report.Applied),
		zap.Strings("throttled", report.Throttled))
	return report
}

func (s *Scheduler) apply(id string, now time.Time) error {
	patch, err := s.updater.Next(id, now)
	if err != nil {
		return err
	}
	return s.store.MergeUpdate(id, patch)
}

func (s *Scheduler) emit(ctx context.Context, n models.Notification) {
	if s.notifier == nil {
		return
	}
	n.Timestamp = s.clock.Now().UnixMilli()
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("Notification failed", zap.String("title", n.Title), zap.Error(err))
	}
}
