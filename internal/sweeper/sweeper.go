// Package sweeper periodically releases bookings whose time slot has ended.
// Replicas share a Redis lease so a tick is normally handled by one of
// them; a release is idempotent, so an occasional double run is harmless.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartparking/pkg/logger"
)

type Releaser interface {
	ReleaseExpired(ctx context.Context, now time.Time) (int64, error)
}

type Config struct {
	Interval time.Duration
	LockTTL  time.Duration
	Timeout  time.Duration
}

type Sweeper struct {
	releaser Releaser
	locker   Locker
	cfg      Config
	owner    string
	now      func() time.Time
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func New(releaser Releaser, locker Locker, cfg Config, log *logger.Logger) *Sweeper {
	if cfg.LockTTL <= 0 || cfg.LockTTL >= cfg.Interval {
		cfg.LockTTL = cfg.Interval * 5 / 6
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.LockTTL
	}
	return &Sweeper{
		releaser: releaser,
		locker:   locker,
		cfg:      cfg,
		owner:    uuid.NewString(),
		now:      time.Now,
		log:      log.With("component", "sweeper"),
	}
}

// Start runs one sweep immediately and then one per interval until Stop.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx)

	s.log.Info("Sweeper started", "interval", s.cfg.Interval, "lock_ttl", s.cfg.LockTTL)
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("Sweep failed", "error", err)
	}
}

// RunOnce sweeps if this replica wins the lease. If the lock store is
// unreachable it sweeps anyway.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	acquired, err := s.locker.TryLock(ctx, LockKey, s.owner, s.cfg.LockTTL)
	if err != nil {
		s.log.Warn("Sweeper lock unavailable, sweeping without it", "error", err)
	} else if !acquired {
		s.log.Debug("Sweep skipped, another replica holds the lease")
		return 0, nil
	}

	released, err := s.releaser.ReleaseExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if released > 0 {
		s.log.Info("Sweep released bookings", "count", released)
	}
	return released, nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Info("Sweeper stopped")
}
