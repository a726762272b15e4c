// Package sweeper periodically purges expired recipient slugs and
// deactivates expired OTPs. Reads already check expires_at, so a missed
// cycle never lets a stale token through; this only keeps the tables small.
package sweeper

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/DispatchBox/internal/logger"
)

type Repository interface {
	DeleteExpiredSlugs(ctx context.Context, now time.Time) (int64, error)
	DeactivateExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}

type Sweeper struct {
	repo Repository
	log  *logger.Logger

	interval time.Duration
	now      func() time.Time

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	cycles              atomic.Int64
	slugsDeleted        atomic.Int64
	otpsDeactivated     atomic.Int64
	totalErrors         atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, log *logger.Logger) *Sweeper {
	return &Sweeper{
		repo:              repo,
		log:               log,
		interval:          time.Minute,
		now:               time.Now,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Sweeper) WithInterval(d time.Duration) *Sweeper {
	if d > 0 {
		s.interval = d
	}
	return s
}

func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Trigger forces an immediate sweep (best-effort, non-blocking).
func (s *Sweeper) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt       time.Time  `json:"startedAt"`
	LastCycleAt     *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt   *time.Time `json:"lastTriggerAt,omitempty"`
	Cycles          int64      `json:"cycles"`
	SlugsDeleted    int64      `json:"slugsDeleted"`
	OTPsDeactivated int64      `json:"otpsDeactivated"`
	TotalErrors     int64      `json:"totalErrors"`
	LastError       string     `json:"lastError,omitempty"`
}

func (s *Sweeper) Stats() Stats {
	st := Stats{
		StartedAt:       time.Unix(0, s.startedAtUnixNano).UTC(),
		Cycles:          s.cycles.Load(),
		SlugsDeleted:    s.slugsDeleted.Load(),
		OTPsDeactivated: s.otpsDeactivated.Load(),
		TotalErrors:     s.totalErrors.Load(),
	}
	if n := s.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := s.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

// Run sweeps on every tick and on Trigger until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.runOnce(ctx)
		case <-s.triggerCh:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	now := s.now().UTC()
	s.lastCycleUnixNano.Store(time.Now().UTC().UnixNano())
	s.cycles.Add(1)

	slugs, err := s.repo.DeleteExpiredSlugs(ctx, now)
	if err != nil {
		s.fail("delete expired slugs", err)
	} else {
		s.slugsDeleted.Add(slugs)
	}

	otps, err := s.repo.DeactivateExpiredOTPs(ctx, now)
	if err != nil {
		s.fail("deactivate expired otps", err)
	} else {
		s.otpsDeactivated.Add(otps)
	}

	if slugs > 0 || otps > 0 {
		s.log.WithField("slugs", slugs).WithField("otps", otps).Info("expired tokens swept")
	}
}

func (s *Sweeper) fail(op string, err error) {
	s.totalErrors.Add(1)
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
	s.log.WithError(err).Error(op)
}
