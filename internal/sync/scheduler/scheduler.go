// Package scheduler runs the queue drain in the background: periodically
// while online, and once through a platform background-sync registration.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	apperrors "github.com/aykha18/tajir-optimized-sub001/internal/errors"
	syncpkg "github.com/aykha18/tajir-optimized-sub001/internal/sync"
	"github.com/aykha18/tajir-optimized-sub001/internal/sync/connectivity"
)

// DefaultInterval is the periodic drain interval.
const DefaultInterval = 5 * time.Minute

// Registrar registers a one-time background sync with the platform. The
// platform calls fn when it decides connectivity is back.
type Registrar interface {
	Register(ctx context.Context, fn func(ctx context.Context)) error
}

// ReconnectRegistrar honors registrations on the monitor's next reconnect.
type ReconnectRegistrar struct {
	Monitor *connectivity.Monitor
}

// Register implements Registrar.
func (r ReconnectRegistrar) Register(_ context.Context, fn func(ctx context.Context)) error {
	if r.Monitor == nil {
		return fmt.Errorf("background sync is not supported: no connectivity monitor")
	}
	r.Monitor.OnNextReconnect(connectivity.ReconnectHook(fn))
	return nil
}

// Config holds scheduler settings.
type Config struct {
	Interval  time.Duration
	Registrar Registrar
	Logger    *zap.Logger
}

// Scheduler owns the periodic drain job and the background sync registration.
type Scheduler struct {
	drainer   syncpkg.Drainer
	conn      syncpkg.Connectivity
	registrar Registrar
	interval  time.Duration
	logger    *zap.Logger
	events    syncpkg.Publisher

	mu              sync.RWMutex
	cron            *cron.Cron
	cancel          context.CancelFunc
	isRunning       bool
	registered      bool
	registrationErr error
	lastRun         time.Time
	lastResult      *syncpkg.DrainResult
}

// NewScheduler creates a scheduler. conn may be nil, in which case the
// periodic job always runs.
func NewScheduler(drainer syncpkg.Drainer, conn syncpkg.Connectivity, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Scheduler{
		drainer:   drainer,
		conn:      conn,
		registrar: cfg.Registrar,
		interval:  cfg.Interval,
		logger:    cfg.Logger,
	}
}

// Subscribe registers a handler for background sync events.
func (s *Scheduler) Subscribe(h syncpkg.EventHandler) {
	s.events.Subscribe(h)
}

// Start schedules the periodic drain and registers the background sync.
// A failed registration is logged and leaves the periodic job running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	schedule := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(schedule, func() { s.tick(ctx) }); err != nil {
		s.mu.Unlock()
		cancel()
		return apperrors.Wrap(apperrors.ErrConfig, "schedule periodic sync", err)
	}
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.isRunning = true
	s.mu.Unlock()

	s.logger.Info("background sync scheduler started", zap.Duration("interval", s.interval))
	s.register(ctx)
	return nil
}

// Stop cancels the periodic job and waits for a running drain to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	c, cancel := s.cron, s.cancel
	s.mu.Unlock()

	cancel()
	<-c.Stop().Done()
	s.logger.Info("background sync scheduler stopped")
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Scheduler) online() bool {
	return s.conn == nil || s.conn.IsOnline()
}

// tick is the periodic job.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.online() {
		s.logger.Debug("skipping periodic sync while offline")
		return
	}

	res, err := s.drainer.Drain(ctx)
	s.record(res, err)
	if err != nil {
		s.logger.Warn("periodic sync failed", zap.Error(err))
		return
	}
	if !res.Skipped && res.Attempted > 0 {
		s.logger.Info("periodic sync completed",
			zap.Int("synced", res.Synced),
			zap.Int("retried", res.Retried),
			zap.Int("abandoned", res.Abandoned))
	}
}

func (s *Scheduler) register(ctx context.Context) {
	if s.registrar == nil {
		return
	}

	err := s.registrar.Register(ctx, s.backgroundSync)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.registrationErr = apperrors.Wrap(apperrors.ErrRegistration, "register background sync", err)
		s.logger.Warn("background sync registration failed, periodic sync only", zap.Error(s.registrationErr))
		return
	}
	s.registered = true
	s.registrationErr = nil
	s.logger.Info("background sync registered")
}

// backgroundSync runs when the platform honors the registration.
func (s *Scheduler) backgroundSync(ctx context.Context) {
	res, err := s.drainer.Drain(ctx)
	s.record(res, err)

	s.mu.Lock()
	s.registered = false
	s.mu.Unlock()

	data := map[string]interface{}{
		"attempted": res.Attempted,
		"synced":    res.Synced,
		"abandoned": res.Abandoned,
	}
	if err != nil {
		data["error"] = err.Error()
		s.logger.Warn("background sync failed", zap.Error(err))
	} else {
		s.logger.Info("background sync completed", zap.Int("synced", res.Synced))
	}
	s.events.Publish(syncpkg.EventBackgroundSyncCompleted, data)
}

func (s *Scheduler) record(res syncpkg.DrainResult, err error) {
	if err != nil || res.Skipped {
		return
	}
	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastResult = &res
	s.mu.Unlock()
}

// Status describes the scheduler for the sync status endpoint.
type Status struct {
	IsRunning            bool                 `json:"isRunning"`
	Interval             string               `json:"interval"`
	BackgroundRegistered bool                 `json:"backgroundRegistered"`
	RegistrationError    string               `json:"registrationError,omitempty"`
	LastRun              *time.Time           `json:"lastRun,omitempty"`
	LastResult           *syncpkg.DrainResult `json:"lastResult,omitempty"`
	NextRun              *time.Time           `json:"nextRun,omitempty"`
}

// Status returns the current scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		IsRunning:            s.isRunning,
		Interval:             s.interval.String(),
		BackgroundRegistered: s.registered,
		LastResult:           s.lastResult,
	}
	if s.registrationErr != nil {
		st.RegistrationError = s.registrationErr.Error()
	}
	if !s.lastRun.IsZero() {
		last := s.lastRun
		st.LastRun = &last
	}
	if s.isRunning && s.cron != nil {
		if entries := s.cron.Entries(); len(entries) > 0 && !entries[0].Next.IsZero() {
			next := entries[0].Next
			st.NextRun = &next
		}
	}
	return st
}
