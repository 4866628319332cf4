// Package app is the application facade: it builds the offline sync
// components in dependency order and exposes the save/load operations the
// UI shell calls.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aykha18/tajir-optimized-sub001/internal/api"
	"github.com/aykha18/tajir-optimized-sub001/internal/config"
	apperrors "github.com/aykha18/tajir-optimized-sub001/internal/errors"
	"github.com/aykha18/tajir-optimized-sub001/internal/logging"
	"github.com/aykha18/tajir-optimized-sub001/internal/models"
	"github.com/aykha18/tajir-optimized-sub001/internal/notify"
	"github.com/aykha18/tajir-optimized-sub001/internal/store"
	syncpkg "github.com/aykha18/tajir-optimized-sub001/internal/sync"
	"github.com/aykha18/tajir-optimized-sub001/internal/sync/connectivity"
	"github.com/aykha18/tajir-optimized-sub001/internal/sync/queue"
	"github.com/aykha18/tajir-optimized-sub001/internal/sync/scheduler"
)

// Remote is the shop server as seen by the facade.
type Remote interface {
	syncpkg.Dispatcher
	List(ctx context.Context, collection models.Collection) ([]models.Record, error)
}

// Option customizes App construction.
type Option func(*options)

type options struct {
	remote    Remote
	registrar scheduler.Registrar
	now       func() time.Time
}

// WithRemote replaces the REST client built from configuration.
func WithRemote(r Remote) Option {
	return func(o *options) { o.remote = r }
}

// WithRegistrar replaces the default reconnect registrar.
func WithRegistrar(r scheduler.Registrar) Option {
	return func(o *options) { o.registrar = r }
}

// WithClock sets the clock used for temporary ids.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// App owns every component of the offline sync core. Build it with New and
// pass it by reference.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	vatRate decimal.Decimal

	store     *store.Store
	remote    Remote
	queue     *queue.Manager
	monitor   *connectivity.Monitor
	scheduler *scheduler.Scheduler
	hub       *notify.Hub

	mu       sync.Mutex
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	hubDone  chan struct{}
	startups sync.WaitGroup
}

// New opens the local store and wires the sync components on top of it.
// Nothing runs in the background until Start.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	vatRate := decimal.Zero
	if cfg.Bill.VATRate != "" {
		var err error
		if vatRate, err = decimal.NewFromString(cfg.Bill.VATRate); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrConfig, "parse VAT rate", err)
		}
	}

	st := store.New(store.Options{
		DataDir: cfg.Store.DataDir,
		Name:    cfg.Store.Name,
		Version: config.StoreVersion,
		Logger:  logging.Named(logger, "store"),
	})
	if err := st.Init(ctx); err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		vatRate: vatRate,
		store:   st,
		remote:  o.remote,
	}
	if a.remote == nil {
		a.remote = api.NewClient(api.Config{
			BaseURL: cfg.API.BaseURL,
			Token:   cfg.API.Token,
			Timeout: cfg.API.Timeout,
		})
	}

	// The monitor drains through the queue manager, which in turn asks the
	// monitor whether it is online.
	a.monitor = connectivity.NewMonitor(syncpkg.DrainerFunc(func(ctx context.Context) (syncpkg.DrainResult, error) {
		return a.queue.Drain(ctx)
	}), connectivity.Config{
		InitialOnline: cfg.Sync.StartOnline,
		Logger:        logging.Named(logger, "connectivity"),
	})
	a.queue = queue.NewManager(st, a.remote, a.monitor, queue.Config{
		MaxRetries: cfg.Sync.MaxRetries,
		Logger:     logging.Named(logger, "queue"),
		Now:        o.now,
	})

	registrar := o.registrar
	if registrar == nil && cfg.Sync.BackgroundSync {
		registrar = scheduler.ReconnectRegistrar{Monitor: a.monitor}
	}
	a.scheduler = scheduler.NewScheduler(a.queue, a.monitor, scheduler.Config{
		Interval:  cfg.Sync.Interval,
		Registrar: registrar,
		Logger:    logging.Named(logger, "scheduler"),
	})

	a.hub = notify.NewHub(notify.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logging.Named(logger, "notify"),
	})
	a.queue.Subscribe(a.hub.Publish)
	a.queue.Subscribe(a.reconcile)
	a.monitor.Subscribe(a.hub.Publish)
	a.scheduler.Subscribe(a.hub.Publish)

	return a, nil
}

// Start launches the background components. When online, queued operations
// left from a previous run are drained right away.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return apperrors.New(apperrors.ErrInternal, "app is shut down")
	}
	if a.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.hubDone = make(chan struct{})
	go func() {
		defer close(a.hubDone)
		a.hub.Run(runCtx)
	}()

	a.monitor.Start(runCtx)
	if err := a.scheduler.Start(runCtx); err != nil {
		a.monitor.Stop()
		cancel()
		<-a.hubDone
		return err
	}
	a.started = true

	if a.monitor.IsOnline() {
		a.startups.Add(1)
		go func() {
			defer a.startups.Done()
			if _, err := a.queue.Drain(runCtx); err != nil {
				a.logger.Warn("startup drain failed", zap.Error(err))
			}
		}()
	}

	a.logger.Info("offline sync started",
		zap.Bool("online", a.monitor.IsOnline()),
		zap.Duration("interval", a.cfg.Sync.Interval),
		zap.Int("max_retries", a.queue.MaxRetries()))
	return nil
}

// Shutdown stops the triggers, waits for running drains and closes the
// store. It is safe to call more than once.
func (a *App) Shutdown() error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	started := a.started
	a.mu.Unlock()

	if started {
		a.scheduler.Stop()
		a.monitor.Stop()
		a.cancel()
		a.startups.Wait()
	}
	a.queue.Close()
	if started {
		<-a.hubDone
	}

	if err := a.store.Close(); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, "close store", err)
	}
	a.logger.Info("offline sync stopped")
	return nil
}

// Hub returns the WebSocket notifier.
func (a *App) Hub() *notify.Hub { return a.hub }

// Store returns the local durable store.
func (a *App) Store() *store.Store { return a.store }

// SetOnline forwards a platform connectivity signal.
func (a *App) SetOnline(online bool) {
	a.monitor.SetOnline(online)
}

// IsOnline reports the current connectivity state.
func (a *App) IsOnline() bool {
	return a.monitor.IsOnline()
}

// SyncNow drains the queue in the caller's goroutine.
func (a *App) SyncNow(ctx context.Context) (syncpkg.DrainResult, error) {
	return a.queue.Drain(ctx)
}

// PendingCount returns the number of operations waiting to sync.
func (a *App) PendingCount(ctx context.Context) (int, error) {
	return a.queue.PendingCount(ctx)
}

// Status summarizes the sync state.
type Status struct {
	Online    bool             `json:"online"`
	Syncing   bool             `json:"syncing"`
	Pending   int              `json:"pending"`
	LastSync  *time.Time       `json:"lastSync,omitempty"`
	Scheduler scheduler.Status `json:"scheduler"`
	Clients   int              `json:"clients"`
}

// Status returns the current sync state.
func (a *App) Status(ctx context.Context) (Status, error) {
	pending, err := a.queue.PendingCount(ctx)
	if err != nil {
		return Status{}, err
	}

	st := Status{
		Online:    a.monitor.IsOnline(),
		Syncing:   a.queue.IsSyncing(),
		Pending:   pending,
		Scheduler: a.scheduler.Status(),
		Clients:   a.hub.ClientCount(),
	}

	last := a.queue.LastSync()
	if last.IsZero() {
		// Fall back to the value persisted by an earlier run.
		v, found, err := a.store.GetSetting(ctx, models.SettingLastSync)
		if err != nil {
			return Status{}, err
		}
		if ms, ok := v.(float64); found && ok {
			last = time.UnixMilli(int64(ms))
		}
	}
	if !last.IsZero() {
		st.LastSync = &last
	}
	return st, nil
}
