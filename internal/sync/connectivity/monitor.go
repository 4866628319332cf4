// Package connectivity tracks the platform's online/offline signal and
// drains the sync queue when the network comes back.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	syncpkg "github.com/aykha18/tajir-optimized-sub001/internal/sync"
)

// ReconnectHook runs once, on the next offline-to-online transition. It
// takes the place of the monitor's own drain for that transition, so a hook
// is expected to drain itself.
type ReconnectHook func(ctx context.Context)

// Monitor holds the online flag. It does not probe the network; the
// platform reports changes through SetOnline.
type Monitor struct {
	online  atomic.Bool
	drainer syncpkg.Drainer
	logger  *zap.Logger
	events  syncpkg.Publisher

	requests chan struct{}

	mu      sync.Mutex
	hooks   []ReconnectHook
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Config holds monitor settings.
type Config struct {
	InitialOnline bool
	Logger        *zap.Logger
}

// NewMonitor creates a monitor that calls drainer on reconnect. drainer may
// be nil.
func NewMonitor(drainer syncpkg.Drainer, cfg Config) *Monitor {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	m := &Monitor{
		drainer:  drainer,
		logger:   cfg.Logger,
		requests: make(chan struct{}, 1),
	}
	m.online.Store(cfg.InitialOnline)
	return m
}

// Subscribe registers a handler for connectivity events.
func (m *Monitor) Subscribe(h syncpkg.EventHandler) {
	m.events.Subscribe(h)
}

// IsOnline reports the last known connectivity state.
func (m *Monitor) IsOnline() bool {
	return m.online.Load()
}

// SetOnline records a platform connectivity signal. Going online requests a
// drain; repeated signals while a request is pending collapse into one.
func (m *Monitor) SetOnline(online bool) {
	if m.online.Swap(online) == online {
		return
	}

	m.logger.Info("connectivity changed", zap.Bool("online", online))
	m.events.Publish(syncpkg.EventConnectivityChanged, map[string]interface{}{"online": online})

	if online {
		m.requestDrain()
	}
}

func (m *Monitor) requestDrain() {
	select {
	case m.requests <- struct{}{}:
	default:
	}
}

// OnNextReconnect registers a hook for the next reconnect. If the monitor
// is already online the hook runs on the next drain request. A reconnect
// with pending hooks runs the hooks instead of a plain drain, so one
// transition never drains twice.
func (m *Monitor) OnNextReconnect(hook ReconnectHook) {
	if hook == nil {
		return
	}
	m.mu.Lock()
	m.hooks = append(m.hooks, hook)
	m.mu.Unlock()
}

// PendingHooks returns the number of registered hooks that have not run.
func (m *Monitor) PendingHooks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hooks)
}

// Start launches the loop that serves drain requests. Calling Start on a
// running monitor does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.loop(ctx, m.done)
	m.logger.Info("connectivity monitor started", zap.Bool("online", m.IsOnline()))
}

// Stop ends the loop and waits for an in-flight drain to return.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
	m.logger.Info("connectivity monitor stopped")
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.requests:
			if !m.IsOnline() {
				continue
			}
			if hooks := m.takeHooks(); len(hooks) > 0 {
				m.runHooks(ctx, hooks)
				continue
			}
			m.drain(ctx)
		}
	}
}

func (m *Monitor) drain(ctx context.Context) {
	if m.drainer == nil {
		return
	}
	res, err := m.drainer.Drain(ctx)
	if err != nil {
		m.logger.Warn("reconnect drain failed", zap.Error(err))
		return
	}
	if !res.Skipped {
		m.logger.Info("reconnect drain finished",
			zap.Int("synced", res.Synced),
			zap.Int("retried", res.Retried),
			zap.Int("abandoned", res.Abandoned))
	}
}

func (m *Monitor) takeHooks() []ReconnectHook {
	m.mu.Lock()
	defer m.mu.Unlock()
	hooks := m.hooks
	m.hooks = nil
	return hooks
}

func (m *Monitor) runHooks(ctx context.Context, hooks []ReconnectHook) {
	for _, hook := range hooks {
		if ctx.Err() != nil {
			return
		}
		hook(ctx)
	}
}
