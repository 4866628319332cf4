// Package queue replays offline mutations against the shop server with a
// bounded retry policy.
package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/aykha18/tajir-optimized-sub001/internal/errors"
	"github.com/aykha18/tajir-optimized-sub001/internal/models"
	"github.com/aykha18/tajir-optimized-sub001/internal/store"
	syncpkg "github.com/aykha18/tajir-optimized-sub001/internal/sync"
	"github.com/aykha18/tajir-optimized-sub001/internal/tempid"
)

// DefaultMaxRetries is the number of failed replays after which an
// operation is abandoned.
const DefaultMaxRetries = 3

// Config holds queue manager settings.
type Config struct {
	MaxRetries int
	Logger     *zap.Logger
	// Now is the clock used for temporary ids and timestamps.
	Now func() time.Time
}

// Manager owns the pending_sync collection: it enqueues offline records and
// drains them to the server.
type Manager struct {
	store      *store.Store
	dispatcher syncpkg.Dispatcher
	conn       syncpkg.Connectivity
	events     syncpkg.Publisher
	maxRetries int
	logger     *zap.Logger
	now        func() time.Time

	mu             sync.Mutex
	syncInProgress bool
	lastSync       time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a Manager. conn may be nil, in which case the manager
// always considers itself online.
func NewManager(st *store.Store, dispatcher syncpkg.Dispatcher, conn syncpkg.Connectivity, cfg Config) *Manager {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:      st,
		dispatcher: dispatcher,
		conn:       conn,
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger,
		now:        cfg.Now,
		baseCtx:    ctx,
		cancel:     cancel,
	}
}

// Subscribe registers a handler for sync events.
func (m *Manager) Subscribe(h syncpkg.EventHandler) {
	m.events.Subscribe(h)
}

// MaxRetries returns the retry bound.
func (m *Manager) MaxRetries() int {
	return m.maxRetries
}

func (m *Manager) online() bool {
	return m.conn == nil || m.conn.IsOnline()
}

// Enqueue stores rec in its collection and queues it for replay, in one
// transaction. A record without a primary key gets a temporary identifier,
// which is returned. When online, a drain is started in the background.
func (m *Manager) Enqueue(ctx context.Context, opType models.OperationType, rec models.Record) (string, error) {
	collection, ok := opType.Collection()
	if !ok {
		return "", apperrors.Newf(apperrors.ErrInvalid, "unknown operation type %q", opType)
	}
	if rec == nil {
		return "", apperrors.New(apperrors.ErrInvalid, "record is nil")
	}

	now := m.now()
	rec = rec.Clone()
	key := rec.Key(collection)
	if key == "" {
		key = tempid.NewAt(opType.TempIDPrefix(), now)
		rec[collection.KeyField()] = key
	}
	rec["offline_created"] = true
	if _, ok := rec["created_at"]; !ok {
		rec["created_at"] = now.UTC().Format(time.RFC3339)
	}

	op := &models.PendingOperation{
		Type:       opType,
		Data:       rec,
		Timestamp:  now.UnixMilli(),
		RetryCount: 0,
	}

	err := m.store.Update(ctx, func(tx *store.Tx) error {
		if err := tx.Save(collection, rec); err != nil {
			return err
		}
		return tx.AddPending(op)
	})
	if err != nil {
		m.logger.Error("failed to enqueue offline record",
			zap.String("type", string(opType)),
			zap.String("key", key),
			zap.Error(err))
		return "", err
	}

	m.logger.Info("enqueued offline record",
		zap.String("type", string(opType)),
		zap.String("key", key),
		zap.Int64("op_id", op.ID))
	m.events.Publish(syncpkg.EventSyncEnqueued, map[string]interface{}{
		"type": string(opType),
		"key":  key,
	})

	if m.online() {
		m.kick()
	}

	return key, nil
}

// kick starts a background drain unless the manager is closed.
func (m *Manager) kick() {
	if m.baseCtx.Err() != nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if _, err := m.Drain(m.baseCtx); err != nil {
			m.logger.Warn("background drain failed", zap.Error(err))
		}
	}()
}

// Drain replays every queued operation once, sequentially. Only one drain
// runs at a time; a call made while another is in progress returns a
// skipped result immediately, as does a call made while offline. A failing
// item never stops the pass.
func (m *Manager) Drain(ctx context.Context) (syncpkg.DrainResult, error) {
	var result syncpkg.DrainResult

	if !m.online() {
		result.Skipped, result.Offline = true, true
		return result, nil
	}

	m.mu.Lock()
	if m.syncInProgress {
		m.mu.Unlock()
		m.logger.Debug("drain already in progress, skipping")
		result.Skipped = true
		return result, nil
	}
	m.syncInProgress = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.syncInProgress = false
		m.mu.Unlock()
	}()

	ops, err := m.store.GetAllPending(ctx)
	if err != nil {
		m.logger.Error("failed to read pending queue", zap.Error(err))
		return result, err
	}
	if len(ops) == 0 {
		return result, nil
	}

	m.logger.Info("draining pending queue", zap.Int("count", len(ops)))
	m.events.Publish(syncpkg.EventSyncStarted, map[string]interface{}{"pending": len(ops)})

	for _, op := range ops {
		if ctx.Err() != nil {
			break
		}
		result.Attempted++
		m.replay(ctx, op, &result)
	}

	if result.Synced > 0 {
		now := m.now()
		if err := m.store.SaveSetting(ctx, models.SettingLastSync, now.UnixMilli()); err != nil {
			m.logger.Warn("failed to record last sync time", zap.Error(err))
		}
		m.mu.Lock()
		m.lastSync = now
		m.mu.Unlock()
	}

	m.logger.Info("drain completed",
		zap.Int("attempted", result.Attempted),
		zap.Int("synced", result.Synced),
		zap.Int("retried", result.Retried),
		zap.Int("abandoned", result.Abandoned))
	m.events.Publish(syncpkg.EventSyncCompleted, map[string]interface{}{
		"attempted": result.Attempted,
		"synced":    result.Synced,
		"retried":   result.Retried,
		"abandoned": result.Abandoned,
	})

	return result, ctx.Err()
}

// replay sends one operation and applies the retry policy to its outcome.
func (m *Manager) replay(ctx context.Context, op *models.PendingOperation, result *syncpkg.DrainResult) {
	fields := []zap.Field{
		zap.Int64("op_id", op.ID),
		zap.String("type", string(op.Type)),
	}

	created, err := m.dispatcher.Create(ctx, op.Type, op.Data)
	if err == nil {
		// The server has the record now; a failed removal leaves a duplicate
		// send for the next drain, which the server upserts.
		if err := m.store.RemovePending(ctx, op.ID); err != nil {
			m.logger.Error("synced operation could not be dequeued", append(fields, zap.Error(err))...)
		}
		result.Synced++

		collection, _ := op.Type.Collection()
		m.events.Publish(syncpkg.EventSyncItemSynced, map[string]interface{}{
			"type":   string(op.Type),
			"key":    op.Data.Key(collection),
			"record": created,
		})
		return
	}

	// Cancelled mid-flight: leave the operation as it was.
	if ctx.Err() != nil {
		return
	}

	op.RetryCount++
	op.LastError = err.Error()
	fields = append(fields, zap.Int("retry_count", op.RetryCount), zap.Error(err))

	if op.RetryCount >= m.maxRetries {
		if rmErr := m.store.RemovePending(ctx, op.ID); rmErr != nil {
			m.logger.Error("failed to abandon operation", append(fields, zap.NamedError("remove_error", rmErr))...)
			return
		}
		result.Abandoned++
		m.logger.Error("operation abandoned after max retries", append(fields, zap.Int("max_retries", m.maxRetries))...)
		m.events.Publish(syncpkg.EventSyncItemAbandoned, map[string]interface{}{
			"op_id":       op.ID,
			"type":        string(op.Type),
			"retry_count": op.RetryCount,
			"error":       op.LastError,
		})
		return
	}

	if upErr := m.store.UpdatePending(ctx, op); upErr != nil {
		m.logger.Error("failed to persist retry count", append(fields, zap.NamedError("update_error", upErr))...)
		return
	}
	result.Retried++
	m.logger.Warn("replay failed, will retry",
		append(fields, zap.Int("max_retries", m.maxRetries))...)
}

// PendingCount returns the number of queued operations.
func (m *Manager) PendingCount(ctx context.Context) (int, error) {
	return m.store.CountPending(ctx)
}

// IsSyncing reports whether a drain is running.
func (m *Manager) IsSyncing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncInProgress
}

// LastSync returns the time of the last drain that synced something, or
// the zero time.
func (m *Manager) LastSync() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSync
}

// Wait blocks until background drains started by Enqueue finish.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close cancels background drains and waits for them.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
