package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/aykha18/tajir-optimized-sub001/internal/errors"
	syncpkg "github.com/aykha18/tajir-optimized-sub001/internal/sync"
	"github.com/aykha18/tajir-optimized-sub001/internal/sync/connectivity"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =====================================================
// Test Helpers
// =====================================================

type stubDrainer struct {
	calls  atomic.Int32
	result syncpkg.DrainResult
	err    error
}

func (d *stubDrainer) Drain(context.Context) (syncpkg.DrainResult, error) {
	d.calls.Add(1)
	return d.result, d.err
}

type stubConn struct{ online atomic.Bool }

func (c *stubConn) IsOnline() bool { return c.online.Load() }

type failingRegistrar struct{}

func (failingRegistrar) Register(context.Context, func(context.Context)) error {
	return errors.New("background sync unavailable")
}

// =====================================================
// Periodic job
// =====================================================

func TestNewScheduler_defaults(t *testing.T) {
	s := NewScheduler(&stubDrainer{}, nil, Config{})
	assert.Equal(t, DefaultInterval, s.interval)
	assert.False(t, s.IsRunning())
	assert.Equal(t, "5m0s", s.Status().Interval)
}

func TestTick_skipsWhileOffline(t *testing.T) {
	d := &stubDrainer{}
	conn := &stubConn{}
	s := NewScheduler(d, conn, Config{})

	s.tick(context.Background())
	assert.EqualValues(t, 0, d.calls.Load())

	conn.online.Store(true)
	s.tick(context.Background())
	assert.EqualValues(t, 1, d.calls.Load())
}

func TestTick_recordsLastResult(t *testing.T) {
	d := &stubDrainer{result: syncpkg.DrainResult{Attempted: 2, Synced: 2}}
	s := NewScheduler(d, nil, Config{})

	s.tick(context.Background())

	st := s.Status()
	require.NotNil(t, st.LastRun)
	require.NotNil(t, st.LastResult)
	assert.Equal(t, 2, st.LastResult.Synced)
}

func TestTick_skippedDrainIsNotRecorded(t *testing.T) {
	d := &stubDrainer{result: syncpkg.DrainResult{Skipped: true}}
	s := NewScheduler(d, nil, Config{})

	s.tick(context.Background())
	assert.Nil(t, s.Status().LastRun)
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(&stubDrainer{}, nil, Config{Interval: time.Hour})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	st := s.Status()
	assert.True(t, st.IsRunning)
	require.NotNil(t, st.NextRun)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *st.NextRun, time.Minute)

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.Status().NextRun)
}

func TestPeriodicJobRuns(t *testing.T) {
	d := &stubDrainer{}
	s := NewScheduler(d, nil, Config{Interval: time.Second})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return d.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

// =====================================================
// Background sync registration
// =====================================================

func TestRegistrationFailure_keepsPeriodicJob(t *testing.T) {
	s := NewScheduler(&stubDrainer{}, nil, Config{Interval: time.Hour, Registrar: failingRegistrar{}})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	st := s.Status()
	assert.True(t, st.IsRunning)
	assert.False(t, st.BackgroundRegistered)
	assert.Contains(t, st.RegistrationError, "background sync unavailable")

	s.mu.RLock()
	regErr := s.registrationErr
	s.mu.RUnlock()
	assert.True(t, apperrors.Is(regErr, apperrors.ErrRegistration))
}

func TestReconnectRegistrar_withoutMonitorFails(t *testing.T) {
	err := ReconnectRegistrar{}.Register(context.Background(), func(context.Context) {})
	assert.Error(t, err)
}

func TestBackgroundSync_runsOnReconnect(t *testing.T) {
	d := &stubDrainer{result: syncpkg.DrainResult{Attempted: 1, Synced: 1}}
	monitor := connectivity.NewMonitor(nil, connectivity.Config{})
	monitor.Start(context.Background())
	defer monitor.Stop()

	s := NewScheduler(d, monitor, Config{
		Interval:  time.Hour,
		Registrar: ReconnectRegistrar{Monitor: monitor},
	})

	var mu sync.Mutex
	var got []syncpkg.Event
	s.Subscribe(func(ev syncpkg.Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.True(t, s.Status().BackgroundRegistered)
	assert.Equal(t, 1, monitor.PendingHooks())

	monitor.SetOnline(true)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, syncpkg.EventBackgroundSyncCompleted, got[0].Type)
	assert.Equal(t, 1, got[0].Data["synced"])
	mu.Unlock()

	assert.EqualValues(t, 1, d.calls.Load())
	assert.False(t, s.Status().BackgroundRegistered)
}
