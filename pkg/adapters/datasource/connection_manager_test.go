package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/fmpdb/pkg/retry"
)

type fakeConnector struct {
	mu      sync.Mutex
	pingErr error
	closed  bool
}

func (f *fakeConnector) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeConnector) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConnector) GetType() string { return "fake" }

func (f *fakeConnector) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newTestManager(t *testing.T, cfg ConnectionManagerConfig) *ConnectionManager {
	t.Helper()
	cm := NewConnectionManager(cfg, zaptest.NewLogger(t))
	cm.retryConfig = &retry.Config{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	t.Cleanup(func() { _ = cm.Close() })
	return cm
}

func countingConnect(opened *int32) ConnectorFunc {
	return func(ctx context.Context) (PoolConnector, error) {
		atomic.AddInt32(opened, 1)
		return &fakeConnector{}, nil
	}
}

func TestConnectionManager_Reuse(t *testing.T) {
	cm := newTestManager(t, ConnectionManagerConfig{})
	ctx := context.Background()
	datasourceID := uuid.New()
	var opened int32

	c1, err := cm.GetOrCreateConnection(ctx, datasourceID, "user", countingConnect(&opened))
	require.NoError(t, err)
	c2, err := cm.GetOrCreateConnection(ctx, datasourceID, "user", countingConnect(&opened))
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf("%p", c1), fmt.Sprintf("%p", c2), "should reuse same connector")
	assert.Equal(t, int32(1), atomic.LoadInt32(&opened))

	stats := cm.GetStats()
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.ConnectionsByUser["user"])
	assert.Equal(t, 1, stats.ConnectionsByType["fake"])
}

func TestConnectionManager_IndependentKeys(t *testing.T) {
	cm := newTestManager(t, ConnectionManagerConfig{})
	ctx := context.Background()
	ds1, ds2 := uuid.New(), uuid.New()
	var opened int32

	a, err := cm.GetOrCreateConnection(ctx, ds1, "user-1", countingConnect(&opened))
	require.NoError(t, err)
	b, err := cm.GetOrCreateConnection(ctx, ds1, "user-2", countingConnect(&opened))
	require.NoError(t, err)
	c, err := cm.GetOrCreateConnection(ctx, ds2, "user-1", countingConnect(&opened))
	require.NoError(t, err)

	assert.NotEqual(t, fmt.Sprintf("%p", a), fmt.Sprintf("%p", b))
	assert.NotEqual(t, fmt.Sprintf("%p", a), fmt.Sprintf("%p", c))
	assert.Equal(t, int32(3), atomic.LoadInt32(&opened))
	assert.Equal(t, 2, cm.GetStats().ConnectionsByUser["user-1"])
}

func TestConnectionManager_MaxConnectionsPerUser(t *testing.T) {
	cm := newTestManager(t, ConnectionManagerConfig{MaxConnectionsPerUser: 2})
	ctx := context.Background()
	var opened int32

	for i := 0; i < 2; i++ {
		_, err := cm.GetOrCreateConnection(ctx, uuid.New(), "user", countingConnect(&opened))
		require.NoError(t, err)
	}

	_, err := cm.GetOrCreateConnection(ctx, uuid.New(), "user", countingConnect(&opened))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum connections limit")

	// Another user is unaffected.
	_, err = cm.GetOrCreateConnection(ctx, uuid.New(), "other", countingConnect(&opened))
	require.NoError(t, err)
}

func TestConnectionManager_HealthCheckRecovery(t *testing.T) {
	cm := newTestManager(t, ConnectionManagerConfig{})
	ctx := context.Background()
	datasourceID := uuid.New()

	first := &fakeConnector{}
	_, err := cm.GetOrCreateConnection(ctx, datasourceID, "user", func(ctx context.Context) (PoolConnector, error) {
		return first, nil
	})
	require.NoError(t, err)

	first.mu.Lock()
	first.pingErr = errors.New("connection reset")
	first.mu.Unlock()

	second := &fakeConnector{}
	got, err := cm.GetOrCreateConnection(ctx, datasourceID, "user", func(ctx context.Context) (PoolConnector, error) {
		return second, nil
	})
	require.NoError(t, err)

	assert.Same(t, second, got)
	assert.True(t, first.isClosed(), "unhealthy connector should be closed")
}

func TestConnectionManager_ConnectFailure(t *testing.T) {
	cm := newTestManager(t, ConnectionManagerConfig{})
	var attempts int32

	_, err := cm.GetOrCreateConnection(context.Background(), uuid.New(), "user", func(ctx context.Context) (PoolConnector, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("dial tcp: connection refused password=secret")
	})
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts), "initial attempt plus one retry")
	assert.Equal(t, 0, cm.GetStats().TotalConnections)
}

func TestConnectionManager_TTLExpiration(t *testing.T) {
	cm := newTestManager(t, ConnectionManagerConfig{TTLMinutes: 1})
	conn := &fakeConnector{}
	key := connectionKey(uuid.New(), "user")

	cm.mu.Lock()
	cm.connections[key] = &ManagedConnection{connector: conn, lastUsed: time.Now().Add(-2 * time.Minute)}
	cm.mu.Unlock()

	cm.performCleanup()

	assert.Equal(t, 0, cm.GetStats().TotalConnections)
	assert.True(t, conn.isClosed())
}

func TestConnectionManager_ConcurrentAccess(t *testing.T) {
	cm := newTestManager(t, ConnectionManagerConfig{})
	datasourceID := uuid.New()
	var opened int32

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cm.GetOrCreateConnection(context.Background(), datasourceID, "user", countingConnect(&opened))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&opened))
}

func TestConnectionManager_Close(t *testing.T) {
	cm := NewConnectionManager(ConnectionManagerConfig{}, zaptest.NewLogger(t))
	conn := &fakeConnector{}
	_, err := cm.GetOrCreateConnection(context.Background(), uuid.New(), "user", func(ctx context.Context) (PoolConnector, error) {
		return conn, nil
	})
	require.NoError(t, err)

	require.NoError(t, cm.Close())
	require.NoError(t, cm.Close(), "close is idempotent")
	assert.True(t, conn.isClosed())

	_, err = cm.GetOrCreateConnection(context.Background(), uuid.New(), "user", func(ctx context.Context) (PoolConnector, error) {
		return &fakeConnector{}, nil
	})
	assert.Error(t, err)
}

func TestConnectionManager_DefaultConfig(t *testing.T) {
	cm := newTestManager(t, ConnectionManagerConfig{})
	cfg := cm.Config()

	assert.Equal(t, DefaultConnectionTTLMinutes, cfg.TTLMinutes)
	assert.Equal(t, DefaultMaxConnectionsPerUser, cfg.MaxConnectionsPerUser)
	assert.Equal(t, int32(DefaultPoolMaxConns), cfg.PoolMaxConns)
	assert.Equal(t, int32(DefaultPoolMinConns), cfg.PoolMinConns)
}
