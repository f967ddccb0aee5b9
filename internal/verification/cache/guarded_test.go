package cache

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procverify/internal/decision"
	"procverify/pkg/platform/circuit"
	"procverify/pkg/platform/sentinel"
)

// flakyCache fails every call while down is set.
type flakyCache struct {
	*InMemoryCache
	down  bool
	calls int
}

func (f *flakyCache) Get(ctx context.Context, fp string) (*decision.Decision, error) {
	f.calls++
	if f.down {
		return nil, fmt.Errorf("dial tcp: %w", sentinel.ErrUnavailable)
	}
	return f.InMemoryCache.Get(ctx, fp)
}

func (f *flakyCache) Put(ctx context.Context, fp string, d *decision.Decision) error {
	f.calls++
	if f.down {
		return fmt.Errorf("dial tcp: %w", sentinel.ErrUnavailable)
	}
	return f.InMemoryCache.Put(ctx, fp, d)
}

func TestGuarded_OpensAndRecovers(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	backend := &flakyCache{InMemoryCache: NewInMemoryCache(), down: true}
	var logs bytes.Buffer

	g := NewGuarded(backend,
		WithBreaker(circuit.New("test-cache", circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(2))),
		WithGuardLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		WithProbeInterval(time.Second),
		WithGuardClock(func() time.Time { return now }),
	)

	for range 3 {
		_, err := g.Get(ctx, "fp")
		require.ErrorIs(t, err, sentinel.ErrUnavailable)
	}
	assert.True(t, g.Open())
	assert.Contains(t, logs.String(), "decision cache unavailable")

	// Open: calls are bypassed until the probe interval elapses.
	calls := backend.calls
	_, err := g.Get(ctx, "fp")
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
	require.ErrorIs(t, g.Put(ctx, "fp", &decision.Decision{}), sentinel.ErrUnavailable)
	assert.Equal(t, calls, backend.calls)

	backend.down = false
	now = now.Add(time.Second)
	_, err = g.Get(ctx, "fp")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.True(t, g.Open())

	now = now.Add(time.Second)
	require.NoError(t, g.Put(ctx, "fp", &decision.Decision{ProcessNumber: "1"}))
	assert.False(t, g.Open())
	assert.Contains(t, logs.String(), "decision cache recovered")

	got, err := g.Get(ctx, "fp")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ProcessNumber)
}

func TestGuarded_MissDoesNotTrip(t *testing.T) {
	ctx := context.Background()
	g := NewGuarded(NewInMemoryCache(), WithBreaker(circuit.New("test", circuit.WithFailureThreshold(1))))

	for range 5 {
		_, err := g.Get(ctx, "missing")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	}
	assert.False(t, g.Open())
}

func TestGuarded_AdminCallsPassThrough(t *testing.T) {
	ctx := context.Background()
	mem := NewInMemoryCache()
	g := NewGuarded(mem)

	require.NoError(t, g.Put(ctx, "fp", &decision.Decision{ProcessNumber: "1"}))
	_, _ = g.Get(ctx, "fp")

	stats, err := g.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Entries: 1, Hits: 1}, stats)

	require.NoError(t, g.ResetStats(ctx))
	require.NoError(t, g.Clear(ctx))
	stats, err = g.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}
