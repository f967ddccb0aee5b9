package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"procverify/internal/decision"
	"procverify/pkg/platform/circuit"
	"procverify/pkg/platform/sentinel"
)

const defaultProbeInterval = 5 * time.Second

// Guarded wraps a backend with a circuit breaker. While the breaker is open,
// calls report sentinel.ErrUnavailable without touching the backend, except
// for one probe per probe interval. Enough successful probes close it again.
type Guarded struct {
	next    Cache
	breaker *circuit.Breaker
	logger  *slog.Logger
	now     func() time.Time

	probeInterval time.Duration
	mu            sync.Mutex
	lastProbe     time.Time
}

type GuardOption func(*Guarded)

func WithBreaker(b *circuit.Breaker) GuardOption {
	return func(g *Guarded) {
		if b != nil {
			g.breaker = b
		}
	}
}

func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *Guarded) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithProbeInterval(d time.Duration) GuardOption {
	return func(g *Guarded) {
		if d >= 0 {
			g.probeInterval = d
		}
	}
}

func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guarded) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGuarded defaults to a breaker that opens after 5 consecutive failures
// and closes after 3 successful probes.
func NewGuarded(next Cache, opts ...GuardOption) *Guarded {
	g := &Guarded{
		next:          next,
		breaker:       circuit.New("decision-cache", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(3)),
		logger:        slog.Default(),
		now:           time.Now,
		probeInterval: defaultProbeInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guarded) Get(ctx context.Context, fingerprint string) (*decision.Decision, error) {
	if !g.allow() {
		return nil, errBypassed
	}
	d, err := g.next.Get(ctx, fingerprint)
	g.record(ctx, err)
	return d, err
}

func (g *Guarded) Put(ctx context.Context, fingerprint string, d *decision.Decision) error {
	if !g.allow() {
		return errBypassed
	}
	err := g.next.Put(ctx, fingerprint, d)
	g.record(ctx, err)
	return err
}

// Clear, Stats and ResetStats are operator actions; they always reach the
// backend and count as probes.
func (g *Guarded) Clear(ctx context.Context) error {
	err := g.next.Clear(ctx)
	g.record(ctx, err)
	return err
}

func (g *Guarded) Stats(ctx context.Context) (Stats, error) {
	s, err := g.next.Stats(ctx)
	g.record(ctx, err)
	return s, err
}

func (g *Guarded) ResetStats(ctx context.Context) error {
	err := g.next.ResetStats(ctx)
	g.record(ctx, err)
	return err
}

// Open reports whether the breaker is currently bypassing the backend.
func (g *Guarded) Open() bool {
	return g.breaker.IsOpen()
}

var errBypassed = fmt.Errorf("decision cache bypassed: %w", sentinel.ErrUnavailable)

func (g *Guarded) allow() bool {
	if !g.breaker.IsOpen() {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if now.Sub(g.lastProbe) >= g.probeInterval {
		g.lastProbe = now
		return true
	}
	return false
}

func (g *Guarded) record(ctx context.Context, err error) {
	if err == nil || errors.Is(err, sentinel.ErrNotFound) {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "decision cache recovered", "breaker", g.breaker.Name())
		}
		return
	}
	if !errors.Is(err, sentinel.ErrUnavailable) {
		return
	}
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.mu.Lock()
		g.lastProbe = g.now()
		g.mu.Unlock()
		g.logger.WarnContext(ctx, "decision cache unavailable, bypassing",
			"breaker", g.breaker.Name(),
			"error", err,
		)
	}
}
