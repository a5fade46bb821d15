// Package probe verifies indicator subdomains by substituting company segments
// into the indicator's wildcard pattern and probing the resulting hosts.
package probe

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"leadscout/internal/domain"
	"leadscout/internal/metrics"
)

const (
	// DefaultDelay is the spacing between probes against one indicator's domain.
	DefaultDelay   = 400 * time.Millisecond
	DefaultTimeout = 5 * time.Second
)

// Result of probing all candidates for one indicator.
type Result struct {
	Found bool
	Proof string
	Host  string
}

// gate serializes probes against one vendor and spaces them by the delay.
type gate struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// Verifier probes candidate subdomains. Probes against the same vendor domain
// are serialized with a fixed delay between them, even when several
// indicators share that domain; different vendors run independently.
type Verifier struct {
	prober  Prober
	delay   time.Duration
	timeout time.Duration
	scheme  string
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	gates map[string]*gate
}

// Option configures a Verifier.
type Option func(*Verifier)

func WithDelay(d time.Duration) Option { return func(v *Verifier) { v.delay = d } }

func WithTimeout(d time.Duration) Option { return func(v *Verifier) { v.timeout = d } }

func WithLogger(l *slog.Logger) Option { return func(v *Verifier) { v.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(v *Verifier) { v.metrics = m } }

// WithScheme overrides the probe scheme; tests use http.
func WithScheme(s string) Option { return func(v *Verifier) { v.scheme = s } }

func NewVerifier(prober Prober, opts ...Option) *Verifier {
	v := &Verifier{
		prober:  prober,
		delay:   DefaultDelay,
		timeout: DefaultTimeout,
		scheme:  "https",
		gates:   make(map[string]*gate),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	return v
}

// gateKey is the part of the pattern after the wildcard label, so
// "*.myavionte.com" gates on "myavionte.com". Patterns without one fall back
// to the indicator name.
func gateKey(ind domain.TargetIndicator) string {
	pattern := strings.ToLower(strings.TrimSpace(ind.SubdomainPattern))
	if i := strings.Index(pattern, "*."); i >= 0 && i+2 < len(pattern) {
		return pattern[i+2:]
	}
	return "indicator:" + strings.ToLower(ind.Name)
}

func (v *Verifier) gateFor(ind domain.TargetIndicator) *gate {
	key := gateKey(ind)
	v.mu.Lock()
	defer v.mu.Unlock()
	g, ok := v.gates[key]
	if !ok {
		limit := rate.Inf
		if v.delay > 0 {
			limit = rate.Every(v.delay)
		}
		g = &gate{sem: semaphore.NewWeighted(1), limiter: rate.NewLimiter(limit, 1)}
		v.gates[key] = g
	}
	return g
}

// Host substitutes a segment into the pattern's wildcard label. ok is false
// when the result does not conform to the pattern.
func Host(pattern, segment string) (string, bool) {
	if pattern == "" || segment == "" || strings.Contains(segment, ".") {
		return "", false
	}
	host := strings.Replace(pattern, "*", segment, 1)
	ok, err := doublestar.Match(pattern, host)
	if err != nil || !ok {
		return "", false
	}
	return host, true
}

// Verify probes candidates in order and stops at the first success. Probe
// failures are logged and skipped. A cancelled context ends the loop with a
// not-found result.
func (v *Verifier) Verify(ctx context.Context, candidates []domain.CandidateDomain, ind domain.TargetIndicator) Result {
	if ind.SubdomainPattern == "" || len(candidates) == 0 {
		return Result{}
	}
	g := v.gateFor(ind)

	for _, c := range candidates {
		host, ok := Host(ind.SubdomainPattern, c.Segment)
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			v.metrics.Probe("cancelled")
			return Result{}
		}
		found, err := v.probeOne(ctx, g, v.scheme+"://"+host)
		if ctx.Err() != nil {
			v.metrics.Probe("cancelled")
			return Result{}
		}
		if err != nil {
			v.metrics.Probe("error")
			v.logger.Debug("probe.failed", "indicator", ind.Name, "host", host, "transform", c.Transform, "error", err)
			continue
		}
		if found {
			v.metrics.Probe("found")
			v.logger.Info("probe.found", "indicator", ind.Name, "host", host, "transform", c.Transform)
			return Result{Found: true, Proof: v.scheme + "://" + host, Host: host}
		}
		v.metrics.Probe("miss")
	}
	return Result{}
}

func (v *Verifier) probeOne(ctx context.Context, g *gate, rawURL string) (bool, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer g.sem.Release(1)
	if err := g.limiter.Wait(ctx); err != nil {
		return false, err
	}

	pctx := ctx
	if v.timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	return v.prober.Probe(pctx, rawURL)
}
