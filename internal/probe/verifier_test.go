package probe

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadscout/internal/domain"
	"leadscout/internal/normalize"
)

type fakeProber struct {
	mu      sync.Mutex
	calls   []string
	at      []time.Time
	answers map[string]bool
	errs    map[string]error
	hook    func(ctx context.Context, url string)
}

func (f *fakeProber) Probe(ctx context.Context, url string) (bool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.at = append(f.at, time.Now())
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(ctx, url)
	}
	if err := f.errs[url]; err != nil {
		return false, err
	}
	return f.answers[url], nil
}

func (f *fakeProber) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

var avionte = domain.TargetIndicator{Name: "Avionté", SubdomainPattern: "*.myavionte.com"}

func TestHost(t *testing.T) {
	host, ok := Host("*.myavionte.com", "primlogix")
	require.True(t, ok)
	assert.Equal(t, "primlogix.myavionte.com", host)

	_, ok = Host("*.myavionte.com", "a.b")
	assert.False(t, ok)
	_, ok = Host("*.myavionte.com", "")
	assert.False(t, ok)
	_, ok = Host("", "primlogix")
	assert.False(t, ok)
}

func TestVerifyFindsSubdomain(t *testing.T) {
	fp := &fakeProber{answers: map[string]bool{"https://primlogix.myavionte.com": true}}
	v := NewVerifier(fp, WithDelay(0))

	res := v.Verify(context.Background(), normalize.Candidates("Primlogix", ""), avionte)

	require.True(t, res.Found)
	assert.Equal(t, "https://primlogix.myavionte.com", res.Proof)
}

func TestVerifyShortCircuitsOnFirstSuccess(t *testing.T) {
	fp := &fakeProber{answers: map[string]bool{
		"https://primlogix.myavionte.com": true,
		"https://prim.myavionte.com":      true,
	}}
	v := NewVerifier(fp, WithDelay(0))

	res := v.Verify(context.Background(), normalize.Candidates("Prim Logix", "https://www.primlogix.com"), avionte)

	require.True(t, res.Found)
	assert.Equal(t, "https://primlogix.myavionte.com", res.Proof)
	assert.Equal(t, []string{"https://primlogix.myavionte.com"}, fp.Calls())
}

func TestVerifyAllCandidatesFail(t *testing.T) {
	candidates := []domain.CandidateDomain{
		{Segment: "one"}, {Segment: "two"}, {Segment: "three"}, {Segment: "four"}, {Segment: "five"},
	}
	fp := &fakeProber{errs: map[string]error{
		"https://one.myavionte.com":   domain.NetworkFailure("probe.HEAD", "one", errors.New("no such host")),
		"https://three.myavionte.com": context.DeadlineExceeded,
	}}
	v := NewVerifier(fp, WithDelay(0))

	res := v.Verify(context.Background(), candidates, avionte)

	assert.False(t, res.Found)
	assert.Empty(t, res.Proof)
	assert.Len(t, fp.Calls(), 5)
}

func TestVerifyWithoutPatternDoesNothing(t *testing.T) {
	fp := &fakeProber{}
	v := NewVerifier(fp)
	res := v.Verify(context.Background(), normalize.Candidates("Acme", ""), domain.TargetIndicator{Name: "Keywords"})
	assert.False(t, res.Found)
	assert.Empty(t, fp.Calls())
}

func TestVerifyEnforcesDelayPerIndicator(t *testing.T) {
	fp := &fakeProber{}
	delay := 40 * time.Millisecond
	v := NewVerifier(fp, WithDelay(delay))

	candidates := []domain.CandidateDomain{{Segment: "a"}, {Segment: "b"}, {Segment: "c"}}
	v.Verify(context.Background(), candidates, avionte)
	// a second company against the same indicator shares the gate
	v.Verify(context.Background(), []domain.CandidateDomain{{Segment: "d"}}, avionte)

	fp.mu.Lock()
	defer fp.mu.Unlock()
	require.Len(t, fp.at, 4)
	for i := 1; i < len(fp.at); i++ {
		// the limiter allows a small amount of scheduling slack
		assert.GreaterOrEqual(t, fp.at[i].Sub(fp.at[i-1]), delay-5*time.Millisecond)
	}
}

func TestVerifyDifferentIndicatorsRunIndependently(t *testing.T) {
	inFlight := make(chan string, 2)
	release := make(chan struct{})
	fp := &fakeProber{hook: func(ctx context.Context, url string) {
		inFlight <- url
		select {
		case <-release:
		case <-ctx.Done():
		}
	}}
	v := NewVerifier(fp, WithDelay(time.Second), WithTimeout(5*time.Second))
	mindscope := domain.TargetIndicator{Name: "Mindscope", SubdomainPattern: "*.mindscope.com"}

	var wg sync.WaitGroup
	for _, ind := range []domain.TargetIndicator{avionte, mindscope} {
		wg.Add(1)
		go func(ind domain.TargetIndicator) {
			defer wg.Done()
			v.Verify(context.Background(), []domain.CandidateDomain{{Segment: "acme"}}, ind)
		}(ind)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-inFlight:
		case <-time.After(2 * time.Second):
			t.Fatal("probes for different indicators were serialized")
		}
	}
	close(release)
	wg.Wait()
}

func TestVerifySameIndicatorSerialized(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	fp := &fakeProber{hook: func(ctx context.Context, url string) {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	}}
	v := NewVerifier(fp, WithDelay(time.Millisecond))

	var wg sync.WaitGroup
	for _, seg := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(seg string) {
			defer wg.Done()
			v.Verify(context.Background(), []domain.CandidateDomain{{Segment: seg}}, avionte)
		}(seg)
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestGateKey(t *testing.T) {
	assert.Equal(t, "myavionte.com", gateKey(avionte))
	assert.Equal(t, "myavionte.com", gateKey(domain.TargetIndicator{Name: "Avionté EU", SubdomainPattern: "*.MyAvionte.com"}))
	assert.Equal(t, "indicator:bullhorn", gateKey(domain.TargetIndicator{Name: "Bullhorn"}))
}

func TestVerifyIndicatorsSharingVendorDomainAreSpaced(t *testing.T) {
	fp := &fakeProber{}
	delay := 40 * time.Millisecond
	v := NewVerifier(fp, WithDelay(delay))
	alias := domain.TargetIndicator{Name: "Avionté Legacy", SubdomainPattern: "*.myavionte.com"}

	var wg sync.WaitGroup
	for _, ind := range []domain.TargetIndicator{avionte, alias} {
		wg.Add(1)
		go func(ind domain.TargetIndicator) {
			defer wg.Done()
			v.Verify(context.Background(), []domain.CandidateDomain{{Segment: "acme"}, {Segment: "beta"}}, ind)
		}(ind)
	}
	wg.Wait()

	fp.mu.Lock()
	defer fp.mu.Unlock()
	require.Len(t, fp.at, 4)
	at := append([]time.Time(nil), fp.at...)
	slices.SortFunc(at, func(a, b time.Time) int { return a.Compare(b) })
	for i := 1; i < len(at); i++ {
		assert.GreaterOrEqual(t, at[i].Sub(at[i-1]), delay-5*time.Millisecond)
	}
}

func TestVerifyCancelledReportsNotFound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fp := &fakeProber{hook: func(context.Context, string) { cancel() }}
	v := NewVerifier(fp, WithDelay(0))
	fp.answers = map[string]bool{"https://one.myavionte.com": true}

	res := v.Verify(ctx, []domain.CandidateDomain{{Segment: "one"}, {Segment: "two"}}, avionte)

	assert.False(t, res.Found)
	assert.Len(t, fp.Calls(), 1)
}
