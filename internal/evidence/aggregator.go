// Package evidence keeps the strongest finding per indicator.
package evidence

import (
	"slices"
	"sync"

	"leadscout/internal/domain"
)

// Prefer merges an incoming finding into the kept one and reports whether the
// kept record changed. Strictly higher confidence replaces the kept finding;
// on a tie the earlier finding stays. Reporting sources are always unioned.
// Confidence always comes from the method, and findings with an unknown
// method are ignored.
func Prefer(kept, incoming domain.IndicatorEvidence) (domain.IndicatorEvidence, bool) {
	if !Valid(incoming) {
		return kept, false
	}
	incoming = normalized(incoming)
	if !kept.Matched {
		return incoming, true
	}
	kept = normalized(kept)

	sources := union(kept.Sources, incoming.Sources)
	changed := len(sources) != len(kept.Sources)

	out := kept
	if incoming.Confidence > kept.Confidence {
		out = incoming
		changed = true
	}
	out.Sources = sources
	return out, changed
}

// Valid reports whether a finding is matched and uses a known method.
func Valid(ev domain.IndicatorEvidence) bool {
	return ev.Matched && ev.Method.Confidence() != domain.ConfidenceNone
}

func normalized(ev domain.IndicatorEvidence) domain.IndicatorEvidence {
	ev.Confidence = ev.Method.Confidence()
	ev.Sources = union(ev.Sources, nil)
	if ev.Source != "" && !slices.Contains(ev.Sources, ev.Source) {
		ev.Sources = union(ev.Sources, []string{ev.Source})
	}
	return ev
}

func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if s != "" {
			out = append(out, s)
		}
	}
	for _, s := range b {
		if s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Aggregator collects findings for one company from concurrent producers.
type Aggregator struct {
	mu   sync.Mutex
	kept map[string]domain.IndicatorEvidence
}

func NewAggregator() *Aggregator {
	return &Aggregator{kept: make(map[string]domain.IndicatorEvidence)}
}

// Offer applies Prefer against the kept finding for ev.Indicator.
func (a *Aggregator) Offer(ev *domain.IndicatorEvidence) bool {
	if ev == nil || !ev.Matched || ev.Indicator == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	next, changed := Prefer(a.kept[ev.Indicator], *ev)
	if changed {
		a.kept[ev.Indicator] = next
	}
	return changed
}

func (a *Aggregator) Kept(indicator string) (domain.IndicatorEvidence, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ev, ok := a.kept[indicator]
	return ev, ok
}

// All returns a copy of every kept finding keyed by indicator name.
func (a *Aggregator) All() map[string]domain.IndicatorEvidence {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]domain.IndicatorEvidence, len(a.kept))
	for k, v := range a.kept {
		v.Sources = slices.Clone(v.Sources)
		out[k] = v
	}
	return out
}
