// Package leads merges observations from many sources into one lead per
// company identity.
package leads

import (
	"log/slog"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"

	"leadscout/internal/domain"
	"leadscout/internal/evidence"
	"leadscout/internal/metrics"
	"leadscout/internal/normalize"
)

type entry struct {
	mu   sync.Mutex
	lead domain.CompanyLead
}

// Assembler owns every lead of a discovery run. Merges for one identity key
// are serialized; merges for different keys proceed in parallel.
type Assembler struct {
	mu      sync.Mutex
	leads   map[string]*entry
	byName  map[string]map[string]struct{}
	aliases map[string]string

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Assembler)

func WithLogger(l *slog.Logger) Option { return func(a *Assembler) { a.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(a *Assembler) { a.metrics = m } }

func New(opts ...Option) *Assembler {
	a := &Assembler{
		leads:   make(map[string]*entry),
		byName:  make(map[string]map[string]struct{}),
		aliases: make(map[string]string),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// resolve finds or creates the entry for an observation. A name-only lead and
// a website-keyed lead with the same name are one company whichever arrives
// first: an observation without a website joins the single website-keyed
// lead sharing its name, and the first website-keyed observation for a name
// known only by name takes over that lead under its own key.
func (a *Assembler) resolve(obs domain.Observation) (*entry, bool) {
	nameKey := normalize.NameKey(obs.CompanyName)
	key := normalize.IdentityKey(obs.CompanyName, obs.Website)

	a.mu.Lock()
	defer a.mu.Unlock()

	if e, ok := a.leads[key]; ok {
		return e, false
	}
	if strings.TrimSpace(obs.Website) == "" {
		if keys := a.byName[nameKey]; len(keys) == 1 {
			for k := range keys {
				return a.leads[k], false
			}
		}
	} else if e, ok := a.leads[nameKey]; ok && len(a.byName[nameKey]) == 1 && a.rekey(e, nameKey, key) {
		return e, false
	}

	e := &entry{lead: domain.CompanyLead{
		Key:               key,
		CompanyName:       strings.TrimSpace(obs.CompanyName),
		TargetIndicators:  make(map[string]bool),
		IndicatorEvidence: make(map[string]domain.IndicatorEvidence),
		State:             domain.LeadNew,
	}}
	a.leads[key] = e
	delete(a.aliases, key)
	if a.byName[nameKey] == nil {
		a.byName[nameKey] = make(map[string]struct{})
	}
	a.byName[nameKey][key] = struct{}{}
	a.metrics.SetLeads(len(a.leads))
	return e, true
}

// rekey moves a name-only entry to a website key and leaves an alias behind.
// Callers hold a.mu.
func (a *Assembler) rekey(e *entry, from, to string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lead.Website != nil {
		return false
	}
	e.lead.Key = to
	delete(a.leads, from)
	a.leads[to] = e
	a.aliases[from] = to
	a.byName[from] = map[string]struct{}{to: {}}
	a.logger.Debug("lead.rekeyed", "from", from, "to", to)
	return true
}

// Merge folds one observation into its lead and returns a copy of the result.
// Repeating an observation already merged leaves the lead untouched.
func (a *Assembler) Merge(obs domain.Observation) (domain.CompanyLead, error) {
	if strings.TrimSpace(obs.CompanyName) == "" || normalize.NameKey(obs.CompanyName) == "" {
		a.metrics.Merge("rejected")
		return domain.CompanyLead{}, domain.InvalidObservation("leads.merge", "missing company name")
	}

	e, created := a.resolve(obs)

	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.lead.Clone()
	a.apply(&e.lead, obs)
	e.lead.Score = Score(e.lead)

	changed := created || !sameContent(before, e.lead.Clone())
	switch {
	case created:
		e.lead.Version = 1
		a.metrics.Merge("created")
		a.logger.Debug("lead.created", "key", e.lead.Key, "source", obs.Source)
	case changed:
		e.lead.Version++
		if e.lead.State == domain.LeadNew {
			e.lead.State = domain.LeadEnriching
		}
		a.metrics.Merge("updated")
		a.logger.Debug("lead.merged", "key", e.lead.Key, "source", obs.Source, "score", e.lead.Score)
	default:
		a.metrics.Merge("unchanged")
	}
	return e.lead.Clone(), nil
}

func (a *Assembler) apply(lead *domain.CompanyLead, obs domain.Observation) {
	source := strings.TrimSpace(obs.Source)
	if source != "" && !slices.Contains(lead.Sources, source) {
		lead.Sources = append(lead.Sources, source)
		slices.Sort(lead.Sources)
	}

	if site := strings.TrimSpace(obs.Website); site != "" {
		base := normalize.BaseDomain(site)
		switch {
		case lead.Website == nil:
			lead.Website = &site
			lead.BaseDomain = base
		case base != "" && base != lead.BaseDomain && !slices.Contains(lead.AlternateDomains, base):
			lead.Ambiguous = true
			lead.AlternateDomains = append(lead.AlternateDomains, base)
			a.logger.Warn("lead.identity_conflict", "key", lead.Key,
				"error", domain.IdentityConflict(lead.Key, lead.BaseDomain, base))
		}
	}

	names := make([]string, 0, len(obs.Evidence))
	for name := range obs.Evidence {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ev := obs.Evidence[name]
		if !evidence.Valid(ev) {
			if ev.Matched {
				a.logger.Debug("evidence.ignored", "key", lead.Key, "indicator", name, "method", ev.Method)
			}
			continue
		}
		ev.Indicator = name
		if ev.Source == "" {
			ev.Source = source
		}
		if kept, changed := evidence.Prefer(lead.IndicatorEvidence[name], ev); changed {
			lead.IndicatorEvidence[name] = kept
		}
		lead.TargetIndicators[name] = true
	}

	if lead.Contact.Email == "" {
		lead.Contact.Email = obs.Contact.Email
	}
	if lead.Contact.Phone == "" {
		lead.Contact.Phone = obs.Contact.Phone
	}
	if lead.Contact.Address == "" {
		lead.Contact.Address = obs.Contact.Address
	}
	if lead.Description == "" {
		lead.Description = strings.TrimSpace(obs.Description)
	}
}

func sameContent(a, b domain.CompanyLead) bool {
	a.Version, b.Version = 0, 0
	a.State, b.State = "", ""
	return reflect.DeepEqual(a, b)
}

func (a *Assembler) lookup(key string) (*entry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.leads[key]; ok {
		return e, true
	}
	e, ok := a.leads[a.aliases[key]]
	return e, ok
}

func (a *Assembler) entries() []*entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*entry, 0, len(a.leads))
	for _, e := range a.leads {
		out = append(out, e)
	}
	return out
}

// Snapshot returns a copy of one lead. A key retired by a merge still finds
// the lead that replaced it.
func (a *Assembler) Snapshot(key string) (domain.CompanyLead, bool) {
	e, ok := a.lookup(key)
	if !ok {
		return domain.CompanyLead{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lead.Clone(), true
}

// All returns copies of every lead, highest score first, then by key.
func (a *Assembler) All() []domain.CompanyLead {
	es := a.entries()
	out := make([]domain.CompanyLead, 0, len(es))
	for _, e := range es {
		e.mu.Lock()
		out = append(out, e.lead.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.leads)
}

// Finalize marks one lead FINAL. Later merges still add evidence but the
// state stays FINAL.
func (a *Assembler) Finalize(key string) (domain.CompanyLead, error) {
	e, ok := a.lookup(key)
	if !ok {
		return domain.CompanyLead{}, domain.NotFound("leads.finalize", key)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	finalize(&e.lead)
	return e.lead.Clone(), nil
}

// FinalizeAll marks every lead FINAL and returns the ones that changed state.
func (a *Assembler) FinalizeAll() []domain.CompanyLead {
	var out []domain.CompanyLead
	for _, e := range a.entries() {
		e.mu.Lock()
		if finalize(&e.lead) {
			out = append(out, e.lead.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func finalize(lead *domain.CompanyLead) bool {
	if lead.State == domain.LeadFinal {
		return false
	}
	lead.State = domain.LeadFinal
	lead.Version++
	return true
}

// Restore inserts previously persisted leads whose keys are not yet held and
// returns how many were added. A stored name-only lead whose name now has
// exactly one website-keyed lead is folded into it.
func (a *Assembler) Restore(stored ...domain.CompanyLead) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	added := 0
	for _, lead := range stored {
		if lead.Key == "" || a.leads[lead.Key] != nil || a.aliases[lead.Key] != "" {
			continue
		}
		lead = lead.Clone()
		if lead.TargetIndicators == nil {
			lead.TargetIndicators = make(map[string]bool)
		}
		if lead.IndicatorEvidence == nil {
			lead.IndicatorEvidence = make(map[string]domain.IndicatorEvidence)
		}
		a.leads[lead.Key] = &entry{lead: lead}
		nameKey := normalize.NameKey(lead.CompanyName)
		if a.byName[nameKey] == nil {
			a.byName[nameKey] = make(map[string]struct{})
		}
		a.byName[nameKey][lead.Key] = struct{}{}
		added++
	}
	for nameKey, keys := range a.byName {
		a.foldNameOnly(nameKey, keys)
	}
	a.metrics.SetLeads(len(a.leads))
	return added
}

// foldNameOnly merges the name-only lead for nameKey into the only other lead
// with that name, when that lead has a website. Callers hold a.mu.
func (a *Assembler) foldNameOnly(nameKey string, keys map[string]struct{}) {
	src, ok := a.leads[nameKey]
	if !ok || len(keys) != 2 {
		return
	}
	var dstKey string
	for k := range keys {
		if k != nameKey {
			dstKey = k
		}
	}
	dst := a.leads[dstKey]
	if dst == nil {
		return
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	dst.mu.Lock()
	defer dst.mu.Unlock()
	if src.lead.Website != nil || dst.lead.Website == nil {
		return
	}
	absorb(&dst.lead, src.lead)
	delete(a.leads, nameKey)
	delete(keys, nameKey)
	a.aliases[nameKey] = dstKey
	a.logger.Info("lead.folded", "from", nameKey, "to", dstKey)
}

// absorb merges src into dst the way a merge of src's observations would.
func absorb(dst *domain.CompanyLead, src domain.CompanyLead) {
	dst.Sources = slices.Compact(slices.Sorted(slices.Values(append(dst.Sources, src.Sources...))))
	names := make([]string, 0, len(src.IndicatorEvidence))
	for name := range src.IndicatorEvidence {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ev := src.IndicatorEvidence[name]
		if !src.TargetIndicators[name] || !evidence.Valid(ev) {
			continue
		}
		ev.Indicator = name
		if kept, changed := evidence.Prefer(dst.IndicatorEvidence[name], ev); changed {
			dst.IndicatorEvidence[name] = kept
		}
		dst.TargetIndicators[name] = true
	}
	if dst.Contact.Email == "" {
		dst.Contact.Email = src.Contact.Email
	}
	if dst.Contact.Phone == "" {
		dst.Contact.Phone = src.Contact.Phone
	}
	if dst.Contact.Address == "" {
		dst.Contact.Address = src.Contact.Address
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	dst.Score = Score(*dst)
	dst.Version = max(dst.Version, src.Version) + 1
	if dst.State == domain.LeadNew {
		dst.State = domain.LeadEnriching
	}
}
