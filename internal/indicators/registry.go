// Package indicators loads, validates and snapshots target indicator
// configuration. A Snapshot is immutable; reloading builds a new one.
package indicators

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"leadscout/internal/domain"
)

// Defaults is used when no indicator file exists.
func Defaults() []domain.TargetIndicator {
	return []domain.TargetIndicator{
		{
			Name:             "Avionté",
			SubdomainPattern: "*.myavionte.com",
			Keywords:         []string{"avionte", "avionté", "myavionte"},
			LinkPatterns:     []string{"avionte.com", "myavionte.com", "avionté.com"},
		},
		{
			Name:             "Mindscope",
			SubdomainPattern: "*.mindscope.com",
			Keywords:         []string{"mindscope"},
			LinkPatterns:     []string{"mindscope.com"},
		},
		{
			Name:             "Bullhorn",
			SubdomainPattern: "*.bullhorn.com",
			Keywords:         []string{"bullhorn"},
			LinkPatterns:     []string{"bullhorn.com"},
		},
	}
}

// Rejection records an indicator excluded from a run.
type Rejection struct {
	Name string `json:"name"`
	Err  error  `json:"-"`
}

// Snapshot is the immutable indicator set for one discovery run.
type Snapshot struct {
	indicators []domain.TargetIndicator
	byName     map[string]int
	rejected   []Rejection
	loadedAt   time.Time
	path       string
}

// NewSnapshot validates the given indicators. Invalid ones are excluded and
// reported through Rejected; the rest are kept in order.
func NewSnapshot(in []domain.TargetIndicator) *Snapshot {
	s := &Snapshot{byName: make(map[string]int, len(in)), loadedAt: time.Now().UTC()}
	for _, ind := range in {
		ind = clean(ind)
		if err := Validate(ind); err != nil {
			s.rejected = append(s.rejected, Rejection{Name: ind.Name, Err: err})
			continue
		}
		key := strings.ToLower(ind.Name)
		if _, dup := s.byName[key]; dup {
			s.rejected = append(s.rejected, Rejection{
				Name: ind.Name,
				Err:  domain.ConfigurationError("indicators.validate", ind.Name, fmt.Errorf("%w: duplicate name", domain.ErrInvalidIndicator)),
			})
			continue
		}
		s.byName[key] = len(s.indicators)
		s.indicators = append(s.indicators, ind)
	}
	return s
}

func clean(ind domain.TargetIndicator) domain.TargetIndicator {
	ind.Name = strings.TrimSpace(ind.Name)
	ind.SubdomainPattern = strings.ToLower(strings.TrimSpace(ind.SubdomainPattern))
	ind.Keywords = compact(ind.Keywords)
	ind.LinkPatterns = compact(ind.LinkPatterns)
	return ind
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate reports a ConfigurationError for a malformed indicator. An empty
// subdomain pattern is allowed and disables subdomain probing.
func Validate(ind domain.TargetIndicator) error {
	fail := func(msg string) error {
		return domain.ConfigurationError("indicators.validate", ind.Name, fmt.Errorf("%w: %s", domain.ErrInvalidIndicator, msg))
	}
	if strings.TrimSpace(ind.Name) == "" {
		return fail("empty name")
	}
	p := ind.SubdomainPattern
	if p == "" {
		return nil
	}
	switch n := strings.Count(p, "*"); {
	case n == 0:
		return fail(fmt.Sprintf("subdomain pattern %q has no wildcard", p))
	case n > 1:
		return fail(fmt.Sprintf("subdomain pattern %q has %d wildcards", p, n))
	}
	labels := strings.Split(p, ".")
	if labels[0] != "*" || len(labels) < 3 {
		return fail(fmt.Sprintf("subdomain pattern %q must be *.<vendor domain>", p))
	}
	for _, l := range labels[1:] {
		if l == "" {
			return fail(fmt.Sprintf("subdomain pattern %q has an empty label", p))
		}
	}
	if strings.ContainsAny(p, "/?[]{}\\ ") || !doublestar.ValidatePattern(p) {
		return fail(fmt.Sprintf("subdomain pattern %q is not a valid glob", p))
	}
	return nil
}

// Indicators returns the valid indicators in load order.
func (s *Snapshot) Indicators() []domain.TargetIndicator {
	out := make([]domain.TargetIndicator, len(s.indicators))
	copy(out, s.indicators)
	return out
}

// Get looks an indicator up by name, case-insensitively.
func (s *Snapshot) Get(name string) (domain.TargetIndicator, bool) {
	i, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return domain.TargetIndicator{}, false
	}
	return s.indicators[i], true
}

// Rejected lists the indicators excluded from this snapshot.
func (s *Snapshot) Rejected() []Rejection {
	out := make([]Rejection, len(s.rejected))
	copy(out, s.rejected)
	return out
}

func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }
func (s *Snapshot) Path() string        { return s.path }

// Parse decodes a YAML or JSON list of indicators.
func Parse(data []byte) (*Snapshot, error) {
	var list []domain.TargetIndicator
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, domain.ConfigurationError("indicators.parse", "", err)
	}
	return NewSnapshot(list), nil
}

// LoadFile reads an indicator file. A missing file yields the defaults.
func LoadFile(path string) (*Snapshot, error) {
	if path == "" {
		return NewSnapshot(Defaults()), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewSnapshot(Defaults()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read indicators: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, err
	}
	s.path = path
	return s, nil
}

// Save writes indicators as JSON or YAML depending on the file extension.
func Save(path string, list []domain.TargetIndicator) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(list, "", "  ")
	} else {
		data, err = yaml.Marshal(list)
	}
	if err != nil {
		return fmt.Errorf("marshal indicators: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create indicators dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write indicators: %w", err)
	}
	return nil
}

// Registry holds the current snapshot and swaps it on reload.
type Registry struct {
	path    string
	current atomic.Pointer[Snapshot]
	logger  *slog.Logger
	onLoad  func(*Snapshot)
}

// NewRegistry loads path once. A file that fails to parse is an error; a
// missing file falls back to the defaults.
func NewRegistry(path string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{path: path, logger: logger}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// OnLoad registers a callback invoked after every successful load. Register
// it before starting Watch.
func (r *Registry) OnLoad(fn func(*Snapshot)) {
	r.onLoad = fn
	if s := r.current.Load(); s != nil && fn != nil {
		fn(s)
	}
}

// Current returns the snapshot callers should capture for a run.
func (r *Registry) Current() *Snapshot { return r.current.Load() }

// Reload builds a new snapshot from disk. On failure the previous snapshot stays.
func (r *Registry) Reload() error {
	s, err := LoadFile(r.path)
	if err != nil {
		r.logger.Error("indicators.reload_failed", "path", r.path, "error", err)
		return err
	}
	for _, rej := range s.Rejected() {
		r.logger.Warn("indicators.rejected", "name", rej.Name, "error", rej.Err)
	}
	r.current.Store(s)
	r.logger.Info("indicators.loaded", "path", r.path, "count", len(s.indicators), "rejected", len(s.rejected))
	if r.onLoad != nil {
		r.onLoad(s)
	}
	return nil
}
