package domain

import "time"

// Core records shared by the matcher, the assembler and the adapters. JSON tags
// are the stable field set handed to sinks.

// Method is the way an indicator was detected.
type Method string

const (
	MethodSubdomain Method = "subdomain"
	MethodLink      Method = "link"
	MethodKeyword   Method = "keyword"
)

// Confidence orders detection methods. Higher wins.
type Confidence int

const (
	ConfidenceNone Confidence = iota
	ConfidenceKeyword
	ConfidenceLink
	ConfidenceSubdomain
)

// Confidence returns the tier of a method; unknown methods rank below keyword.
func (m Method) Confidence() Confidence {
	switch m {
	case MethodSubdomain:
		return ConfidenceSubdomain
	case MethodLink:
		return ConfidenceLink
	case MethodKeyword:
		return ConfidenceKeyword
	}
	return ConfidenceNone
}

func (c Confidence) String() string {
	switch c {
	case ConfidenceSubdomain:
		return "subdomain"
	case ConfidenceLink:
		return "link"
	case ConfidenceKeyword:
		return "keyword"
	}
	return "none"
}

// TargetIndicator is a named software signature.
type TargetIndicator struct {
	Name             string   `json:"name" yaml:"name"`
	SubdomainPattern string   `json:"subdomain_pattern,omitempty" yaml:"subdomain_pattern,omitempty"`
	Keywords         []string `json:"keywords" yaml:"keywords"`
	LinkPatterns     []string `json:"link_patterns" yaml:"link_patterns"`
}

// Transform names the rule that produced a candidate segment.
type Transform string

const (
	TransformWebsite            Transform = "website"
	TransformSpacesRemoved      Transform = "spaces-removed"
	TransformHyphensRemoved     Transform = "hyphens-removed"
	TransformUnderscoresRemoved Transform = "underscores-removed"
	TransformFirstWord          Transform = "first-word"
)

// CandidateDomain is a company segment to substitute into a subdomain pattern.
type CandidateDomain struct {
	Segment   string    `json:"segment"`
	Transform Transform `json:"transform"`
}

// IndicatorEvidence is the kept proof for one (company, indicator) pair.
type IndicatorEvidence struct {
	Indicator  string     `json:"indicator"`
	Matched    bool       `json:"matched"`
	Method     Method     `json:"method"`
	Proof      string     `json:"proof"`
	Confidence Confidence `json:"confidence"`
	Source     string     `json:"source,omitempty"`
	Sources    []string   `json:"sources,omitempty"`
}

// NewEvidence builds a matched finding with the confidence implied by method.
func NewEvidence(indicator string, method Method, proof string) IndicatorEvidence {
	return IndicatorEvidence{
		Indicator:  indicator,
		Matched:    true,
		Method:     method,
		Proof:      proof,
		Confidence: method.Confidence(),
	}
}

// Contact holds the contact details a source or page scrape produced.
type Contact struct {
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

func (c Contact) Empty() bool { return c.Email == "" && c.Phone == "" && c.Address == "" }

// Company identifies the company under verification.
type Company struct {
	Name    string `json:"company_name"`
	Website string `json:"website,omitempty"`
}

// Observation is one discovery source's report about a company.
type Observation struct {
	CompanyName string                       `json:"company_name"`
	Website     string                       `json:"website,omitempty"`
	Source      string                       `json:"source"`
	PageText    string                       `json:"page_text,omitempty"`
	Evidence    map[string]IndicatorEvidence `json:"indicator_evidence,omitempty"`
	Contact     Contact                      `json:"contact,omitempty"`
	Description string                       `json:"description,omitempty"`
}

func (o Observation) Company() Company {
	return Company{Name: o.CompanyName, Website: o.Website}
}

// LeadState tracks a lead through a discovery run.
type LeadState string

const (
	LeadNew       LeadState = "NEW"
	LeadEnriching LeadState = "ENRICHING"
	LeadFinal     LeadState = "FINAL"
)

// CompanyLead aggregates indicator confirmations across sources.
type CompanyLead struct {
	Key               string                       `json:"key"`
	CompanyName       string                       `json:"company_name"`
	Website           *string                      `json:"website"`
	BaseDomain        string                       `json:"base_domain,omitempty"`
	TargetIndicators  map[string]bool              `json:"target_indicators"`
	IndicatorEvidence map[string]IndicatorEvidence `json:"indicator_evidence"`
	Sources           []string                     `json:"source"`
	Score             float64                      `json:"score"`
	State             LeadState                    `json:"state"`
	Contact           Contact                      `json:"contact"`
	Description       string                       `json:"description,omitempty"`
	Ambiguous         bool                         `json:"ambiguous,omitempty"`
	AlternateDomains  []string                     `json:"alternate_domains,omitempty"`
	Version           int64                        `json:"version"`
}

// Indicators lists confirmed indicator names.
func (l CompanyLead) Indicators() []string {
	var out []string
	for name, ok := range l.TargetIndicators {
		if ok {
			out = append(out, name)
		}
	}
	return out
}

// Clone returns a deep copy so callers never share maps with the assembler.
func (l CompanyLead) Clone() CompanyLead {
	out := l
	if l.Website != nil {
		w := *l.Website
		out.Website = &w
	}
	out.TargetIndicators = make(map[string]bool, len(l.TargetIndicators))
	for k, v := range l.TargetIndicators {
		out.TargetIndicators[k] = v
	}
	out.IndicatorEvidence = make(map[string]IndicatorEvidence, len(l.IndicatorEvidence))
	for k, v := range l.IndicatorEvidence {
		v.Sources = append([]string(nil), v.Sources...)
		out.IndicatorEvidence[k] = v
	}
	out.Sources = append([]string(nil), l.Sources...)
	out.AlternateDomains = append([]string(nil), l.AlternateDomains...)
	return out
}

// Link is a hyperlink found on a page.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}

// Page is fetched page content reduced to what the scanner needs.
type Page struct {
	URL         string
	Text        string
	Links       []Link
	Source      string
	Description string
	FetchedAt   time.Time
}
