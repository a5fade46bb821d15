package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"leadscout/internal/domain"
)

func segments(cs []domain.CandidateDomain) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Segment)
	}
	return out
}

func TestBaseDomain(t *testing.T) {
	tests := []struct {
		name    string
		website string
		want    string
	}{
		{"scheme and www", "https://www.primlogix.com/about", "primlogix.com"},
		{"no scheme", "primlogix.com", "primlogix.com"},
		{"port and path", "http://acme.com:8443/careers?x=1", "acme.com"},
		{"subdomain", "https://jobs.acme.co.uk", "acme.co.uk"},
		{"uppercase", "HTTPS://WWW.ACME.COM", "acme.com"},
		{"empty", "", ""},
		{"ip", "http://10.0.0.1/", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseDomain(tt.website))
		})
	}
}

func TestSiteLabel(t *testing.T) {
	assert.Equal(t, "abc-staffing", SiteLabel("https://www.abc-staffing.co.uk/jobs"))
	assert.Equal(t, "primlogix", SiteLabel("primlogix.com"))
	assert.Equal(t, "", SiteLabel(""))
}

func TestCandidatesNameOnly(t *testing.T) {
	got := Candidates("ABC Staffing", "")
	assert.Equal(t, []string{"abcstaffing", "abc"}, segments(got))
	assert.Equal(t, domain.TransformSpacesRemoved, got[0].Transform)
	assert.Equal(t, domain.TransformFirstWord, got[1].Transform)
}

func TestCandidatesWebsiteFirst(t *testing.T) {
	got := Candidates("Prim Logix", "https://www.primlogix.com")
	assert.Equal(t, []string{"primlogix", "prim"}, segments(got))
	assert.Equal(t, domain.TransformWebsite, got[0].Transform)
}

func TestCandidatesPrecedence(t *testing.T) {
	got := Candidates("Tech-Force Staff_Group", "https://tfsg.io")
	// the underscore variant collapses into the spaces-removed one
	assert.Equal(t, []string{"tfsg", "tech-forcestaffgroup", "techforcestaffgroup", "tech-force"}, segments(got))
	assert.Equal(t, []domain.Transform{
		domain.TransformWebsite,
		domain.TransformSpacesRemoved,
		domain.TransformHyphensRemoved,
		domain.TransformFirstWord,
	}, []domain.Transform{got[0].Transform, got[1].Transform, got[2].Transform, got[3].Transform})
}

func TestCandidatesFoldAccents(t *testing.T) {
	got := Candidates("Café Staffing", "")
	assert.Equal(t, []string{"cafestaffing", "cafe"}, segments(got))
}

func TestCandidatesEmptyName(t *testing.T) {
	assert.Empty(t, Candidates("   ", ""))
}

func TestGuessDomain(t *testing.T) {
	assert.Equal(t, "abcstaffing.com", GuessDomain("ABC Staffing"))
	assert.Equal(t, "", GuessDomain("!!!"))
}

func TestNameKey(t *testing.T) {
	tests := map[string]string{
		"ABC Staffing":        "abcstaffing",
		"ABC Staffing, Inc.":  "abcstaffing",
		"abc staffing LLC":    "abcstaffing",
		"Avionté Partners Co": "aviontepartners",
		"Co":                  "co",
		"A&B Recruiting":      "abrecruiting",
	}
	for in, want := range tests {
		assert.Equal(t, want, NameKey(in), in)
	}
}

func TestIdentityKey(t *testing.T) {
	assert.Equal(t, "abcstaffing", IdentityKey("ABC Staffing", ""))
	assert.Equal(t, "abcstaffing|abc", IdentityKey("ABC Staffing Inc", "https://www.abc.com"))
	assert.Equal(t, IdentityKey("ABC Staffing", "abc.com"), IdentityKey("ABC Staffing", "abc.net"))
}
