package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpErrorFormatting(t *testing.T) {
	err := ConfigurationError("indicators.validate", "Bullhorn", ErrInvalidIndicator)
	assert.Equal(t, "indicators.validate: configuration (Bullhorn): invalid indicator", err.Error())

	var nilErr *OpError
	assert.Equal(t, "<nil>", nilErr.Error())
	assert.Nil(t, nilErr.Unwrap())
}

func TestIsKindThroughWrapping(t *testing.T) {
	base := NetworkFailure("probe.head", "acme.example.com", errors.New("connection refused"))
	wrapped := fmt.Errorf("verify: %w", base)

	require.True(t, IsKind(wrapped, KindNetwork))
	assert.False(t, IsKind(wrapped, KindConfiguration))
	assert.False(t, IsKind(errors.New("plain"), KindNetwork))
}

func TestMethodConfidenceOrdering(t *testing.T) {
	assert.Greater(t, MethodSubdomain.Confidence(), MethodLink.Confidence())
	assert.Greater(t, MethodLink.Confidence(), MethodKeyword.Confidence())
	assert.Greater(t, MethodKeyword.Confidence(), Method("other").Confidence())
	assert.Equal(t, "link", ConfidenceLink.String())
}

func TestCloneDoesNotShareMaps(t *testing.T) {
	site := "https://acme.com"
	lead := CompanyLead{
		Website:           &site,
		TargetIndicators:  map[string]bool{"Bullhorn": true},
		IndicatorEvidence: map[string]IndicatorEvidence{"Bullhorn": {Sources: []string{"news"}}},
		Sources:           []string{"news"},
	}
	cp := lead.Clone()
	cp.TargetIndicators["Other"] = true
	ev := cp.IndicatorEvidence["Bullhorn"]
	ev.Sources[0] = "changed"
	*cp.Website = "https://other.com"

	assert.NotContains(t, lead.TargetIndicators, "Other")
	assert.Equal(t, "news", lead.IndicatorEvidence["Bullhorn"].Sources[0])
	assert.Equal(t, "https://acme.com", *lead.Website)
}
