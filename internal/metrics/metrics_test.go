package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Probe("found")
		m.ScanMatch("link")
		m.Merge("created")
		m.SetLeads(3)
		m.SetIndicatorsRejected(1)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.Probe("miss")
	m.Probe("miss")
	m.Merge("updated")
	m.SetLeads(7)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, `leadscout_probes_total{outcome="miss"} 2`)
	assert.Contains(t, out, `leadscout_merges_total{result="updated"} 1`)
	assert.Contains(t, out, "leadscout_leads 7")
}
