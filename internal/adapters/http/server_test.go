package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadscout/internal/domain"
	"leadscout/internal/indicators"
	"leadscout/internal/leads"
	"leadscout/internal/legacy"
	"leadscout/internal/logging"
	"leadscout/internal/metrics"
	"leadscout/internal/ports"
	"leadscout/internal/probe"
	"leadscout/internal/scan"
	"leadscout/internal/services/discovery"
	"leadscout/internal/services/verification"
)

type staticIndicators struct{ snap *indicators.Snapshot }

func (s staticIndicators) Current() *indicators.Snapshot { return s.snap }

type liveHosts map[string]bool

func (h liveHosts) Probe(_ context.Context, url string) (bool, error) { return h[url], nil }

type noPages struct{}

func (noPages) Fetch(_ context.Context, url string) (*domain.Page, error) {
	return nil, domain.NetworkFailure("fetch", url, errors.New("offline"))
}

type memQueue struct {
	mu   sync.Mutex
	jobs map[string]ports.ObservationJob
	done map[string]string
}

func (q *memQueue) Enqueue(_ context.Context, obs domain.Observation) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := "job-" + strconv.Itoa(len(q.jobs)+1)
	q.jobs[id] = ports.ObservationJob{ID: id, Observation: obs}
	return id, nil
}

func (q *memQueue) ClaimNext(context.Context) (ports.ObservationJob, bool, error) {
	return ports.ObservationJob{}, false, nil
}

func (q *memQueue) MarkCompleted(_ context.Context, jobID, leadKey string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.done[jobID] = leadKey
	return nil
}

func (q *memQueue) MarkFailed(context.Context, string, string) error { return nil }

func (q *memQueue) StartInline(_ context.Context, jobID string) (ports.ObservationJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return job, domain.NotFound("jobs.start", jobID)
	}
	return job, nil
}

func newTestServer(t *testing.T, queue ports.ObservationQueue) *httptest.Server {
	t.Helper()
	ind := staticIndicators{indicators.NewSnapshot(indicators.Defaults())}
	m := metrics.New()
	v := probe.NewVerifier(liveHosts{"https://primlogix.myavionte.com": true}, probe.WithDelay(0), probe.WithMetrics(m))
	verifier := verification.New(v, noPages{}, scan.New(true, true), logging.Discard(), m)
	asm := leads.New(leads.WithMetrics(m), leads.WithLogger(logging.Discard()))
	disc := discovery.New(ind, verifier, asm, nil, logging.Discard())

	srv := New(Deps{
		Indicators: ind,
		Verifier:   verifier,
		Discovery:  disc,
		Ingester:   disc,
		Leads:      asm,
		Queue:      queue,
		Legacy:     legacy.New(ind, verifier),
		Metrics:    m,
		Logger:     logging.Discard(),
	})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthzAndMetrics(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, resp)["status"])

	postJSON(t, ts.URL+"/v1/verify", map[string]string{"company_name": "Primlogix", "indicator": "avionté"})
	resp = get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), `leadscout_probes_total{outcome="found"} 1`)
}

func TestGetIndicators(t *testing.T) {
	ts := newTestServer(t, nil)
	body := decodeBody[struct {
		Indicators []domain.TargetIndicator `json:"indicators"`
		Rejected   []rejection              `json:"rejected"`
	}](t, get(t, ts.URL+"/v1/indicators"))
	require.Len(t, body.Indicators, 3)
	assert.Equal(t, "Avionté", body.Indicators[0].Name)
	assert.Empty(t, body.Rejected)
}

func TestPostVerify(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/verify", map[string]string{"company_name": "Primlogix", "indicator": "Avionté"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	single := decodeBody[struct {
		Matched  bool                     `json:"matched"`
		Evidence domain.IndicatorEvidence `json:"indicator_evidence"`
	}](t, resp)
	assert.True(t, single.Matched)
	assert.Equal(t, "https://primlogix.myavionte.com", single.Evidence.Proof)

	resp = postJSON(t, ts.URL+"/v1/verify", map[string]string{"company_name": "Primlogix"})
	all := decodeBody[verification.CheckResult](t, resp)
	assert.Len(t, all.Evidence, 1)

	resp = postJSON(t, ts.URL+"/v1/verify", map[string]string{"company_name": "Primlogix", "indicator": "JobDiva"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/v1/verify", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostScan(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := postJSON(t, ts.URL+"/v1/scan", map[string]string{"page_text": "Log in at https://acme.mindscope.com/portal"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]map[string]domain.IndicatorEvidence](t, resp)
	ev, ok := body["indicator_evidence"]["Mindscope"]
	require.True(t, ok)
	assert.Equal(t, domain.MethodLink, ev.Method)
}

func TestObservationsInlineAndLeads(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/observations", domain.Observation{
		CompanyName: "Primlogix", Website: "primlogix.com", Source: "places",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	lead := decodeBody[domain.CompanyLead](t, resp)
	assert.True(t, lead.TargetIndicators["Avionté"])
	assert.Equal(t, "primlogix|primlogix", lead.Key)

	resp = postJSON(t, ts.URL+"/v1/observations", domain.Observation{Source: "reddit"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	list := decodeBody[struct {
		Leads []domain.CompanyLead `json:"leads"`
		Count int                  `json:"count"`
	}](t, get(t, ts.URL+"/v1/leads?indicator="+url.QueryEscape("Avionté")))
	assert.Equal(t, 1, list.Count)

	resp = get(t, ts.URL+"/v1/leads/"+url.PathEscape(lead.Key))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, lead.Key, decodeBody[domain.CompanyLead](t, resp).Key)

	assert.Equal(t, http.StatusNotFound, get(t, ts.URL+"/v1/leads/nobody").StatusCode)

	resp = postJSON(t, ts.URL+"/v1/leads/finalize", nil)
	final := decodeBody[struct {
		Leads []domain.CompanyLead `json:"leads"`
	}](t, resp)
	require.Len(t, final.Leads, 1)
	assert.Equal(t, domain.LeadFinal, final.Leads[0].State)
}

func TestObservationsQueued(t *testing.T) {
	q := &memQueue{jobs: map[string]ports.ObservationJob{}, done: map[string]string{}}
	ts := newTestServer(t, q)

	resp := postJSON(t, ts.URL+"/v1/observations", domain.Observation{CompanyName: "Acme", Source: "news"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "job-1", decodeBody[map[string]string](t, resp)["job_id"])

	resp = postJSON(t, ts.URL+"/v1/observations?wait=true", domain.Observation{CompanyName: "Primlogix", Source: "places"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	lead := decodeBody[domain.CompanyLead](t, resp)
	assert.Equal(t, "primlogix", lead.Key)
	assert.Equal(t, "primlogix", q.done["job-2"])
}

func TestLegacyAvionte(t *testing.T) {
	ts := newTestServer(t, nil)
	body := decodeBody[map[string]any](t, get(t, ts.URL+"/v1/legacy/avionte?domain=primlogix.com"))
	assert.Equal(t, true, body["found"])
	assert.Equal(t, "https://primlogix.myavionte.com", body["evidence"])

	body = decodeBody[map[string]any](t, get(t, ts.URL+"/v1/legacy/avionte?domain=acme.com"))
	assert.Equal(t, false, body["found"])
	assert.Nil(t, body["evidence"])

	assert.Equal(t, http.StatusBadRequest, get(t, ts.URL+"/v1/legacy/avionte").StatusCode)
}
