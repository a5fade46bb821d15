package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"leadscout/internal/domain"
	"leadscout/internal/legacy"
	"leadscout/internal/metrics"
	"leadscout/internal/ports"
	"leadscout/internal/workers/discoveryrunner"
)

// Deps are the services the HTTP API exposes. Queue may be nil, in which
// case observations are always merged inline.
type Deps struct {
	Indicators ports.Indicators
	Verifier   ports.Verifier
	Discovery  ports.Discovery
	Ingester   discoveryrunner.Ingester
	Leads      ports.Leads
	Queue      ports.ObservationQueue
	Legacy     *legacy.Adapter
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

type Server struct {
	deps   Deps
	logger *slog.Logger
}

func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{deps: deps, logger: logger}
}

// Routes returns a chi.Router with every handler mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.getHealthz)
	r.Handle("/metrics", s.deps.Metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/indicators", s.getIndicators)
		r.Post("/verify", s.postVerify)
		r.Post("/scan", s.postScan)
		r.Post("/observations", s.postObservations)
		r.Get("/leads", s.getLeads)
		r.Get("/leads/{key}", s.getLead)
		r.Post("/leads/finalize", s.postFinalize)
		r.Get("/legacy/avionte", s.getLegacyAvionte)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) getHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type rejection struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

func (s *Server) getIndicators(w http.ResponseWriter, _ *http.Request) {
	snap := s.deps.Indicators.Current()
	rejected := make([]rejection, 0, len(snap.Rejected()))
	for _, rj := range snap.Rejected() {
		rejected = append(rejected, rejection{Name: rj.Name, Error: rj.Err.Error()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"indicators": snap.Indicators(),
		"rejected":   rejected,
		"loaded_at":  snap.LoadedAt(),
	})
}

type verifyRequest struct {
	CompanyName string `json:"company_name"`
	Website     string `json:"website"`
	PageText    string `json:"page_text"`
	Indicator   string `json:"indicator"`
}

// postVerify verifies one named indicator, or checks every indicator in the
// current snapshot when none is named.
func (s *Server) postVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CompanyName == "" && req.Website == "" {
		writeError(w, http.StatusBadRequest, "company_name or website is required")
		return
	}
	company := domain.Company{Name: req.CompanyName, Website: req.Website}
	snap := s.deps.Indicators.Current()

	if req.Indicator != "" {
		ind, ok := snap.Get(req.Indicator)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown indicator "+strconv.Quote(req.Indicator))
			return
		}
		ev := s.deps.Verifier.Verify(r.Context(), company, ind)
		writeJSON(w, http.StatusOK, map[string]any{"matched": ev != nil, "indicator_evidence": ev})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Verifier.Check(r.Context(), company, req.PageText, snap.Indicators()))
}

type scanRequest struct {
	PageText  string `json:"page_text"`
	Indicator string `json:"indicator"`
}

func (s *Server) postScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := s.deps.Indicators.Current()
	inds := snap.Indicators()
	if req.Indicator != "" {
		ind, ok := snap.Get(req.Indicator)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown indicator "+strconv.Quote(req.Indicator))
			return
		}
		inds = []domain.TargetIndicator{ind}
	}
	found := make(map[string]domain.IndicatorEvidence)
	for _, ind := range inds {
		if ev := s.deps.Verifier.Scan(req.PageText, ind); ev != nil {
			found[ind.Name] = *ev
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"indicator_evidence": found})
}

func (s *Server) postObservations(w http.ResponseWriter, r *http.Request) {
	var obs domain.Observation
	if err := decode(w, r, &obs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if obs.CompanyName == "" {
		writeError(w, http.StatusBadRequest, "company_name is required")
		return
	}
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	if s.deps.Queue == nil {
		lead, err := s.deps.Discovery.Ingest(r.Context(), obs)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lead)
		return
	}

	jobID, err := s.deps.Queue.Enqueue(r.Context(), obs)
	if err != nil {
		s.logger.Error("job.enqueue_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}
	if !wait {
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
		return
	}

	timeout := 30
	if v, err := strconv.Atoi(r.URL.Query().Get("timeout")); err == nil && v > 0 {
		timeout = v
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(timeout)*time.Second)
	defer cancel()
	// Use the same processing path the workers use.
	lead, err := discoveryrunner.ProcessInline(ctx, s.deps.Queue, s.deps.Ingester, jobID, s.logger)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) getLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minScore, _ := strconv.ParseFloat(q.Get("min_score"), 64)
	indicator := q.Get("indicator")
	state := domain.LeadState(q.Get("state"))

	out := make([]domain.CompanyLead, 0)
	for _, lead := range s.deps.Leads.All() {
		if lead.Score < minScore {
			continue
		}
		if indicator != "" && !lead.TargetIndicators[indicator] {
			continue
		}
		if state != "" && lead.State != state {
			continue
		}
		out = append(out, lead)
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": out, "count": len(out)})
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key")
		return
	}
	lead, ok := s.deps.Leads.Snapshot(key)
	if !ok {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) postFinalize(w http.ResponseWriter, r *http.Request) {
	if key := r.URL.Query().Get("key"); key != "" {
		lead, err := s.deps.Leads.Finalize(key)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lead)
		return
	}
	finalized := s.deps.Discovery.Finalize(r.Context())
	if finalized == nil {
		finalized = []domain.CompanyLead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": finalized, "count": len(finalized)})
}

// getLegacyAvionte serves the older Avionté-only check: ?domain= probes the
// subdomain, ?url= runs the full website check.
func (s *Server) getLegacyAvionte(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var found bool
	var proof string
	switch {
	case q.Get("domain") != "":
		found, proof = s.deps.Legacy.CheckAvionteSubdomain(r.Context(), q.Get("domain"))
	case q.Get("url") != "":
		found, proof = s.deps.Legacy.CheckWebsiteForAvionte(r.Context(), q.Get("url"))
	default:
		writeError(w, http.StatusBadRequest, "domain or url is required")
		return
	}
	resp := map[string]any{"found": found, "evidence": nil}
	if found {
		resp["evidence"] = proof
	}
	writeJSON(w, http.StatusOK, resp)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("missing body")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsKind(err, domain.KindInvalidObservation):
		writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsKind(err, domain.KindNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
