package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/claude/fitdash/internal/derive"
	"github.com/claude/fitdash/internal/fetch"
	"github.com/claude/fitdash/internal/fitbit"
	"github.com/claude/fitdash/internal/models"
	"github.com/claude/fitdash/internal/storage"
)

var validate = validator.New()

type errorBody struct {
	Error          string `json:"error"`
	ProviderStatus int    `json:"provider_status,omitempty"`
}

// rangeQuery holds the query parameters shared by the view endpoints.
type rangeQuery struct {
	Granularity string `validate:"omitempty,oneof=daily today day weekly week"`
	Date        string `validate:"omitempty,datetime=2006-01-02"`
	Start       string `validate:"omitempty,datetime=2006-01-02"`
	End         string `validate:"omitempty,datetime=2006-01-02"`
	Refresh     bool
}

func (q *rangeQuery) bind(r *http.Request) error {
	v := r.URL.Query()
	q.Granularity = v.Get("granularity")
	q.Date = v.Get("date")
	q.Start = v.Get("start")
	q.End = v.Get("end")
	if s := v.Get("refresh"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("invalid refresh value %q", s)
		}
		q.Refresh = b
	}
	return validate.Struct(q)
}

func (s *Server) parseRange(r *http.Request) (models.Granularity, models.DateRange, bool, error) {
	var q rangeQuery
	if err := q.bind(r); err != nil {
		return 0, models.DateRange{}, false, err
	}
	g := models.Daily
	if q.Granularity != "" {
		var err error
		if g, err = models.ParseGranularity(q.Granularity); err != nil {
			return 0, models.DateRange{}, false, err
		}
	}
	rng, err := models.RangeFor(g, q.Date, q.Start, q.End, s.svc.Now())
	if err != nil {
		return 0, models.DateRange{}, false, err
	}
	return g, rng, q.Refresh, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseMetricKind(chi.URLParam(r, "metric"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	g, rng, refresh, err := s.parseRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	view, err := s.svc.View(r.Context(), kind, g, rng, refresh)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseMetricKind(chi.URLParam(r, "metric"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	g, rng, refresh, err := s.parseRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	raw, err := s.svc.Raw(r.Context(), kind, g, rng, refresh)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	g, rng, refresh, err := s.parseRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	d, err := s.svc.Dashboard(r.Context(), g, rng, refresh)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// syncRequest is the body of POST /api/v1/sync.
type syncRequest struct {
	Granularity string   `json:"granularity" validate:"required,oneof=daily weekly"`
	Date        string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Start       string   `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End         string   `json:"end" validate:"omitempty,datetime=2006-01-02"`
	Metrics     []string `json:"metrics" validate:"omitempty,dive,oneof=heart_rate sleep activity"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	g, _ := models.ParseGranularity(req.Granularity)
	rng, err := models.RangeFor(g, req.Date, req.Start, req.End, s.svc.Now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	kinds := make([]models.MetricKind, 0, len(req.Metrics))
	for _, m := range req.Metrics {
		k, _ := models.ParseMetricKind(m)
		kinds = append(kinds, k)
	}

	result, err := s.svc.Sync(r.Context(), g, rng, kinds...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if result.Failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, result)
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Entries(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []storage.EntryInfo{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// writeError maps orchestration and derivation failures to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var pe *fitbit.ProviderError
	var ne *fitbit.NetworkError
	var me *derive.MalformedPayloadError
	switch {
	case errors.As(err, &ne), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: err.Error()})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), ProviderStatus: pe.Status})
	case errors.As(err, &me):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	case errors.Is(err, fetch.ErrSuperseded):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		s.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
