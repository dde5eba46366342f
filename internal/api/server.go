// Package api exposes the metric calculator over HTTP as a small JSON API.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"periodqc/internal"
	catalogio "periodqc/internal/catalog"
	"periodqc/internal/errors"
	"periodqc/internal/metrics"
	"periodqc/internal/params"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server serves metric queries over a loaded catalog.
type Server struct {
	calc     *metrics.Calculator
	registry *params.Registry
	summary  catalogio.Summary
	log      *internal.Logger
}

// NewServer creates the API server.
func NewServer(calc *metrics.Calculator, registry *params.Registry, summary catalogio.Summary, log *internal.Logger) *Server {
	return &Server{calc: calc, registry: registry, summary: summary, log: log}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/reliability", s.handleMetric(metrics.MetricReliability))
		r.Get("/completeness", s.handleMetric(metrics.MetricCompleteness))
		r.Get("/summary", s.handleSummary)
	})

	return r
}

// ListenAndServe runs the server on the given port.
func (s *Server) ListenAndServe(port string) error {
	s.log.Info("listening on :%s", port)
	return http.ListenAndServe(":"+port, s.Router())
}

// metricResponse is the JSON body for a successful metric query.
type metricResponse struct {
	Metric metrics.Metric `json:"metric"`
	Mode   metrics.Mode   `json:"mode"`
	Period float64        `json:"period"`
	Value  float64        `json:"value"`
}

// handleMetric evaluates one metric from query parameters: period (required),
// mode (default match), period_lower/period_upper (default 1.0), plus any
// registered parameter with optional <name>_lower/<name>_upper overrides.
func (s *Server) handleMetric(metric metrics.Metric) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query, err := s.parseQuery(r)
		if err != nil {
			s.respondError(w, err)
			return
		}

		var value float64
		if metric == metrics.MetricReliability {
			value, err = s.calc.Reliability(query)
		} else {
			value, err = s.calc.Completeness(query)
		}
		if err != nil {
			s.respondError(w, err)
			return
		}

		s.respondJSON(w, http.StatusOK, metricResponse{
			Metric: metric,
			Mode:   query.Mode,
			Period: query.Period,
			Value:  value,
		})
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.summary)
}

func (s *Server) parseQuery(r *http.Request) (metrics.Query, error) {
	values := r.URL.Query()

	rawPeriod := values.Get("period")
	if rawPeriod == "" {
		return metrics.Query{}, errors.ValidationError("query parameter period is required")
	}
	period, err := strconv.ParseFloat(rawPeriod, 64)
	if err != nil {
		return metrics.Query{}, errors.ValidationError(fmt.Sprintf("bad period %q", rawPeriod))
	}

	mode := metrics.ModeMatch
	if raw := values.Get("mode"); raw != "" {
		mode, err = metrics.ParseMode(raw)
		if err != nil {
			return metrics.Query{}, err
		}
	}

	query := metrics.Query{Period: period, PeriodLower: 1.0, PeriodUpper: 1.0, Mode: mode}
	if v, ok, err := parseFloatParam(values.Get("period_lower")); err != nil {
		return metrics.Query{}, errors.ValidationError("bad period_lower")
	} else if ok {
		query.PeriodLower = v
	}
	if v, ok, err := parseFloatParam(values.Get("period_upper")); err != nil {
		return metrics.Query{}, errors.ValidationError("bad period_upper")
	} else if ok {
		query.PeriodUpper = v
	}

	for _, name := range s.registry.Names() {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return metrics.Query{}, errors.ValidationError(fmt.Sprintf("bad %s value %q", name, raw))
		}

		pv := metrics.ParamValue{Name: name, Value: value}
		if v, ok, err := parseFloatParam(values.Get(name + "_lower")); err != nil {
			return metrics.Query{}, errors.ValidationError(fmt.Sprintf("bad %s_lower", name))
		} else if ok {
			pv.Lower = &v
		}
		if v, ok, err := parseFloatParam(values.Get(name + "_upper")); err != nil {
			return metrics.Query{}, errors.ValidationError(fmt.Sprintf("bad %s_upper", name))
		} else if ok {
			pv.Upper = &v
		}
		query.Params = append(query.Params, pv)
	}

	return query, nil
}

func parseFloatParam(raw string) (float64, bool, error) {
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil, err
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("failed to encode response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.CodeValidationError, errors.CodeInvalidConstraint:
		status = http.StatusBadRequest
	case errors.CodeEmptyPopulation:
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed: %v", err)
	}
	s.respondJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}
