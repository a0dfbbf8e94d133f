package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/limitr/pkg/journal"
	"mercator-hq/limitr/pkg/limits"
	"mercator-hq/limitr/pkg/server/middleware"
)

const (
	defaultJournalLimit = 100
	maxJournalLimit     = 1000
)

// DecisionResponse is the body of a consume response.
type DecisionResponse struct {
	Limiter           string    `json:"limiter"`
	Algorithm         string    `json:"algorithm"`
	Allowed           bool      `json:"allowed"`
	Cost              uint64    `json:"cost"`
	Limit             uint64    `json:"limit"`
	Remaining         uint64    `json:"remaining"`
	RetryAfterSeconds int64     `json:"retry_after_seconds,omitempty"`
	RequestID         string    `json:"request_id,omitempty"`
	CheckedAt         time.Time `json:"checked_at"`
}

// StatusResponse describes one limiter.
type StatusResponse struct {
	Name      string `json:"name"`
	Algorithm string `json:"algorithm"`
	Limit     uint64 `json:"limit"`
	Remaining uint64 `json:"remaining"`
	Rate      uint64 `json:"rate,omitempty"`
	Window    string `json:"window,omitempty"`
}

// ListResponse is the body of GET /v1/limiters.
type ListResponse struct {
	Limiters []StatusResponse `json:"limiters"`
}

// JournalResponse is the body of GET /v1/journal.
type JournalResponse struct {
	Backend string           `json:"backend"`
	Records []journal.Record `json:"records"`
}

func (s *Server) handleConsume(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	cost := uint64(1)
	if raw := r.URL.Query().Get("cost"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			middleware.WriteError(w, r, http.StatusBadRequest, "invalid_cost", "cost must be a non-negative integer")
			return
		}
		cost = v
	}

	d, err := s.manager.Check(r.Context(), name, cost)
	if err != nil {
		switch {
		case errors.Is(err, limits.ErrUnknownLimiter):
			middleware.WriteError(w, r, http.StatusNotFound, "unknown_limiter", err.Error())
		case errors.Is(err, limits.ErrCostUnsupported):
			middleware.WriteError(w, r, http.StatusBadRequest, "cost_unsupported", err.Error())
		default:
			s.logger.ErrorContext(r.Context(), "limiter check failed", "limiter", name, "error", err)
			middleware.WriteError(w, r, http.StatusServiceUnavailable, "check_failed", "limiter check failed")
		}
		return
	}

	resp := DecisionResponse{
		Limiter:   d.Limiter,
		Algorithm: d.Algorithm.String(),
		Allowed:   d.Allowed,
		Cost:      d.Cost,
		Limit:     d.Limit,
		Remaining: d.Remaining,
		RequestID: d.RequestID,
		CheckedAt: d.CheckedAt,
	}

	middleware.SetRateLimitHeaders(w, d.Limit, d.Remaining)
	status := http.StatusOK
	if !d.Allowed {
		status = http.StatusTooManyRequests
		if d.RetryAfter > 0 {
			resp.RetryAfterSeconds = middleware.RetryAfterSeconds(d.RetryAfter)
			w.Header().Set(middleware.HeaderRetryAfter, strconv.FormatInt(resp.RetryAfterSeconds, 10))
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	statuses := s.manager.Statuses()
	resp := ListResponse{Limiters: make([]StatusResponse, 0, len(statuses))}
	for _, st := range statuses {
		resp.Limiters = append(resp.Limiters, statusResponse(st))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.manager.Status(r.PathValue("name"))
	if err != nil {
		middleware.WriteError(w, r, http.StatusNotFound, "unknown_limiter", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusResponse(st))
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		middleware.WriteError(w, r, http.StatusNotFound, "journal_disabled", "decision journal is not enabled")
		return
	}

	q := r.URL.Query()
	filter := journal.Filter{
		Limiter: q.Get("limiter"),
		Limit:   defaultJournalLimit,
	}
	if raw := q.Get("allowed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			middleware.WriteError(w, r, http.StatusBadRequest, "invalid_query", "allowed must be true or false")
			return
		}
		filter.Allowed = &v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			middleware.WriteError(w, r, http.StatusBadRequest, "invalid_query", "limit must be a positive integer")
			return
		}
		filter.Limit = min(v, maxJournalLimit)
	}
	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			middleware.WriteError(w, r, http.StatusBadRequest, "invalid_query", "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = t
	}
	if raw := q.Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			middleware.WriteError(w, r, http.StatusBadRequest, "invalid_query", "until must be an RFC 3339 timestamp")
			return
		}
		filter.Until = t
	}

	records, err := s.journal.Query(r.Context(), filter)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "journal query failed", "error", err)
		middleware.WriteError(w, r, http.StatusServiceUnavailable, "journal_unavailable", "journal query failed")
		return
	}
	if records == nil {
		records = []journal.Record{}
	}
	writeJSON(w, http.StatusOK, JournalResponse{Backend: s.journal.Backend(), Records: records})
}

func statusResponse(st limits.Status) StatusResponse {
	resp := StatusResponse{
		Name:      st.Name,
		Algorithm: st.Algorithm.String(),
		Limit:     st.Limit,
		Remaining: st.Remaining,
		Rate:      st.Rate,
	}
	if st.Window > 0 {
		resp.Window = st.Window.String()
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
