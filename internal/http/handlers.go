package http

import (
	"net/http"

	"financetracker/internal/core"
)

// topResponse wraps the ranked groups with the grouping that produced them.
type topResponse struct {
	By     string            `json:"by"`
	Groups []core.GroupTotal `json:"groups"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	p, err := ParseReportParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.reports.Summarize(r.Context(), p.AccountID, p.PeriodID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(m).Write(w)
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	query := r.URL.Query()
	p, err := ParseReportParams(query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	by, err := ParseGroupBy(query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := parseIntParam(query, "n", s.topN)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var groups []core.GroupTotal
	if by == GroupByCategory {
		groups, err = s.reports.TopCategories(r.Context(), p.AccountID, p.PeriodID, n)
	} else {
		groups, err = s.reports.TopBusinesses(r.Context(), p.AccountID, p.PeriodID, n)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if groups == nil {
		groups = []core.GroupTotal{}
	}
	NewJSONResponse(topResponse{By: by, Groups: groups}).Write(w)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	query := r.URL.Query()
	p, err := ParseReportParams(query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	months, err := parseIntParam(query, "months", s.historyMonths)
	if err != nil {
		writeError(w, r, err)
		return
	}
	points, err := s.reports.History(r.Context(), p.AccountID, p.PeriodID, months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(points).Write(w)
}

// allowGet rejects anything but GET and HEAD with a 405.
func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	MethodNotAllowedError("GET, HEAD").Write(w)
	return false
}
