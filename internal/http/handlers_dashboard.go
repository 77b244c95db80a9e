package http

import (
	"net/http"

	"fintrack/internal/log"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	window, err := parseWindowParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed date range")
		return
	}
	summary, err := s.engine.Dashboard(r.Context(), user.ID, window)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Dashboard aggregation failed",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRecurring(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	report, err := s.engine.Recurring(r.Context(), user.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Recurring aggregation failed",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleMonthlySummaries(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	summaries, err := s.engine.MonthlySummaries(r.Context(), user.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Monthly aggregation failed",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	report, err := s.engine.Projection(r.Context(), user.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Projection aggregation failed",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
