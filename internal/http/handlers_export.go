package http

import (
	"fmt"
	"net/http"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

func (s *Server) handleExportExcel(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	categories, err := s.store.ListCategories(r.Context(), user.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	incomes, err := s.store.ListEntries(r.Context(), core.KindIncome, user.ID, ledger.Filter{})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	expenses, err := s.store.ListEntries(r.Context(), core.KindExpense, user.ID, ledger.Filter{})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	monthly, err := s.engine.MonthlySummaries(r.Context(), user.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	projection, err := s.engine.Projection(r.Context(), user.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	f, err := export.BuildWorkbook(categories, incomes, expenses, monthly, projection)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Workbook build failed",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("fintrack-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := f.WriteTo(w); err != nil {
		s.logger.ErrorContext(r.Context(), "Workbook write failed",
			log.FieldUserID, user.ID,
			log.FieldError, err)
	}
}
