package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

type entryRequest struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Method      string `json:"method"`
	Amount      string `json:"amount"`
}

type entryResponse struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Method      string `json:"method"`
	AmountCents int64  `json:"amount_cents"`
	Month       int    `json:"month"`
	Year        int    `json:"year"`
}

func toEntryResponse(e core.Entry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		Date:        e.Date.String(),
		Description: e.Description,
		Category:    e.Category,
		Method:      e.Method,
		AmountCents: e.Amount.Cents,
		Month:       e.Month,
		Year:        e.Year,
	}
}

// entryFromRequest validates and converts one write payload. A bad date is a
// 400; a semantically invalid field is a 422.
func entryFromRequest(req entryRequest, kind core.EntryKind, ownerID string) (core.Entry, int, error) {
	date, err := core.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return core.Entry{}, http.StatusBadRequest, err
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.Entry{}, http.StatusUnprocessableEntity, err
	}
	e := core.Entry{
		OwnerID:     ownerID,
		Date:        date,
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Method:      strings.TrimSpace(req.Method),
		Amount:      core.Money{Cents: cents},
	}
	e.DerivePeriod()
	if err := e.Validate(kind); err != nil {
		return core.Entry{}, http.StatusUnprocessableEntity, err
	}
	return e, 0, nil
}

func (s *Server) handleListEntries(kind core.EntryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r.Context())
		window, err := parseWindowParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed date range")
			return
		}
		filter := ledger.Filter{}
		q := r.URL.Query()
		if v := q.Get("month"); v != "" {
			m, err := strconv.Atoi(v)
			if err != nil || m < 1 || m > 12 {
				writeError(w, http.StatusBadRequest, "invalid month")
				return
			}
			filter.Month = m
		}
		if v := q.Get("year"); v != "" {
			y, err := strconv.Atoi(v)
			if err != nil || y < 1 {
				writeError(w, http.StatusBadRequest, "invalid year")
				return
			}
			filter.Year = y
		}
		switch window.Kind {
		case ledger.WindowCurrentMonth:
			now := time.Now().UTC()
			filter.Month = int(now.Month())
			filter.Year = now.Year()
		case ledger.WindowTrailingDays:
			now := time.Now().UTC()
			cutoff := now.AddDate(0, 0, -window.Days)
			filter.From = core.NewDate(cutoff.Year(), int(cutoff.Month()), cutoff.Day())
		case ledger.WindowRange:
			filter.From = window.Start
			filter.To = window.End
		}
		entries, err := s.store.ListEntries(r.Context(), kind, user.ID, filter)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		out := make([]entryResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, toEntryResponse(e))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleGetEntry(kind core.EntryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r.Context())
		e, err := s.store.GetEntry(r.Context(), kind, r.PathValue("id"), user.ID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryResponse(e))
	}
}

func (s *Server) handleCreateEntry(kind core.EntryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r.Context())
		var req entryRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		e, status, err := entryFromRequest(req, kind, user.ID)
		if err != nil {
			writeError(w, status, err.Error())
			return
		}
		if err := s.store.CreateEntry(r.Context(), kind, &e); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toEntryResponse(e))
	}
}

func (s *Server) handleUpdateEntry(kind core.EntryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r.Context())
		id := r.PathValue("id")
		var req entryRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		e, status, err := entryFromRequest(req, kind, user.ID)
		if err != nil {
			writeError(w, status, err.Error())
			return
		}
		e.ID = id
		if err := s.store.UpdateEntry(r.Context(), kind, &e); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryResponse(e))
	}
}

func (s *Server) handleDeleteEntry(kind core.EntryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r.Context())
		id := r.PathValue("id")
		if err := s.store.DeleteEntry(r.Context(), kind, id, user.ID); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type categoryRequest struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Color string `json:"color"`
}

type categoryResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Color string `json:"color"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Kind: string(c.Kind), Color: c.Color}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	categories, err := s.store.ListCategories(r.Context(), user.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c := core.Category{
		OwnerID: user.ID,
		Name:    strings.TrimSpace(req.Name),
		Kind:    core.EntryKind(req.Kind),
		Color:   strings.TrimSpace(req.Color),
	}
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.store.CreateCategory(r.Context(), &c); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(c))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c := core.Category{
		ID:      r.PathValue("id"),
		OwnerID: user.ID,
		Name:    strings.TrimSpace(req.Name),
		Kind:    core.EntryKind(req.Kind),
		Color:   strings.TrimSpace(req.Color),
	}
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.store.UpdateCategory(r.Context(), &c); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(c))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if err := s.store.DeleteCategory(r.Context(), r.PathValue("id"), user.ID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
