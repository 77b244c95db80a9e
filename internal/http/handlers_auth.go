package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	Plan               string     `json:"plan"`
	SubscriptionStatus string     `json:"subscription_status"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
}

func toUserResponse(u core.User) userResponse {
	return userResponse{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Plan:               u.Plan,
		SubscriptionStatus: u.SubscriptionStatus,
		ExpiresAt:          u.ExpiresAt,
	}
}

// defaultCategories seeds a fresh account with a usable taxonomy.
var defaultCategories = []core.Category{
	{Name: "Salary", Kind: core.KindIncome, Color: "#2ECC71"},
	{Name: "Freelance", Kind: core.KindIncome, Color: "#27AE60"},
	{Name: "Investments", Kind: core.KindIncome, Color: "#16A085"},
	{Name: "Food", Kind: core.KindExpense, Color: "#FF6B6B"},
	{Name: "Transport", Kind: core.KindExpense, Color: "#F39C12"},
	{Name: "Housing", Kind: core.KindExpense, Color: "#8E44AD"},
	{Name: "Leisure", Kind: core.KindExpense, Color: "#3498DB"},
	{Name: "Health", Kind: core.KindExpense, Color: "#E74C3C"},
	{Name: "Education", Kind: core.KindExpense, Color: "#34495E"},
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusUnprocessableEntity, "password must be at least 8 characters")
		return
	}

	user := core.User{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
	}
	if err := user.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	user.PasswordHash = hash

	if err := s.store.CreateUser(r.Context(), &user); err != nil {
		writeStoreError(w, err)
		return
	}

	// Seeding failures are not fatal for registration; the user can create
	// categories manually.
	for _, c := range defaultCategories {
		c.OwnerID = user.ID
		if err := s.store.CreateCategory(r.Context(), &c); err != nil {
			s.logger.WarnContext(r.Context(), "default category seed failed",
				log.FieldUserID, user.ID,
				log.FieldCategory, c.Name,
				log.FieldError, err.Error())
		}
	}

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.InfoContext(r.Context(), "user registered", log.FieldUserID, user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: toUserResponse(user)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.store.GetUserByEmail(r.Context(), email)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, User: toUserResponse(user)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserResponse(userFrom(r.Context())))
}
