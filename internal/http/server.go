// Package http exposes the JSON API: auth, ledger CRUD, dashboard
// aggregations, the Excel export and the payment webhook.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// Store is the persistence surface the handlers depend on. Tests register
// fakes; production wires *storage.Repository.
type Store interface {
	ledger.Store

	CreateUser(ctx context.Context, u *core.User) error
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	GetUserByID(ctx context.Context, id string) (core.User, error)

	CreateCategory(ctx context.Context, c *core.Category) error
	ListCategories(ctx context.Context, ownerID string) ([]core.Category, error)
	UpdateCategory(ctx context.Context, c *core.Category) error
	DeleteCategory(ctx context.Context, id, ownerID string) error

	CreateEntry(ctx context.Context, kind core.EntryKind, e *core.Entry) error
	GetEntry(ctx context.Context, kind core.EntryKind, id, ownerID string) (core.Entry, error)
	UpdateEntry(ctx context.Context, kind core.EntryKind, e *core.Entry) error
	DeleteEntry(ctx context.Context, kind core.EntryKind, id, ownerID string) error
}

// EventPublisher forwards payment webhook events to the queue.
type EventPublisher interface {
	PublishSubscriptionEvent(ctx context.Context, msg *amqp.SubscriptionEventMessage) error
}

type Server struct {
	http.Server

	store     Store
	engine    *ledger.Engine
	tokens    *auth.Tokens
	publisher EventPublisher
	logger    *log.Logger

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	perMinute    int
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter(perMinute int) *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		perMinute:   perMinute,
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	client.requests++
	client.lastRequest = now

	return client.requests <= rl.perMinute
}

// Options carries the server dependencies.
type Options struct {
	Addr               string
	Store              Store
	Engine             *ledger.Engine
	Tokens             *auth.Tokens
	Publisher          EventPublisher
	Logger             *log.Logger
	RateLimitPerMinute int
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	mux := http.NewServeMux()

	perMinute := opts.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}

	s := &Server{
		Server: http.Server{
			Addr:    opts.Addr,
			Handler: mux,
		},
		store:       opts.Store,
		engine:      opts.Engine,
		tokens:      opts.Tokens,
		publisher:   opts.Publisher,
		logger:      opts.Logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(perMinute),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/auth/register", s.withMiddleware(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.withMiddleware(s.handleLogin))
	mux.HandleFunc("GET /api/auth/me", s.withMiddleware(s.withAuth(s.handleMe)))

	for _, kind := range []core.EntryKind{core.KindIncome, core.KindExpense} {
		prefix := "/api/incomes"
		if kind == core.KindExpense {
			prefix = "/api/expenses"
		}
		mux.HandleFunc("GET "+prefix, s.withMiddleware(s.withAuth(s.handleListEntries(kind))))
		mux.HandleFunc("POST "+prefix, s.withMiddleware(s.withAuth(s.handleCreateEntry(kind))))
		mux.HandleFunc("GET "+prefix+"/{id}", s.withMiddleware(s.withAuth(s.handleGetEntry(kind))))
		mux.HandleFunc("PUT "+prefix+"/{id}", s.withMiddleware(s.withAuth(s.handleUpdateEntry(kind))))
		mux.HandleFunc("DELETE "+prefix+"/{id}", s.withMiddleware(s.withAuth(s.handleDeleteEntry(kind))))
	}

	mux.HandleFunc("GET /api/categories", s.withMiddleware(s.withAuth(s.handleListCategories)))
	mux.HandleFunc("POST /api/categories", s.withMiddleware(s.withAuth(s.handleCreateCategory)))
	mux.HandleFunc("PUT /api/categories/{id}", s.withMiddleware(s.withAuth(s.handleUpdateCategory)))
	mux.HandleFunc("DELETE /api/categories/{id}", s.withMiddleware(s.withAuth(s.handleDeleteCategory)))

	mux.HandleFunc("GET /api/dashboard", s.withMiddleware(s.withAuth(s.handleDashboard)))
	mux.HandleFunc("GET /api/dashboard/recurring", s.withMiddleware(s.withAuth(s.handleRecurring)))
	mux.HandleFunc("GET /api/dashboard/monthly", s.withMiddleware(s.withAuth(s.handleMonthlySummaries)))
	mux.HandleFunc("GET /api/dashboard/projection", s.withMiddleware(s.withAuth(s.handleProjection)))

	mux.HandleFunc("GET /api/export/excel", s.withMiddleware(s.withAuth(s.handleExportExcel)))

	mux.HandleFunc("POST /webhooks/payment", s.withMiddleware(s.handlePaymentWebhook))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withMiddleware adds security headers, rate limiting, and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "Request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP,
			log.FieldUserAgent, r.Header.Get("User-Agent"))

		// Rate limit mutating requests only
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.logger.InfoContext(ctx, "Request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, duration.Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
