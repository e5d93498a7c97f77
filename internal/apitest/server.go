// Package apitest runs an in-process fake of the Email Auditor API for tests.
package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Request is a request observed by the fake server.
type Request struct {
	Method      string
	Path        string
	Header      http.Header
	FileName    string
	FileContent string
}

// Server is a fake Email Auditor API.
type Server struct {
	*httptest.Server

	// Session is the session cookie value accepted by /api/key.
	Session    string
	DailyLimit int
	Tier       string

	mu        sync.Mutex
	apiKey    string
	unhealthy bool
	report    map[string]any
	used      int
	requests  []Request
}

// Option adjusts the fake before it starts serving.
type Option func(*Server)

// WithDailyLimit sets the number of audits accepted before 429.
func WithDailyLimit(limit int) Option {
	return func(s *Server) { s.DailyLimit = limit }
}

// WithReport replaces the fixed two-rule audit report.
func WithReport(report map[string]any) Option {
	return func(s *Server) { s.report = report }
}

// New starts a fake server and registers its shutdown with t. The accepted
// API key is "test-key" and the session cookie "test-session".
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		Session:    "test-session",
		DailyLimit: 5,
		Tier:       "free",
		apiKey:     "test-key",
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Route("/api", func(r chi.Router) {
		r.Post("/audit", s.handleAudit)
		r.Get("/usage", s.handleUsage)
		r.Get("/key", s.handleKey)
		r.Post("/key", s.handleRotateKey)
		r.Get("/health", s.handleHealth)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Requests returns a copy of the requests seen so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// APIKey returns the currently accepted API key.
func (s *Server) APIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKey
}

// SetUnhealthy makes /api/health answer 503.
func (s *Server) SetUnhealthy(unhealthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unhealthy = unhealthy
}

// Used returns the number of audits accepted today.
func (s *Server) Used() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if file, header, err := r.FormFile("file"); err == nil {
				data, _ := io.ReadAll(file)
				_ = file.Close()
				req.FileName = header.Filename
				req.FileContent = string(data)
			}
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "API key required"})
		return false
	}
	if key != s.APIKey() {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid API key"})
		return false
	}
	return true
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	s.mu.Lock()
	exceeded := s.used >= s.DailyLimit
	s.mu.Unlock()
	if exceeded {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "Daily limit exceeded"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No file provided"})
		return
	}
	defer file.Close() // nolint:errcheck // test server

	if header.Filename == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No file selected"})
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".eml") {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Only .eml files are allowed"})
		return
	}

	s.mu.Lock()
	s.used++
	report := s.report
	s.mu.Unlock()

	if report == nil {
		report = defaultReport()
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	s.mu.Lock()
	used := s.used
	s.mu.Unlock()

	remaining := s.DailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"today_usage":       used,
		"daily_limit":       s.DailyLimit,
		"remaining":         remaining,
		"subscription_tier": s.Tier,
	})
}

func (s *Server) loggedIn(r *http.Request) bool {
	cookie, err := r.Cookie("session")
	return err == nil && cookie.Value == s.Session
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	if !s.loggedIn(r) {
		// The web app redirects anonymous users to the login page.
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"api_key": s.APIKey()})
}

func (s *Server) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	if !s.loggedIn(r) {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	s.mu.Lock()
	s.apiKey += "-rotated"
	key := s.apiKey
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"api_key": key})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	unhealthy := s.unhealthy
	s.mu.Unlock()
	if unhealthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":      "unhealthy",
			"timestamp":   "2025-01-01T00:00:00",
			"version":     "2.0.0",
			"environment": "testing",
			"error":       "database is locked",
			"services": map[string]any{
				"database":      "error",
				"email_service": "unknown",
			},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"timestamp":   "2025-01-01T00:00:00",
		"version":     "2.0.0",
		"environment": "testing",
		"services": map[string]any{
			"database":      map[string]any{"status": "connected", "users": 1, "audits": s.Used()},
			"email_service": "available",
			"audit_service": "available",
			"rate_limiter":  "available",
		},
		"limits": map[string]any{
			"free_tier_daily":    5,
			"premium_tier_daily": 100,
		},
	})
}

func defaultReport() map[string]any {
	return map[string]any{
		"score": 5,
		"rules": []any{
			map[string]any{
				"rule_id":       "greeting",
				"description":   "Email opens with a greeting",
				"passed":        true,
				"score":         10,
				"justification": "Professional greeting found.",
			},
			map[string]any{
				"rule_id":       2,
				"description":   "Email closes with a signature",
				"passed":        false,
				"score":         0,
				"justification": "No closing detected.",
			},
		},
		"summary": map[string]any{
			"strengths":    []any{"Professional greeting found."},
			"improvements": []any{"No closing detected."},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
