// Package http exposes the ledger over a JSON API. Handlers translate
// request payloads into ledger calls and map the service's sentinel errors
// onto HTTP status codes.
package http

import (
	"net/http"
	"sync"
	"time"

	"avtoledger/internal/ledger"
	applog "avtoledger/internal/log"
)

type Server struct {
	http.Server
	svc         *ledger.Service
	perPage     int
	recentLimit int
	rateLimiter *rateLimiter
}

// Options carries the handler tunables that come from config.
type Options struct {
	HistoryPerPage      int
	RecentInvoicesLimit int
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc *ledger.Service, opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		svc:         svc,
		perPage:     opts.HistoryPerPage,
		recentLimit: opts.RecentInvoicesLimit,
		rateLimiter: newRateLimiter(),
	}
	s.Server = http.Server{
		Addr:    addr,
		Handler: applog.Middleware(s.withHeaders(mux)),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/invoices", s.handleCreateInvoice)
	mux.HandleFunc("DELETE /api/invoices/{id}", s.handleDeleteInvoice)
	mux.HandleFunc("GET /api/invoices/recent", s.handleRecentInvoices)

	mux.HandleFunc("POST /api/payments", s.handleCreatePayment)
	mux.HandleFunc("DELETE /api/payments/{id}", s.handleDeletePayment)

	mux.HandleFunc("GET /api/balance", s.handleBalance)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/history/export", s.handleExport)
	mux.HandleFunc("DELETE /api/history/last", s.handleDeleteLast)

	mux.HandleFunc("POST /api/reconcile", s.handleReconcile)

	return s
}

// withHeaders adds security headers and rate-limits mutating requests.
func (s *Server) withHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			respondError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Simple in-memory rate limiter, 60 mutating requests per client per minute.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientInfo
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{clients: make(map[string]*clientInfo)}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[ip]
	if !exists || now.Sub(client.lastRequest) > time.Minute {
		rl.clients[ip] = &clientInfo{lastRequest: now, requests: 1}
		rl.cleanupStale(now)
		return true
	}

	client.requests++
	client.lastRequest = now
	return client.requests <= 60
}

func (rl *rateLimiter) cleanupStale(now time.Time) {
	cutoff := now.Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}
