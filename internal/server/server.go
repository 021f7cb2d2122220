package server

import (
	"log/slog"
	"net/http"

	"github.com/expenselens/expenselens/internal/receipt"
)

// Server exposes the receipt store and aggregate reports over HTTP/JSON.
type Server struct {
	store receipt.Store
	mux   *http.ServeMux
}

// New creates a Server with a default mux.
func New(store receipt.Store) *Server {
	return NewWithMux(store, http.NewServeMux())
}

// NewWithMux creates a Server on a caller-supplied mux for testing.
func NewWithMux(store receipt.Store, mux *http.ServeMux) *Server {
	s := &Server{
		store: store,
		mux:   mux,
	}
	s.registerRoutes()
	return s
}

// corsMiddleware adds CORS headers and answers preflight requests so the
// browser capture client can talk to us from another origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all API routes, most specific first.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/receipts/summary", s.handleSummary)
	s.mux.HandleFunc("DELETE /api/receipts/{id}", s.handleDeleteReceipt)
	s.mux.HandleFunc("GET /api/receipts", s.handleListReceipts)
	s.mux.HandleFunc("POST /api/receipts", s.handleCreateReceipt)
}

// Start starts the HTTP server on addr and blocks.
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.corsMiddleware(s.mux))
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
