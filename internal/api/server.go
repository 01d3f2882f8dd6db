// Package api exposes the response core over HTTP. The single business
// endpoint is an SSE stream that relays turn events verbatim; everything
// else is health probing and middleware.
package api

import (
	"errors"
	"net/http"

	"github.com/beatsync/beatsync/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger    log.Logger
	Responder Responder
}

// Server is the HTTP server for the streaming chat API.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Responder == nil {
		return nil, errors.New("responder is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}

	ch := &chatHandler{responder: cfg.Responder, logger: cfg.Logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/stream", ch.stream)

	// Middleware stack, outermost first:
	//   Recovery -> RequestID -> Logging -> Routes
	// RequestID runs before Logging so request_id is in log attributes.
	var handler http.Handler = mux
	handler = loggingMiddleware(cfg.Logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(cfg.Logger)(handler)

	// Health probes stay outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /healthz", health)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
