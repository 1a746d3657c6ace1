package web

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/lastwords/lastwords/internal/config"
)

// Server serves the detector API. customPort overrides the configured port
// when positive.
type Server struct {
	handler *Handler
	server  *http.Server
}

func NewServer(cfg *config.Config, handler *Handler, customPort int) *Server {
	mux := http.NewServeMux()
	handler.SetupRoutes(mux)

	port := cfg.Web.Port
	if customPort > 0 {
		port = customPort
	}

	return &Server{
		handler: handler,
		server: &http.Server{
			Addr:              net.JoinHostPort(cfg.Web.Host, fmt.Sprint(port)),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start listens on the configured address and blocks until Shutdown
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln and blocks until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	log.Printf("[web] Serving detector API on http://%s", ln.Addr())
	return s.server.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("[web] Shutting down")
	return s.server.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return s.server.Addr
}
