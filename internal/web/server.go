package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/developer27/falconeye/internal/debug"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers

	srv *http.Server
	ln  net.Listener
}

// NewServer creates a server for addr. The static files are the embedded
// ones unless h already carries a file system.
func NewServer(addr string, h *Handlers) (*Server, error) {
	if h.staticFS == nil {
		sub, err := fs.Sub(staticFiles, "static")
		if err != nil {
			return nil, fmt.Errorf("sub static fs: %w", err)
		}
		h.staticFS = sub
	}
	return &Server{addr: addr, handlers: h}, nil
}

// Router returns a router with all routes registered.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	s.handlers.Register(r)
	return r
}

// Start binds the address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	debug.Info("Web server listening on %s", ln.Addr())
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.Errorf("web server: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Shutdown ends SSE streams and stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.handlers.Broadcaster.Close()
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
