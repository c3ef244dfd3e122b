package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/michaelbrown/execbridge/internal/config"
	"github.com/michaelbrown/execbridge/internal/engine"
	"github.com/michaelbrown/execbridge/internal/loop"
	"github.com/michaelbrown/execbridge/internal/push"
	"github.com/michaelbrown/execbridge/internal/session"
	"github.com/michaelbrown/execbridge/internal/signal"
	"github.com/michaelbrown/execbridge/internal/tempdir"
	"github.com/michaelbrown/execbridge/internal/version"
)

// Deps are the collaborators a Server hands requests to.
type Deps struct {
	Config   *config.Config
	Loop     *loop.Loop
	Executor engine.Executor
	Slot     *push.Slot
	Session  *session.Session
	Signals  signal.Processor
	TempDirs *tempdir.Registry
	Logger   *zap.Logger
}

// Server is the HTTP and WebSocket front of the bridge.
type Server struct {
	cfg      *config.Config
	loop     *loop.Loop
	exec     engine.Executor
	slot     *push.Slot
	sess     *session.Session
	signals  signal.Processor
	dirs     *tempdir.Registry
	log      *zap.Logger
	conns    *ConnManager
	upgrader websocket.Upgrader
	router   chi.Router

	mu     sync.Mutex
	http   *http.Server
	closed bool
}

// New creates a new Server.
func New(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cfg := d.Config
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Server{
		cfg:     cfg,
		loop:    d.Loop,
		exec:    d.Executor,
		slot:    d.Slot,
		sess:    d.Session,
		signals: d.Signals,
		dirs:    d.TempDirs,
		log:     log.Named("server"),
		conns:   NewConnManager(),
		router:  chi.NewRouter(),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(s.standardHeaders)

	r.Get("/", s.handleIndex)
	r.Post("/", s.handleExecute)
	r.Get("/websocket/", s.handleWebSocket)
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Connections returns the tracker for open WebSocket connections.
func (s *Server) Connections() *ConnManager {
	return s.conns
}

// standardHeaders identifies the server and allows the configured origin on
// every response.
func (s *Server) standardHeaders(next http.Handler) http.Handler {
	serverHeader := fmt.Sprintf("%s/%s", s.cfg.Server.Name, version.Short())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", serverHeader)
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.Server.AllowOrigin)
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request through zap.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Debug("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Serve accepts connections on ln until Shutdown is called. It returns
// http.ErrServerClosed after Shutdown, including when Shutdown came first.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return http.ErrServerClosed
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.http = srv
	s.mu.Unlock()

	s.log.Info("bridge listening", zap.String("addr", ln.Addr().String()))
	return srv.Serve(ln)
}

// Shutdown stops the HTTP server, closes every WebSocket connection and
// waits for their handlers to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down server")
	s.mu.Lock()
	s.closed = true
	srv := s.http
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	// Stopping the listener first means no connection is added after this.
	s.conns.CloseAll()
	if err := s.conns.Wait(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("waiting for websocket handlers: %w", err))
	}
	return errors.Join(errs...)
}
