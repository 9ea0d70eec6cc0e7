// Package api serves a classified choropleth map over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/choropleth"
	"github.com/sells-group/choropleth/internal/render"
)

// BuildFunc loads the sources and builds a fresh map.
type BuildFunc func(ctx context.Context) (*choropleth.Map, error)

// Options configures the server.
type Options struct {
	Port           int
	AllowedOrigins []string
	SVG            render.SVGOptions
	// Build backs POST /api/reload. Nil disables reloading.
	Build BuildFunc
}

// Server holds the current map. Maps are immutable; reload swaps the pointer.
type Server struct {
	router *chi.Mux
	opts   Options
	srv    *http.Server

	mu      sync.RWMutex
	m       *choropleth.Map
	geojson []byte
	builtAt time.Time
}

// NewServer creates a server for m.
func NewServer(m *choropleth.Map, opts Options) (*Server, error) {
	s := &Server{router: chi.NewRouter(), opts: opts}
	if err := s.setMap(m); err != nil {
		return nil, err
	}
	s.setupRoutes()

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("api: listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return eris.Wrap(err, "api: listen")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	zap.L().Info("api: shutting down")
	return eris.Wrap(s.srv.Shutdown(shutdownCtx), "api: shutdown")
}

func (s *Server) setMap(m *choropleth.Map) error {
	if m == nil {
		return eris.New("api: nil map")
	}
	data, err := render.GeoJSON(m)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m, s.geojson, s.builtAt = m, data, time.Now().UTC()
	return nil
}

// current returns the served map, its GeoJSON encoding and build time as one
// consistent snapshot.
func (s *Server) current() (*choropleth.Map, []byte, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m, s.geojson, s.builtAt
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Render-ID"},
		MaxAge:         300,
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/map.svg", s.handleSVG)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/map", s.handleMap)
		r.Get("/legend", s.handleLegend)
		r.Get("/regions/{key}", s.handleRegion)
		r.Post("/reload", s.handleReload)
	})
}

// requestLogger logs each request with zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
