package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"bomb-arena/internal/game"

	"github.com/go-chi/chi/v5"
)

// ServerConfig gathers the transport settings of the public server
type ServerConfig struct {
	RateLimit      RateLimitConfig
	CORSOrigins    []string
	StaticDir      string
	DisableLogging bool
	Hub            HubConfig
}

// DefaultServerConfig returns production defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		RateLimit: DefaultRateLimitConfig,
		Hub:       DefaultHubConfig(),
	}
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the WebSocket hub for real-time play.
type Server struct {
	engine      *game.Engine
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer creates the server.
//
// No listener is opened and the engine hook is not installed until Start,
// so tests can use Router() directly.
func NewServer(engine *game.Engine, cfg ServerConfig) *Server {
	s := &Server{
		engine:      engine,
		wsHub:       NewWebSocketHub(engine, cfg.Hub),
		rateLimiter: NewIPRateLimiter(cfg.RateLimit),
	}

	s.router = NewRouter(RouterConfig{
		Engine:           engine,
		RateLimiter:      s.rateLimiter,
		CORSOrigins:      cfg.CORSOrigins,
		StaticFilesDir:   cfg.StaticDir,
		DisableLogging:   cfg.DisableLogging,
		WebSocketHandler: http.HandlerFunc(s.wsHub.HandleWebSocket),
	})
	return s
}

// Start installs the metrics hook and serves until Shutdown is called
func (s *Server) Start(addr string) error {
	s.engine.SetAfterTick(s.observeTick)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🎮 Play: ws://localhost%s/ws", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) observeTick(report game.TickReport) {
	RecordTick(report)
	stats := s.engine.GetEventLogStats()
	total, _ := stats["total"].(uint64)
	dropped, _ := stats["dropped"].(uint64)
	UpdateEventLogStats(total, dropped)
}

// Router returns the HTTP handler for use with httptest
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the websocket hub
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops accepting requests, disconnects every player and stops
// background workers
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wsHub.Close()
	s.rateLimiter.Stop()
	return err
}
