// Package api provides the local HTTP gateway over the client engine, an
// alternative frontend to the interactive console.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Natifishman/MessageU/pkg/engine"
)

// Server wraps the engine behind a localhost REST surface. The engine is
// single-threaded by design, so every handler serializes through one
// mutex.
type Server struct {
	client     *engine.Client
	router     *gin.Engine
	port       int
	httpServer *http.Server
	mu         sync.Mutex
}

// Config holds gateway configuration
type Config struct {
	Port     int
	Gatherer prometheus.Gatherer
}

// DefaultConfig returns default gateway configuration
func DefaultConfig() *Config {
	return &Config{
		Port:     8600,
		Gatherer: prometheus.DefaultGatherer,
	}
}

// NewServer creates the gateway over a prepared client
func NewServer(client *engine.Client, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{
		client: client,
		router: router,
		port:   config.Port,
	}

	router.Use(LoggingMiddleware())
	router.Use(gin.Recovery())

	s.setupRoutes(config.Gatherer)
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/register", s.handleRegister)
		v1.GET("/users", s.handleUsers)
		v1.POST("/keys/:name", s.handleFetchKey)
		v1.POST("/messages", s.handleSendMessage)
		v1.GET("/messages/pending", s.handlePending)
		v1.GET("/history/:name", s.handleHistory)
	}

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// Start runs the HTTP server until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
