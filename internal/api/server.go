package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ninja-decision-engine/internal/database"
	"ninja-decision-engine/internal/engine"
	"ninja-decision-engine/internal/events"
	"ninja-decision-engine/internal/metrics"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string
	Port           int
	APIKey         string
	ProductionMode bool
}

// PositionReader serves mirrored position snapshots.
type PositionReader interface {
	LoadPosition(ctx context.Context, machineID, symbol string) (engine.PositionSnapshot, bool, error)
}

// Server is the HTTP API the trading terminal and dashboard talk to.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	repo       *database.Repository
	eng        *engine.Engine
	eventBus   *events.EventBus
	mets       *metrics.Metrics
	positions  PositionReader
	wsHub      *WSHub
	config     ServerConfig
	log        zerolog.Logger
}

// NewServer creates the API server. Repository, event bus, metrics and
// position reader may be nil; the corresponding endpoints degrade gracefully.
func NewServer(config ServerConfig, repo *database.Repository, eng *engine.Engine, eventBus *events.EventBus, mets *metrics.Metrics, positions PositionReader, log zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-API-KEY"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:    router,
		repo:      repo,
		eng:       eng,
		eventBus:  eventBus,
		mets:      mets,
		positions: positions,
		wsHub:     NewWSHub(log),
		config:    config,
		log:       log.With().Str("component", "api").Logger(),
	}

	server.setupRoutes()

	if mets != nil {
		server.wsHub.SetCountCallback(func(n int) { mets.WSClients.Set(float64(n)) })
	}
	go server.wsHub.Run()
	if eventBus != nil {
		server.wsHub.AttachBus(eventBus)
	}

	return server
}

// requireAPIKey rejects requests without the shared key. An empty
// configured key disables the check (local development).
func (s *Server) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.config.APIKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-KEY") != s.config.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid or missing API key"})
			return
		}
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.mets != nil {
		s.router.GET("/metrics", gin.WrapH(s.mets.Handler()))
	}
	s.router.GET("/ws/decisions", s.handleWebSocket)

	apiGroup := s.router.Group("/api")
	apiGroup.Use(s.requireAPIKey())
	{
		apiGroup.POST("/candles", s.handlePostCandles)
		apiGroup.GET("/poll", s.handlePoll)
		apiGroup.POST("/fills", s.handlePostFill)
		apiGroup.POST("/heartbeat", s.handleHeartbeat)
		apiGroup.GET("/status", s.handleStatus)
		apiGroup.GET("/position", s.handlePosition)
		apiGroup.POST("/reset-kill-switch", s.handleResetKillSwitch)
		apiGroup.GET("/fills", s.handleRecentFills)
		apiGroup.GET("/fingerprints", s.handleRecentFingerprints)
	}
}

// Start runs the HTTP server; it blocks until shutdown or failure.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"ts_utc":     time.Now().UTC(),
		"ws_clients": s.wsHub.ClientCount(),
	})
}
