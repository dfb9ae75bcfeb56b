package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"equities-trading-bot/internal/auth"
	"equities-trading-bot/internal/autopilot"
	"equities-trading-bot/internal/events"
)

// Controller is the workflow surface the API drives
type Controller interface {
	ScanAndTrade(ctx context.Context) *autopilot.Result
	MonitorAndExit(ctx context.Context) *autopilot.Result
	ManualTrade(ctx context.Context, symbol string) *autopilot.Result
	EmergencyStop(ctx context.Context) *autopilot.Result
	Resume(ctx context.Context) *autopilot.Result
	ResetCircuitBreaker(ctx context.Context) error
	Status(ctx context.Context) autopilot.StatusSnapshot
}

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ProductionMode bool
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MetricsPath    string
	TriggerLimit   int // workflow triggers per minute per route
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	controller  Controller
	authService *auth.Service
	hub         *WSHub
	config      ServerConfig
	rateLimiter *RateLimiter
	logger      zerolog.Logger
	started     time.Time
}

// NewServer creates a new API server. metrics may be nil; eventBus may be nil
// in which case the websocket stream carries nothing.
func NewServer(
	config ServerConfig,
	controller Controller,
	authService *auth.Service,
	eventBus *events.EventBus,
	metrics http.Handler,
	logger zerolog.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.TriggerLimit <= 0 {
		config.TriggerLimit = 30
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	logger = logger.With().Str("component", "api").Logger()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) == 0 || (len(config.AllowedOrigins) == 1 && config.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = config.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		controller:  controller,
		authService: authService,
		hub:         NewWSHub(logger),
		config:      config,
		rateLimiter: NewRateLimiter(config.TriggerLimit, time.Minute),
		logger:      logger,
		started:     time.Now(),
	}

	if eventBus != nil {
		eventBus.SubscribeAll(server.hub.BroadcastEvent)
	}

	server.setupRoutes(metrics)
	return server
}

func (s *Server) setupRoutes(metrics http.Handler) {
	if metrics != nil {
		s.router.GET(s.config.MetricsPath, gin.WrapH(metrics))
	}

	api := s.router.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/auth/token", auth.NewHandler(s.authService).Token)

	protected := api.Group("")
	protected.Use(auth.Middleware(s.authService))
	{
		protected.GET("/status", s.handleStatus)
		protected.GET("/circuit-breaker", s.handleCircuitBreaker)
		protected.GET("/ws", s.handleWebSocket)

		triggers := protected.Group("")
		triggers.Use(s.rateLimitMiddleware())
		triggers.POST("/circuit-breaker/reset", s.handleResetCircuitBreaker)
		triggers.POST("/scan", s.handleScan)
		triggers.POST("/monitor", s.handleMonitor)
		triggers.POST("/trade/:symbol", s.handleManualTrade)
		triggers.POST("/resume", s.handleResume)
	}

	// emergency stop is never rate limited
	protected.POST("/emergency-stop", s.handleEmergencyStop)
}

// rateLimitMiddleware limits workflow triggers per route
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.FullPath()) {
			errorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the websocket hub and serves until Shutdown
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go s.hub.Run()
	s.logger.Info().Str("addr", addr).Bool("auth", s.authService.Enabled()).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown stops accepting requests and closes websocket clients
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	s.hub.Stop()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   message,
	})
}
