// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mbd888/ringtrace/internal/analysis"
	"github.com/mbd888/ringtrace/internal/auth"
	"github.com/mbd888/ringtrace/internal/config"
	"github.com/mbd888/ringtrace/internal/graph"
	"github.com/mbd888/ringtrace/internal/health"
	"github.com/mbd888/ringtrace/internal/logging"
	"github.com/mbd888/ringtrace/internal/metrics"
	"github.com/mbd888/ringtrace/internal/ratelimit"
	"github.com/mbd888/ringtrace/internal/realtime"
	"github.com/mbd888/ringtrace/internal/scoring"
	"github.com/mbd888/ringtrace/internal/security"
	"github.com/mbd888/ringtrace/internal/syncutil"
	"github.com/mbd888/ringtrace/internal/traces"
	"github.com/mbd888/ringtrace/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg         *config.Config
	graphSvc    *graph.Service
	analysisSvc *analysis.Service
	authMgr     *auth.Manager
	sweeper     *analysis.Sweeper
	realtimeHub *realtime.Hub
	rateLimiter *ratelimit.Limiter
	healthReg   *health.Registry
	db          *sql.DB // nil if using in-memory
	router      *gin.Engine
	httpSrv     *http.Server
	logger      *slog.Logger

	shutdownTraces func(context.Context) error
	cancelRunCtx   context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logging.New(cfg.LogLevel, cfg.LogFormat),
		healthReg: health.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	// Shared per-graph locks: graph mutation and analysis of the same
	// graph must never interleave.
	locks := syncutil.NewContextShardedMutex()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var (
		graphStore  graph.Store
		resultStore analysis.Store
		authStore   auth.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		graphPG := graph.NewPostgresStore(db)
		if err := graphPG.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate graph store", "error", err)
		}
		graphStore = graphPG

		analysisPG := analysis.NewPostgresStore(db)
		if err := analysisPG.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate analysis store", "error", err)
		}
		resultStore = analysisPG

		authPG := auth.NewPostgresStore(db)
		if err := authPG.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate auth store", "error", err)
		}
		authStore = authPG

		s.healthReg.Register("database", func(ctx context.Context) health.Status {
			if err := db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")
		graphStore = graph.NewMemoryStore()
		resultStore = analysis.NewMemoryStore()
		authStore = auth.NewMemoryStore()
	}

	s.authMgr = auth.NewManager(authStore)

	s.graphSvc = graph.NewService(graphStore, locks, graph.Limits{
		MaxNodesPerGraph: cfg.MaxNodesPerGraph,
		MaxEdgesPerGraph: cfg.MaxEdgesPerGraph,
	})
	s.analysisSvc = analysis.NewService(graphStore, resultStore, locks)

	// Upstream risk scorer fills in missing node risk scores when configured
	if cfg.ScorerURL != "" {
		s.graphSvc.SetScorer(scoring.NewClient(cfg.ScorerURL))
		s.logger.Info("upstream risk scorer enabled", "url", cfg.ScorerURL)
	}

	// Result retention sweeper
	s.sweeper = analysis.NewSweeper(resultStore, analysis.Retention{
		MaxAge:       time.Duration(cfg.AnalysisRetentionDays) * 24 * time.Hour,
		KeepPerGraph: cfg.MaxResultsPerGraph,
	}, s.logger)

	// Realtime hub for WebSocket streaming; it feeds on graph and
	// analysis lifecycle events.
	s.realtimeHub = realtime.NewHub(s.logger)
	s.graphSvc.SetEvents(s.realtimeHub)
	s.analysisSvc.SetEvents(s.realtimeHub)
	s.logger.Info("realtime streaming enabled")

	// Tracing (no-op when OTLP endpoint is unset)
	shutdownTraces, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.shutdownTraces = shutdownTraces
	}

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(security.CORSMiddleware(origins))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	rlCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/api", s.infoHandler)

	// WebSocket for real-time streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// V1 API group. Auth is soft here: reads stay open, mutations are
	// gated per-route below.
	v1 := s.router.Group("/v1")
	v1.Use(auth.Middleware(s.authMgr))

	graphHandler := graph.NewHandler(s.graphSvc)
	analysisHandler := analysis.NewHandler(s.analysisSvc)
	authHandler := auth.NewHandler(s.authMgr, s.cfg.AdminSecret, s.cfg.IsDevelopment())

	// PUBLIC ROUTES (no auth required) - the read side
	v1.GET("/graphs", graphHandler.ListGraphs)
	v1.GET("/graphs/:id", graphHandler.GetGraph)
	v1.GET("/graphs/:id/nodes", graphHandler.ListNodes)
	v1.GET("/graphs/:id/nodes/:nodeId", graphHandler.GetNode)
	v1.GET("/graphs/:id/edges", graphHandler.ListEdges)
	v1.GET("/graphs/:id/edges/:edgeId", graphHandler.GetEdge)
	v1.GET("/graphs/:id/stats", analysisHandler.Stats)
	v1.GET("/graphs/:id/analyses", analysisHandler.ListResults)
	v1.GET("/analyses/:id", analysisHandler.GetResult)

	// Realtime hub stats
	v1.GET("/realtime/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.realtimeHub.Stats())
	})

	// Auth info and key management (key issuance is gated inside the handler)
	authHandler.RegisterRoutes(v1)

	// PROTECTED ROUTES (require API key) - everything that mutates or
	// triggers computation
	protected := v1.Group("")
	protected.Use(auth.RequireAuth(s.authMgr))
	{
		protected.POST("/graphs", graphHandler.CreateGraph)
		protected.PATCH("/graphs/:id", graphHandler.UpdateGraph)
		protected.DELETE("/graphs/:id", graphHandler.DeleteGraph)

		protected.POST("/graphs/:id/nodes", graphHandler.AddNode)
		protected.PATCH("/graphs/:id/nodes/:nodeId", graphHandler.UpdateNode)
		protected.DELETE("/graphs/:id/nodes/:nodeId", graphHandler.DeleteNode)

		protected.POST("/graphs/:id/edges", graphHandler.AddEdge)

		protected.POST("/graphs/:id/analyze", analysisHandler.Analyze)
		protected.POST("/graphs/:id/rings", analysisHandler.DetectRings)
		protected.POST("/graphs/:id/communities", analysisHandler.DetectCommunities)
	}
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthReg.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Ringtrace",
		"description": "Fraud detection graph analysis API",
		"version":     "0.1.0",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start result retention sweeper
	go s.sweeper.Start(runCtx)

	// Collect database pool stats for Prometheus
	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, sweeper)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop result sweeper
	if s.sweeper != nil {
		s.sweeper.Stop()
		s.logger.Info("result sweeper stopped")
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush pending trace spans
	if s.shutdownTraces != nil {
		if err := s.shutdownTraces(ctx); err != nil {
			s.logger.Warn("trace shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
