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
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/mbd888/saaskit/internal/audit"
	"github.com/mbd888/saaskit/internal/auth"
	"github.com/mbd888/saaskit/internal/billing"
	"github.com/mbd888/saaskit/internal/catalog"
	"github.com/mbd888/saaskit/internal/config"
	"github.com/mbd888/saaskit/internal/files"
	"github.com/mbd888/saaskit/internal/health"
	"github.com/mbd888/saaskit/internal/httpx"
	"github.com/mbd888/saaskit/internal/logging"
	"github.com/mbd888/saaskit/internal/metrics"
	"github.com/mbd888/saaskit/internal/notify"
	"github.com/mbd888/saaskit/internal/org"
	"github.com/mbd888/saaskit/internal/ratelimit"
	"github.com/mbd888/saaskit/internal/realtime"
	"github.com/mbd888/saaskit/internal/security"
	"github.com/mbd888/saaskit/internal/usage"
	"github.com/mbd888/saaskit/internal/user"
	"github.com/mbd888/saaskit/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	orgService   *org.Service
	userService  *user.Service
	usageService *usage.Service
	catalog      *catalog.Service
	billing      *billing.Service
	files        *files.Service
	notify       *notify.Service
	auditRec     *audit.Recorder
	tokens       *auth.TokenManager
	keys         *auth.Manager
	hub          *realtime.Hub
	usageTimer   *usage.Timer
	billingTimer *billing.Timer
	rateLimiter  *ratelimit.Limiter
	checks       *health.Registry
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

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
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
		checks: health.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Per-concern stores (Postgres if DATABASE_URL set, otherwise in-memory)
	var (
		orgStore     org.Store
		userStore    user.Store
		keyStore     auth.KeyStore
		catalogStore catalog.Store
		billingStore billing.Store
		usageStore   usage.Store
		fileStore    files.Store
		notifyStore  notify.Store
		auditStore   audit.Store
	)

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.checks.Register("database", health.PingChecker("database", db.PingContext))
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		orgStore = org.NewPostgresStore(db)
		userStore = user.NewPostgresStore(db)
		keyStore = auth.NewPostgresKeyStore(db)
		catalogStore = catalog.NewPostgresStore(db)
		billingStore = billing.NewPostgresStore(db)
		usageStore = usage.NewPostgresStore(db)
		fileStore = files.NewPostgresStore(db)
		notifyStore = notify.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")

		orgStore = org.NewMemoryStore()
		userStore = user.NewMemoryStore()
		keyStore = auth.NewMemoryKeyStore()
		catalogStore = catalog.NewMemoryStore()
		billingStore = billing.NewMemoryStore()
		usageStore = usage.NewMemoryStore()
		fileStore = files.NewMemoryStore()
		notifyStore = notify.NewMemoryStore()
		auditStore = audit.NewMemoryStore()
	}

	// Realtime hub fans notifications out over WebSocket
	s.hub = realtime.NewHub(s.logger)

	s.notify = notify.NewService(notifyStore, userStore, s.hub)
	s.usageService = usage.NewService(usageStore, orgStore, s.notify)
	s.userService = user.NewService(userStore, orgStore, &userHooks{
		usage:  s.usageService,
		notify: s.notify,
	})

	// The provisioner closes the org -> user -> billing loop: billing needs
	// the org service, which needs the provisioner, which needs billing.
	prov := &ownerProvisioner{users: s.userService}
	s.orgService = org.NewService(orgStore, prov)

	var gateway billing.Gateway
	if cfg.StripeAPIKey != "" {
		gateway = billing.NewStripeGateway(cfg.StripeAPIKey)
		s.logger.Info("stripe sync enabled")
	}
	s.billing = billing.NewService(billingStore, s.orgService, s.notify, gateway)
	prov.billing = s.billing

	s.catalog = catalog.NewService(catalogStore, orgStore, s.usageService)

	storage, err := files.NewDiskStorage(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	s.files = files.NewService(fileStore, storage, s.usageService, cfg.MaxUploadSize)

	s.auditRec = audit.NewRecorder(auditStore)

	s.tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	s.keys = auth.NewManager(keyStore)

	// Recompute sources for the metering pass. api_calls has no base table
	// to recount from; it only accumulates through the request middleware.
	s.usageService.RegisterCounter(usage.FeatureUsers, func(ctx context.Context, orgID string, _, _ time.Time) (int64, error) {
		n, err := userStore.CountByOrg(ctx, orgID)
		return int64(n), err
	})
	s.usageService.RegisterCounter(usage.FeatureProducts, func(ctx context.Context, orgID string, _, _ time.Time) (int64, error) {
		return catalogStore.CountProducts(ctx, orgID)
	})
	s.usageService.RegisterCounter(usage.FeatureStorage, func(ctx context.Context, orgID string, _, _ time.Time) (int64, error) {
		return s.files.TotalSize(ctx, orgID)
	})
	s.usageService.RegisterCounter(usage.FeatureDailyActivities, func(ctx context.Context, orgID string, _, _ time.Time) (int64, error) {
		// Yesterday's activity rollup, regardless of the metering period.
		today := time.Now().UTC().Truncate(24 * time.Hour)
		return auditStore.CountSince(ctx, orgID, today.Add(-24*time.Hour), today)
	})

	s.usageTimer = usage.NewTimer(s.usageService, cfg.MeteringInterval, s.logger)
	s.billingTimer = billing.NewTimer(s.billing, cfg.BillingInterval, s.logger)

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

	// Request size limit: 1MB for JSON endpoints, the upload cap for files
	s.router.Use(s.sizeLimitMiddleware())

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPM > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())

	// Credential resolution (JWT, API key, ops secret); does not abort
	s.router.Use(auth.Middleware(s.tokens, s.keys, s.cfg.AdminSecret))

	// Audit capture for mutating requests
	s.router.Use(audit.Middleware(s.auditRec, auth.CurrentActor))

	// API call metering per authenticated tenant request
	s.router.Use(s.apiCallsMiddleware())
}

func (s *Server) sizeLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := int64(validation.MaxRequestSize)
		if c.Request.Method == http.MethodPost && strings.HasPrefix(c.Request.URL.Path, "/v1/files") {
			// Multipart overhead on top of the file itself
			limit = s.cfg.MaxUploadSize + validation.MaxRequestSize
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

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

// apiCallsMiddleware counts authenticated tenant requests against the
// api_calls usage counter. Metering failures never fail the request.
func (s *Server) apiCallsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := auth.CurrentActor(c)
		if ok && actor.OrgID != "" && strings.HasPrefix(c.Request.URL.Path, "/v1/") {
			if err := s.usageService.Increment(c.Request.Context(), actor.OrgID, usage.FeatureAPICalls, 1); err != nil {
				logging.L(c.Request.Context()).Warn("api call metering failed",
					"org_id", actor.OrgID, "error", err)
			}
		}
		c.Next()
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

	s.router.GET("/", s.infoHandler)

	// WebSocket for real-time notifications; the connection is scoped to
	// the authenticated user's organization
	s.router.GET("/ws", func(c *gin.Context) {
		actor, ok := auth.CurrentActor(c)
		if !ok || actor.OrgID == "" {
			httpx.Unauthorized(c, "authentication required")
			return
		}
		s.hub.HandleWebSocket(c.Writer, c.Request, actor.OrgID, actor.ID)
	})

	orgHandler := org.NewHandler(s.orgService, auth.CurrentActor)
	userHandler := user.NewHandler(s.userService, auth.CurrentActor)
	authHandler := auth.NewHandler(s.tokens, s.keys, s.userService, s.orgService.Store())
	catalogHandler := catalog.NewHandler(s.catalog, auth.CurrentActor)
	billingHandler := billing.NewHandler(s.billing, auth.CurrentActor)
	usageHandler := usage.NewHandler(s.usageService, auth.CurrentActor)
	fileHandler := files.NewHandler(s.files, auth.CurrentActor)
	notifyHandler := notify.NewHandler(s.notify, auth.CurrentActor)
	auditHandler := audit.NewHandler(s.auditRec, auth.CurrentActor)

	v1 := s.router.Group("/v1")

	// PUBLIC ROUTES (signup and token endpoints)
	orgHandler.RegisterPublicRoutes(v1)
	authHandler.RegisterPublicRoutes(v1)

	// PROTECTED ROUTES (require a resolved actor; role checks live in the
	// handlers themselves)
	protected := v1.Group("")
	protected.Use(auth.RequireAuth())
	{
		orgHandler.RegisterProtectedRoutes(protected)
		userHandler.RegisterProtectedRoutes(protected)
		authHandler.RegisterProtectedRoutes(protected)
		catalogHandler.RegisterProtectedRoutes(protected)
		billingHandler.RegisterProtectedRoutes(protected)
		usageHandler.RegisterProtectedRoutes(protected)
		fileHandler.RegisterProtectedRoutes(protected)
		notifyHandler.RegisterProtectedRoutes(protected)
		auditHandler.RegisterProtectedRoutes(protected)
	}

	// STAFF ROUTES (platform operators only)
	staff := v1.Group("")
	staff.Use(auth.RequireAuth(), auth.RequireStaff())
	{
		orgHandler.RegisterStaffRoutes(staff)
		usageHandler.RegisterStaffRoutes(staff)
	}
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "saaskit",
		"description": "Multi-tenant SaaS backend",
		"version":     "0.1.0",
	})
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.checks.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"version":   "0.1.0",
		"checks":    statuses,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
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

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.hub.Run(runCtx)

	// Start metering and renewal timers
	go s.usageTimer.Start(runCtx)
	go s.billingTimer.Start(runCtx)

	// Sample DB pool stats into Prometheus gauges
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
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

	// Cancel the context for all background goroutines (hub, timers)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(2 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	s.usageTimer.Stop()
	s.billingTimer.Stop()

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

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
