// Package httpapi wires the HTTP transport (Gin) to the complaint service,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, and rate limiting.
//
// Middleware is ordered so that every request carries a request id before it
// is logged, and panics are recovered after the logger has been attached.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/complaints-backend/internal/config"
	"github.com/tbourn/complaints-backend/internal/domain"
	"github.com/tbourn/complaints-backend/internal/http/handlers"
	"github.com/tbourn/complaints-backend/internal/http/middleware"
	"github.com/tbourn/complaints-backend/internal/repo"
	"github.com/tbourn/complaints-backend/internal/services"
)

// complaintRepoShim adapts the repository free functions to the
// services.ComplaintRepo interface.
type complaintRepoShim struct{}

// CreateComplaint proxies repo.CreateComplaint.
func (complaintRepoShim) CreateComplaint(ctx context.Context, db *gorm.DB, c *domain.Complaint) error {
	return repo.CreateComplaint(ctx, db, c)
}

// BulkCreateComplaints proxies repo.BulkCreateComplaints.
func (complaintRepoShim) BulkCreateComplaints(ctx context.Context, db *gorm.DB, recs []domain.Complaint, batchSize int) error {
	return repo.BulkCreateComplaints(ctx, db, recs, batchSize)
}

// AppendComplaints proxies repo.AppendComplaints.
func (complaintRepoShim) AppendComplaints(ctx context.Context, db *gorm.DB, recs []domain.Complaint, batchSize int) (int, error) {
	return repo.AppendComplaints(ctx, db, recs, batchSize)
}

// ListComplaints proxies repo.ListComplaints.
func (complaintRepoShim) ListComplaints(ctx context.Context, db *gorm.DB) ([]domain.Complaint, error) {
	return repo.ListComplaints(ctx, db)
}

// GetComplaint proxies repo.GetComplaint.
func (complaintRepoShim) GetComplaint(ctx context.Context, db *gorm.DB, id int64) (*domain.Complaint, error) {
	return repo.GetComplaint(ctx, db, id)
}

// ComplaintsStats proxies repo.ComplaintsStats (ETag support).
func (complaintRepoShim) ComplaintsStats(ctx context.Context, db *gorm.DB) (int64, int64, error) {
	return repo.ComplaintsStats(ctx, db)
}

// idemRepoShim adapts the idempotency free functions to
// services.IdempotencyRepo.
type idemRepoShim struct{}

func (idemRepoShim) GetIdempotency(ctx context.Context, db *gorm.DB, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, scope, key, now)
}

func (idemRepoShim) CreateIdempotency(ctx context.Context, db *gorm.DB, scope, key string, resourceID int64, count, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, scope, key, resourceID, count, status, ttl)
}

// NewComplaintService builds the service from cfg with the repository shims.
func NewComplaintService(db *gorm.DB, cfg config.Config) *services.ComplaintService {
	svc := services.NewComplaintService(db, complaintRepoShim{}, idemRepoShim{})
	svc.Atomic = cfg.Import.Atomic
	if cfg.Import.BatchSize > 0 {
		svc.BatchSize = cfg.Import.BatchSize
	}
	svc.StoreTimeout = cfg.DB.Timeout
	if cfg.IdempotencyTTL > 0 {
		svc.IdempotencyTTL = cfg.IdempotencyTTL
	}
	return svc
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the complaint API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Access log (redacting unless LOG_REDACT=false)
//  4. Recovery: capture panics after logger
//  5. Metrics
//  6. Gzip (never for /metrics)
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per client id or IP, bypass on replay)
//  9. CORS and Security headers
//
// Body limits are per route: JSON submissions use MaxBodyBytes, uploads use
// Import.MaxBytes.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath
	if apiBase == "/" {
		apiBase = ""
	}

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging
	if cfg.LogRedact {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{"X-API-Key"},
		}))
	} else {
		r.Use(middleware.Logger())
	}

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 6) Response compression for list and export payloads
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 7) Idempotency validation (before rate limiting)
	submitPath := apiBase + "/complaints"
	uploadPath := apiBase + "/complaints/upload"
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
			Scope: func(c *gin.Context) string {
				if c.Request.Method != http.MethodPost {
					return ""
				}
				switch c.FullPath() {
				case submitPath:
					return services.ScopeSubmit
				case uploadPath:
					return services.ScopeUpload
				}
				return ""
			},
		},
		func(ctx context.Context, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per client/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByHeaderOrIP("X-Client-ID"))
	r.Use(rl.Handler())

	// 9) CORS posture (allow all if none configured)
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		"X-Client-ID", middleware.HeaderIdempotencyKey, "If-None-Match",
	}
	exposeHeaders := []string{
		"X-Request-ID", "Content-Length", "Content-Disposition", "ETag",
		middleware.HeaderIdempotencyReplayed,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		NoStore:       false,
		EnablePolicy:  true,
		ExposeHeaders: []string{"Content-Disposition", middleware.HeaderIdempotencyReplayed},
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(NewComplaintService(db, cfg))
	r.GET("/", h.Root)

	jsonLimit := limitBody(orDefault64(cfg.MaxBodyBytes, 1<<20))
	uploadLimit := limitBody(orDefault64(cfg.Import.MaxBytes, 32<<20))

	api := groupWithPrefix(r, apiBase)
	{
		api.POST("/complaints", jsonLimit, h.CreateComplaint)
		api.GET("/complaints", h.ListComplaints)
		api.GET("/complaints/export", h.ExportComplaints)
		api.POST("/complaints/upload", uploadLimit, h.UploadComplaints)
		api.POST("/complaints/upload/preview", uploadLimit, h.PreviewUpload)
	}
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader. Requests exceeding the cap will cause
// downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func orDefault64(v, def int64) int64 {
	if v > 0 {
		return v
	}
	return def
}
