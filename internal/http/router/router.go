// Package router assembles the HTTP surface: platform middleware, token
// validation, actor loading, and the per-context route groups.
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"salesops_backend/internal/audit"
	custhandler "salesops_backend/internal/customers/handler"
	custrepo "salesops_backend/internal/customers/repository"
	custservice "salesops_backend/internal/customers/service"
	"salesops_backend/internal/directory"
	"salesops_backend/internal/http/middleware"
	mastershandler "salesops_backend/internal/masters/handler"
	mastersrepo "salesops_backend/internal/masters/repository"
	mastersservice "salesops_backend/internal/masters/service"
	queryhandler "salesops_backend/internal/queries/handler"
	queryrepo "salesops_backend/internal/queries/repository"
	queryservice "salesops_backend/internal/queries/service"
	"salesops_backend/internal/sources"
	"salesops_backend/platform/config"
	"salesops_backend/platform/httpkit"
	"salesops_backend/platform/logger"
	"salesops_backend/platform/validator"
)

func New(cfg *config.Config, pool *pgxpool.Pool, log *logger.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(log))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(cfg))

	limiter := httpkit.NewIPRateLimiter(rate.Limit(20), 40, log)
	engine.Use(limiter.RateLimit())

	val := validator.New()

	audits := audit.NewRepository()
	dirRepo := directory.New(pool)
	sourceRepo := sources.New(pool)
	customerRepo := custrepo.New(pool)
	queryRepo := queryrepo.New(pool)
	masterRepo := mastersrepo.New(pool)

	querySvc := queryservice.New(queryRepo, customerRepo, sourceRepo, audits, dirRepo, cfg, log.Logger)
	customerSvc := custservice.New(customerRepo, sourceRepo, audits, dirRepo, log.Logger)
	masterSvc := mastersservice.New(masterRepo, dirRepo, log.Logger)

	engine.GET("/api/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")
	v1.Use(httpkit.AuthRequired(cfg))
	v1.Use(middleware.ActorLoader(dirRepo))

	queryhandler.New(querySvc, val).RegisterRoutes(v1)
	custhandler.New(customerSvc, val).RegisterRoutes(v1)
	mastershandler.New(masterSvc, val).RegisterRoutes(v1)

	return engine
}

func corsMiddleware(cfg config.HTTPConfig) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.GetCORSOrigins()
	}
	return cors.New(corsCfg)
}
