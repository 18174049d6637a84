package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/prepdesk/b2bquota/internal/cache"
	"github.com/prepdesk/b2bquota/internal/config"
	"github.com/prepdesk/b2bquota/internal/db"
	quotahttp "github.com/prepdesk/b2bquota/internal/http"
	"github.com/prepdesk/b2bquota/internal/http/api"
	"github.com/prepdesk/b2bquota/internal/logging"
	"github.com/prepdesk/b2bquota/internal/members"
	"github.com/prepdesk/b2bquota/internal/quota"
	"github.com/prepdesk/b2bquota/internal/settings"
)

// Migrate opens the database, runs migrations, and seeds the test-type
// catalog.
func Migrate(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	return quota.SeedTestTypes(conn.WithContext(ctx))
}

// RunServer boots the quota API server with database-backed components.
func RunServer(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Log)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errSeed := quota.SeedTestTypes(conn.WithContext(ctx)); errSeed != nil {
		return errSeed
	}
	if errValidate := quota.ValidateCatalog(ctx, conn); errValidate != nil {
		return errValidate
	}
	if errSettings := settings.Refresh(ctx, conn); errSettings != nil {
		return fmt.Errorf("load settings: %w", errSettings)
	}

	var summaryCache *cache.SummaryCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if errPing := rdb.Ping(ctx).Err(); errPing != nil {
			log.WithError(errPing).Warn("redis unreachable, summary cache disabled")
		} else {
			summaryCache = cache.NewSummaryCache(rdb, settings.SummaryCacheTTL())
		}
	}

	engine := quota.NewEngine(conn, summaryCache)
	memberSvc := members.NewService(conn, engine)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(quotahttp.RequestLogMiddleware(), gin.Recovery())
	api.RegisterRoutes(router, conn, engine, memberSvc, cfg.JWT)

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("listen", cfg.Listen).Info("quota server started")
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return <-errCh
	case errServe := <-errCh:
		return errServe
	}
}
