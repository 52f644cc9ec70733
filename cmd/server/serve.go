package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/churchfinder/internal/config"
	"github.com/iliyamo/churchfinder/internal/handler"
	"github.com/iliyamo/churchfinder/internal/middleware"
	"github.com/iliyamo/churchfinder/internal/queue"
	"github.com/iliyamo/churchfinder/internal/repository"
	"github.com/iliyamo/churchfinder/internal/router"
	"github.com/iliyamo/churchfinder/internal/service"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	ctx := cmd.Context()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis backs the response cache and the rate limiter.  Both turn into
	// no-ops when it is unreachable.
	var rdb *redis.Client
	if rdb, err = config.NewRedisClient(ctx, config.LoadRedisConfig()); err != nil {
		log.Warn("redis unavailable, cache and rate limiting disabled", zap.Error(err))
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)
	cache := middleware.NewRedisCache(cacheCfg, rdb, log)

	var events handler.EventPublisher = service.Nop{}
	if cfg.RabbitURL != "" {
		pub := service.NewPublisher(cfg.RabbitURL, log)
		defer func() { _ = pub.Close() }()
		events = pub

		consumer := &queue.Consumer{URL: cfg.RabbitURL, Handle: queue.AuditLogger(log), Log: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("event consumer stopped", zap.Error(err))
			}
		}()
	}

	churches := repository.NewChurchRepo(db)
	checkIns := repository.NewCheckInRepo(db)

	public := &handler.ChurchHandler{Churches: churches, CheckIns: checkIns, Log: log}
	admin := &handler.AdminHandler{
		Churches:   churches,
		Events:     events,
		Invalidate: func(ctx context.Context) error { return middleware.InvalidateCache(ctx, rdb, cacheCfg) },
		Log:        log,
	}
	if ix := openIndex(ctx, cfg, log); ix != nil {
		public.Search = ix
		admin.Index = ix
	}
	auth := &handler.AuthHandler{
		Cfg:    cfg,
		Users:  repository.NewUserRepo(db),
		Tokens: repository.NewTokenRepo(db),
		Log:    log,
	}
	user := &handler.UserHandler{
		Favorites: repository.NewFavoriteRepo(db),
		CheckIns:  checkIns,
		Claims:    repository.NewClaimRepo(db),
		Events:    events,
		Log:       log,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLog(log))
	e.Use(echomw.Recover())

	router.RegisterRoutes(e, db)
	router.RegisterPublic(e, public, rateLimit, cache)
	router.RegisterAuth(e, auth, rateLimit)
	router.RegisterUser(e, auth, user, cfg.JWTSecret, rateLimit)
	router.RegisterAdmin(e, admin, cfg.JWTSecret)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}
