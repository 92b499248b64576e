package main

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	_ "todoapp/docs" // swagger docs

	"todoapp/internal/auth"
	"todoapp/internal/cache"
	"todoapp/internal/config"
	"todoapp/internal/db"
	"todoapp/internal/handler"
	"todoapp/internal/logger"
	"todoapp/internal/middleware"
	"todoapp/internal/repository"
	"todoapp/internal/router"
	"todoapp/internal/service"
)

// @title To-Do API
// @version 1.0
// @description Personal task lists with recurring tasks, manual ordering and an admin dashboard.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(config.EnvProd)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg.Env)

	rdb, err := db.NewRedis(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("redis init")
	}

	store, err := repository.Open(cfg.Storage, rdb)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("storage init")
	}
	log.Info().Str("backend", cfg.Storage.Backend).Bool("redis", rdb != nil).Msg("storage ready")

	cacheClient := cache.New(rdb, "cache:")

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	tokenStore := auth.NewTokenStore(cacheClient, cfg.Auth.TokenTTL)

	// Initialize services
	locks := service.NewKeyedMutex()
	authService := service.NewAuthService(store.Users(), jwtService, log)
	taskService := service.NewTaskService(store, cacheClient, locks, log)
	adminService := service.NewAdminService(service.AdminDeps{
		Store:      store,
		JWTService: jwtService,
		Revocation: tokenStore,
		Cache:      cacheClient,
		Locks:      locks,
		SignupKey:  cfg.Auth.AdminSignupKey,
	}, log)

	e := echo.New()
	router.Register(e, cfg,
		router.Handlers{
			Auth:   handler.NewAuthHandler(authService),
			Tasks:  handler.NewTaskHandler(taskService),
			Admin:  handler.NewAdminHandler(adminService),
			Health: handler.NewHealthHandler(store, log),
		},
		router.Middlewares{
			UserAuth: middleware.UserAuth(middleware.GateConfig{
				JWT: jwtService, Revocation: tokenStore, Accounts: store.Users(), Log: log,
			}),
			AdminAuth: middleware.AdminAuth(middleware.GateConfig{
				JWT: jwtService, Revocation: tokenStore, Accounts: store.Admins(), Log: log,
			}),
			AuthLimit: middleware.RateLimit(
				middleware.NewLimiterStore(rdb, "auth", cfg.Limits.AuthRequests, cfg.Limits.Window, log), log),
			GeneralLimit: middleware.RateLimit(
				middleware.NewLimiterStore(rdb, "general", cfg.Limits.GeneralRequests, cfg.Limits.Window, log), log),
		},
		log,
	)

	go func() {
		log.Info().Str("port", cfg.ServerPort).Str("env", cfg.Env).Msg("starting http server")
		if err := e.Start(":" + cfg.ServerPort); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown http server")
	}
	closeAll(log, store, rdb)
	log.Info().Msg("shut down http server")
}

func closeAll(log zerolog.Logger, store repository.Store, rdb *redis.Client) {
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("close storage")
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("close redis")
		}
	}
}
