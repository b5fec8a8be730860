package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"user_service/internal/auth"
	"user_service/internal/config"
	"user_service/internal/handler"
	"user_service/internal/service"
	"user_service/internal/storage"

	"github.com/gin-gonic/gin"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to the YAML config file")

	flag.Parse()
	if configPath == "" {
		log.Fatal("failed get config path from flags")
	}

	cfg := config.MustLoadConfig(configPath)

	lgr := setupLogger(cfg.Env)
	lgr.Info("starting user service", slog.String("env", cfg.Env), slog.String("storage", cfg.Storage))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := setupStorage(ctx, cfg)
	if err != nil {
		lgr.Error("failed to init storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	tokens, err := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.TokenTTL)
	if err != nil {
		lgr.Error("failed to init token service", slog.Any("error", err))
		os.Exit(1)
	}

	authSrvc := service.NewAuthService(st, hasher, tokens, lgr)
	userSrvc := service.NewUserService(st, hasher, tokens, lgr)

	if cfg.Admin.Email != "" {
		if _, err := userSrvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			lgr.Error("failed to seed admin account", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if cfg.Env == envProd {
		gin.SetMode(gin.ReleaseMode)
	}

	web := handler.WebOptions{
		AllowedOrigins:        cfg.CORSAllowedOrigins,
		ContentSecurityPolicy: cfg.ContentSecurityPolicy,
		HSTSMaxAge:            cfg.HSTSMaxAge,
	}

	h := handler.NewHandler(authSrvc, userSrvc, tokens, st, web, lgr)

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      h.InitRoutes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		lgr.Info("http server listening", slog.String("address", cfg.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lgr.Error("http server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	lgr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("failed to shut down http server", slog.Any("error", err))
	}
}

func setupStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	if cfg.Storage == config.StorageMemory {
		return storage.NewMemoryStorage(), nil
	}

	return storage.NewPostgresStorage(ctx, cfg.DbURL, cfg.ConnectAttempts)
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
