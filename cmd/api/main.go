package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/loleg/couchers/internal/catalog"
	"github.com/loleg/couchers/internal/config"
	"github.com/loleg/couchers/internal/handler"
	notificationHandler "github.com/loleg/couchers/internal/handler/notification"
	preferenceHandler "github.com/loleg/couchers/internal/handler/preference"
	"github.com/loleg/couchers/internal/middleware"
	"github.com/loleg/couchers/internal/repository/postgres"
	"github.com/loleg/couchers/internal/router"
	notificationService "github.com/loleg/couchers/internal/service/notification"
	preferenceService "github.com/loleg/couchers/internal/service/preference"
	"github.com/loleg/couchers/pkg/auth"
	"github.com/loleg/couchers/pkg/logger"
	"github.com/loleg/couchers/pkg/messaging/redis"
	"github.com/loleg/couchers/pkg/metrics"
	"github.com/loleg/couchers/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.FromZerolog(log.Logger)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create redis broker")
	}
	defer broker.Close()

	signer, err := security.NewSigner([]byte(cfg.Security.RootSecret), "unsubscribe")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token signer")
	}

	m := metrics.New("couchers_api")
	m.Register(prometheus.DefaultRegisterer)

	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository()
	notificationRepo := postgres.NewNotificationRepository()
	preferenceRepo := postgres.NewPreferenceRepository()

	cat := catalog.Default()
	notificationSvc := notificationService.NewService(base, notificationRepo, userRepo, cat, broker, signer, appLogger)
	preferenceSvc := preferenceService.NewService(preferenceRepo, cat)

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.TokenExpiry)
	authMiddleware := middleware.NewAuthMiddleware(jwtSvc)

	r := router.NewRouter(authMiddleware, handler.NewHandler(), router.Config{
		RateLimit: rate.Limit(cfg.RateLimit.RPS),
		RateBurst: cfg.RateLimit.Burst,
	})
	r.Setup(
		notificationHandler.NewHandler(notificationSvc),
		preferenceHandler.NewHandler(preferenceSvc, base),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting api server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
