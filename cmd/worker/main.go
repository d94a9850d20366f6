package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/loleg/couchers/internal/catalog"
	"github.com/loleg/couchers/internal/config"
	"github.com/loleg/couchers/internal/email"
	"github.com/loleg/couchers/internal/push"
	"github.com/loleg/couchers/internal/repository/postgres"
	"github.com/loleg/couchers/internal/service/dispatch"
	"github.com/loleg/couchers/internal/service/preference"
	"github.com/loleg/couchers/internal/worker"
	"github.com/loleg/couchers/pkg/logger"
	"github.com/loleg/couchers/pkg/messaging"
	"github.com/loleg/couchers/pkg/messaging/redis"
	"github.com/loleg/couchers/pkg/metrics"
	"github.com/loleg/couchers/pkg/security"
)

func setupHealthCheck(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			log.Error().Err(err).Msg("health check server failed")
			os.Exit(1)
		}
	}()
}

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

	m := metrics.New("couchers_worker")
	m.Register(prometheus.DefaultRegisterer)

	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository()
	notificationRepo := postgres.NewNotificationRepository()
	preferenceRepo := postgres.NewPreferenceRepository()
	deliveryRepo := postgres.NewDeliveryRepository()

	resolver := preference.NewService(preferenceRepo, catalog.Default())
	pushSender := push.NewBrokerSender(broker, messaging.ChannelPushDeliver)
	emailSender := email.NewSMTPService(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		BaseURL:  cfg.SMTP.BaseURL,
	}, signer)

	dispatcher := dispatch.NewService(base, userRepo, notificationRepo, deliveryRepo, resolver, pushSender, appLogger, m)

	emailProcessor := worker.NewEmailProcessor(base, deliveryRepo, notificationRepo, emailSender,
		worker.EmailProcessorConfig{
			CandidateWindow: cfg.Worker.CandidateWindow,
			DedupWindow:     cfg.Worker.DedupWindow,
		}, appLogger, m)
	digestProcessor := worker.NewDigestProcessor(base, userRepo, deliveryRepo, emailSender,
		worker.DigestProcessorConfig{
			Cadence: cfg.Worker.DigestCadence,
		}, appLogger, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupHealthCheck(cfg.Worker.HealthPort)

	// Raised notification ids arrive over the broker and are routed as
	// they come in; the batch processors run on their own schedules.
	raised, err := broker.Subscribe(ctx, messaging.ChannelNotificationRaised)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to raised notifications")
	}
	go func() {
		for msg := range raised {
			var id int64
			if err := json.Unmarshal(msg, &id); err != nil {
				log.Error().Err(err).Str("payload", string(msg)).Msg("malformed raised notification")
				continue
			}
			if err := dispatcher.Route(ctx, id); err != nil {
				log.Error().Err(err).Int64("notification_id", id).Msg("failed to route notification")
			}
		}
	}()

	c := cron.New()
	if _, err := c.AddFunc(cfg.Worker.EmailSchedule, func() {
		if err := emailProcessor.Run(ctx); err != nil {
			log.Error().Err(err).Msg("email batch run failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("invalid email schedule")
	}
	if _, err := c.AddFunc(cfg.Worker.DigestSchedule, func() {
		if err := digestProcessor.Run(ctx); err != nil {
			log.Error().Err(err).Msg("digest batch run failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("invalid digest schedule")
	}
	c.Start()

	log.Info().
		Str("email_schedule", cfg.Worker.EmailSchedule).
		Str("digest_schedule", cfg.Worker.DigestSchedule).
		Msg("worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	cancel()
	<-c.Stop().Done()
}
