// Package main provides the entrypoint for the air quality notifier: the
// scheduled broadcast, the Telegram bot and the ops server in one process.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/airalert/airalert/internal/airquality"
	"github.com/airalert/airalert/internal/airquality/iqair"
	"github.com/airalert/airalert/internal/alert"
	"github.com/airalert/airalert/internal/api"
	"github.com/airalert/airalert/internal/api/handler"
	"github.com/airalert/airalert/internal/api/middleware"
	"github.com/airalert/airalert/internal/bot"
	"github.com/airalert/airalert/internal/config"
	"github.com/airalert/airalert/internal/provider/resilience"
	"github.com/airalert/airalert/internal/telegram"
	"github.com/airalert/airalert/internal/telemetry"
	"github.com/airalert/airalert/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "airalert-notifier"

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.LogLevel())
	if !cfg.IsProduction() {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.App.Environment).
		Str("telegram_mode", cfg.Telegram.Mode).
		Msg("starting air quality notifier")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("notifier stopped with error")
		os.Exit(1) //nolint:gocritic // deferred stop only releases the signal handler
	}
	log.Info().Msg("notifier stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// Cancelled on signal or when the ops server fails.
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.App.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Secure:         cfg.Telemetry.Secure,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		return err
	}
	pipelineMetrics, err := telemetry.NewPipelineMetrics(tp.Meter)
	if err != nil {
		return err
	}

	registry := resilience.NewRegistry()

	// Data source: IQAir with the coordinate fallback, optionally cached.
	iqairClient := iqair.NewClient(iqair.ClientConfig{
		APIKey:   cfg.IQAir.APIKey,
		BaseURL:  cfg.IQAir.BaseURL,
		Registry: registry,
		Logger:   log,
	})

	var repo airquality.Repository = airquality.NewFallbackRepository(airquality.FallbackConfig{
		Source: iqairClient,
		Logger: log,
	})

	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, cache will fall through")
		}
		cancel()

		repo = airquality.NewCachedRepository(airquality.CacheConfig{
			Repository: repo,
			Client:     rdb,
			TTL:        cfg.Redis.CacheTTL,
			Logger:     log,
		})
		log.Info().
			Str("addr", cfg.Redis.Addr).
			Dur("ttl", cfg.Redis.CacheTTL).
			Msg("measurement cache enabled")
	}

	telegramClient := telegram.NewClient(telegram.ClientConfig{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeout,
		Registry:    registry,
		Logger:      log,
	})

	// One pipeline shared by the broadcast and the bot.
	check := alert.NewCheckAirQuality(repo, cfg.Broadcast.Country)
	notify := alert.NewNotifyAirQuality(alert.NotifyConfig{
		Gateway:  telegramClient,
		Timezone: cfg.Timezone(),
	})
	locations := cfg.Locations()

	broadcast := worker.NewBroadcastJob(worker.BroadcastConfig{
		Check:     check,
		Notify:    notify,
		ChannelID: cfg.Telegram.Channel,
		Locations: locations,
		Metrics:   pipelineMetrics,
		Logger:    log,
	})

	scheduler := worker.NewScheduler(worker.SchedulerConfig{
		Timezone: cfg.Timezone(),
		Logger:   log,
	})
	if err := scheduler.Add(cfg.Broadcast.Schedule, func(ctx context.Context) {
		broadcast.Run(ctx)
	}); err != nil {
		return err
	}

	var (
		wg         sync.WaitGroup
		dispatcher *bot.Dispatcher
		webhook    http.Handler
	)

	if cfg.Telegram.Mode != config.ModeOff {
		dispatcher = bot.NewDispatcher(bot.NewHandler(bot.HandlerConfig{
			Check:          check,
			Notify:         notify,
			Replier:        telegramClient,
			Locations:      locations,
			DefaultState:   cfg.Broadcast.State,
			DefaultCountry: cfg.Broadcast.Country,
			BotName:        cfg.Telegram.BotName,
			Metrics:        pipelineMetrics,
			Logger:         log,
		}), 0, log)
	}

	switch cfg.Telegram.Mode {
	case config.ModeWebhook:
		webhook = bot.NewWebhookHandler(cfg.Telegram.WebhookSecret, dispatcher, log)
		if cfg.Telegram.WebhookURL != "" {
			webhookURL := strings.TrimSuffix(cfg.Telegram.WebhookURL, "/") + api.WebhookPath
			if err := telegramClient.SetWebhook(ctx, webhookURL, cfg.Telegram.WebhookSecret); err != nil {
				return err
			}
			log.Info().Str("url", webhookURL).Msg("telegram webhook registered")
		}
	case config.ModePolling:
		// getUpdates is refused while a webhook is registered.
		if err := telegramClient.DeleteWebhook(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to delete telegram webhook")
		}
		poller := bot.NewPoller(bot.PollerConfig{
			Source:     telegramClient,
			Dispatcher: dispatcher,
			Logger:     log,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = poller.Run(ctx)
		}()
	}

	if cfg.PubSub.Enabled() {
		pubsubHandler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			Runner:           worker.NewJobRunner(broadcast, log),
			Logger:           log,
		})
		if err != nil {
			return err
		}
		defer pubsubHandler.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pubsubHandler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	router := api.NewRouter(api.RouterConfig{
		Ops: handler.OpsConfig{
			Version:   Version,
			BuildTime: BuildTime,
			Broadcast: broadcast,
			Providers: registry,
			Scheduler: scheduler,
			Schedule:  cfg.Broadcast.Schedule,
		},
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     httpMetrics,
		OpsToken:    cfg.App.OpsToken,
		Webhook:     webhook,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("ops server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	scheduler.Start()

	if cfg.Broadcast.OnStart {
		wg.Add(1)
		go func() {
			defer wg.Done()
			broadcast.Run(ctx)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case runErr = <-serverErr:
		log.Error().Err(runErr).Msg("ops server failed, shutting down")
	}
	cancelRun()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ops server forced to shutdown")
	}

	scheduler.Stop()
	wg.Wait()
	if dispatcher != nil {
		dispatcher.Wait()
	}

	return runErr
}
