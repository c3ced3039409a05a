package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	availabilityapp "staybook/internal/app/handlers/availability"
	bookingapp "staybook/internal/app/handlers/booking"
	feedapp "staybook/internal/app/handlers/feed"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/queries"
	"staybook/internal/app/schedule"
	"staybook/internal/infra/broker/kafka"
	"staybook/internal/infra/config"
	ginserver "staybook/internal/infra/http/gin"
	"staybook/internal/infra/obs"
	infraoutbox "staybook/internal/infra/outbox"
	"staybook/internal/infra/storage/s3"
	"staybook/internal/infra/validation"
)

const devJWTSecret = "staybook-dev-secret"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("dev", "info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, using development secret")
		cfg.JWTSecret = devJWTSecret
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "error", err)
		os.Exit(1)
	}
	defer store.close(context.Background(), logger)

	if _, err := loadPropertyFixtures(ctx, cfg.PropertyFixtures, cfg.DefaultCurrency, store.properties, logger); err != nil {
		logger.Warn("property fixtures load failed", "error", err, "path", cfg.PropertyFixtures)
	}

	app, err := buildApplication(cfg, store, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	var wg sync.WaitGroup
	app.start(ctx, &wg, cfg, logger)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Checks:  store.checks,
		Timeout: 2 * time.Second,
	}, app.handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "env", cfg.Env, "storage", cfg.StorageDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
	}
	wg.Wait()
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers  ginserver.Handlers
	worker    *infraoutbox.Worker
	scheduler *schedule.Scheduler
	consumer  *kafka.Consumer
	producer  *kafka.Producer
}

func buildApplication(cfg config.Config, store *storage, logger *slog.Logger) (*application, error) {
	app := &application{}
	validator := validation.New()
	encoder := outbox.JSONEventEncoder{}

	app.worker = &infraoutbox.Worker{
		Store:        store.outbox,
		Interval:     cfg.OutboxPollInterval,
		TopicPrefix:  cfg.KafkaTopicPrefix,
		Backoff:      cfg.RetryBackoff,
		ClaimTimeout: time.Minute,
		Logger:       logger.With("component", "outbox"),
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, "staybook", nil)
		if err != nil {
			return nil, err
		}
		app.producer = producer
		app.worker.Producer = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, outbox events are logged instead of published")
		app.worker.Producer = logProducer{logger: logger.With("component", "outbox")}
	}

	var uploader feedapp.Uploader
	if cfg.S3Endpoint != "" {
		client, err := s3.NewClient(s3.Options{
			Endpoint:       cfg.S3Endpoint,
			PublicEndpoint: cfg.S3PublicEndpoint,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			Bucket:         cfg.S3Bucket,
			UseSSL:         cfg.S3UseSSL,
			PublicPrefix:   cfg.S3FeedPrefix,
		}, logger.With("component", "s3"))
		if err != nil {
			return nil, err
		}
		uploader = client
		store.checks["s3"] = client.Ping
	}

	// Transactional commands issued by users.
	base := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingapp.CreateBookingCommand, *dto.Booking](base, bookingapp.CreateBookingCommand{}.Key(),
		&bookingapp.CreateBookingHandler{Encoder: encoder, Logger: logger})
	commands.RegisterHandler[bookingapp.TransitionBookingCommand, *dto.Booking](base, bookingapp.TransitionBookingCommand{}.Key(),
		&bookingapp.TransitionBookingHandler{Encoder: encoder, Logger: logger})
	overrides := &availabilityapp.OverrideHandler{Encoder: encoder, Logger: logger}
	commands.RegisterHandler(base, availabilityapp.SetOverrideCommand{}.Key(), overrides.SetHandler())
	commands.RegisterHandler(base, availabilityapp.RemoveOverrideCommand{}.Key(), overrides.RemoveHandler())

	busLogger := logger.With("component", "bus")
	commandBus := middleware.ChainCommands(base,
		middleware.Logging(busLogger),
		middleware.Validation(validator),
		middleware.Authorization(middleware.RequireActor{}),
		middleware.Idempotency(store.idempotency, nil, logger),
		middleware.OutboxFlush(app.worker, logger),
		middleware.Transaction(store.factory, middleware.FixedTimeout(cfg.TxTimeout)),
	)

	// Maintenance commands open their own units.
	feeds := &feedapp.Handler{UoWFactory: store.factory, Uploader: uploader, KeyPrefix: cfg.S3FeedPrefix, Logger: logger}
	maintenance := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingapp.CompleteFinishedStaysCommand, *dto.CompletionReport](maintenance, bookingapp.CompleteFinishedStaysCommand{}.Key(),
		&bookingapp.CompleteFinishedStaysHandler{UoWFactory: store.factory, Commands: commandBus, Logger: logger})
	commands.RegisterHandler(maintenance, feedapp.PublishCalendarFeedCommand{}.Key(), feeds.PublishHandler())
	maintenanceBus := middleware.ChainCommands(maintenance, middleware.Logging(busLogger), middleware.Validation(validator))

	queryBase := queries.NewInMemoryBus()
	queries.RegisterHandler[bookingapp.ListBookingsQuery, dto.BookingPage](queryBase, bookingapp.ListBookingsQuery{}.Key(),
		&bookingapp.ListBookingsHandler{UoWFactory: store.factory, Logger: logger})
	queries.RegisterHandler[bookingapp.GetBookingQuery, *dto.Booking](queryBase, bookingapp.GetBookingQuery{}.Key(),
		&bookingapp.GetBookingHandler{UoWFactory: store.factory})
	queries.RegisterHandler[availabilityapp.GetAvailabilityQuery, dto.Availability](queryBase, availabilityapp.GetAvailabilityQuery{}.Key(),
		&availabilityapp.GetAvailabilityHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBase, feedapp.GetCalendarFeedQuery{}.Key(), feeds.GetHandler())
	queryBus := middleware.ChainQueries(queryBase,
		middleware.QueryLogging(busLogger),
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(middleware.RequireActor{}),
	)

	app.scheduler = &schedule.Scheduler{
		Commands: maintenanceBus,
		Spec:     cfg.CompletionSchedule,
		Logger:   logger.With("component", "scheduler"),
	}

	if len(cfg.KafkaBrokers) > 0 && uploader != nil {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, nil, &kafka.FeedRefresher{
			Commands: maintenanceBus,
			Inbox:    store.inbox,
			Logger:   logger.With("component", "feeds"),
		}, logger.With("component", "kafka"))
		if err != nil {
			return nil, err
		}
		app.consumer = consumer
	}

	app.handlers = ginserver.Handlers{
		Booking:        ginserver.BookingHandler{Commands: commandBus, Queries: queryBus, Logger: logger},
		Availability:   ginserver.AvailabilityHandler{Commands: commandBus, Queries: queryBus, Logger: logger},
		Feed:           ginserver.FeedHandler{Queries: queryBus, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Secret: []byte(cfg.JWTSecret), Logger: logger}.Handle,
	}
	return app, nil
}

func (a *application) start(ctx context.Context, wg *sync.WaitGroup, cfg config.Config, logger *slog.Logger) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox worker stopped", "error", err)
		}
	}()

	if err := a.scheduler.Start(ctx); err != nil {
		logger.Error("scheduler start failed", "error", err)
	}

	if a.consumer != nil {
		topics := kafka.FeedTopics(cfg.KafkaTopicPrefix)
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("feed consumer starting", "topics", topics, "group", cfg.KafkaConsumerGroup)
			if err := a.consumer.Run(ctx, topics); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("feed consumer stopped", "error", err)
			}
		}()
	}
}

func (a *application) close(logger *slog.Logger) {
	a.scheduler.Stop()
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			logger.Warn("kafka consumer close failed", "error", err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			logger.Warn("kafka producer close failed", "error", err)
		}
	}
}

// logProducer stands in for Kafka when no brokers are configured.
type logProducer struct {
	logger *slog.Logger
}

func (p logProducer) Publish(_ context.Context, topic, key string, payload []byte, _ map[string]string) error {
	p.logger.Debug("event", "topic", topic, "key", key, "size", len(payload))
	return nil
}
