package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"staybook/internal/app/middleware"
	"staybook/internal/app/uow"
	"staybook/internal/domain/property"
	"staybook/internal/infra/broker/kafka"
	rediscache "staybook/internal/infra/cache/redis"
	"staybook/internal/infra/config"
	mongostore "staybook/internal/infra/db/mongo"
	"staybook/internal/infra/db/postgres"
	"staybook/internal/infra/obs"
	infraoutbox "staybook/internal/infra/outbox"
	"staybook/internal/infra/storage/memory"
)

// storage bundles everything one STORAGE_DRIVER provides.
type storage struct {
	factory     uow.UoWFactory
	outbox      infraoutbox.Store
	idempotency middleware.IdempotencyStore
	inbox       kafka.Inbox
	properties  property.Writer
	checks      map[string]obs.Check
	closers     []func(context.Context) error
}

func (s *storage) close(ctx context.Context, logger *slog.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			logger.Warn("storage close failed", "error", err)
		}
	}
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	s := &storage{checks: map[string]obs.Check{}}
	switch cfg.StorageDriver {
	case config.DriverMongo:
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		if err := client.EnsureIndexes(ctx, cfg.IdempotencyTTL); err != nil {
			s.close(ctx, logger)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		s.factory = mongostore.Factory{DB: client.DB}
		s.outbox = mongostore.NewOutboxStore(client.DB)
		s.idempotency = mongostore.NewIdempotencyStore(client.DB)
		s.inbox = mongostore.NewInboxStore(client.DB, cfg.KafkaConsumerGroup)
		s.properties = mongostore.PropertyWriter{DB: client.DB}
		s.checks["mongo"] = client.Ping
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			s.close(ctx, logger)
			return nil, err
		}
		logger.Info("migrations applied")
		s.factory = postgres.Factory{DB: db}
		s.outbox = postgres.NewOutboxStore(db)
		s.idempotency = postgres.NewIdempotencyStore(db, cfg.IdempotencyTTL)
		s.inbox = postgres.NewInboxStore(db, cfg.KafkaConsumerGroup)
		s.properties = postgres.PropertyWriter{DB: db}
		s.checks["postgres"] = pingSQL(db)
	default:
		store := memory.NewStore()
		s.factory = memory.Factory{Store: store}
		s.outbox = store.Outbox()
		s.idempotency = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		s.inbox = memory.NewInbox()
		s.properties = store.PropertyWriter()
	}

	// Redis, when configured, takes over the short-lived keys.
	if cfg.RedisAddr != "" {
		client, err := rediscache.NewClient(ctx, rediscache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			s.close(ctx, logger)
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return client.Close() })
		s.idempotency = rediscache.NewIdempotencyStore(client, "", cfg.IdempotencyTTL)
		s.inbox = rediscache.NewInbox(client, cfg.KafkaConsumerGroup, 0)
		s.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	logger.Info("storage ready", "driver", cfg.StorageDriver, "redis", cfg.RedisAddr != "")
	return s, nil
}

func pingSQL(db *sql.DB) obs.Check {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}
