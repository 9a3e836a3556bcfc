// Package directory holds the room directory backends: in-memory, redis and mongo.
package directory

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dkeye/Spaces/internal/config"
	"github.com/dkeye/Spaces/internal/core"
)

// Store is a directory backend that owns a connection.
type Store interface {
	core.DirectoryStore
	Close() error
}

// Open connects the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.Directory) (Store, error) {
	logger := log.With().Str("module", "adapters.directory").Str("driver", cfg.Driver).Logger()

	switch cfg.Driver {
	case "", "memory":
		logger.Info().Msg("using in-memory directory")
		return nopCloser{NewMemoryStore()}, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		logger.Info().Str("addr", cfg.RedisAddr).Msg("redis directory connected")
		return NewRedisStore(rdb), nil

	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("mongo ping: %w", err)
		}
		store, err := NewMongoStore(connectCtx, client, cfg.MongoDatabase)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		logger.Info().Str("database", cfg.MongoDatabase).Msg("mongo directory connected")
		return store, nil
	}
	return nil, fmt.Errorf("unknown directory driver %q", cfg.Driver)
}

type nopCloser struct{ *MemoryStore }

func (nopCloser) Close() error { return nil }
