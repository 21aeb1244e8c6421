package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/finsight/walletauth/adapters/events"
	"github.com/finsight/walletauth/adapters/siwe"
	"github.com/finsight/walletauth/adapters/store"
	"github.com/finsight/walletauth/adapters/tokenizer"
	"github.com/finsight/walletauth/core"
	"github.com/finsight/walletauth/internal/config"
	"github.com/finsight/walletauth/internal/logger"
	"github.com/finsight/walletauth/ports"
	"github.com/finsight/walletauth/service"
	transport "github.com/finsight/walletauth/transport/http"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := context.Background()
	clock := core.SystemClock{}

	db, err := store.NewPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("connected to database")

	builder := siwe.NewChallengeBuilder(
		cfg.SIWEDomain, cfg.SIWEURI, cfg.SIWEStatement,
		cfg.ChainID, cfg.NonceTTL, clock,
	)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to parse redis URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("failed to ping redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
	}

	var nonceStore ports.NonceStore
	switch cfg.NonceBackend {
	case "redis":
		nonceStore = store.NewRedisNonceStore(redisClient, builder, clock)
	default:
		nonceStore = store.NewPostgresNonceStore(db, builder, clock)
	}
	slog.Info("initialized nonce store", "backend", cfg.NonceBackend)

	var eventPub ports.EventPublisher = events.NewNopPublisher()
	if redisClient != nil {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermill.NewSlogLogger(slog.Default()),
		)
		if err != nil {
			slog.Error("failed to create event publisher", "error", err)
			os.Exit(1)
		}
		eventPub = events.NewWatermillPublisher(publisher)
	}

	walletService := service.NewWalletService(
		nonceStore,
		store.NewPostgresWalletStore(db, clock),
		store.NewPostgresUserStore(db),
		tokenizer.NewJWTTokenizer([]byte(cfg.JWTSecret), cfg.TokenTTL, clock),
		eventPub,
	)

	router := transport.SetupRouter(walletService)

	slog.Info("starting server", "port", cfg.Port)
	if err := router.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
