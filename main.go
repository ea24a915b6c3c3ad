package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/bitterfly/go-chaos/whoami/database"
	"github.com/bitterfly/go-chaos/whoami/game"
	"github.com/bitterfly/go-chaos/whoami/pending"
	"github.com/bitterfly/go-chaos/whoami/server"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	releaseVersion = "0.1.0"
)

func main() {
	// A missing .env file is fine; the environment and flags still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg).ExecuteContext(ctx))
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newPendingStore(ctx context.Context, cfg *Config, log *zap.Logger) (pending.Store, func() error, error) {
	if cfg.redisURL == "" {
		log.Info("keeping pending actions in memory")
		return pending.NewMemory(), func() error { return nil }, nil
	}

	opts, err := redis.ParseURL(cfg.redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("connected to redis", zap.String("addr", opts.Addr))
	return pending.NewRedis(client, cfg.pendingTTL), client.Close, nil
}

func run(ctx context.Context, cfg *Config) error {
	log, err := newLogger(cfg.verbose)
	if err != nil {
		return fmt.Errorf("could not create logger: %w", err)
	}
	defer log.Sync()

	db, err := database.Open(cfg.databaseDriver, cfg.databaseDSN, log, cfg.verbose)
	if err != nil {
		return err
	}
	log.Info("connected to database", zap.String("driver", cfg.databaseDriver))

	if err := database.Automigrate(db); err != nil {
		return err
	}
	log.Info("migrated the database")

	store := database.NewStore(db)
	defer store.Close()

	pendingStore, closePending, err := newPendingStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closePending()

	secret := cfg.tokenSecret
	if secret == "" {
		if secret, err = server.RandomSecret(32); err != nil {
			return fmt.Errorf("could not generate token secret: %w", err)
		}
		log.Warn("no --token-secret given, session tokens will not survive a restart")
	}
	if cfg.botSecretHash == "" {
		log.Warn("no --bot-secret-hash given, nobody can log in")
	}

	hub := server.NewHub(log.Named("hub"))
	manager := game.NewManager(store, hub, pendingStore, log.Named("game"))
	srv := server.New(manager, hub, server.Config{
		TokenSecret:   secret,
		TokenTTL:      cfg.tokenTTL,
		BotSecretHash: []byte(cfg.botSecretHash),
		InviteURL:     cfg.inviteURL,
	}, log.Named("server"))

	return srv.Connect(ctx, net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)))
}
