package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/contactvault/contactvault/internal/bootstrap"
	"github.com/contactvault/contactvault/internal/config"
	httptransport "github.com/contactvault/contactvault/internal/http"
	"github.com/contactvault/contactvault/internal/http/handler"
	httpmiddleware "github.com/contactvault/contactvault/internal/http/middleware"
	"github.com/contactvault/contactvault/internal/mailer"
	apimiddleware "github.com/contactvault/contactvault/internal/middleware"
	"github.com/contactvault/contactvault/internal/repository"
	"github.com/contactvault/contactvault/internal/server"
	"github.com/contactvault/contactvault/internal/service"
	"github.com/contactvault/contactvault/internal/storage"
	"github.com/contactvault/contactvault/internal/telemetry"
	"github.com/contactvault/contactvault/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newContactRepository,
			newRedisClient,
			newTokenService,
			newMailer,
			newAvatarStore,
			newRateLimiter,
			newQuota,
			service.NewAuthService,
			service.NewContactService,
			handler.NewAuthHandler,
			handler.NewContactHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureAdmin, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if err := repository.Migrate(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newContactRepository(pool *pgxpool.Pool) repository.ContactRepository {
	return repository.NewPostgresContactRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newTokenService(cfg config.Config) *token.Service {
	return token.New([]byte(cfg.SecretKey), cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.EmailTokenTTL)
}

func newMailer(cfg config.Config, logger *zap.Logger) mailer.Dispatcher {
	return mailer.NewHTTPMailer(cfg, logger)
}

func newAvatarStore(cfg config.Config) (storage.AvatarStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return storage.NewS3Store(ctx, cfg)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newQuota(client *redis.Client, cfg config.Config, logger *zap.Logger) *apimiddleware.Quota {
	return apimiddleware.NewQuota(client, cfg.QuotaLimit, cfg.QuotaWindow, logger)
}

func newAuthMiddleware(tokens *token.Service, contacts repository.ContactRepository) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{Tokens: tokens, Contacts: contacts}
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
