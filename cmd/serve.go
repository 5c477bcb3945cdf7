package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/volunteerhub/feed-bff/internal/api"
	"github.com/volunteerhub/feed-bff/internal/config"
	"github.com/volunteerhub/feed-bff/internal/tracing"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Usage: "how long in-flight requests get to finish on shutdown",
				Value: 10 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tp, err := tracing.InitTracing(ctx, tracing.Config{
				ServiceName:    "feed-bff",
				ServiceVersion: version,
				OTLPEndpoint:   cfg.OTLPEndpoint,
				Enabled:        cfg.OTELEnabled,
			})
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()

			var rdb *redis.Client
			if cfg.RLEnabled && cfg.RedisURL != "" {
				opt, err := redis.ParseURL(cfg.RedisURL)
				if err != nil {
					return fmt.Errorf("invalid REDIS_URL: %w", err)
				}
				rdb = redis.NewClient(opt)
				defer rdb.Close()
				if err := rdb.Ping(ctx).Err(); err != nil {
					// The limiter fails open, so a missing Redis is not fatal.
					zlog.Warn().Err(err).Msg("redis_unreachable")
				}
			}

			router, err := api.NewRouter(cfg, rdb)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           router,
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				zlog.Info().Str("port", cfg.Port).Msg("feed BFF starting")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			zlog.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Duration("shutdown-timeout"))
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
