package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/volunteerhub/feed-bff/internal/api/handlers"
	"github.com/volunteerhub/feed-bff/internal/config"
	"github.com/volunteerhub/feed-bff/internal/domain"
	"github.com/volunteerhub/feed-bff/internal/downstream"
	"github.com/volunteerhub/feed-bff/internal/logger"
	"github.com/volunteerhub/feed-bff/internal/proxy"
	"github.com/volunteerhub/feed-bff/internal/session"
	"github.com/volunteerhub/feed-bff/internal/social"
	"github.com/volunteerhub/feed-bff/middleware"
)

const serviceName = "feed-bff"

// NewRouter wires the feed routes, health endpoints and the pass-through
// proxy. rdb may be nil, in which case rate limiting stays in memory.
func NewRouter(cfg *config.Config, rdb *redis.Client) (http.Handler, error) {
	client := downstream.NewClient(downstream.ClientConfig{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, downstream.ContextCredentials{})
	gql := downstream.NewGraphQLClient(client, cfg.GraphQLURL, cfg.QueryMaxRetries)
	rest := downstream.NewRESTClient(client, cfg.RESTURL)
	reader := downstream.NewFeedReader(gql, cfg.PostPageSize, cfg.CommentPageSize)
	writer := downstream.NewFeedWriter(rest)

	facadeCfg := social.Config{PostPageSize: cfg.PostPageSize, CommentPageSize: cfg.CommentPageSize}
	sessions, err := session.NewRegistry(cfg.SessionCacheSize, func(eventID string, viewer domain.Viewer) *social.Facade {
		return social.New(eventID, viewer, reader, writer, facadeCfg)
	})
	if err != nil {
		return nil, fmt.Errorf("session registry: %w", err)
	}

	apiProxy, err := proxy.New(cfg.RESTURL, "/api")
	if err != nil {
		return nil, fmt.Errorf("invalid BACKEND_REST_URL: %w", err)
	}
	gqlProxy, err := proxy.New(cfg.GraphQLURL, "/graphql")
	if err != nil {
		return nil, fmt.Errorf("invalid BACKEND_GRAPHQL_URL: %w", err)
	}

	feed := handlers.NewFeedHandler(sessions)
	ready := handlers.NewReadinessHandler(
		handlers.NewPingChecker("graphql", gql),
		handlers.NewPingChecker("rest", rest),
	)

	r := chi.NewRouter()

	// Request id and viewer go first so the access log carries both.
	r.Use(middleware.RequestID)
	r.Use(middleware.Auth(cfg.JWTSecret))
	// Replace default chi Logger with our structured logger
	r.Use(middleware.RequestLogger(logger.Log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(middleware.Metrics)
	r.Use(middleware.Tracing(serviceName))

	writeLimit := func(next http.Handler) http.Handler { return next }
	if cfg.RLEnabled {
		writeLimit = middleware.RateLimit(rdb, middleware.RateLimitConfig{
			Limit:  cfg.RLLimit,
			Window: cfg.RLWindow,
			KeyFn:  middleware.KeyByUser,
		})
	}

	r.Get("/api/healthz", ready.Healthz)
	r.Get("/api/readyz", ready.Readyz)
	r.Handle("/metrics", middleware.MetricsHandler())

	r.Route("/api/feed/events/{eventID}", func(r chi.Router) {
		r.Get("/", feed.GetFeed)
		r.Post("/reload", feed.Reload)
		r.Post("/retry", feed.Retry)
		r.Get("/posts", feed.ListPosts)
		r.Get("/posts/{postID}/comments", feed.ListComments)
		r.Post("/posts/{postID}/comments/retry", feed.RetryComments)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireViewer)
			r.Use(writeLimit)

			r.Post("/posts", feed.CreatePost)
			r.Put("/posts/{postID}", feed.EditPost)
			r.Delete("/posts/{postID}", feed.DeletePost)
			r.Post("/posts/{postID}/comments", feed.CreateComment)
			r.Delete("/posts/{postID}/comments/{commentID}", feed.DeleteComment)
			r.Put("/comments/{commentID}", feed.EditComment)
			r.Post("/likes", feed.ToggleLike)
			r.Post("/registration", feed.Register)
			r.Delete("/registration", feed.Unregister)
		})
	})

	// Everything else under /api and GraphQL itself go straight to the backend.
	r.Handle("/api/*", apiProxy)
	r.Handle("/graphql", gqlProxy)

	logger.Log.Info().
		Str("rest", cfg.RESTURL).
		Str("graphql", cfg.GraphQLURL).
		Bool("rate_limit", cfg.RLEnabled).
		Bool("redis", rdb != nil).
		Msg("routes_mounted")

	return r, nil
}
