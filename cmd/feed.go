package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/volunteerhub/feed-bff/internal/config"
	"github.com/volunteerhub/feed-bff/internal/domain"
	"github.com/volunteerhub/feed-bff/internal/downstream"
	"github.com/volunteerhub/feed-bff/internal/optimistic"
	"github.com/volunteerhub/feed-bff/internal/social"
	"github.com/volunteerhub/feed-bff/middleware"
)

func feedCmd() *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "Read or write one event feed",
		Description: `Talks to the backend directly with the token in FEED_BEARER_TOKEN and
prints the resulting feed as JSON on stdout.`,
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print a page of the feed",
				Flags: []cli.Flag{eventFlag(), &cli.IntFlag{Name: "page", Usage: "post page, 0-based"}},
				Action: func(c *cli.Context) error {
					ctx, f, err := openFeed(c)
					if err != nil {
						return err
					}
					if page := c.Int("page"); page > 0 {
						if err := f.ChangePostPage(ctx, page); err != nil {
							return err
						}
					}
					return printJSON(c.App.Writer, f.Snapshot())
				},
			},
			{
				Name:  "post",
				Usage: "Create a post",
				Flags: []cli.Flag{eventFlag(), contentFlag()},
				Action: func(c *cli.Context) error {
					return mutate(c, func(ctx context.Context, f *social.Facade) optimistic.Outcome {
						return f.CreatePost(ctx, c.String("content"))
					})
				},
			},
			{
				Name:  "comment",
				Usage: "Comment on a post",
				Flags: []cli.Flag{
					eventFlag(),
					&cli.StringFlag{Name: "post", Usage: "post id", Required: true},
					contentFlag(),
				},
				Action: func(c *cli.Context) error {
					return mutate(c, func(ctx context.Context, f *social.Facade) optimistic.Outcome {
						return f.CreateComment(ctx, c.String("post"), c.String("content"))
					})
				},
			},
			{
				Name:  "like",
				Usage: "Toggle a like on the event, a post or a comment",
				Flags: []cli.Flag{
					eventFlag(),
					&cli.StringFlag{Name: "target-type", Usage: "EVENT, POST or COMMENT", Value: string(domain.TargetPost)},
					&cli.StringFlag{Name: "target-id", Usage: "id of the liked item (defaults to the event)"},
				},
				Action: func(c *cli.Context) error {
					target := domain.TargetType(strings.ToUpper(c.String("target-type")))
					return mutate(c, func(ctx context.Context, f *social.Facade) optimistic.Outcome {
						return f.ToggleLike(ctx, c.String("target-id"), target)
					})
				},
			},
		},
	}
}

func eventFlag() cli.Flag {
	return &cli.StringFlag{Name: "event", Usage: "event id", Required: true, EnvVars: []string{"FEED_EVENT_ID"}}
}

func contentFlag() cli.Flag {
	return &cli.StringFlag{Name: "content", Usage: "text, at most 5000 characters", Required: true}
}

// openFeed builds a facade for the token's viewer and loads the first page.
func openFeed(c *cli.Context) (context.Context, *social.Facade, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	var viewer domain.Viewer
	if cfg.BearerToken != "" {
		if viewer, err = middleware.ViewerFromToken(cfg.BearerToken); err != nil {
			return nil, nil, fmt.Errorf("FEED_BEARER_TOKEN: %w", err)
		}
	}

	client := downstream.NewClient(downstream.ClientConfig{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, downstream.StaticCredentials(cfg.BearerToken))
	reader := downstream.NewFeedReader(downstream.NewGraphQLClient(client, cfg.GraphQLURL, cfg.QueryMaxRetries), cfg.PostPageSize, cfg.CommentPageSize)
	writer := downstream.NewFeedWriter(downstream.NewRESTClient(client, cfg.RESTURL))

	eventID := c.String("event")
	f := social.New(eventID, viewer, reader, writer, social.Config{
		PostPageSize:    cfg.PostPageSize,
		CommentPageSize: cfg.CommentPageSize,
	})

	ctx := middleware.WithRequestID(c.Context, uuid.NewString())
	if err := f.LoadFeed(ctx, eventID); err != nil {
		return nil, nil, fmt.Errorf("load feed: %s", downstream.FailureMessage(err))
	}
	return ctx, f, nil
}

type mutationOutput struct {
	OK       bool            `json:"ok"`
	Kind     optimistic.Kind `json:"kind"`
	Message  string          `json:"message,omitempty"`
	TargetID string          `json:"targetId,omitempty"`
	Feed     social.View     `json:"feed"`
}

func mutate(c *cli.Context, do func(context.Context, *social.Facade) optimistic.Outcome) error {
	ctx, f, err := openFeed(c)
	if err != nil {
		return err
	}
	out := do(ctx, f)
	if err := printJSON(c.App.Writer, mutationOutput{
		OK:       out.OK,
		Kind:     out.Kind,
		Message:  out.Message,
		TargetID: out.TargetID,
		Feed:     f.Snapshot(),
	}); err != nil {
		return err
	}
	if !out.OK {
		return cli.Exit(out.Message, 1)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
