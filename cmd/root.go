package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/volunteerhub/feed-bff/internal/logger"
)

var version = "dev"

func RootApp() *cli.App {
	return &cli.App{
		Name:    "feed-bff",
		Usage:   "Event feed backend-for-frontend",
		Version: version,
		Description: `Serves the social feed of volunteer events: paginated posts and
comments with optimistic likes, posts, comments and registrations.

Configuration comes from the environment (and a .env file), optionally
overlaid by a TOML file named in FEED_CONFIG_FILE, e.g.:

BACKEND_GRAPHQL_URL=http://backend:8080/graphql
BACKEND_REST_URL=http://backend:8080/api
FEED_BEARER_TOKEN=<jwt>   (feed subcommands only)
`,
		Commands: []*cli.Command{
			serveCmd(),
			feedCmd(),
		},
		Before: func(c *cli.Context) error {
			// stdout is reserved for command output.
			logger.InitWithWriter(c.App.ErrWriter)
			return nil
		},
		Action: func(c *cli.Context) error {
			// Show help if no command is specified
			return cli.ShowAppHelp(c)
		},
	}
}
