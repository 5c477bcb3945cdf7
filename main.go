package main

import (
	"os"

	zlog "github.com/rs/zerolog/log"

	"github.com/volunteerhub/feed-bff/cmd"
)

func main() {
	if err := cmd.RootApp().Run(os.Args); err != nil {
		zlog.Fatal().Err(err).Msg("feed-bff failed")
	}
}
