package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/volunteerhub/feed-bff/middleware"
)

var Log = zerolog.Nop()

func InitWithWriter(w io.Writer) {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	format := os.Getenv("LOG_FORMAT") // "json" or "console"
	if format == "" {
		format = "console"
	}

	var l zerolog.Logger
	if format == "json" {
		l = zerolog.New(w).With().Timestamp().Str("service", "feed-bff").Logger().Level(level)
	} else {
		l = zerolog.New(zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger().Level(level)
	}

	Log = l
	zlog.Logger = l
}

// Ctx returns a logger carrying the request id and viewer id found in ctx.
func Ctx(ctx context.Context) *zerolog.Logger {
	lc := Log.With()
	if reqID := middleware.GetRequestID(ctx); reqID != "" {
		lc = lc.Str("request_id", reqID)
	}
	if v := middleware.GetViewer(ctx); v.UserID != "" {
		lc = lc.Str("viewer_id", v.UserID)
	}
	l := lc.Logger()
	return &l
}
