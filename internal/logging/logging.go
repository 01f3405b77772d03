package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	console "github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
	slogtelegram "github.com/samber/slog-telegram/v2"

	"schedbot/internal/config"
)

// TelegramKey marks a record for the Telegram sink regardless of level.
const TelegramKey = "telegram"

// New builds the process logger: console or JSON on stderr, plus Telegram
// for errors and records tagged with TelegramKey when a bot token is set.
func New(cfg config.LogConfig) *slog.Logger {
	return slog.New(newHandler(cfg, os.Stderr))
}

func newHandler(cfg config.LogConfig, w io.Writer) slog.Handler {
	router := slogmulti.Router().Add(localHandler(cfg.Format, w))

	if cfg.TelegramToken != "" {
		router = router.Add(
			slogtelegram.Option{
				Level:     slog.LevelDebug,
				Token:     cfg.TelegramToken,
				Username:  cfg.TelegramChatID,
				AddSource: true,
			}.NewTelegramHandler(),
			toTelegram,
		)
	}

	return router.Handler()
}

func localHandler(format string, w io.Writer) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return console.NewHandler(w, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})
}

func toTelegram(_ context.Context, r slog.Record) bool {
	tagged := false
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == TelegramKey {
			tagged = true
			return false
		}
		return true
	})
	return r.Level >= slog.LevelError || tagged
}
