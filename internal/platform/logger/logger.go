package logger

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

var levelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// New returns a structured logger writing tinted output to stdout.
// Unknown level names fall back to info. Callers must never pass secret
// material (passphrases, working keys, decrypted payloads) as attributes.
func New(level string) *slog.Logger {
	lvl, ok := levelMap[level]
	if !ok {
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: lvl}))
}
