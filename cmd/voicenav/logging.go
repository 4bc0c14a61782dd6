package main

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MrWong99/voicenav/internal/config"
)

// newLogger builds the process logger. Without a log file it writes text to
// stderr; with one it writes JSON to both stderr and a rotating file. The
// returned LevelVar lets config reloads change the level.
func newLogger(cfg config.ServerConfig) (*slog.Logger, *slog.LevelVar, io.Closer) {
	level := new(slog.LevelVar)
	level.Set(cfg.LogLevel.SlogLevel())
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFile == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), level, io.NopCloser(nil)
	}
	file := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}
	h := slog.NewJSONHandler(io.MultiWriter(os.Stderr, file), opts)
	return slog.New(h), level, file
}
