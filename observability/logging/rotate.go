package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures the size-rotated log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// RotatingFile returns a writer appending to opts.Path and rolling it over
// once it reaches MaxSizeMB.
func RotatingFile(opts FileOptions) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   strings.TrimSpace(opts.Path),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
}

// SetupWithFile behaves like Setup and mirrors every line into a rotated file
// when opts.Path is set. Close the returned closer on shutdown.
func SetupWithFile(service, env string, opts FileOptions) (*slog.Logger, io.Closer) {
	if strings.TrimSpace(opts.Path) == "" {
		return Setup(service, env), nopCloser{}
	}
	file := RotatingFile(opts)
	return New(io.MultiWriter(os.Stdout, file), service, env, levelForEnv(env)), file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
