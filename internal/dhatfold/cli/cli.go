package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yandex/dhatfold/pkg/xlog"
)

////////////////////////////////////////////////////////////////////////////////

type Config struct {
	LogLevel string

	// Overrides for tests. Zero values mean the process environment.
	Fs        afero.Fs
	Stdin     io.Reader
	Stdout    io.Writer
	LogOutput io.Writer
}

func (c *Config) fillDefault() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	if c.Stdin == nil {
		c.Stdin = os.Stdin
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
}

////////////////////////////////////////////////////////////////////////////////

type App struct {
	logger  xlog.Logger
	fs      afero.Fs
	stdin   io.Reader
	stdout  io.Writer
	context context.Context
	cancel  func()
}

func New(config *Config) (*App, error) {
	config.fillDefault()

	level, err := zapcore.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	var logger xlog.Logger
	if config.LogOutput != nil {
		logger = NewWriterLogger(config.LogOutput, level)
	} else {
		logger, err = NewLogger(level)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	logger.Debug(ctx, "Initialized CLI", zap.Stringer("log_level", level))

	return &App{
		logger:  logger,
		fs:      config.Fs,
		stdin:   config.Stdin,
		stdout:  config.Stdout,
		context: ctx,
		cancel:  cancel,
	}, nil
}

////////////////////////////////////////////////////////////////////////////////

func (a *App) Shutdown() {
	a.cancel()
	_ = a.logger.Zap().Sync()
}

func (a *App) Logger() xlog.Logger {
	return a.logger
}

func (a *App) Context() context.Context {
	return a.context
}

func (a *App) Fs() afero.Fs {
	return a.fs
}

func (a *App) Stdin() io.Reader {
	return a.stdin
}

func (a *App) Stdout() io.Writer {
	return a.stdout
}

////////////////////////////////////////////////////////////////////////////////
