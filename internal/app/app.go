package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Raimguzhinov/everest/internal/auth"
	"github.com/Raimguzhinov/everest/internal/carddav"
	"github.com/Raimguzhinov/everest/internal/config"
	"github.com/Raimguzhinov/everest/internal/transport"
	"github.com/Raimguzhinov/everest/pkg/logger"
)

// App carries what every command needs.
type App struct {
	repo        *carddav.RemoteCardRepository
	concurrency int
	out         io.Writer
	log         *logger.Logger
}

// Run discovers the addressbook described by cfg and executes the command in
// args, writing its output to out.
func Run(ctx context.Context, cfg *config.Config, l *logger.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("app - Run: %w", ErrUsage)
	}
	cmd, err := lookup(args[0], args[1:])
	if err != nil {
		return fmt.Errorf("app - Run: %w", err)
	}

	creds, err := auth.NewFromURL(cfg.CardDAV.Auth)
	if err != nil {
		return fmt.Errorf("app - Run - auth.NewFromURL: %w", err)
	}

	opts := []carddav.Option{carddav.WithLogger(l)}
	if cfg.CardDAV.LenientStatus {
		opts = append(opts, carddav.WithLenientStatus())
	}

	repo, err := carddav.NewRemoteCardRepository(
		ctx,
		cfg.CardDAV.Host,
		transport.NewClient(cfg.CardDAV.Timeout, l),
		creds,
		opts...,
	)
	if err != nil {
		return fmt.Errorf("app - Run - carddav.NewRemoteCardRepository: %w", err)
	}

	concurrency := cfg.CardDAV.Concurrency
	if concurrency < 1 {
		concurrency = config.DefaultConcurrency
	}

	a := &App{
		repo:        repo,
		concurrency: concurrency,
		out:         out,
		log:         l.With(slog.String("command", args[0])),
	}
	if err := cmd.run(a, ctx, args[1:]); err != nil {
		return fmt.Errorf("app - Run - %s: %w", args[0], err)
	}
	return nil
}
