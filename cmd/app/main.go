package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Raimguzhinov/everest/internal/app"
	"github.com/Raimguzhinov/everest/internal/config"
	"github.com/Raimguzhinov/everest/pkg/logger"
)

func main() {
	cfg := config.GetConfig()
	l := logger.New(cfg.Log.Level, cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, l, flag.Args(), os.Stdout); err != nil {
		if errors.Is(err, app.ErrUsage) {
			fmt.Fprintf(os.Stderr, "usage: everest [-config path] %s\n", app.Usage())
		}
		l.Error("everest failed", logger.Err(err))
		stop()
		os.Exit(1)
	}
}
