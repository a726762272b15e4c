package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/DispatchBox/config"
	"github.com/pkg/errors"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	f := defaultWorkerFactories()
	if err := RunDispatchWorker(ctx, cfg, f, os.Getenv("swaggerPath")); err != nil && !errors.Is(err, context.Canceled) {
		f.newLogger(cfg).WithError(err).Fatal("dispatch-worker stopped")
	}
}
