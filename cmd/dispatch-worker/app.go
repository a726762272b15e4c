package main

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/DispatchBox/config"
	"github.com/BearBump/DispatchBox/internal/logger"
	"github.com/BearBump/DispatchBox/internal/services/sweeper"
	"github.com/BearBump/DispatchBox/internal/storage/pgdelivery"
	"github.com/pkg/errors"
)

const defaultSweepInterval = time.Minute

type workerFactories struct {
	newStorage func(cfg *config.Config) (repo sweeper.Repository, closeFn func(), err error)
	newLogger  func(cfg *config.Config) *logger.Logger
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (sweeper.Repository, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgdelivery.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newLogger: func(cfg *config.Config) *logger.Logger {
			return logger.New(cfg.Logger)
		},
	}
}

func sweepInterval(cfg *config.Config) time.Duration {
	d := time.Duration(cfg.Dispatch.WorkerSweepIntervalSeconds) * time.Second
	if d <= 0 {
		return defaultSweepInterval
	}
	return d
}

// buildSweeper opens storage and returns a sweeper bound to it. closeFn is
// never nil.
func buildSweeper(cfg *config.Config, f workerFactories) (*sweeper.Sweeper, func(), error) {
	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	if closeFn == nil {
		closeFn = func() {}
	}
	return sweeper.New(repo, f.newLogger(cfg)).WithInterval(sweepInterval(cfg)), closeFn, nil
}

// RunDispatchWorker sweeps expired tokens until ctx is done. The ops HTTP
// surface runs alongside when swaggerPath is set.
func RunDispatchWorker(ctx context.Context, cfg *config.Config, f workerFactories, swaggerPath string) error {
	s, closeFn, err := buildSweeper(cfg, f)
	if err != nil {
		return err
	}
	defer closeFn()

	log := f.newLogger(cfg)
	if swaggerPath != "" {
		go func() {
			err := runWorkerHTTPServer(ctx, workerHTTPOpts{
				httpAddr:    cfg.Dispatch.WorkerHTTPAddr,
				swaggerPath: swaggerPath,
				sweeper:     s,
				cfg:         cfg,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("worker http server stopped")
			}
		}()
	} else {
		log.Warn("swaggerPath not set, worker http server disabled")
	}

	log.WithField("interval", sweepInterval(cfg).String()).Info("dispatch-worker started")
	return s.Run(ctx)
}
