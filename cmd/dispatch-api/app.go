package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/DispatchBox/internal/apperrors"
	"github.com/BearBump/DispatchBox/internal/broker/kafka"
	"github.com/BearBump/DispatchBox/internal/broker/messages"
	"github.com/BearBump/DispatchBox/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type dispatchAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type routesProvider interface {
	Routes() chi.Router
}

type socketGateway interface {
	http.Handler
	Push(ctx context.Context, sessionID string) error
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler kafka.Handler) error
}

type dispatchAPIDeps struct {
	api      routesProvider
	gateway  socketGateway
	consumer kafkaConsumer
	log      *logger.Logger
}

func runDispatchAPI(ctx context.Context, opts dispatchAPIOpts, deps dispatchAPIDeps) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, deps, opts.swaggerPath)
	}()

	go func() {
		deps.log.WithField("topic", opts.topic).WithField("group", opts.consumerGroup).Info("delivery event relay started")
		if err := deps.consumer.Consume(ctx, relayHandler(deps.gateway, deps.log)); err != nil && !errors.Is(err, context.Canceled) {
			deps.log.WithError(err).Error("delivery event relay stopped")
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

func runHTTPServer(ctx context.Context, lis net.Listener, deps dispatchAPIDeps, swaggerPath string) error {
	r := chi.NewRouter()
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))
	r.Handle("/ws", deps.gateway)
	r.Mount("/", deps.api.Routes())

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	deps.log.WithField("addr", lis.Addr().String()).Info("HTTP server listening")
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// relayHandler pushes a fresh snapshot to the sockets of the event's session.
// Pushing is best effort: a bad or stale event is logged and committed.
func relayHandler(gw socketGateway, log *logger.Logger) kafka.Handler {
	return func(ctx context.Context, _, value []byte) error {
		ev, err := messages.DecodeDeliveryEvent(value)
		if err != nil {
			log.WithError(err).Warn("skipping malformed delivery event")
			return nil
		}
		if ev.SessionID == "" {
			return nil
		}
		if err := gw.Push(ctx, ev.SessionID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			log.WithError(err).WithField("session_id", ev.SessionID).WithField("event", string(ev.Type)).Warn("relay push failed")
		}
		return nil
	}
}
