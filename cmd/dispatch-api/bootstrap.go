package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/DispatchBox/config"
	"github.com/BearBump/DispatchBox/internal/api/httpapi"
	"github.com/BearBump/DispatchBox/internal/broker/kafka"
	"github.com/BearBump/DispatchBox/internal/cache/rediscache"
	"github.com/BearBump/DispatchBox/internal/gateway"
	"github.com/BearBump/DispatchBox/internal/integrations/channel"
	"github.com/BearBump/DispatchBox/internal/integrations/channel/webhook"
	"github.com/BearBump/DispatchBox/internal/logger"
	"github.com/BearBump/DispatchBox/internal/services/deliveries"
	"github.com/BearBump/DispatchBox/internal/services/notify"
	"github.com/BearBump/DispatchBox/internal/services/sessions"
	"github.com/BearBump/DispatchBox/internal/services/tokens"
	"github.com/BearBump/DispatchBox/internal/storage/pgdelivery"
	"github.com/redis/go-redis/v9"
)

type dispatchAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *logger.Logger
	opts   dispatchAPIOpts
	deps   dispatchAPIDeps

	gw       *gateway.Gateway
	notifier *notify.Dispatcher
	producer *kafka.Producer
	consumer *kafka.Consumer
	cache    *rediscache.RedisCache
	closeDB  func()
}

func mustBootstrapDispatchAPI() *dispatchAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config, %v", err))
	}
	log := logger.New(cfg.Logger)
	d := cfg.Dispatch

	if d.JWTSecret == "" {
		panic("dispatch.jwt_secret is required")
	}
	httpAddr := d.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := d.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "dispatch-api"
	}
	topic := cfg.Kafka.DeliveryEventsTopicName
	if topic == "" {
		topic = "delivery.events"
	}
	slugTTL := time.Duration(d.SlugTTLHours) * time.Hour
	if slugTTL <= 0 {
		slugTTL = tokens.DefaultSlugTTL
	}
	otpTTL := time.Duration(d.OTPTTLMinutes) * time.Minute
	if otpTTL <= 0 {
		otpTTL = tokens.DefaultOTPTTL
	}
	otpLimit := int64(d.OTPRequestsPerWindow)
	if otpLimit <= 0 {
		otpLimit = 5
	}
	otpWindow := time.Duration(d.OTPWindowSeconds) * time.Second
	if otpWindow <= 0 {
		otpWindow = 10 * time.Minute
	}
	sessionTTL := time.Duration(d.SessionCacheTTLSeconds) * time.Second
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	workers := d.NotifyWorkers
	if workers <= 0 {
		workers = 4
	}
	queueSize := d.NotifyQueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	st := mustOpenPostgresWithRetry(connString(cfg.Database), 60*time.Second, log)

	redisClient := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)})
	rc := rediscache.NewWithClient(redisClient)
	rl := rediscache.NewRateLimiterWithClient(redisClient)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	notifier := notify.New(st,
		newChannel(d.EmailProvider, "email", d.EmailWebhookURL, d.EmailWebhookToken, log),
		newChannel(d.SMSProvider, "sms", d.SMSWebhookURL, d.SMSWebhookToken, log),
		log,
	).WithWorkers(workers, queueSize)
	notifier.Start()

	issuer := tokens.New(st, notifier, log).
		WithTTL(slugTTL, otpTTL).
		WithRateLimiter(rl, otpLimit, otpWindow)
	registry := sessions.New(st, log).WithCache(rc, sessionTTL)
	svc := deliveries.New(st, issuer, registry, notifier, log).
		WithEvents(producer, topic).
		WithLinks(d.RecipientLinkBaseURL, d.SessionLinkBaseURL)

	api := httpapi.New(svc, issuer, st, httpapi.NewAuthenticator(d.JWTSecret), log).
		WithHealthCheck("postgres", st).
		WithHealthCheck("redis", rc)
	gw := gateway.New(registry, svc, log).WithAllowedOrigins(d.AllowedOrigins)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &dispatchAPIApp{
		ctx:    ctx,
		cancel: cancel,
		log:    log,
		opts: dispatchAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		deps: dispatchAPIDeps{
			api:      api,
			gateway:  gw,
			consumer: consumer,
			log:      log,
		},
		gw:       gw,
		notifier: notifier,
		producer: producer,
		consumer: consumer,
		cache:    rc,
		closeDB:  st.Close,
	}
}

func connString(db config.DatabaseConfig) string {
	sslMode := db.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.Username, db.Password, db.Host, db.Port, db.DBName, sslMode)
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration, log *logger.Logger) *pgdelivery.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgdelivery.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		log.WithError(err).Warn("postgres not ready, retrying")
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

// newChannel picks the outbound transport for one notification channel.
func newChannel(kind, name, url, token string, log *logger.Logger) channel.Channel {
	switch kind {
	case "webhook":
		if url != "" {
			return webhook.New(name, url, token)
		}
		log.WithField("channel", name).Warn("webhook provider without url, falling back to log")
		return channel.NewLog(name, log)
	case "noop":
		return channel.Noop{}
	default:
		return channel.NewLog(name, log)
	}
}

func (a *dispatchAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.gw != nil {
		a.gw.Close()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	// drain queued notifications before the log table goes away
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *dispatchAPIApp) Run() error {
	return runDispatchAPI(a.ctx, a.opts, a.deps)
}
