// Package notify sends courtesy notifications. Nothing here ever fails the
// caller: transport and log errors are logged and dropped.
package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/DispatchBox/internal/integrations/channel"
	"github.com/BearBump/DispatchBox/internal/logger"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	defaultWorkers     = 2
	defaultQueueSize   = 256
	defaultSendTimeout = 10 * time.Second
)

type LogRepository interface {
	InsertNotificationLog(ctx context.Context, entry models.NotificationLog) error
}

type Dispatcher struct {
	repo  LogRepository
	email channel.Channel
	sms   channel.Channel
	log   *logger.Logger

	workers     int
	queueSize   int
	sendTimeout time.Duration

	mu     sync.RWMutex
	queue  chan models.Notification
	closed bool
	wg     sync.WaitGroup
}

func New(repo LogRepository, email, sms channel.Channel, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		repo:        repo,
		email:       email,
		sms:         sms,
		log:         log,
		workers:     defaultWorkers,
		queueSize:   defaultQueueSize,
		sendTimeout: defaultSendTimeout,
	}
}

func (d *Dispatcher) WithWorkers(workers, queueSize int) *Dispatcher {
	if workers > 0 {
		d.workers = workers
	}
	if queueSize > 0 {
		d.queueSize = queueSize
	}
	return d
}

func (d *Dispatcher) WithSendTimeout(t time.Duration) *Dispatcher {
	if t > 0 {
		d.sendTimeout = t
	}
	return d
}

// Start launches the background workers that drain Dispatch calls.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queue != nil {
		return
	}
	d.queue = make(chan models.Notification, d.queueSize)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for n := range d.queue {
				ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
				d.Send(ctx, n)
				cancel()
			}
		}()
	}
}

// Close stops accepting work and waits for queued notifications to go out.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed || d.queue == nil {
		d.closed = true
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

// Dispatch queues n without blocking. A full queue or a stopped dispatcher drops it.
func (d *Dispatcher) Dispatch(n models.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || d.queue == nil {
		d.entry(n).Warn("notification dropped: dispatcher not running")
		return
	}
	select {
	case d.queue <- n:
	default:
		d.entry(n).Warn("notification dropped: queue full")
	}
}

// Send logs the notification when it has a category, then transmits it over
// the channel matching the address. It reports whether the transport accepted it.
func (d *Dispatcher) Send(ctx context.Context, n models.Notification) bool {
	if n.Address == "" {
		return false
	}

	if n.Category != "" && d.repo != nil {
		if err := d.repo.InsertNotificationLog(ctx, models.NotificationLog{
			Email:   n.Address,
			Message: n.Body,
			Type:    n.Category,
		}); err != nil {
			d.entry(n).WithError(err).Warn("notification log failed")
		}
	}

	ch := d.channelFor(n.Address)
	if ch == nil {
		d.entry(n).Warn("no channel for address")
		return false
	}

	if err := ch.Send(ctx, channel.Message{
		To:      n.Address,
		Subject: n.Subject,
		Body:    n.Body,
		HTML:    n.HTML,
	}); err != nil {
		d.entry(n).WithError(err).Warn("notification send failed")
		return false
	}
	return true
}

func (d *Dispatcher) channelFor(address string) channel.Channel {
	if strings.Contains(address, "@") {
		return d.email
	}
	return d.sms
}

func (d *Dispatcher) entry(n models.Notification) *logrus.Entry {
	return d.log.WithFields(logrus.Fields{
		"to":       n.Address,
		"subject":  n.Subject,
		"category": n.Category,
	})
}
