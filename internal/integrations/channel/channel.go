package channel

import (
	"context"

	"github.com/BearBump/DispatchBox/internal/logger"
	"github.com/sirupsen/logrus"
)

type Message struct {
	To      string
	Subject string
	Body    string
	HTML    bool
}

// Channel is one outbound transport (email or SMS).
type Channel interface {
	Send(ctx context.Context, msg Message) error
}

// Log writes messages to the application log instead of sending them.
type Log struct {
	name string
	log  *logger.Logger
}

func NewLog(name string, log *logger.Logger) *Log {
	return &Log{name: name, log: log}
}

func (c *Log) Send(_ context.Context, msg Message) error {
	c.log.WithFields(logrus.Fields{
		"channel": c.name,
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info(msg.Body)
	return nil
}

type Noop struct{}

func (Noop) Send(context.Context, Message) error { return nil }
