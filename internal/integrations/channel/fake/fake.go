package fake

import (
	"context"
	"sync"

	"github.com/BearBump/DispatchBox/internal/integrations/channel"
)

// Channel records every message it is asked to send. Err, when set, is
// returned after recording.
type Channel struct {
	mu   sync.Mutex
	sent []channel.Message
	Err  error
}

func New() *Channel { return &Channel{} }

func (c *Channel) Send(_ context.Context, msg channel.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return c.Err
}

func (c *Channel) Sent() []channel.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]channel.Message(nil), c.sent...)
}

func (c *Channel) SentTo(to string) []channel.Message {
	var out []channel.Message
	for _, m := range c.Sent() {
		if m.To == to {
			out = append(out, m)
		}
	}
	return out
}
