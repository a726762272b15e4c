package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/BearBump/DispatchBox/internal/integrations/channel"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Client posts each message as JSON to a provider relay (mailer or SMS gateway).
type Client struct {
	name  string
	url   string
	token string
	httpc *http.Client
}

func New(name, url, token string) *Client {
	return &Client{
		name:  name,
		url:   url,
		token: token,
		httpc: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type reqBody struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject,omitempty"`
	Message   string `json:"message"`
	HTML      bool   `json:"html,omitempty"`
}

func (c *Client) Send(ctx context.Context, msg channel.Message) error {
	body, err := json.Marshal(reqBody{
		Channel:   c.name,
		Recipient: msg.To,
		Subject:   msg.Subject,
		Message:   msg.Body,
		HTML:      msg.HTML,
	})
	if err != nil {
		return errors.Wrap(err, "marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s webhook http %d", c.name, resp.StatusCode)
	}
	return nil
}
