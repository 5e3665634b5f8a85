// Package push hands titled messages to the device's notification channel.
package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/vaxtrack/internal/logging"
	"github.com/go-resty/resty/v2"
)

var ErrRejected = errors.New("push rejected")

// Message is one local notification. Token addresses the device.
type Message struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type Channel interface {
	Send(ctx context.Context, msg Message) error
}

// HTTPChannel posts messages as JSON to a push gateway.
type HTTPChannel struct {
	client *resty.Client
	path   string
}

func NewHTTPChannel(baseURL, apiKey string, timeout time.Duration) *HTTPChannel {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &HTTPChannel{client: c, path: "/v1/push"}
}

func (h *HTTPChannel) Send(ctx context.Context, msg Message) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(&msg).
		Post(h.path)
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusAccepted {
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode(), resp.String())
	}
	return nil
}

// LogChannel only logs messages. Used when no gateway is configured.
type LogChannel struct {
	Log logging.Logger
}

func (l LogChannel) Send(ctx context.Context, msg Message) error {
	l.Log.Info(ctx, "notification", "title", msg.Title, "body", msg.Body)
	return nil
}
