package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/assetscan/internal/config"
)

// Priority follows the ntfy 1-5 scale.
type Priority int

const (
	PriorityLow     Priority = 2
	PriorityDefault Priority = 3
	PriorityHigh    Priority = 4
)

// Message is a push notification.
type Message struct {
	Title    string
	Body     string
	Priority Priority
	Tags     []string
}

// Client publishes push notifications.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// APIClient is a resty-backed ntfy publisher.
type APIClient struct {
	httpClient *resty.Client
	topicURL   string
}

// NewClient builds a notification client for the configured topic URL.
func NewClient(cfg config.NotifyConfig) *APIClient {
	restyClient := resty.New().
		SetHeader("Content-Type", "text/plain; charset=utf-8").
		SetTimeout(10 * time.Second)
	if cfg.Token != "" {
		restyClient.SetAuthToken(cfg.Token)
	}

	return &APIClient{
		httpClient: restyClient,
		topicURL:   strings.TrimSuffix(cfg.URL, "/"),
	}
}

// apiError represents an ntfy error payload.
type apiError struct {
	Code  int    `json:"code"`
	HTTP  int    `json:"http"`
	Error string `json:"error"`
}

// Send publishes msg to the topic.
func (c *APIClient) Send(ctx context.Context, msg Message) error {
	apiErr := new(apiError)

	req := c.httpClient.R().
		SetContext(ctx).
		SetBody(msg.Body).
		SetError(apiErr)
	if msg.Title != "" {
		req.SetHeader("Title", msg.Title)
	}
	if msg.Priority != 0 {
		req.SetHeader("Priority", fmt.Sprint(int(msg.Priority)))
	}
	if len(msg.Tags) > 0 {
		req.SetHeader("Tags", strings.Join(msg.Tags, ","))
	}

	resp, err := req.Post(c.topicURL)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		message := apiErr.Error
		if message == "" {
			message = strings.TrimSpace(resp.String())
		}
		return fmt.Errorf("notify api error: code=%d, message=%s", resp.StatusCode(), message)
	}

	return nil
}
