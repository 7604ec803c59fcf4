package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eventkasse/eventkasse/internal/pkg/config"
)

// Headers the hosted queue sets on worker callbacks and honors on publishes.
const (
	HeaderSignature     = "X-Queue-Signature"
	HeaderMessageID     = "X-Queue-Message-Id"
	HeaderRetryCount    = "X-Queue-Retry-Count"
	HeaderDeduplication = "X-Queue-Deduplication-Id"
	HeaderNoRetry       = "X-No-Retry"
)

// Message is one payload handed to the hosted queue for delivery to the
// worker endpoint. DedupID collapses retried provider deliveries into a
// single queue message.
type Message struct {
	Body    []byte
	DedupID string
}

// Publisher forwards raw webhook payloads to the hosted queue.
type Publisher interface {
	Publish(ctx context.Context, msg Message) (string, error)
}

// Client publishes to the hosted queue's REST API. Transport retries,
// backoff and dead-lettering are the queue's own policy, configured there.
type Client struct {
	BaseURL   string
	Token     string
	WorkerURL string

	HTTPClient *http.Client
}

// NewClient creates a queue client from the process configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(cfg.QueueURL, "/"),
		Token:     cfg.QueueToken,
		WorkerURL: cfg.WorkerURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type publishResponse struct {
	MessageID string `json:"messageId"`
}

// Publish hands the raw event to the queue for asynchronous delivery and
// returns the queue's message id.
func (c *Client) Publish(ctx context.Context, msg Message) (string, error) {
	if strings.TrimSpace(c.BaseURL) == "" || strings.TrimSpace(c.Token) == "" {
		return "", errors.New("queue: QUEUE_URL/QUEUE_TOKEN are not configured")
	}
	if len(msg.Body) == 0 {
		return "", errors.New("queue: message body is empty")
	}

	endpoint := fmt.Sprintf("%s/v1/publish/%s", c.BaseURL, url.QueryEscape(c.WorkerURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(msg.Body))
	if err != nil {
		return "", fmt.Errorf("queue: build publish request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")
	if msg.DedupID != "" {
		req.Header.Set(HeaderDeduplication, msg.DedupID)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("queue: publish request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("queue: read publish response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("queue: publish rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed publishResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("queue: decode publish response: %w", err)
	}
	return parsed.MessageID, nil
}
