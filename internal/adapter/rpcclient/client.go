// Package rpcclient is the outbound half of the task protocol: it wraps one
// text message in a message/send envelope, posts it to a downstream agent,
// and extracts the reply text from the returned task.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/CareMesh/internal/domain/a2a"
	"github.com/Strob0t/CareMesh/internal/resilience"
)

// Client posts task protocol calls to agent endpoints. One client is shared
// across all endpoints; per-endpoint circuit breakers keep one dead agent
// from blocking calls to the rest.
type Client struct {
	httpClient *http.Client
	breakers   *resilience.Group
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout caps each outbound call, covering connect, send, and the full
// read of the response body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithBreakers attaches per-endpoint circuit breakers to outgoing calls.
func WithBreakers(g *resilience.Group) Option {
	return func(c *Client) { c.breakers = g }
}

// NewClient creates a new outbound client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CallAgent sends text to endpointURL as one message/send call and returns
// the reply text. The reply is the text of the last history entry when the
// returned task holds more than the original message; a task with a bare
// one-entry history yields "" without error. Transport failures, timeouts,
// HTTP error statuses, envelope error objects, and undecodable bodies all
// surface as errors; the caller decides what a failed leg means. No retries.
func (c *Client) CallAgent(ctx context.Context, endpointURL, text string) (string, error) {
	params, err := json.Marshal(a2a.SendParams{Message: a2a.NewUserMessage(text)})
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	body, err := json.Marshal(a2a.Request{
		ProtocolVersion: a2a.ProtocolVersion,
		Method:          a2a.MethodMessageSend,
		Params:          params,
		ID:              uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	var reply string
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("agent returned status %d: %s", resp.StatusCode, string(data))
		}

		var envelope a2a.Response
		if err := json.Unmarshal(data, &envelope); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		if envelope.Error != nil {
			return envelope.Error
		}

		var task a2a.Task
		if err := json.Unmarshal(envelope.Result, &task); err != nil {
			return fmt.Errorf("unmarshal task: %w", err)
		}
		if len(task.History) > 1 {
			reply = task.History[len(task.History)-1].Text()
		}
		return nil
	}

	if c.breakers != nil {
		if err := c.breakers.Get(endpointURL).Execute(call); err != nil {
			return "", err
		}
		return reply, nil
	}
	if err := call(); err != nil {
		return "", err
	}
	return reply, nil
}
