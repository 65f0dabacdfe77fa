// Package gateway is the HTTP implementation of the chat persistence
// gateway: events are submitted to the backend, which answers a chat_sent
// event with the SSE stream for that assistant turn.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/atlasguide/atlas-go/pkg/chat"
	"github.com/atlasguide/atlas-go/pkg/chatwire"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

var _ chat.Gateway = &Client{}

type Option func(*Client)

// WithHTTPClient overrides the default client. Request timeouts live on the
// transport, not here; streaming responses must not be cut by a client
// timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
		log:        log.With().Str("component", "gateway").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddEvent posts one chat event and returns the SSE response body. The
// caller owns the body and must drain or close it.
func (c *Client) AddEvent(ctx context.Context, ev chatwire.ChatEvent) (io.ReadCloser, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrap(err, "gateway: marshal chat event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/events", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "gateway: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "gateway: submit chat event")
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, errors.Errorf("gateway: submit chat event: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	c.log.Debug().Str("event_type", ev.Type).Str("event_id", ev.ID).Msg("chat event submitted")
	return resp.Body, nil
}

// ChatEventsInOrder fetches the full chat history, oldest first.
func (c *Client) ChatEventsInOrder(ctx context.Context) ([]chatwire.ChatEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/chat/events", nil)
	if err != nil {
		return nil, errors.Wrap(err, "gateway: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "gateway: fetch chat events")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Errorf("gateway: fetch chat events: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var events []chatwire.ChatEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, errors.Wrap(err, "gateway: decode chat events")
	}
	return events, nil
}
