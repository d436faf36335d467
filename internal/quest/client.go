package quest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// DefaultKeyTemplate names the upstream entity for a quest id.
const DefaultKeyTemplate = "Quest/{id}"

// Fetcher loads the quest payload for an id.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (*Data, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, id string) (*Data, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, id string) (*Data, error) { return f(ctx, id) }

// ClientConfig configures the proxy client.
type ClientConfig struct {
	// ProxyURL is the same-origin proxy endpoint, e.g. http://localhost:1236/quest.
	ProxyURL string
	// KeyTemplate builds the entity key; "{id}" is replaced by the quest id.
	KeyTemplate string
}

// Client fetches quests through the proxy. Requests are not retried and carry
// no client-side timeout; the caller's context is the only bound.
type Client struct {
	http        *resty.Client
	proxyURL    string
	keyTemplate string
}

var _ Fetcher = (*Client)(nil)

// NewClient creates a proxy client.
func NewClient(cfg ClientConfig) *Client {
	tmpl := cfg.KeyTemplate
	if tmpl == "" {
		tmpl = DefaultKeyTemplate
	}
	return &Client{
		http: resty.New().
			SetHeader("Content-Type", "application/json").
			SetRetryCount(0),
		proxyURL:    cfg.ProxyURL,
		keyTemplate: tmpl,
	}
}

// EntityKey returns the upstream key naming quest id.
func (c *Client) EntityKey(id string) string {
	return strings.ReplaceAll(c.keyTemplate, "{id}", id)
}

// Fetch posts {"_k": <entity key>} to the proxy and unwraps the envelope.
func (c *Client) Fetch(ctx context.Context, id string) (*Data, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"_k": c.EntityKey(id)}).
		Post(c.proxyURL)
	if err != nil {
		return nil, fmt.Errorf("quest: fetch %s: %w", id, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("quest: fetch %s: status %d", id, resp.StatusCode())
	}
	var env Envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("quest: decode %s: %w", id, err)
	}
	return env.Data, nil
}
