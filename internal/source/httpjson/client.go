// Package httpjson implements the SourceClient contract for providers
// exposing plain JSON endpoints.
package httpjson

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/matchpulse/feedgate/internal/feed"
	"github.com/matchpulse/feedgate/internal/transport"
)

// Config controls how the client builds its requests and decodes payloads.
type Config struct {
	// BaseURL is the provider origin, e.g. https://api.oddsprovider.example.
	BaseURL string
	// Shape is the declared payload form; decoding never sniffs.
	Shape feed.Shape
	// Header is merged into every request.
	Header http.Header
}

// Client fetches and decodes JSON payloads through the retrying transport.
type Client struct {
	cfg       Config
	transport *transport.Transport
}

// New constructs a Client.
func New(cfg Config, tr *transport.Transport) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.Shape == "" {
		cfg.Shape = feed.ShapeMap
	}
	if tr == nil {
		return nil, fmt.Errorf("transport is required")
	}
	return &Client{cfg: cfg, transport: tr}, nil
}

// FetchRaw performs one GET against the provider. Every arg except "path"
// becomes a query parameter.
func (c *Client) FetchRaw(ctx context.Context, args feed.FetchArgs) ([]byte, error) {
	resp, err := c.transport.Execute(ctx, transport.Request{
		Method: http.MethodGet,
		URL:    c.buildURL(args),
		Header: c.cfg.Header,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", args.Path(), err)
	}
	return resp.Body, nil
}

// Parse decodes the payload according to the declared shape.
func (c *Client) Parse(payload []byte) (feed.Record, error) {
	switch c.cfg.Shape {
	case feed.ShapeTable:
		var rows []feed.Row
		if err := json.Unmarshal(payload, &rows); err != nil {
			return feed.Record{}, fmt.Errorf("decode table payload: %w", err)
		}
		return feed.Record{Shape: feed.ShapeTable, Rows: rows}, nil
	case feed.ShapeMap:
		var fields map[string]any
		if err := json.Unmarshal(payload, &fields); err != nil {
			return feed.Record{}, fmt.Errorf("decode map payload: %w", err)
		}
		return feed.Record{Shape: feed.ShapeMap, Fields: fields}, nil
	case feed.ShapeList:
		var items []any
		if err := json.Unmarshal(payload, &items); err != nil {
			return feed.Record{}, fmt.Errorf("decode list payload: %w", err)
		}
		return feed.Record{Shape: feed.ShapeList, Items: items}, nil
	default:
		return feed.Record{}, fmt.Errorf("unsupported shape %q", c.cfg.Shape)
	}
}

func (c *Client) buildURL(args feed.FetchArgs) string {
	base := strings.TrimSuffix(c.cfg.BaseURL, "/")
	p := args.Path()
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	query := url.Values{}
	for k, v := range args {
		if k == "path" {
			continue
		}
		query.Set(k, v)
	}
	if len(query) == 0 {
		return base + p
	}
	return base + p + "?" + query.Encode()
}
