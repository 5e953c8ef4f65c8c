// Package htmltable implements the SourceClient contract for providers
// that publish tabular data as HTML pages.
package htmltable

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/matchpulse/feedgate/internal/feed"
	"github.com/matchpulse/feedgate/internal/transport"
)

// Config controls scraping and extraction for one HTML provider.
type Config struct {
	// BaseURL is the provider origin.
	BaseURL string
	// UserAgent identifies the collector on outbound requests.
	UserAgent string
	// Timeout bounds each page request.
	Timeout time.Duration
	// RowSelector locates data rows, e.g. "table.results tbody tr".
	RowSelector string
	// Columns names the cells of each row in order; extra cells are dropped.
	Columns []string
}

// Client fetches pages with a colly collector and extracts one table per
// page. Retries follow the shared transient allow-list via transport.Do.
type Client struct {
	cfg       Config
	transport *transport.Transport
	base      *colly.Collector
}

// New constructs a Client.
func New(cfg Config, tr *transport.Transport) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.RowSelector == "" {
		return nil, fmt.Errorf("row selector is required")
	}
	if len(cfg.Columns) == 0 {
		return nil, fmt.Errorf("column names are required")
	}
	if tr == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.Async(false),
	)
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	return &Client{cfg: cfg, transport: tr, base: c}, nil
}

// FetchRaw retrieves the page for args through the retrying transport.
func (c *Client) FetchRaw(ctx context.Context, args feed.FetchArgs) ([]byte, error) {
	target := c.buildURL(args)
	resp, err := c.transport.Do(ctx, true, func(attemptCtx context.Context) (transport.Response, error) {
		return c.visit(attemptCtx, target)
	})
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", args.Path(), err)
	}
	return resp.Body, nil
}

// Parse extracts the configured table into a table-shaped record.
func (c *Client) Parse(payload []byte) (feed.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return feed.Record{}, fmt.Errorf("parse html: %w", err)
	}

	record := feed.Record{Shape: feed.ShapeTable}
	doc.Find(c.cfg.RowSelector).Each(func(_ int, sel *goquery.Selection) {
		row := feed.Row{}
		sel.Find("td").Each(func(i int, cell *goquery.Selection) {
			if i < len(c.cfg.Columns) {
				row[c.cfg.Columns[i]] = strings.TrimSpace(cell.Text())
			}
		})
		if len(row) > 0 {
			record.Rows = append(record.Rows, row)
		}
	})
	if len(record.Rows) == 0 {
		return feed.Record{}, fmt.Errorf("no rows matched selector %q", c.cfg.RowSelector)
	}
	return record, nil
}

// visit runs one collector pass, mapping colly failures onto the shared
// transient taxonomy.
func (c *Client) visit(ctx context.Context, target string) (transport.Response, error) {
	var (
		result   transport.Response
		visitErr error
	)
	collector := c.base.Clone()

	collector.OnResponse(func(r *colly.Response) {
		body := make([]byte, len(r.Body))
		copy(body, r.Body)
		result = transport.Response{
			StatusCode: r.StatusCode,
			Body:       body,
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			if statusErr := transport.ClassifyStatus(r.StatusCode); statusErr != nil {
				visitErr = statusErr
				return
			}
		}
		visitErr = transport.ClassifyNetError(err)
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()
	select {
	case <-ctx.Done():
		return transport.Response{}, fmt.Errorf("visit canceled: %w", ctx.Err())
	case err := <-done:
		if visitErr != nil {
			// The OnError hook saw the response and classified it already.
			return transport.Response{}, visitErr
		}
		if err != nil {
			return transport.Response{}, transport.ClassifyNetError(err)
		}
	}
	if result.StatusCode == 0 {
		return transport.Response{}, fmt.Errorf("no response for %s", target)
	}
	if err := transport.ClassifyStatus(result.StatusCode); err != nil {
		return transport.Response{}, err
	}
	return result, nil
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
