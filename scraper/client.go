package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

const (
	ctxStatusKey = "status"
	ctxBodyKey   = "body"
)

// sleeper waits for d or until ctx is done.
type sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Client issues listing requests through a synchronous colly collector and
// retries transient failures with exponential backoff. Every call builds its
// request from the PageRequest and the immutable config; nothing is carried
// over between calls.
type Client struct {
	cfg       *config.Config
	collector *colly.Collector
	limiter   *rate.Limiter
	metrics   *Metrics
	sleep     sleeper

	requestCount int64
	retryCount   int64
}

// NewClient builds a client for the configured endpoint.
func NewClient(cfg *config.Config, metrics *Metrics) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	collector.SetRequestTimeout(cfg.Timeout.Duration)
	collector.DisableCookies()
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout.Duration,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxStatusKey, r.StatusCode)
		r.Ctx.Put(ctxBodyKey, r.Body)
	})

	c := &Client{
		cfg:       cfg,
		collector: collector,
		metrics:   metrics,
		sleep:     sleepContext,
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c, nil
}

// WithTransport swaps the HTTP transport, mainly for tests.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.collector.WithTransport(rt)
}

// FetchPage performs one listing call, retrying up to MaxAttempts times. A
// rate-limited response is returned at once as ErrRateLimited; the caller
// owns the cool-down for that case.
func (c *Client) FetchPage(ctx context.Context, req models.PageRequest) (models.RawResponse, error) {
	endpoint := listingURL(c.cfg, req)
	body, err := json.Marshal(newListingBody(req.SeenIDs))
	if err != nil {
		return nil, fmt.Errorf("encode listing body: %w", err)
	}
	hdr := listingHeaders(c.cfg, req.Task)

	maxAttempts := c.cfg.MaxAttempts
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		slog.Debug("listing request",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Int("offset", req.Offset),
			slog.Int("limit", req.Limit),
		)

		atomic.AddInt64(&c.requestCount, 1)
		raw, err := c.do(endpoint, body, hdr.Clone())
		if err == nil {
			c.metrics.IncRequest("success")
			return raw, nil
		}

		lastErr = err
		category := errorTypeLabel(err)
		c.metrics.IncRequest("failure")
		c.metrics.IncError(category)

		if IsRateLimited(err) {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := c.backoff(attempt)
		slog.Warn("listing request failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("offset", req.Offset),
			slog.String("category", category),
			slog.Duration("backoff", delay),
			slog.Any("error", err),
		)
		atomic.AddInt64(&c.retryCount, 1)
		c.metrics.IncRetries()
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("offset %d: giving up after %d attempts: %w", req.Offset, maxAttempts, lastErr)
}

// Requests returns the number of HTTP attempts made so far.
func (c *Client) Requests() int {
	return int(atomic.LoadInt64(&c.requestCount))
}

// Retries returns the number of backoff retries scheduled so far.
func (c *Client) Retries() int {
	return int(atomic.LoadInt64(&c.retryCount))
}

// backoff waits RetryBackoff * 2^attempt, so 2s then 4s with a 1s base.
func (c *Client) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := c.cfg.RetryBackoff.Duration
	if base <= 0 {
		base = time.Second
	}

	delay := base * time.Duration(1<<attempt)
	if max := c.cfg.RetryBackoffMax.Duration; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (c *Client) do(endpoint string, body []byte, hdr http.Header) (models.RawResponse, error) {
	reqCtx := colly.NewContext()
	start := time.Now()
	err := c.collector.Request(http.MethodPost, endpoint, bytes.NewReader(body), reqCtx, hdr)
	c.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		return nil, classifyError(err, 0)
	}

	status, _ := reqCtx.GetAny(ctxStatusKey).(int)
	payload, _ := reqCtx.GetAny(ctxBodyKey).([]byte)
	if classified := classifyError(nil, status); classified != nil {
		return nil, classified
	}
	if status == 0 {
		return nil, ErrConnection{Err: errors.New("no response received")}
	}
	return decodeResponse(payload)
}

// decodeResponse parses a listing body. An empty or null body decodes to an
// empty response, which the paginator reads as end of data.
func decodeResponse(payload []byte) (models.RawResponse, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return models.RawResponse{}, nil
	}
	var raw models.RawResponse
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, ErrMalformedResponse{Err: err}
	}
	if raw == nil {
		raw = models.RawResponse{}
	}
	return raw, nil
}
