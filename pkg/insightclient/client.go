// Package insightclient is the Go client for the insight HTTP API.
package insightclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/pgnlab/insight/pkg/insightdto"
)

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDial overrides the transport dialer; used by tests to reach an
// in-memory listener.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 30 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AnalyzeBatch uploads raw PGN text and returns the finished batch report.
func (c *Client) AnalyzeBatch(ctx context.Context, pgnText string) (*insightdto.BatchReport, error) {
	var rep insightdto.BatchReport
	if err := c.do(ctx, fasthttp.MethodPost, "/v1/batches", []byte(pgnText), "application/x-chess-pgn", &rep, false); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (c *Client) GetBatch(ctx context.Context, id string) (*insightdto.BatchReport, error) {
	var rep insightdto.BatchReport
	if err := c.do(ctx, fasthttp.MethodGet, "/v1/batches/"+url.PathEscape(id), nil, "", &rep, true); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (c *Client) PlayerStats(ctx context.Context, batchID, player string) (*insightdto.PlayerReport, error) {
	path := "/v1/players/" + url.PathEscape(player) + "?batch=" + url.QueryEscape(batchID)
	var rep insightdto.PlayerReport
	if err := c.do(ctx, fasthttp.MethodGet, path, nil, "", &rep, true); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (c *Client) PlayerBatches(ctx context.Context, player string) ([]string, error) {
	var resp struct {
		Player  string   `json:"player"`
		Batches []string `json:"batches"`
	}
	path := "/v1/players/" + url.PathEscape(player) + "/batches"
	if err := c.do(ctx, fasthttp.MethodGet, path, nil, "", &resp, true); err != nil {
		return nil, err
	}
	return resp.Batches, nil
}

// ExportCSV downloads a batch projection; kind is "games" or "players".
func (c *Client) ExportCSV(ctx context.Context, id, kind string) ([]byte, error) {
	path := "/v1/batches/" + url.PathEscape(id) + "/export.csv"
	if kind != "" {
		path += "?kind=" + url.QueryEscape(kind)
	}
	var body []byte
	err := c.doRaw(ctx, fasthttp.MethodGet, path, nil, "", true, func(resp *fasthttp.Response) error {
		body = append(body, resp.Body()...)
		return nil
	})
	return body, err
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, fasthttp.MethodGet, "/healthz", nil, "", nil, false)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string, out any, retry bool) error {
	return c.doRaw(ctx, method, path, body, contentType, retry, func(resp *fasthttp.Response) error {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

func (c *Client) doRaw(ctx context.Context, method, path string, body []byte, contentType string, retry bool, onOK func(*fasthttp.Response) error) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	if contentType != "" {
		req.Header.SetContentType(contentType)
	}
	if body != nil {
		req.SetBody(body)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.deadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == attempts {
				return lastErr
			}
			if err := c.sleep(ctx, backoff(attempt)); err != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status >= 200 && status < 300 {
			return onOK(resp)
		}

		apiErr := decodeError(status, resp.Body())
		if attempt == attempts || !retryableStatus(status) {
			return apiErr
		}
		lastErr = apiErr
		if err := c.sleep(ctx, backoff(attempt)); err != nil {
			return lastErr
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func decodeError(status int, body []byte) error {
	var apiErr insightdto.APIError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != "" {
		return apiErr
	}
	return fmt.Errorf("insight api error: status=%d body=%s", status, truncate(string(body), 512))
}

func (c *Client) deadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func retryableStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
