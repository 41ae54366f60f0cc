package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the chart API.
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 5

	// DefaultUserAgent is sent on every request; the API rejects Go's default agent.
	DefaultUserAgent = "Mozilla/5.0 (compatible; macrobias/1.0)"

	// maxConcurrent bounds parallel symbol fetches within one Closes call.
	maxConcurrent = 4
)

// Client is a Yahoo Finance chart API client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a new chart API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name identifies the source in logs.
func (c *Client) Name() string {
	return "yahoo"
}

// GetChart retrieves daily bars for one symbol.
func (c *Client) GetChart(ctx context.Context, symbol string, opts ...QueryOption) (*ChartResult, error) {
	params := &queryParams{
		Range:    "5d",
		Interval: "1d",
	}
	for _, opt := range opts {
		opt(params)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{RetryAfter: time.Second}
	}

	query := url.Values{}
	query.Set("range", params.Range)
	query.Set("interval", params.Interval)
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if c.logger != nil {
		c.logger.Debug().
			Str("symbol", symbol).
			Str("range", params.Range).
			Msg("Yahoo chart request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{RetryAfter: time.Minute}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var chart ChartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body), Symbol: symbol}
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if chart.Chart.Error != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       chart.Chart.Error.Code,
			Message:    chart.Chart.Error.Description,
			Symbol:     symbol,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Symbol: symbol}
	}
	if len(chart.Chart.Result) == 0 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "empty result", Symbol: symbol}
	}

	return &chart.Chart.Result[0], nil
}

// Closes fetches the trailing daily closes for each symbol.
// Symbols that fail are logged and omitted. Symbols the API reports as unknown are
// a complete answer; any other failure, or ctx ending first, also returns an error
// alongside the partial result so callers can tell it apart from a full fetch.
func (c *Client) Closes(ctx context.Context, symbols []string, window string) (map[string][]float64, error) {
	var (
		mu           sync.Mutex
		out          = make(map[string][]float64, len(symbols))
		lastErr      error
		transientErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			result, err := c.GetChart(gctx, symbol, WithRange(window), WithInterval("1d"))
			if err != nil {
				if c.logger != nil {
					c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to fetch chart")
				}
				mu.Lock()
				lastErr = err
				if !IsNotFound(err) {
					transientErr = err
				}
				mu.Unlock()
				return nil
			}

			bars := result.Bars()
			closes := make([]float64, len(bars))
			for i, b := range bars {
				closes[i] = b.Close
			}

			mu.Lock()
			out[symbol] = closes
			mu.Unlock()
			return nil
		})
	}

	// Per-symbol failures are absorbed above, so Wait only reports nil
	_ = g.Wait()

	if len(out) == 0 && len(symbols) > 0 {
		if lastErr == nil {
			lastErr = ctx.Err()
		}
		return out, fmt.Errorf("no quotes returned for %d symbols: %w", len(symbols), lastErr)
	}
	if transientErr != nil {
		return out, fmt.Errorf("quotes returned for %d of %d symbols: %w", len(out), len(symbols), transientErr)
	}
	if err := ctx.Err(); err != nil && len(out) < len(symbols) {
		return out, fmt.Errorf("quote fetch interrupted after %d of %d symbols: %w", len(out), len(symbols), err)
	}

	return out, nil
}

// IsNotFound reports whether err means the symbol has no data upstream,
// as opposed to a request that failed and may succeed on retry.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
