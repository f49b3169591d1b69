package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	domain "main/internal/domain/entity/marketdata"

	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL   = "https://query1.finance.yahoo.com"
	defaultUserAgent = "marketdata-batch/1.0"
	requestTimeout   = 30 * time.Second
)

// YahooClient fetches 1-minute bars from the Yahoo Finance chart endpoint.
type YahooClient struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	logger     *logrus.Logger
}

func NewYahooClient(baseURL string, maxRetries int, retryDelay time.Duration, logger *logrus.Logger) *YahooClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &YahooClient{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Fetch1mBars runs the retrying fetch on its own goroutine so a retry sleep
// never pins the caller; cancelling ctx returns immediately.
func (c *YahooClient) Fetch1mBars(ctx context.Context, ticker string, from, to time.Time) ([]domain.RawBar, error) {
	type fetchResult struct {
		bars []domain.RawBar
		err  error
	}
	resultCh := make(chan fetchResult, 1)
	go func() {
		bars, err := c.fetchWithRetry(ctx, ticker, from, to)
		resultCh <- fetchResult{bars: bars, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultCh:
		return result.bars, result.err
	}
}

func (c *YahooClient) fetchWithRetry(ctx context.Context, ticker string, from, to time.Time) ([]domain.RawBar, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		c.logger.WithFields(logrus.Fields{
			"ticker":  ticker,
			"from":    from,
			"to":      to,
			"attempt": attempt,
			"max":     c.maxRetries,
		}).Info("fetching 1m bars")

		bars, err := c.fetchOnce(ctx, ticker, from, to)
		if err == nil {
			c.logger.WithFields(logrus.Fields{"ticker": ticker, "bars": len(bars)}).Debug("fetch finished")
			return bars, nil
		}

		lastErr = err
		c.logger.WithError(err).WithFields(logrus.Fields{
			"ticker":  ticker,
			"attempt": attempt,
		}).Warn("fetch attempt failed")

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}
	return nil, fmt.Errorf("fetch 1m bars for %s: all %d attempts failed: %w", ticker, c.maxRetries, lastErr)
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []chartQuote `json:"quote"`
	} `json:"indicators"`
}

type chartQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

func (c *YahooClient) fetchOnce(ctx context.Context, ticker string, from, to time.Time) ([]domain.RawBar, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build chart request: %w", err)
	}

	query := req.URL.Query()
	query.Set("interval", "1m")
	query.Set("period1", strconv.FormatInt(from.Unix(), 10))
	query.Set("period2", strconv.FormatInt(to.Unix(), 10))
	query.Set("includePrePost", "false")
	req.URL.RawQuery = query.Encode()
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Unknown or not-yet-listed symbols come back as 404, not an error
		// worth retrying.
		c.logger.WithField("ticker", ticker).Warn("chart endpoint returned 404, treating as no data")
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart request: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chart response: %w", err)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode chart response: %w", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error: %s (%s)", parsed.Chart.Error.Description, parsed.Chart.Error.Code)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, nil
	}

	result := parsed.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	if result.Meta.ExchangeTimezoneName == "" {
		c.logger.WithField("ticker", ticker).Warn("chart response has no timezone metadata, assuming UTC")
	}

	quote := result.Indicators.Quote[0]
	bars := make([]domain.RawBar, 0, len(result.Timestamp))
	dropped := 0
	for i, ts := range result.Timestamp {
		open := at(quote.Open, i)
		high := at(quote.High, i)
		low := at(quote.Low, i)
		closePrice := at(quote.Close, i)
		volume := at(quote.Volume, i)
		if open == nil || high == nil || low == nil || closePrice == nil || volume == nil {
			dropped++
			continue
		}
		bars = append(bars, domain.RawBar{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      *open,
			High:      *high,
			Low:       *low,
			Close:     *closePrice,
			Volume:    *volume,
		})
	}
	if dropped > 0 {
		c.logger.WithFields(logrus.Fields{
			"ticker":  ticker,
			"dropped": dropped,
		}).Warn("dropped bars with missing fields")
	}
	return bars, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}
