package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testClient(baseURL string, maxRetries int) *YahooClient {
	return NewYahooClient(baseURL, maxRetries, time.Millisecond, testLogger())
}

const chartBody = `{
	"chart": {
		"result": [{
			"meta": {"exchangeTimezoneName": "Asia/Tokyo"},
			"timestamp": [1707868800, 1707868860, 1707868920],
			"indicators": {"quote": [{
				"open":   [100.1, 100.2, null],
				"high":   [100.5, 100.6, 100.7],
				"low":    [99.9, 100.0, 100.1],
				"close":  [100.2, 100.3, 100.4],
				"volume": [1200, 1300, 1400]
			}]}
		}],
		"error": null
	}
}`

func TestFetch1mBarsParsesChartResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("interval"); got != "1m" {
			t.Errorf("expected interval=1m, got %q", got)
		}
		fmt.Fprint(w, chartBody)
	}))
	defer server.Close()

	bars, err := testClient(server.URL, 1).Fetch1mBars(context.Background(), "7203.T", time.Unix(1707868800, 0), time.Unix(1707872400, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The third row has a null open and must be dropped.
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if !bars[0].Timestamp.Equal(time.Unix(1707868800, 0)) {
		t.Errorf("unexpected first timestamp: %v", bars[0].Timestamp)
	}
	if bars[1].Close != 100.3 || bars[1].Volume != 1300 {
		t.Errorf("unexpected second bar: %+v", bars[1])
	}
}

func TestFetch1mBarsEmptyResultIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart": {"result": [], "error": null}}`)
	}))
	defer server.Close()

	bars, err := testClient(server.URL, 1).Fetch1mBars(context.Background(), "7203.T", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 0 {
		t.Fatalf("expected no bars, got %d", len(bars))
	}
}

func TestFetch1mBarsNotFoundTreatedAsNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	bars, err := testClient(server.URL, 1).Fetch1mBars(context.Background(), "NOPE.T", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("404 must not be an error: %v", err)
	}
	if len(bars) != 0 {
		t.Fatalf("expected no bars, got %d", len(bars))
	}
}

func TestFetch1mBarsRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, chartBody)
	}))
	defer server.Close()

	bars, err := testClient(server.URL, 3).Fetch1mBars(context.Background(), "7203.T", time.Unix(1707868800, 0), time.Unix(1707872400, 0))
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestFetch1mBarsExhaustedRetriesFail(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := testClient(server.URL, 3).Fetch1mBars(context.Background(), "7203.T", time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestFetch1mBarsChartAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart": {"result": null, "error": {"code": "Bad Request", "description": "Invalid range"}}}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL, 1).Fetch1mBars(context.Background(), "7203.T", time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Fatal("expected chart API error to surface")
	}
}

func TestFetch1mBarsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartBody)
	}))
	defer server.Close()

	if _, err := testClient(server.URL, 1).Fetch1mBars(ctx, "7203.T", time.Now().Add(-time.Hour), time.Now()); err == nil {
		t.Fatal("expected context error")
	}
}
