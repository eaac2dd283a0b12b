package bls

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/couchcryptid/cpi-data-etl/internal/domain"
	"github.com/couchcryptid/cpi-data-etl/internal/observability"
)

// DefaultBaseURL is the BLS Public Data API v2 timeseries endpoint.
const DefaultBaseURL = "https://api.bls.gov/publicAPI/v2/timeseries/data/"

// statusNotProcessed is the payload status BLS returns when it refuses a
// request, including when the daily quota is used up.
const statusNotProcessed = "REQUEST_NOT_PROCESSED"

// ClientConfig holds the connection settings for a Client.
type ClientConfig struct {
	BaseURL   string
	APIKey    string
	UserAgent string

	// Timeout bounds a single HTTP round trip. Zero means no timeout.
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after a transient failure.
	// Zero fails fast.
	MaxRetries int

	// RetryInterval is the first backoff delay; it doubles on each retry.
	RetryInterval time.Duration
}

// Client queries the BLS timeseries API. It implements pipeline.Querier.
type Client struct {
	apiKey        string
	userAgent     string
	baseURL       string
	httpClient    *http.Client
	maxRetries    int
	retryInterval time.Duration
	metrics       *observability.Metrics
	logger        *slog.Logger
}

// NewClient creates a BLS API client.
func NewClient(cfg ClientConfig, logger *slog.Logger, metrics *observability.Metrics) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Client{
		apiKey:    cfg.APIKey,
		userAgent: cfg.UserAgent,
		baseURL:   baseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxRetries:    max(cfg.MaxRetries, 0),
		retryInterval: interval,
		metrics:       metrics,
		logger:        logger,
	}
}

// Query requests observations for one batch of series between startYear and
// endYear (inclusive) and returns the raw JSON payload.
func (c *Client) Query(ctx context.Context, ids []domain.SeriesID, startYear, endYear string) ([]byte, error) {
	if len(ids) == 0 {
		return nil, errors.New("query: no series ids")
	}
	if len(ids) > domain.MaxSeriesPerRequest {
		return nil, fmt.Errorf("query: %d series ids exceeds the per-request limit of %d", len(ids), domain.MaxSeriesPerRequest)
	}

	body, err := json.Marshal(request{
		SeriesID:        ids,
		StartYear:       startYear,
		EndYear:         endYear,
		RegistrationKey: c.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	attempt := func() ([]byte, error) {
		raw, err := c.doRequest(ctx, body)
		if err == nil {
			return raw, nil
		}
		if ctx.Err() != nil || !errors.Is(err, domain.ErrTransientNetwork) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	notify := func(err error, wait time.Duration) {
		c.metrics.APIRetries.Inc()
		c.logger.Warn("series request failed, retrying",
			"error", err,
			"wait", wait,
			"batch_size", len(ids),
		)
	}

	return backoff.RetryNotifyWithData(attempt, c.newBackOff(ctx), notify)
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retryInterval
	exp.Multiplier = 2
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.maxRetries)), ctx)
}

func (c *Client) doRequest(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.APIRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: series request: %w", domain.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrTransientNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrRateLimited, resp.StatusCode, data)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: bls API error: status %d: %s", domain.ErrTransientNetwork, resp.StatusCode, data)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("bls API error: status %d: %s", resp.StatusCode, data)
	}

	if err := checkStatus(data); err != nil {
		return nil, err
	}
	return data, nil
}

// checkStatus inspects the payload envelope for a refusal. A quota refusal is
// ErrRateLimited; any other refusal without series data is ErrRequestRefused.
// Payloads that do not decode are returned to the caller, which reports the
// shape error.
func checkStatus(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil
	}
	if env.Status != statusNotProcessed {
		return nil
	}
	for _, msg := range env.Message {
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "threshold") || strings.Contains(lower, "limit") {
			return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
		}
	}
	if env.Results == nil || env.Results.Series == nil {
		return fmt.Errorf("%w: %s: %s", domain.ErrRequestRefused, env.Status, strings.Join(env.Message, "; "))
	}
	return nil
}

// BLS API request and envelope types.

type request struct {
	SeriesID        []domain.SeriesID `json:"seriesid"`
	StartYear       string            `json:"startyear"`
	EndYear         string            `json:"endyear"`
	RegistrationKey string            `json:"registrationkey,omitempty"`
}

type envelope struct {
	Status  string           `json:"status"`
	Message []string         `json:"message"`
	Results *envelopeResults `json:"Results"`
}

type envelopeResults struct {
	Series *[]json.RawMessage `json:"series"`
}
