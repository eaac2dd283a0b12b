package bls

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/cpi-data-etl/internal/domain"
	"github.com/couchcryptid/cpi-data-etl/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey        = "test-key"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
	successBody       = `{"status":"REQUEST_SUCCEEDED","message":[],"Results":{"series":[{"seriesID":"CUURS200SAF","data":[]}]}}`
)

func testClient(baseURL string, maxRetries int) *Client {
	return &Client{
		apiKey:        testAPIKey,
		userAgent:     "cpi-etl-test",
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: 5 * time.Second},
		maxRetries:    maxRetries,
		retryInterval: time.Millisecond,
		metrics:       observability.NewMetricsForTesting(),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testIDs() []domain.SeriesID {
	return []domain.SeriesID{"CUURS200SAF", "CUURS200SAH"}
}

func TestClient_Query_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, contentTypeJSON, r.Header.Get(headerContentType))
		assert.Equal(t, "cpi-etl-test", r.Header.Get("User-Agent"))

		var req request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, testIDs(), req.SeriesID)
		assert.Equal(t, "2020", req.StartYear)
		assert.Equal(t, "2024", req.EndYear)
		assert.Equal(t, testAPIKey, req.RegistrationKey)

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(successBody))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0)
	raw, err := c.Query(context.Background(), testIDs(), "2020", "2024")
	require.NoError(t, err)
	assert.JSONEq(t, successBody, string(raw))
}

func TestClient_Query_RequestBodyFieldNames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "seriesid")
		assert.Contains(t, body, "startyear")
		assert.Contains(t, body, "endyear")
		assert.Contains(t, body, "registrationkey")
		_, _ = w.Write([]byte(successBody))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 0).Query(context.Background(), testIDs(), "2023", "2024")
	require.NoError(t, err)
}

func TestClient_Query_TooManyIDs(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	ids := make([]domain.SeriesID, domain.MaxSeriesPerRequest+1)
	_, err := testClient(srv.URL, 0).Query(context.Background(), ids, "2023", "2024")
	require.Error(t, err)
	assert.Equal(t, int32(0), calls.Load())
}

func TestClient_Query_TooManyRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).Query(context.Background(), testIDs(), "2023", "2024")
	require.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestClient_Query_DailyThreshold(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"status":"REQUEST_NOT_PROCESSED","message":["Request could not be serviced, as the daily threshold for total number of requests allocated to the user has been reached."],"Results":{}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).Query(context.Background(), testIDs(), "2023", "2024")
	require.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, int32(1), calls.Load(), "rate limits must not be retried")
}

func TestClient_Query_InvalidKeyRefused(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"status":"REQUEST_NOT_PROCESSED","message":["The key:bad provided by the User is invalid."],"Results":{}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).Query(context.Background(), testIDs(), "2023", "2024")
	require.ErrorIs(t, err, domain.ErrRequestRefused)
	assert.NotErrorIs(t, err, domain.ErrRateLimited)
	assert.Contains(t, err.Error(), "invalid")
	assert.Equal(t, int32(1), calls.Load(), "refusals must not be retried")
}

func TestClient_Query_NotProcessedWithSeriesPassedThrough(t *testing.T) {
	body := `{"status":"REQUEST_NOT_PROCESSED","message":["Series does not exist for Series CUURS999SAF"],"Results":{"series":[{"seriesID":"CUURS200SAF","data":[]}]}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	raw, err := testClient(srv.URL, 0).Query(context.Background(), testIDs(), "2023", "2024")
	require.NoError(t, err)
	assert.JSONEq(t, body, string(raw))
}

func TestClient_Query_ServerErrorFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 0).Query(context.Background(), testIDs(), "2023", "2024")
	require.ErrorIs(t, err, domain.ErrTransientNetwork)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Query_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 2).Query(context.Background(), testIDs(), "2023", "2024")
	require.ErrorIs(t, err, domain.ErrTransientNetwork)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Query_RetryRecovers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(successBody))
	}))
	defer srv.Close()

	raw, err := testClient(srv.URL, 1).Query(context.Background(), testIDs(), "2023", "2024")
	require.NoError(t, err)
	assert.JSONEq(t, successBody, string(raw))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Query_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`bad request`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).Query(context.Background(), testIDs(), "2023", "2024")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrTransientNetwork)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Query_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := testClient(url, 0).Query(context.Background(), testIDs(), "2023", "2024")
	require.ErrorIs(t, err, domain.ErrTransientNetwork)
}

func TestClient_Query_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}

	_, err := c.Query(context.Background(), testIDs(), "2023", "2024")
	require.ErrorIs(t, err, domain.ErrTransientNetwork)
}

func TestClient_Query_MalformedPayloadPassedThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	raw, err := testClient(srv.URL, 0).Query(context.Background(), testIDs(), "2023", "2024")
	require.NoError(t, err)

	_, err = domain.ParseResponse(raw)
	require.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(ClientConfig{APIKey: testAPIKey, MaxRetries: -1}, slog.Default(), observability.NewMetricsForTesting())

	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, 0, c.maxRetries)
	assert.Equal(t, time.Second, c.retryInterval)
}
