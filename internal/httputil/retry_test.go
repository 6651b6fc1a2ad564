package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = RetryConfig{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond}

// scripted answers the i-th request with statuses[i], repeating the last one.
func scripted(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(hits.Add(1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		if statuses[i] == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "1")
		}
		w.WriteHeader(statuses[i])
		w.Write([]byte(http.StatusText(statuses[i])))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func get(ctx context.Context, cfg RetryConfig, url string) (*http.Response, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	return Do(ctx, client, cfg, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	srv, hits := scripted(t, http.StatusOK)

	resp, err := get(context.Background(), fast, srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, hits.Load())
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	srv, hits := scripted(t, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusOK)

	resp, err := get(context.Background(), fast, srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, hits.Load())
}

func TestDo_GivesUp(t *testing.T) {
	srv, hits := scripted(t, http.StatusBadGateway)

	_, err := get(context.Background(), fast, srv.URL)
	require.Error(t, err)
	assert.EqualValues(t, 3, hits.Load())
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
	assert.Contains(t, err.Error(), "gave up after 3 attempts")
}

func TestDo_NoRetryReturnsStatusError(t *testing.T) {
	srv, hits := scripted(t, http.StatusInternalServerError)

	_, err := get(context.Background(), NoRetry, srv.URL)
	assert.EqualValues(t, 1, hits.Load())

	var se *StatusError
	require.True(t, errors.As(err, &se), "got %#v", err)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "Internal Server Error", se.Body)
}

func TestDo_ClientErrorsAreNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound} {
		srv, hits := scripted(t, status)

		resp, err := get(context.Background(), fast, srv.URL)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, status, resp.StatusCode)
		assert.EqualValues(t, 1, hits.Load(), "status %d", status)
	}
}

func TestDo_TooManyRequestsHonoursRetryAfterUpToMaxDelay(t *testing.T) {
	srv, hits := scripted(t, http.StatusTooManyRequests, http.StatusOK)

	start := time.Now()
	resp, err := get(context.Background(), fast, srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.EqualValues(t, 2, hits.Load())
	// Retry-After: 1 is capped at MaxDelay.
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestDo_NoRetryKeepsRetryAfter(t *testing.T) {
	srv, _ := scripted(t, http.StatusTooManyRequests)

	_, err := get(context.Background(), NoRetry, srv.URL)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, time.Second, se.RetryAfter)
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	srv, _ := scripted(t, http.StatusServiceUnavailable)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	slow := RetryConfig{MaxAttempts: 10, BaseDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second}
	_, err := get(ctx, slow, srv.URL)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(http.StatusInternalServerError))
	assert.True(t, Retryable(http.StatusTooManyRequests))
	assert.False(t, Retryable(http.StatusNotFound))
	assert.False(t, Retryable(http.StatusOK))
}
