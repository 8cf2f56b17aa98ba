package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
)

// noSleep replaces the backoff wait in tests and records requested delays.
func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := NewClient(Config{})
	body, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestGet_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("eventually"))
	}))
	defer srv.Close()

	var delays []time.Duration
	c := NewClient(Config{Retries: 3, BaseDelay: 10 * time.Millisecond})
	c.sleep = noSleep(&delays)

	body, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "eventually", string(body))
	assert.Equal(t, 4, attempts)

	// Backoff doubles each attempt: base, 2*base, 4*base.
	assert.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
	}, delays)
}

func TestGet_ExhaustsRetryBudget(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var delays []time.Duration
	c := NewClient(Config{Retries: 2, BaseDelay: time.Millisecond})
	c.sleep = noSleep(&delays)

	_, err := c.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFetchFailed))
	assert.Equal(t, 3, attempts) // retries+1 total attempts
	assert.Len(t, delays, 2)    // no sleep after the final attempt
}

func TestGet_Non2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var delays []time.Duration
	c := NewClient(Config{Retries: 1, BaseDelay: time.Millisecond})
	c.sleep = noSleep(&delays)

	_, err := c.Get(context.Background(), srv.URL)
	assert.True(t, errors.Is(err, domain.ErrFetchFailed))
}

func TestGet_CustomHeadersMerged(t *testing.T) {
	var gotUA, gotRef string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotRef = r.Header.Get("Referer")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(Config{Headers: map[string]string{
		"User-Agent": "custom-agent",
		"Referer":    "https://app.example.com",
	}})

	_, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "custom-agent", gotUA)
	assert.Equal(t, "https://app.example.com", gotRef)
}

func TestGet_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(Config{Retries: 3, BaseDelay: time.Hour})
	_, err := c.Get(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
