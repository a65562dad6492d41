package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fastRetry is a retry schedule usable in unit tests.
var fastRetry = RetryConfig{
	MaxAttempts:       4,
	InitialBackoff:    time.Millisecond,
	MaxBackoff:        5 * time.Millisecond,
	BackoffMultiplier: 2.0,
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", config.MaxAttempts)
	}
	if config.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", config.InitialBackoff)
	}
	if config.MaxBackoff != 5*time.Second {
		t.Errorf("MaxBackoff = %v, want 5s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	config := DefaultRetryConfig()

	tests := []struct {
		retry    int
		expected time.Duration
	}{
		{retry: 0, expected: 0},
		{retry: 1, expected: 1 * time.Second},
		{retry: 2, expected: 2 * time.Second},
		{retry: 3, expected: 4 * time.Second},
		{retry: 4, expected: 5 * time.Second},
		{retry: 10, expected: 5 * time.Second},
	}

	for _, tt := range tests {
		if got := config.Backoff(tt.retry); got != tt.expected {
			t.Errorf("Backoff(%d) = %v, want %v", tt.retry, got, tt.expected)
		}
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetry, zerolog.Nop(), func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetry, zerolog.Nop(), func() error {
		callCount++
		if callCount < 3 {
			return &APIError{Kind: KindUpstream, StatusCode: 500}
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	callCount := 0
	lastErr := &APIError{Kind: KindGatewayTimeout, StatusCode: 504}

	err := retryWithBackoff(context.Background(), fastRetry, zerolog.Nop(), func() error {
		callCount++
		return lastErr
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if KindOf(err) != KindGatewayTimeout {
		t.Errorf("KindOf(err) = %q, want last failure kind %q", KindOf(err), KindGatewayTimeout)
	}
	if callCount != fastRetry.MaxAttempts {
		t.Errorf("Expected %d calls, got %d", fastRetry.MaxAttempts, callCount)
	}
}

func TestRetryWithBackoff_UnclassifiedNotRetried(t *testing.T) {
	callCount := 0
	plain := errors.New("rate limit wait: context canceled")

	err := retryWithBackoff(context.Background(), fastRetry, zerolog.Nop(), func() error {
		callCount++
		return plain
	})

	if err != plain {
		t.Errorf("Expected original error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	slow := RetryConfig{MaxAttempts: 4, InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, BackoffMultiplier: 2}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := retryWithBackoff(ctx, slow, zerolog.Nop(), func() error {
		return &APIError{Kind: KindNetwork}
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Cancellation took %v, expected prompt return", elapsed)
	}
}

func TestSearchWithRetry_NilAfterExhaustion(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	page := c.SearchWithRetry(context.Background(), SearchParams{SearchText: "gdp", Limit: 1000})
	if page != nil {
		t.Errorf("Expected nil page after exhaustion, got %+v", page)
	}
	if got := calls.Load(); got != 4 {
		t.Errorf("Expected 4 attempts, got %d", got)
	}
}

func TestSearchWithRetry_RecoversAfterFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		w.Write([]byte(`{"count":1,"seriess":[{"id":"GDPC1"}]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	page := c.SearchWithRetry(context.Background(), SearchParams{SearchText: "gdp"})
	if page == nil {
		t.Fatal("Expected page after recovery, got nil")
	}
	if len(page.Series) != 1 || page.Series[0].ID != "GDPC1" {
		t.Errorf("page.Series = %+v", page.Series)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}
