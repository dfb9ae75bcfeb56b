package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(Options{RequestsPerSec: 100, MaxRetries: 5, MaxRetryTimeout: 5 * time.Second})
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, &out); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if !out.OK {
		t.Error("Expected decoded body")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 calls, got %d", got)
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(Options{RequestsPerSec: 100, MaxRetries: 5})
	_, err := c.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", statusErr.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 call, got %d", got)
	}
}
