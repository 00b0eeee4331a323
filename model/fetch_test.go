package model

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func fetchLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestFetchIsIdempotent(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"bias":0,"weights":{"bad":1}}`)); err != nil {
			t.Error(err)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := NewFetcher(srv.Client(), dir, fetchLogger())
	manifest := ManifestFor(srv.URL)

	ctx := context.Background()
	if err := f.Fetch(ctx, manifest); err != nil {
		t.Fatalf("first Fetch() failed: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("first Fetch() made %d requests, want 1", got)
	}

	// Second run must be a cache hit.
	if err := f.Fetch(ctx, manifest); err != nil {
		t.Fatalf("second Fetch() failed: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("second Fetch() made %d total requests, want still 1", got)
	}

	// The cached file is loadable.
	if _, err := Load(filepath.Join(dir, WeightsFile)); err != nil {
		t.Errorf("cached weights do not load: %v", err)
	}
}

func TestFetchFailsOnNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), t.TempDir(), fetchLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := f.Fetch(ctx, ManifestFor(srv.URL)); err == nil {
		t.Error("Fetch() should fail on 404")
	}
}

func TestFetchPartialFileIsNotACacheHit(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"bias":0,"weights":{"bad":1}}`)); err != nil {
			t.Error(err)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	// An empty file on disk must be re-downloaded.
	if err := os.WriteFile(filepath.Join(dir, WeightsFile), nil, 0o600); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(srv.Client(), dir, fetchLogger())
	if err := f.Fetch(context.Background(), ManifestFor(srv.URL)); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("Fetch() made %d requests, want 1", got)
	}
}
