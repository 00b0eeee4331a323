package model

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// DefaultBaseURL is where model files are published.
const DefaultBaseURL = "https://storage.googleapis.com/kilroy-models/face-discord"

// ManifestFor lists the model files to download from the given base URL.
func ManifestFor(baseURL string) []ManifestEntry {
	base := strings.TrimSuffix(baseURL, "/")
	return []ManifestEntry{
		{Name: WeightsFile, URL: base + "/" + WeightsFile},
	}
}

// ManifestEntry is one downloadable model file.
type ManifestEntry struct {
	Name string
	URL  string
}

// Fetcher downloads model files into a local cache directory.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
	dir    string
}

// NewFetcher creates a fetcher writing into dir.
func NewFetcher(client *http.Client, dir string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		dir:    dir,
		logger: logger,
	}
}

// Fetch downloads every manifest entry that is not already cached.
// Re-running after a successful fetch is a no-op: existing non-empty
// files are treated as cache hits.
func (f *Fetcher) Fetch(ctx context.Context, manifest []ManifestEntry) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}

	for _, entry := range manifest {
		dest := filepath.Join(f.dir, entry.Name)

		if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
			f.logger.Info("Model file already cached", "file", entry.Name, "size", info.Size())
			continue
		}

		if err := f.fetchFile(ctx, entry, dest); err != nil {
			return fmt.Errorf("fetch model file %s: %w", entry.Name, err)
		}
	}

	return nil
}

func (f *Fetcher) fetchFile(ctx context.Context, entry ManifestEntry, dest string) error {
	err := retry.Do(
		func() error {
			f.logger.Info("Model download starting", "file", entry.Name, "url", entry.URL)

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.URL, http.NoBody)
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}

			start := time.Now()
			resp, err := f.client.Do(req)
			if err != nil {
				f.logger.Warn("Model download failed, will retry", "file", entry.Name, "error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					f.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode != http.StatusOK {
				err := fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, entry.URL)
				if resp.StatusCode >= 400 && resp.StatusCode < 500 {
					return retry.Unrecoverable(err)
				}
				return err
			}

			// Download to a temp file first so a partial download never
			// looks like a cache hit on the next run.
			tmp, err := os.CreateTemp(f.dir, entry.Name+".tmp-*")
			if err != nil {
				return fmt.Errorf("create temp file: %w", err)
			}
			defer func() {
				if removeErr := os.Remove(tmp.Name()); removeErr != nil && !os.IsNotExist(removeErr) {
					f.logger.Warn("Failed to remove temp file", "error", removeErr)
				}
			}()

			written, err := io.Copy(tmp, resp.Body)
			if closeErr := tmp.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
			if err != nil {
				return fmt.Errorf("write model file: %w", err)
			}
			if written == 0 {
				return fmt.Errorf("empty response body for %s", entry.URL)
			}

			if err := os.Rename(tmp.Name(), dest); err != nil {
				return fmt.Errorf("move model file into place: %w", err)
			}

			f.logger.Info("Model download completed",
				"file", entry.Name,
				"bytes", written,
				"duration_ms", time.Since(start).Milliseconds())
			return nil
		},
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Info("Retrying model download after error", "file", entry.Name, "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("after retries: %w", err)
	}
	return nil
}
