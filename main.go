// Package main implements a kilroy face service for Discord: an HTTP
// plugin that scrapes, scores, and posts messages in a Discord channel
// on behalf of the orchestrator.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"kilroy-face-discord/discord"
	"kilroy-face-discord/model"
	"kilroy-face-discord/pkg/face"
	"kilroy-face-discord/score"
	"kilroy-face-discord/scrape"
	"kilroy-face-discord/server"
	"kilroy-face-discord/storage"
)

func main() {
	logger := newLogger(os.Getenv("LOG_FORMAT"))
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:          face.Key,
		Short:        face.Description,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), logger)
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the face HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), logger)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "fetch-models",
		Short: "Download scoring model files into the local cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetchModels(cmd.Context(), logger)
		},
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger. JSON is the deployed default;
// LOG_FORMAT=text switches to tinted terminal output for development.
func newLogger(format string) *slog.Logger {
	if format == "text" {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func runServe(ctx context.Context, logger *slog.Logger) error {
	cfg, err := configFromEnv()
	if err != nil {
		return err
	}

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client, err := discord.New(cfg.Token, logger)
	if err != nil {
		return fmt.Errorf("connect to Discord: %w", err)
	}

	memberCount, err := client.MemberCount(ctx, cfg.ScrapingChannelID)
	if err != nil {
		return fmt.Errorf("resolve member count: %w", err)
	}
	logger.Info("Resolved scraping channel",
		"channel_id", cfg.ScrapingChannelID, "member_count", memberCount)

	order, err := scrape.OrderFor(cfg.ScrapingType)
	if err != nil {
		return err
	}
	scraper := scrape.New(client.Channel(cfg.ScrapingChannelID), order, logger)

	scorer, err := newScorer(cfg, memberCount)
	if err != nil {
		return err
	}

	state, err := loadOrCreateState(ctx, store, cfg, memberCount, logger)
	if err != nil {
		return err
	}

	srv := server.New(&server.Config{
		Scraper:    scraperAdapter{scraper},
		Poster:     client.Channel(cfg.PostingChannelID),
		Fetcher:    client.Channel(cfg.ScrapingChannelID),
		Scorer:     scorer,
		Store:      store,
		State:      state,
		Logger:     logger,
		IsNotFound: discord.IsUnknownMessage,
	})
	return srv.ListenAndServe(cfg.Port)
}

// scraperAdapter narrows the concrete iterator to the server's interface.
type scraperAdapter struct {
	s *scrape.BasicScraper
}

func (a scraperAdapter) Scrape(before, after time.Time) server.Iterator {
	return a.s.Scrape(before, after)
}

// newStore picks between GCS and local directory storage. With no bucket
// configured the face runs in local development mode under ./data.
func newStore(ctx context.Context, cfg *Config, logger *slog.Logger) (*storage.Store, error) {
	if cfg.Bucket != "" {
		var opts []option.ClientOption
		if creds := os.Getenv("GOOGLE_CREDENTIALS_JSON"); creds != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
		}
		client, err := gcs.NewClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		logger.Info("Using GCS state storage", "bucket", cfg.Bucket)
		return storage.New(client, cfg.Bucket, "", logger), nil
	}

	localPath := cfg.LocalPath
	if localPath == "" {
		localPath = "./data"
		logger.Info("No storage bucket set, defaulting to local development mode",
			"storage_path", localPath)
	}
	if err := os.MkdirAll(localPath, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage directory: %w", err)
	}
	return storage.New(nil, "", localPath, logger), nil
}

func newScorer(cfg *Config, memberCount int) (score.Scorer, error) {
	var textModel score.TextScorer
	if cfg.ScoringType == "toxicity" {
		m, err := model.Load(filepath.Join(cfg.ModelsPath, model.WeightsFile))
		if err != nil {
			return nil, fmt.Errorf("load toxicity model: %w", err)
		}
		textModel = m
	}
	return score.For(cfg.ScoringType, memberCount, textModel)
}

// loadOrCreateState restores the persisted face state, refreshing the
// fields derived from configuration on every start.
func loadOrCreateState(ctx context.Context, store *storage.Store, cfg *Config, memberCount int, logger *slog.Logger) (*face.State, error) {
	state, err := store.LoadState(ctx)
	switch {
	case storage.IsNotFound(err):
		logger.Info("No saved face state, starting fresh")
		state = &face.State{}
	case err != nil:
		return nil, fmt.Errorf("load face state: %w", err)
	default:
		logger.Info("Restored face state", "last_scraped_id", state.LastScrapedID)
	}

	state.ScrapingType = cfg.ScrapingType
	state.ScoringType = cfg.ScoringType
	state.ScrapingChannelID = cfg.ScrapingChannelID
	state.PostingChannelID = cfg.PostingChannelID
	state.MemberCount = memberCount

	if err := store.SaveState(ctx, state); err != nil {
		return nil, fmt.Errorf("save face state: %w", err)
	}
	return state, nil
}

func runFetchModels(ctx context.Context, logger *slog.Logger) error {
	dir := env("MODELS__PATH", "./models")
	baseURL := env("MODELS__URL", model.DefaultBaseURL)

	fetcher := model.NewFetcher(&http.Client{Timeout: 60 * time.Second}, dir, logger)
	if err := fetcher.Fetch(ctx, model.ManifestFor(baseURL)); err != nil {
		return fmt.Errorf("fetch models: %w", err)
	}

	logger.Info("Model files ready", "dir", dir)
	return nil
}
