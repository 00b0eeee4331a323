// Package server exposes the face plugin API over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"kilroy-face-discord/pkg/face"
)

// Iterator is a single-use cursor over scraped posts. It ends with
// scrape.ErrDone.
type Iterator interface {
	Next(ctx context.Context) (*face.Post, error)
}

// Scraper starts history passes over the scraping channel.
type Scraper interface {
	Scrape(before, after time.Time) Iterator
}

// Poster sends a post document to the posting channel.
type Poster interface {
	Post(ctx context.Context, doc *face.Document) (string, error)
}

// Fetcher loads a single post from the scraping channel by message ID.
type Fetcher interface {
	Fetch(ctx context.Context, messageID string) (*face.Post, error)
}

// Scorer produces one quality signal for a post.
type Scorer interface {
	Score(ctx context.Context, post *face.Post) (float64, error)
}

// StateStore persists the face state.
type StateStore interface {
	SaveState(ctx context.Context, st *face.State) error
}

// IsNotFound checks if an error means the requested message does not exist.
type IsNotFound func(error) bool

// Server handles HTTP requests.
type Server struct {
	scraper    Scraper
	poster     Poster
	fetcher    Fetcher
	scorer     Scorer
	store      StateStore
	state      *face.State
	logger     *slog.Logger
	isNotFound IsNotFound

	mu sync.Mutex // guards state
}

// Config holds server configuration.
type Config struct {
	Scraper    Scraper
	Poster     Poster
	Fetcher    Fetcher
	Scorer     Scorer
	Store      StateStore
	State      *face.State
	Logger     *slog.Logger
	IsNotFound IsNotFound
}

// New creates a new HTTP server handler.
func New(cfg *Config) *Server {
	return &Server{
		scraper:    cfg.Scraper,
		poster:     cfg.Poster,
		fetcher:    cfg.Fetcher,
		scorer:     cfg.Scorer,
		store:      cfg.Store,
		state:      cfg.State,
		logger:     cfg.Logger,
		isNotFound: cfg.IsNotFound,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metadata", s.handleMetadata)
	mux.HandleFunc("/post", s.handlePost)
	mux.HandleFunc("/score", s.handleScore)
	mux.HandleFunc("/scrape", s.handleScrape)
	return mux
}

// ListenAndServe starts the server on the given port.
func (s *Server) ListenAndServe(port string) error {
	// Write timeout is generous because /scrape streams whole history
	// windows; the other timeouts mirror a hardened default.
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "port", port)
	return server.ListenAndServe()
}
