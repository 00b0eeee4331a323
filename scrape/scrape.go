// Package scrape implements the history scrapers for the face.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"kilroy-face-discord/pkg/face"
)

// ErrDone is returned by Iterator.Next once the history is exhausted.
var ErrDone = errors.New("scrape: no more posts")

// Source is the slice of the Discord channel the scrapers need.
type Source interface {
	HistoryPage(ctx context.Context, beforeID, afterID string) ([]*face.Post, error)
}

// Order controls the direction of iteration.
type Order int

const (
	// NewestFirst walks history from the most recent post backwards.
	NewestFirst Order = iota
	// OldestFirst walks history from the oldest post forwards.
	OldestFirst
)

// OrderFor maps a configured scraping type onto an iteration order.
func OrderFor(scrapingType string) (Order, error) {
	switch scrapingType {
	case "", "basic":
		return NewestFirst, nil
	case "basic-asc":
		return OldestFirst, nil
	default:
		return 0, fmt.Errorf("unknown scraping type %q", scrapingType)
	}
}

// BasicScraper walks a channel's history page by page, excluding every
// bot-authored post so the orchestrator never trains on generated content.
type BasicScraper struct {
	source Source
	logger *slog.Logger
	order  Order
}

// New creates a scraper over the given history source.
func New(source Source, order Order, logger *slog.Logger) *BasicScraper {
	return &BasicScraper{
		source: source,
		order:  order,
		logger: logger,
	}
}

// Scrape starts a new pass over the channel history, bounded by the
// optional before/after times. The returned iterator is single-use.
func (s *BasicScraper) Scrape(before, after time.Time) *Iterator {
	it := &Iterator{scraper: s}

	if !before.IsZero() {
		it.beforeBound = snowflake.New(before)
	}
	if !after.IsZero() {
		it.afterBound = snowflake.New(after)
	}

	switch s.order {
	case OldestFirst:
		it.cursor = "0"
		if it.afterBound != 0 {
			it.cursor = it.afterBound.String()
		}
	default:
		it.cursor = ""
		if it.beforeBound != 0 {
			it.cursor = it.beforeBound.String()
		}
	}

	return it
}

// Iterator is a lazy, finite, non-restartable cursor over channel history.
// Once Next has returned ErrDone or any other error, the iterator stays
// exhausted.
type Iterator struct {
	scraper     *BasicScraper
	cursor      string
	buf         []*face.Post
	beforeBound snowflake.ID
	afterBound  snowflake.ID
	done        bool
}

// Next returns the next non-bot post, or ErrDone when history is
// exhausted. Errors from the underlying client propagate unmodified apart
// from wrapping.
func (it *Iterator) Next(ctx context.Context) (*face.Post, error) {
	for {
		if len(it.buf) > 0 {
			post := it.buf[0]
			it.buf = it.buf[1:]
			return post, nil
		}
		if it.done {
			return nil, ErrDone
		}

		if err := it.fetchPage(ctx); err != nil {
			it.done = true
			return nil, err
		}
	}
}

// Collect drains up to limit posts from the iterator. A limit of zero or
// less collects the full remaining history.
func (it *Iterator) Collect(ctx context.Context, limit int) ([]*face.Post, error) {
	var posts []*face.Post
	for limit <= 0 || len(posts) < limit {
		post, err := it.Next(ctx)
		if errors.Is(err, ErrDone) {
			break
		}
		if err != nil {
			return posts, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (it *Iterator) fetchPage(ctx context.Context) error {
	var page []*face.Post
	var err error

	switch it.scraper.order {
	case OldestFirst:
		page, err = it.scraper.source.HistoryPage(ctx, "", it.cursor)
	default:
		page, err = it.scraper.source.HistoryPage(ctx, it.cursor, "")
	}
	if err != nil {
		return fmt.Errorf("fetch history page: %w", err)
	}

	if len(page) == 0 {
		it.done = true
		return nil
	}

	sorted := it.sortPage(page)
	it.advanceCursor(sorted)

	kept := 0
	for _, post := range sorted {
		id, perr := snowflake.Parse(post.ID)
		if perr != nil {
			it.scraper.logger.Warn("Skipping post with unparseable ID", "post_id", post.ID, "error", perr)
			continue
		}
		if it.crossedBound(id) {
			it.done = true
			break
		}
		if it.outOfRange(id) {
			continue
		}
		if post.Bot {
			continue
		}
		it.buf = append(it.buf, post)
		kept++
	}

	it.scraper.logger.Debug("History page scraped",
		"fetched", len(page),
		"kept", kept,
		"cursor", it.cursor,
		"done", it.done)

	return nil
}

// sortPage orders a raw page in the iteration direction. Discord returns
// history pages newest-first; sorting locally keeps the iterator correct
// regardless of which cursor parameter produced the page.
func (it *Iterator) sortPage(page []*face.Post) []*face.Post {
	sorted := make([]*face.Post, len(page))
	copy(sorted, page)

	asc := it.scraper.order == OldestFirst
	sort.SliceStable(sorted, func(i, j int) bool {
		a, aerr := snowflake.Parse(sorted[i].ID)
		b, berr := snowflake.Parse(sorted[j].ID)
		if aerr != nil || berr != nil {
			if asc {
				return sorted[i].ID < sorted[j].ID
			}
			return sorted[i].ID > sorted[j].ID
		}
		if asc {
			return a < b
		}
		return a > b
	})
	return sorted
}

// advanceCursor moves the pagination cursor past the raw page, bots
// included, so filtered pages still make progress.
func (it *Iterator) advanceCursor(sorted []*face.Post) {
	last := sorted[len(sorted)-1]
	it.cursor = last.ID
}

// crossedBound reports whether the iteration has walked past its bound in
// the travel direction.
func (it *Iterator) crossedBound(id snowflake.ID) bool {
	if it.scraper.order == OldestFirst {
		return it.beforeBound != 0 && id >= it.beforeBound
	}
	return it.afterBound != 0 && id <= it.afterBound
}

// outOfRange reports whether a post sits outside the configured bounds
// without ending the iteration.
func (it *Iterator) outOfRange(id snowflake.ID) bool {
	if it.scraper.order == OldestFirst {
		return it.afterBound != 0 && id <= it.afterBound
	}
	return it.beforeBound != 0 && id >= it.beforeBound
}
