package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"kilroy-face-discord/pkg/face"
	"kilroy-face-discord/scrape"
)

// maxPostBody caps /post request bodies; Discord rejects larger uploads
// anyway.
const maxPostBody = 10 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"healthy"}`); err != nil {
		s.logger.Warn("Failed to write health response", "error", err)
	}
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, map[string]string{
		"key":         face.Key,
		"description": face.Description,
		"post_type":   face.PostType,
	})
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var doc face.Document
	body := http.MaxBytesReader(w, r.Body, maxPostBody)
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		http.Error(w, "Invalid post document", http.StatusBadRequest)
		return
	}
	if doc.Empty() {
		http.Error(w, "Post document has no content", http.StatusBadRequest)
		return
	}

	id, err := s.poster.Post(r.Context(), &doc)
	if err != nil {
		s.logger.Error("Post failed", "error", err)
		http.Error(w, "Post failed", http.StatusBadGateway)
		return
	}

	s.logger.Info("Post created", "message_id", id)
	s.writeJSON(w, map[string]string{"id": id})
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	post, err := s.fetcher.Fetch(r.Context(), id)
	if err != nil {
		if s.isNotFound != nil && s.isNotFound(err) {
			http.Error(w, "Unknown message", http.StatusNotFound)
			return
		}
		s.logger.Error("Message fetch failed", "message_id", id, "error", err)
		http.Error(w, "Fetch failed", http.StatusBadGateway)
		return
	}

	value, err := s.scorer.Score(r.Context(), post)
	if err != nil {
		s.logger.Error("Scoring failed", "message_id", id, "error", err)
		http.Error(w, "Scoring failed", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, scoreResponse{ID: id, Score: value})
}

type scoreResponse struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// scrapeLine is one NDJSON line of the /scrape stream.
type scrapeLine struct {
	Content *face.Document `json:"content"`
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, before, after, err := scrapeParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Info("Scrape started", "limit", limit, "before", before, "after", after)

	it := s.scraper.Scrape(before, after)

	// Pull the first post before committing to a streaming response so
	// an unreadable channel surfaces as an error status.
	first, err := it.Next(r.Context())
	if err != nil && !errors.Is(err, scrape.ErrDone) {
		s.logger.Error("Scrape failed", "error", err)
		http.Error(w, "Scrape failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	var lastID string
	count := 0
	post := first

	for err == nil {
		if limit > 0 && count >= limit {
			break
		}

		doc := face.DocumentFor(post)
		if doc == nil {
			// Post has no usable content; skip it, like a failed
			// conversion.
			post, err = it.Next(r.Context())
			continue
		}

		value, scoreErr := s.scorer.Score(r.Context(), post)
		if scoreErr != nil {
			s.logger.Warn("Scoring failed mid-stream, stopping", "post_id", post.ID, "error", scoreErr)
			break
		}

		if encErr := enc.Encode(scrapeLine{ID: post.ID, Content: doc, Score: value}); encErr != nil {
			s.logger.Warn("Client went away mid-stream", "error", encErr)
			break
		}
		if flusher != nil {
			flusher.Flush()
		}

		lastID = post.ID
		count++
		post, err = it.Next(r.Context())
	}

	if err != nil && !errors.Is(err, scrape.ErrDone) {
		s.logger.Warn("Scrape ended early", "error", err, "streamed", count)
	}

	s.logger.Info("Scrape completed", "streamed", count, "last_id", lastID)
	s.saveProgress(r, lastID)
}

// saveProgress records the newest streamed post ID in the face state.
func (s *Server) saveProgress(r *http.Request, lastID string) {
	if lastID == "" || s.store == nil || s.state == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.LastScrapedID = lastID
	if err := s.store.SaveState(r.Context(), s.state); err != nil {
		s.logger.Warn("Failed to save face state", "error", err)
	}
}

func scrapeParams(r *http.Request) (limit int, before, after time.Time, err error) {
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			return 0, time.Time{}, time.Time{}, errors.New("invalid limit parameter")
		}
	}
	if v := q.Get("before"); v != "" {
		before, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return 0, time.Time{}, time.Time{}, errors.New("invalid before parameter, want RFC3339")
		}
	}
	if v := q.Get("after"); v != "" {
		after, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return 0, time.Time{}, time.Time{}, errors.New("invalid after parameter, want RFC3339")
		}
	}
	return limit, before, after, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
