// Package score implements the post scorers for the face.
package score

import (
	"context"
	"errors"
	"fmt"

	"kilroy-face-discord/pkg/face"
)

// ErrNoMembers is returned when the guild member count is zero; a relative
// reaction score is undefined without members.
var ErrNoMembers = errors.New("score: guild has no members")

// Scorer produces one scalar quality signal for a post.
type Scorer interface {
	Score(ctx context.Context, post *face.Post) (float64, error)
}

// RelativeReactions scores a post by its total reaction count divided by
// the guild member count. The member count is resolved once at startup and
// immutable for the process lifetime.
type RelativeReactions struct {
	memberCount int
}

// NewRelativeReactions creates the scorer, rejecting a zero member count
// up front so the division is never undefined.
func NewRelativeReactions(memberCount int) (*RelativeReactions, error) {
	if memberCount <= 0 {
		return nil, ErrNoMembers
	}
	return &RelativeReactions{memberCount: memberCount}, nil
}

// Score returns total_reactions / member_count. No weighting by emoji
// type, no clamping.
func (s *RelativeReactions) Score(_ context.Context, post *face.Post) (float64, error) {
	return float64(post.TotalReactions()) / float64(s.memberCount), nil
}

// TextScorer is the slice of the toxicity model this package needs.
type TextScorer interface {
	Toxicity(ctx context.Context, text string) (float64, error)
}

// Toxicity scores a post by how non-toxic its text is: 1 - toxicity, so
// cleaner posts rank higher. Posts without text score zero.
type Toxicity struct {
	model TextScorer
}

// NewToxicity creates a toxicity-based scorer over the given model.
func NewToxicity(model TextScorer) *Toxicity {
	return &Toxicity{model: model}
}

// Score returns 1 - toxicity(post text).
func (s *Toxicity) Score(ctx context.Context, post *face.Post) (float64, error) {
	if post.Content == "" {
		return 0, nil
	}
	tox, err := s.model.Toxicity(ctx, post.Content)
	if err != nil {
		return 0, fmt.Errorf("score toxicity: %w", err)
	}
	return 1 - tox, nil
}

// For builds the scorer named by the configured scoring type. The model
// may be nil for types that do not use it.
func For(scoringType string, memberCount int, model TextScorer) (Scorer, error) {
	switch scoringType {
	case "", "relative-reactions":
		return NewRelativeReactions(memberCount)
	case "toxicity":
		if model == nil {
			return nil, errors.New("toxicity scoring requires model weights; run fetch-models first")
		}
		return NewToxicity(model), nil
	default:
		return nil, fmt.Errorf("unknown scoring type %q", scoringType)
	}
}
