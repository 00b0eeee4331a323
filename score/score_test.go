package score

import (
	"context"
	"errors"
	"math"
	"testing"

	"kilroy-face-discord/model"
	"kilroy-face-discord/pkg/face"
)

func TestRelativeReactions(t *testing.T) {
	tests := []struct {
		name        string
		reactions   []face.Reaction
		memberCount int
		want        float64
	}{
		{
			name:        "no reactions scores zero",
			reactions:   nil,
			memberCount: 10,
			want:        0,
		},
		{
			name: "twenty reactions across ten members",
			reactions: []face.Reaction{
				{Emoji: "👍", Count: 12},
				{Emoji: "🔥", Count: 8},
			},
			memberCount: 10,
			want:        2.0,
		},
		{
			name:        "partial ratio",
			reactions:   []face.Reaction{{Emoji: "👍", Count: 3}},
			memberCount: 12,
			want:        0.25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewRelativeReactions(tt.memberCount)
			if err != nil {
				t.Fatalf("NewRelativeReactions(%d) failed: %v", tt.memberCount, err)
			}

			got, err := s.Score(context.Background(), &face.Post{Reactions: tt.reactions})
			if err != nil {
				t.Fatalf("Score() failed: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestRelativeReactionsRejectsZeroMembers(t *testing.T) {
	if _, err := NewRelativeReactions(0); !errors.Is(err, ErrNoMembers) {
		t.Errorf("NewRelativeReactions(0) error = %v, want ErrNoMembers", err)
	}
	if _, err := NewRelativeReactions(-5); !errors.Is(err, ErrNoMembers) {
		t.Errorf("NewRelativeReactions(-5) error = %v, want ErrNoMembers", err)
	}
}

func TestToxicityScore(t *testing.T) {
	s := NewToxicity(&model.Mock{Value: 0.8})

	got, err := s.Score(context.Background(), &face.Post{Content: "some text"})
	if err != nil {
		t.Fatalf("Score() failed: %v", err)
	}
	if math.Abs(got-0.2) > 1e-9 {
		t.Errorf("Score() = %f, want 0.2", got)
	}
}

func TestToxicityEmptyTextScoresZero(t *testing.T) {
	s := NewToxicity(&model.Mock{Value: 0.8})

	got, err := s.Score(context.Background(), &face.Post{})
	if err != nil {
		t.Fatalf("Score() failed: %v", err)
	}
	if got != 0 {
		t.Errorf("Score() = %f, want 0 for empty text", got)
	}
}

func TestToxicityPropagatesModelErrors(t *testing.T) {
	wantErr := errors.New("model exploded")
	s := NewToxicity(&model.Mock{Err: wantErr})

	if _, err := s.Score(context.Background(), &face.Post{Content: "text"}); !errors.Is(err, wantErr) {
		t.Errorf("Score() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestFor(t *testing.T) {
	tests := []struct {
		name        string
		scoringType string
		memberCount int
		model       TextScorer
		wantErr     bool
	}{
		{name: "default is relative-reactions", scoringType: "", memberCount: 5},
		{name: "relative-reactions", scoringType: "relative-reactions", memberCount: 5},
		{name: "toxicity", scoringType: "toxicity", model: &model.Mock{}},
		{name: "toxicity without model", scoringType: "toxicity", wantErr: true},
		{name: "relative-reactions with no members", scoringType: "relative-reactions", wantErr: true},
		{name: "unknown type", scoringType: "stars", memberCount: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := For(tt.scoringType, tt.memberCount, tt.model)
			if (err != nil) != tt.wantErr {
				t.Fatalf("For() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && s == nil {
				t.Error("For() returned nil scorer")
			}
		})
	}
}
