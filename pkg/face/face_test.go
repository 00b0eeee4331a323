package face

import "testing"

func TestTotalReactions(t *testing.T) {
	tests := []struct {
		name string
		post Post
		want int
	}{
		{
			name: "no reactions",
			post: Post{},
			want: 0,
		},
		{
			name: "single emoji",
			post: Post{Reactions: []Reaction{{Emoji: "👍", Count: 3}}},
			want: 3,
		},
		{
			name: "multiple emoji summed",
			post: Post{Reactions: []Reaction{
				{Emoji: "👍", Count: 12},
				{Emoji: "🔥", Count: 7},
				{Emoji: "😄", Count: 1},
			}},
			want: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.post.TotalReactions(); got != tt.want {
				t.Errorf("TotalReactions() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDocumentFor(t *testing.T) {
	tests := []struct {
		name     string
		post     Post
		wantNil  bool
		wantText string
	}{
		{
			name:    "empty post has no document",
			post:    Post{ID: "1"},
			wantNil: true,
		},
		{
			name:     "text only",
			post:     Post{ID: "2", Content: "hello"},
			wantText: "hello",
		},
		{
			name: "image only",
			post: Post{ID: "3", Images: []Image{{URL: "https://cdn.example/a.png", Filename: "a.png"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := DocumentFor(&tt.post)
			if tt.wantNil {
				if doc != nil {
					t.Fatalf("DocumentFor() = %+v, want nil", doc)
				}
				return
			}
			if doc == nil {
				t.Fatal("DocumentFor() = nil, want document")
			}
			if tt.wantText != "" && (doc.Text == nil || doc.Text.Content != tt.wantText) {
				t.Errorf("DocumentFor() text = %+v, want %q", doc.Text, tt.wantText)
			}
		})
	}
}

func TestDocumentEmpty(t *testing.T) {
	if !(&Document{}).Empty() {
		t.Error("empty document should report Empty")
	}
	if (&Document{Text: &TextData{Content: "hi"}}).Empty() {
		t.Error("document with text should not report Empty")
	}
	if (&Document{Image: &ImageData{Raw: "aGk=", Filename: "hi.png"}}).Empty() {
		t.Error("document with inline image should not report Empty")
	}
}
