package storage

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"kilroy-face-discord/pkg/face"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLocalSaveLoadRoundTrip(t *testing.T) {
	store := New(nil, "", t.TempDir(), testLogger())
	ctx := context.Background()

	st := &face.State{
		ScrapingType:      "basic",
		ScoringType:       "relative-reactions",
		ScrapingChannelID: "111",
		PostingChannelID:  "222",
		MemberCount:       42,
		LastScrapedID:     "1092201234567890123",
	}

	if err := store.SaveState(ctx, st); err != nil {
		t.Fatalf("SaveState() failed: %v", err)
	}
	if st.UpdatedAt.IsZero() {
		t.Error("SaveState() should stamp UpdatedAt")
	}

	loaded, err := store.LoadState(ctx)
	if err != nil {
		t.Fatalf("LoadState() failed: %v", err)
	}

	if loaded.ScrapingType != st.ScrapingType ||
		loaded.ScoringType != st.ScoringType ||
		loaded.ScrapingChannelID != st.ScrapingChannelID ||
		loaded.PostingChannelID != st.PostingChannelID ||
		loaded.MemberCount != st.MemberCount ||
		loaded.LastScrapedID != st.LastScrapedID {
		t.Errorf("LoadState() = %+v, want %+v", loaded, st)
	}
}

func TestLoadStateNotFound(t *testing.T) {
	store := New(nil, "", t.TempDir(), testLogger())

	_, err := store.LoadState(context.Background())
	if err == nil {
		t.Fatal("LoadState() should fail when no state exists")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false, want true", err)
	}
}

func TestSaveStateOverwrites(t *testing.T) {
	store := New(nil, "", t.TempDir(), testLogger())
	ctx := context.Background()

	if err := store.SaveState(ctx, &face.State{LastScrapedID: "1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveState(ctx, &face.State{LastScrapedID: "2"}); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.LoadState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.LastScrapedID != "2" {
		t.Errorf("LastScrapedID = %q, want 2", loaded.LastScrapedID)
	}
}

func TestIsNotFoundRejectsOtherErrors(t *testing.T) {
	if IsNotFound(os.ErrPermission) {
		t.Error("IsNotFound should not match unrelated errors")
	}
	if IsNotFound(nil) {
		t.Error("IsNotFound(nil) should be false")
	}
}
