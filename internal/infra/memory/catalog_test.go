package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"music-quiz-service/internal/domain"
)

func TestCatalogCachesSnapshot(t *testing.T) {
	loader := &countingLoader{SongLoader: NewStaticSongLoader(sampleSongs(25))}
	catalog := NewCatalog(loader, time.Minute)

	songs, err := catalog.Songs(context.Background())
	if err != nil {
		t.Fatalf("songs: %v", err)
	}
	if len(songs) != 25 {
		t.Fatalf("expected 25 songs, got %d", len(songs))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := catalog.Songs(context.Background()); err != nil {
		t.Fatalf("songs 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestCatalogKeyedBySongID(t *testing.T) {
	catalog := NewCatalog(NewStaticSongLoader(sampleSongs(3)), time.Minute)
	songs, err := catalog.Songs(context.Background())
	if err != nil {
		t.Fatalf("songs: %v", err)
	}
	for id, song := range songs {
		if song.ID != id {
			t.Fatalf("song %s keyed under %s", song.ID, id)
		}
	}
}

func TestCatalogLoaderFailure(t *testing.T) {
	catalog := NewCatalog(&failingLoader{}, time.Minute)
	_, err := catalog.Songs(context.Background())
	if !errors.Is(err, domain.ErrCatalogUnavailable) {
		t.Fatalf("expected catalog unavailable, got %v", err)
	}
}

type countingLoader struct {
	SongLoader
	calls int
}

func (l *countingLoader) LoadSongs(ctx context.Context) ([]domain.Song, error) {
	l.calls++
	return l.SongLoader.LoadSongs(ctx)
}

type failingLoader struct{}

func (l *failingLoader) LoadSongs(context.Context) ([]domain.Song, error) {
	return nil, errors.New("connection refused")
}

func sampleSongs(n int) []domain.Song {
	songs := make([]domain.Song, 0, n)
	for i := 0; i < n; i++ {
		songs = append(songs, domain.Song{
			ID:       fmt.Sprintf("song-%02d", i),
			Title:    fmt.Sprintf("Track %02d", i),
			VideoID:  fmt.Sprintf("video-%02d", i),
			StartSec: 10,
			Active:   true,
		})
	}
	return songs
}
