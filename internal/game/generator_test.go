package game

import (
	"fmt"
	"reflect"
	"testing"

	"music-quiz-service/internal/domain"
)

func TestGenerateShape(t *testing.T) {
	catalog := testCatalog(40)
	questions, seed, err := Generate(catalog)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if seed == "" {
		t.Fatalf("expected a seed")
	}
	if len(questions) != QuestionCount {
		t.Fatalf("expected %d questions, got %d", QuestionCount, len(questions))
	}

	seenAnswers := make(map[string]bool)
	for i, q := range questions {
		if q.Index != i {
			t.Fatalf("question %d has index %d", i, q.Index)
		}
		if seenAnswers[q.SongID] {
			t.Fatalf("answer song %s repeated", q.SongID)
		}
		seenAnswers[q.SongID] = true

		if q.Options[q.CorrectIndex] != q.SongID {
			t.Fatalf("question %d: options[%d]=%s, want answer %s", i, q.CorrectIndex, q.Options[q.CorrectIndex], q.SongID)
		}
		distinct := make(map[string]bool)
		for _, opt := range q.Options {
			if opt == "" {
				t.Fatalf("question %d has an empty option", i)
			}
			distinct[opt] = true
		}
		if len(distinct) != OptionsPerQuestion {
			t.Fatalf("question %d: expected %d distinct options, got %d", i, OptionsPerQuestion, len(distinct))
		}
	}
}

func TestGenerateInsufficientCorpus(t *testing.T) {
	_, _, err := Generate(testCatalog(QuestionCount - 1))
	if err != domain.ErrInsufficientSongs {
		t.Fatalf("expected ErrInsufficientSongs, got %v", err)
	}
}

func TestGenerateIgnoresInactiveSongs(t *testing.T) {
	catalog := testCatalog(QuestionCount)
	inactive := domain.Song{ID: "inactive", Title: "Hidden", VideoID: "v", Active: false}
	catalog[inactive.ID] = inactive

	questions, err := GenerateWithSeed(catalog, "abcd1234")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, q := range questions {
		for _, opt := range q.Options {
			if opt == inactive.ID {
				t.Fatalf("inactive song appeared as an option")
			}
		}
	}
}

func TestGenerateDeterministicPerSeed(t *testing.T) {
	catalog := testCatalog(35)
	first, err := GenerateWithSeed(catalog, "deadbeefcafe")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := GenerateWithSeed(catalog, "deadbeefcafe")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same seed produced different sequences")
	}

	other, err := GenerateWithSeed(catalog, "0123456789ab")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reflect.DeepEqual(first, other) {
		t.Fatalf("different seeds produced identical sequences")
	}
}

func TestGenerateExactMinimumCorpus(t *testing.T) {
	// With exactly 20 songs the distractor pool is empty; other answer
	// songs must fill in so every question still has 4 distinct options.
	questions, err := GenerateWithSeed(testCatalog(QuestionCount), "feedface")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for i, q := range questions {
		distinct := make(map[string]bool)
		for _, opt := range q.Options {
			distinct[opt] = true
		}
		if len(distinct) != OptionsPerQuestion {
			t.Fatalf("question %d: got %d distinct options", i, len(distinct))
		}
	}
}

func testCatalog(n int) map[string]domain.Song {
	catalog := make(map[string]domain.Song, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("song-%03d", i)
		catalog[id] = domain.Song{
			ID:       id,
			Title:    fmt.Sprintf("Track %03d", i),
			VideoID:  fmt.Sprintf("video-%03d", i),
			StartSec: 30,
			Active:   true,
		}
	}
	return catalog
}
