package game

import (
	"sync"

	"music-quiz-service/internal/domain"
)

// Feed fans leaderboard snapshots out to live subscribers (the websocket
// transport). Slow consumers never block a publish.
type Feed struct {
	mu          sync.Mutex
	subscribers map[chan domain.LeaderboardPage]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[chan domain.LeaderboardPage]struct{})}
}

// Subscribe registers a consumer. The caller must invoke the returned cancel
// function to avoid leaks.
func (f *Feed) Subscribe() (<-chan domain.LeaderboardPage, func()) {
	ch := make(chan domain.LeaderboardPage, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a snapshot to every subscriber, dropping a stale queued
// update when a consumer's buffer is full.
func (f *Feed) Publish(page domain.LeaderboardPage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- page:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- page
		}
	}
}
