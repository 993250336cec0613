package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"music-quiz-service/internal/domain"
)

// SongLoader fetches the active song corpus from a backing store.
type SongLoader interface {
	LoadSongs(ctx context.Context) ([]domain.Song, error)
}

// Catalog is an in-process TTL cache of the active song corpus. Refreshes
// replace the whole map atomically, so concurrent readers see either the old
// snapshot or the new one, never a mix. Concurrent cache misses share one
// loader call via singleflight.
type Catalog struct {
	loader SongLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu        sync.RWMutex
	snapshot  map[string]domain.Song
	expiresAt time.Time
}

func NewCatalog(loader SongLoader, ttl time.Duration) *Catalog {
	return &Catalog{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Songs returns the cached corpus keyed by song id, refreshing it from the
// loader when the snapshot has expired.
func (c *Catalog) Songs(ctx context.Context) (map[string]domain.Song, error) {
	now := c.clock()

	c.mu.RLock()
	if c.snapshot != nil && c.expiresAt.After(now) {
		snapshot := c.snapshot
		c.mu.RUnlock()
		return snapshot, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("songs", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.snapshot != nil && c.expiresAt.After(now) {
			snapshot := c.snapshot
			c.mu.RUnlock()
			return snapshot, nil
		}
		c.mu.RUnlock()

		songs, err := c.loader.LoadSongs(ctx)
		if err != nil {
			return nil, domain.CatalogUnavailable(err)
		}

		snapshot := make(map[string]domain.Song, len(songs))
		for _, song := range songs {
			snapshot[song.ID] = song
		}

		c.mu.Lock()
		c.snapshot = snapshot
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]domain.Song), nil
}

func (c *Catalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticSongLoader serves a fixed song list (tests and no-database demo mode).
type StaticSongLoader struct {
	songs []domain.Song
}

func NewStaticSongLoader(songs []domain.Song) *StaticSongLoader {
	return &StaticSongLoader{songs: songs}
}

func (l *StaticSongLoader) LoadSongs(_ context.Context) ([]domain.Song, error) {
	out := make([]domain.Song, 0, len(l.songs))
	for _, song := range l.songs {
		if song.Active {
			out = append(out, song)
		}
	}
	return out, nil
}
