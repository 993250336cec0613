package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"music-quiz-service/internal/domain"
)

// SongLoader fetches the active song corpus from a backing store.
type SongLoader interface {
	LoadSongs(ctx context.Context) ([]domain.Song, error)
}

// Catalog caches the active song corpus in a Redis hash so multiple service
// instances share one cache. Layout: HSET songs:catalog {songID} {json}.
// Misses fall back to the loader; concurrent misses share one fill via
// singleflight. The hash is rebuilt wholesale on refresh, never patched.
type Catalog struct {
	client *redis.Client
	loader SongLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

const catalogKey = "songs:catalog"

func NewCatalog(client *redis.Client, loader SongLoader, ttl time.Duration) *Catalog {
	return &Catalog{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *Catalog) Songs(ctx context.Context) (map[string]domain.Song, error) {
	cached, err := c.client.HGetAll(ctx, catalogKey).Result()
	if err == nil && len(cached) > 0 {
		return decodeSongs(cached), nil
	}

	result, err, _ := c.sf.Do(catalogKey, func() (interface{}, error) {
		// Re-check in case another goroutine filled the hash.
		cached, err := c.client.HGetAll(ctx, catalogKey).Result()
		if err == nil && len(cached) > 0 {
			return decodeSongs(cached), nil
		}

		songs, err := c.loader.LoadSongs(ctx)
		if err != nil {
			return nil, domain.CatalogUnavailable(err)
		}

		snapshot := make(map[string]domain.Song, len(songs))
		pipe := c.client.TxPipeline()
		pipe.Del(ctx, catalogKey)
		for _, song := range songs {
			snapshot[song.ID] = song
			raw, err := json.Marshal(song)
			if err != nil {
				continue
			}
			pipe.HSet(ctx, catalogKey, song.ID, raw)
		}
		if c.ttl > 0 {
			pipe.Expire(ctx, catalogKey, c.ttlWithJitter())
		}
		// Cache writes are best effort; the loaded snapshot is returned
		// regardless.
		_, _ = pipe.Exec(ctx)

		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]domain.Song), nil
}

func decodeSongs(cached map[string]string) map[string]domain.Song {
	songs := make(map[string]domain.Song, len(cached))
	for id, raw := range cached {
		var song domain.Song
		if err := json.Unmarshal([]byte(raw), &song); err != nil {
			continue
		}
		songs[id] = song
	}
	return songs
}

func (c *Catalog) ttlWithJitter() time.Duration {
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
