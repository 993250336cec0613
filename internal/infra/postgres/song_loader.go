package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"music-quiz-service/internal/domain"
)

// SongLoader reads the active song corpus from Postgres.
type SongLoader struct {
	pool *pgxpool.Pool
}

func NewSongLoader(pool *pgxpool.Pool) *SongLoader {
	return &SongLoader{pool: pool}
}

func (l *SongLoader) LoadSongs(ctx context.Context) ([]domain.Song, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, title, video_id, start_sec FROM songs WHERE is_active = true`)
	if err != nil {
		return nil, fmt.Errorf("load songs: %w", err)
	}
	defer rows.Close()

	var songs []domain.Song
	for rows.Next() {
		song := domain.Song{Active: true}
		if err := rows.Scan(&song.ID, &song.Title, &song.VideoID, &song.StartSec); err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load songs: %w", err)
	}
	return songs, nil
}
