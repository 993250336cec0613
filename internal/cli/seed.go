package cli

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"gopkg.in/yaml.v3"

	"music-quiz-service/internal/config"
	"music-quiz-service/internal/domain"
	pgstore "music-quiz-service/internal/infra/postgres"
)

type seedFile struct {
	Songs []seedSong `yaml:"songs"`
}

type seedSong struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	VideoID  string `yaml:"videoId"`
	StartSec int    `yaml:"startSec"`
	Active   *bool  `yaml:"active"`
}

// NewSeedCmd loads a YAML song list into the songs table.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load songs from a YAML file into the corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			songs, err := loadSeedFile(file)
			if err != nil {
				return err
			}

			sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
			db := bun.NewDB(sqldb, pgdialect.New())
			defer db.Close()

			if err := pgstore.NewSongStore(db).Upsert(cmd.Context(), songs); err != nil {
				return err
			}
			log.Printf("seeded %d songs", len(songs))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/songs.yaml", "path to YAML song list")
	return cmd
}

func loadSeedFile(path string) ([]domain.Song, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed seedFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	songs := make([]domain.Song, 0, len(parsed.Songs))
	for i, entry := range parsed.Songs {
		if entry.Title == "" || entry.VideoID == "" {
			return nil, fmt.Errorf("song %d: title and videoId are required", i)
		}
		id := entry.ID
		if id == "" {
			id = uuid.NewString()
		}
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		songs = append(songs, domain.Song{
			ID:       id,
			Title:    entry.Title,
			VideoID:  entry.VideoID,
			StartSec: entry.StartSec,
			Active:   active,
		})
	}
	return songs, nil
}
