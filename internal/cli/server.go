package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"music-quiz-service/internal/config"
	"music-quiz-service/internal/domain"
	"music-quiz-service/internal/game"
	"music-quiz-service/internal/infra/memory"
	pgstore "music-quiz-service/internal/infra/postgres"
	rediscatalog "music-quiz-service/internal/infra/redis"
	transport "music-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	var db *bun.DB
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db = bun.NewDB(sqldb, pgdialect.New())
	}

	var loader memory.SongLoader = memory.NewStaticSongLoader(demoSongs())
	if pool != nil {
		loader = pgstore.NewSongLoader(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 5*time.Minute)
	var catalog game.Catalog
	if redisClient != nil {
		catalog = rediscatalog.NewCatalog(redisClient, loader, catalogTTL)
	} else {
		catalog = memory.NewCatalog(loader, catalogTTL)
	}

	var sessions game.SessionStore
	var answers game.AnswerStore
	var leaderboard game.LeaderboardStore
	if db != nil {
		sessions = pgstore.NewSessionStore(db)
		answers = pgstore.NewAnswerStore(db)
		leaderboard = pgstore.NewLeaderboardStore(db)
	} else {
		sessions = memory.NewSessionStore()
		answers = memory.NewAnswerStore()
		leaderboard = memory.NewLeaderboardStore()
	}

	service := game.NewService(sessions, answers, leaderboard, catalog)
	feed := game.NewFeed()
	service.AttachFeed(feed)

	apiHandler := transport.NewHandler(service)
	feedHandler := transport.NewFeedHandler(service, feed)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	apiHandler.Register(mux)
	mux.HandleFunc("/ws/leaderboard", feedHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting music quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// demoSongs provides a built-in corpus so the service runs without a
// database; swap in the Postgres loader for production.
func demoSongs() []domain.Song {
	titles := []string{
		"Midnight Train", "Paper Lanterns", "Harbor Lights", "Silver Lining",
		"Echoes of June", "Falling Slowly", "Neon River", "Golden Hour",
		"Winter Bloom", "Starlit Avenue", "Driftwood", "Amber Skies",
		"Quiet Storm", "Lighthouse", "Morning Glass", "Velvet Moon",
		"Northbound", "Firefly Season", "Blue Umbrella", "Last Ferry",
		"Cherry Rain", "Stone Garden", "Signal Fire", "Empty Stations",
	}
	songs := make([]domain.Song, 0, len(titles))
	for i, title := range titles {
		songs = append(songs, domain.Song{
			ID:       fmt.Sprintf("demo-%02d", i+1),
			Title:    title,
			VideoID:  fmt.Sprintf("demo-video-%02d", i+1),
			StartSec: 30,
			Active:   true,
		})
	}
	return songs
}
