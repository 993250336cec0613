package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"music-quiz-service/internal/domain"
	"music-quiz-service/internal/game"
)

// SessionStore persists game sessions in Postgres via bun. The question
// sequence is stored as one JSONB column; it is written once at creation and
// only the aggregate columns change afterwards.
type SessionStore struct {
	db *bun.DB
}

func NewSessionStore(db *bun.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.GameSession) error {
	questions, err := json.Marshal(session.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	row := &sessionRow{
		ID:           session.ID,
		Nickname:     session.Nickname,
		Status:       string(session.Status),
		Seed:         session.Seed,
		Questions:    questions,
		CurrentIndex: session.CurrentIndex,
		TotalScore:   session.TotalScore,
		CorrectCount: session.CorrectCount,
		TotalTimeMs:  session.TotalTimeMs,
		SubmitToken:  session.SubmitToken,
		ClientIP:     session.ClientIP,
		UserAgent:    session.UserAgent,
		StartedAt:    session.StartedAt,
		ExpiresAt:    session.ExpiresAt,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.GameSession, error) {
	row := new(sessionRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	var questions []domain.QuestionSpec
	if err := json.Unmarshal(row.Questions, &questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	return &domain.GameSession{
		ID:           row.ID,
		Nickname:     row.Nickname,
		Status:       domain.SessionStatus(row.Status),
		Seed:         row.Seed,
		Questions:    questions,
		CurrentIndex: row.CurrentIndex,
		TotalScore:   row.TotalScore,
		CorrectCount: row.CorrectCount,
		TotalTimeMs:  row.TotalTimeMs,
		SubmitToken:  row.SubmitToken,
		ClientIP:     row.ClientIP,
		UserAgent:    row.UserAgent,
		StartedAt:    row.StartedAt,
		ExpiresAt:    row.ExpiresAt,
		FinishedAt:   row.FinishedAt,
	}, nil
}

func (s *SessionStore) Advance(ctx context.Context, id string, update game.SessionUpdate) error {
	q := s.db.NewUpdate().Model((*sessionRow)(nil)).
		Set("current_index = ?", update.CurrentIndex).
		Set("total_score = ?", update.TotalScore).
		Set("correct_count = ?", update.CorrectCount).
		Set("total_time_ms = ?", update.TotalTimeMs).
		Where("id = ?", id)
	if update.Finished {
		q = q.Set("status = ?", string(domain.StatusFinished)).
			Set("finished_at = ?", update.FinishedAt)
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// AnswerStore persists answer records. The composite primary key
// (session_id, question_index) makes every insert write-once.
type AnswerStore struct {
	db *bun.DB
}

func NewAnswerStore(db *bun.DB) *AnswerStore {
	return &AnswerStore{db: db}
}

func (s *AnswerStore) Insert(ctx context.Context, record domain.AnswerRecord) error {
	row := &answerRow{
		SessionID:     record.SessionID,
		QuestionIndex: record.QuestionIndex,
		ChosenIndex:   record.ChosenIndex,
		IsCorrect:     record.Correct,
		AnswerTimeMs:  record.AnswerTimeMs,
		Score:         record.Score,
		CreatedAt:     record.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAnswerExists
		}
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

func (s *AnswerStore) Get(ctx context.Context, sessionID string, questionIndex int) (*domain.AnswerRecord, error) {
	row := new(answerRow)
	err := s.db.NewSelect().Model(row).
		Where("session_id = ?", sessionID).
		Where("question_index = ?", questionIndex).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select answer: %w", err)
	}
	return &domain.AnswerRecord{
		SessionID:     row.SessionID,
		QuestionIndex: row.QuestionIndex,
		ChosenIndex:   row.ChosenIndex,
		Correct:       row.IsCorrect,
		AnswerTimeMs:  row.AnswerTimeMs,
		Score:         row.Score,
		CreatedAt:     row.CreatedAt,
	}, nil
}

// LeaderboardStore persists leaderboard entries; the primary key on
// session_id closes the concurrent double-finish race at the storage layer.
type LeaderboardStore struct {
	db *bun.DB
}

func NewLeaderboardStore(db *bun.DB) *LeaderboardStore {
	return &LeaderboardStore{db: db}
}

func (s *LeaderboardStore) Insert(ctx context.Context, entry domain.LeaderboardEntry) error {
	row := &leaderboardRow{
		SessionID:    entry.SessionID,
		Nickname:     entry.Nickname,
		TotalScore:   entry.TotalScore,
		CorrectCount: entry.CorrectCount,
		TotalTimeMs:  entry.TotalTimeMs,
		CreatedAt:    entry.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadySubmitted
		}
		return fmt.Errorf("insert leaderboard entry: %w", err)
	}
	return nil
}

func (s *LeaderboardStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	return s.db.NewSelect().Model((*leaderboardRow)(nil)).
		Where("session_id = ?", sessionID).
		Exists(ctx)
}

func (s *LeaderboardStore) CountBetter(ctx context.Context, totalScore int, totalTimeMs int64) (int, error) {
	return s.db.NewSelect().Model((*leaderboardRow)(nil)).
		Where("total_score > ? OR (total_score = ? AND total_time_ms < ?)", totalScore, totalScore, totalTimeMs).
		Count(ctx)
}

func (s *LeaderboardStore) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*leaderboardRow)(nil)).Count(ctx)
}

func (s *LeaderboardStore) List(ctx context.Context, limit, offset int) ([]domain.LeaderboardEntry, int, error) {
	var rows []leaderboardRow
	total, err := s.db.NewSelect().Model(&rows).
		OrderExpr("total_score DESC, total_time_ms ASC, created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("select leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.LeaderboardEntry{
			SessionID:    row.SessionID,
			Nickname:     row.Nickname,
			TotalScore:   row.TotalScore,
			CorrectCount: row.CorrectCount,
			TotalTimeMs:  row.TotalTimeMs,
			CreatedAt:    row.CreatedAt,
		})
	}
	return entries, total, nil
}

// SongStore writes corpus entries; used by the seed command.
type SongStore struct {
	db *bun.DB
}

func NewSongStore(db *bun.DB) *SongStore {
	return &SongStore{db: db}
}

// Upsert inserts or refreshes songs by id.
func (s *SongStore) Upsert(ctx context.Context, songs []domain.Song) error {
	if len(songs) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]songRow, 0, len(songs))
	for _, song := range songs {
		rows = append(rows, songRow{
			ID:        song.ID,
			Title:     song.Title,
			VideoID:   song.VideoID,
			StartSec:  song.StartSec,
			IsActive:  song.Active,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	_, err := s.db.NewInsert().Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("video_id = EXCLUDED.video_id").
		Set("start_sec = EXCLUDED.start_sec").
		Set("is_active = EXCLUDED.is_active").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert songs: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is Postgres error 23505.
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return false
}
