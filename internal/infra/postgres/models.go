package postgres

import (
	"time"

	"github.com/uptrace/bun"
)

type songRow struct {
	bun.BaseModel `bun:"table:songs"`

	ID        string    `bun:"id,pk"`
	Title     string    `bun:"title,notnull"`
	VideoID   string    `bun:"video_id,notnull"`
	StartSec  int       `bun:"start_sec,notnull"`
	IsActive  bool      `bun:"is_active,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:now()"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:now()"`
}

type sessionRow struct {
	bun.BaseModel `bun:"table:game_sessions"`

	ID           string     `bun:"id,pk"`
	Nickname     string     `bun:"nickname,notnull"`
	Status       string     `bun:"status,notnull"`
	Seed         string     `bun:"seed,notnull"`
	Questions    []byte     `bun:"questions,type:jsonb,notnull"`
	CurrentIndex int        `bun:"current_index,notnull"`
	TotalScore   int        `bun:"total_score,notnull"`
	CorrectCount int        `bun:"correct_count,notnull"`
	TotalTimeMs  int64      `bun:"total_time_ms,notnull"`
	SubmitToken  string     `bun:"submit_token,notnull"`
	ClientIP     string     `bun:"client_ip"`
	UserAgent    string     `bun:"user_agent"`
	StartedAt    time.Time  `bun:"started_at,notnull"`
	ExpiresAt    time.Time  `bun:"expires_at,notnull"`
	FinishedAt   *time.Time `bun:"finished_at"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:game_answers"`

	SessionID     string    `bun:"session_id,pk"`
	QuestionIndex int       `bun:"question_index,pk"`
	ChosenIndex   int       `bun:"chosen_index,notnull"`
	IsCorrect     bool      `bun:"is_correct,notnull"`
	AnswerTimeMs  int64     `bun:"answer_time_ms,notnull"`
	Score         int       `bun:"score,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

type leaderboardRow struct {
	bun.BaseModel `bun:"table:leaderboard_entries"`

	SessionID    string    `bun:"session_id,pk"`
	Nickname     string    `bun:"nickname,notnull"`
	TotalScore   int       `bun:"total_score,notnull"`
	CorrectCount int       `bun:"correct_count,notnull"`
	TotalTimeMs  int64     `bun:"total_time_ms,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}
