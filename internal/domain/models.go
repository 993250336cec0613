package domain

import "time"

// SessionStatus tracks the lifecycle of a play-through. Transitions out of
// finished/expired never happen.
type SessionStatus string

const (
	StatusActive   SessionStatus = "active"
	StatusFinished SessionStatus = "finished"
	StatusExpired  SessionStatus = "expired"
)

// Song is one entry of the quiz corpus. VideoID and StartSec locate the
// playable clip on the external media host.
type Song struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	VideoID  string `json:"videoId"`
	StartSec int    `json:"startSec"`
	Active   bool   `json:"active"`
}

// QuestionSpec fixes one question of a session: the answer song, the four
// option song ids in display order, and where the answer sits among them.
// Generated once at session start and immutable afterwards.
type QuestionSpec struct {
	Index        int       `json:"q"`
	SongID       string    `json:"songId"`
	Options      [4]string `json:"options"`
	CorrectIndex int       `json:"correctIndex"`
}

// GameSession is one 20-question play-through.
type GameSession struct {
	ID           string
	Nickname     string
	Status       SessionStatus
	Seed         string
	Questions    []QuestionSpec
	CurrentIndex int
	TotalScore   int
	CorrectCount int
	TotalTimeMs  int64
	SubmitToken  string
	ClientIP     string
	UserAgent    string
	StartedAt    time.Time
	ExpiresAt    time.Time
	FinishedAt   *time.Time
}

// TotalQuestions is the length of the generated question sequence.
func (s *GameSession) TotalQuestions() int {
	return len(s.Questions)
}

// AnswerRecord is the write-once outcome of one question. The pair
// (SessionID, QuestionIndex) is the idempotency key for answer submission.
type AnswerRecord struct {
	SessionID     string
	QuestionIndex int
	ChosenIndex   int // -1 means the player timed out without choosing
	Correct       bool
	AnswerTimeMs  int64
	Score         int
	CreatedAt     time.Time
}

// LeaderboardEntry is created at most once per session when the player
// submits their result.
type LeaderboardEntry struct {
	SessionID    string    `json:"-"`
	Nickname     string    `json:"nickname"`
	TotalScore   int       `json:"totalScore"`
	CorrectCount int       `json:"correctCount"`
	TotalTimeMs  int64     `json:"totalTimeMs"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Better reports whether e outranks other under the leaderboard ordering:
// higher score first, then lower total time, then later submission.
func (e LeaderboardEntry) Better(other LeaderboardEntry) bool {
	if e.TotalScore != other.TotalScore {
		return e.TotalScore > other.TotalScore
	}
	if e.TotalTimeMs != other.TotalTimeMs {
		return e.TotalTimeMs < other.TotalTimeMs
	}
	return e.CreatedAt.After(other.CreatedAt)
}

// VideoClip points a client at the playable snippet for a question.
type VideoClip struct {
	VideoID  string `json:"videoId"`
	StartSec int    `json:"startSec"`
}

// QuestionDisplay is the client-facing view of a question: the clip to play
// and the four option titles in their fixed shuffled order.
type QuestionDisplay struct {
	QuestionIndex int       `json:"questionIndex"`
	Video         VideoClip `json:"video"`
	Options       [4]string `json:"options"`
}

// StartResult is returned by Service.Start.
type StartResult struct {
	SessionID      string          `json:"sessionId"`
	SubmitToken    string          `json:"submitToken"`
	TimeLimitSec   int             `json:"timeLimitSec"`
	TotalQuestions int             `json:"totalQuestions"`
	Question       QuestionDisplay `json:"question"`
}

// Progress summarizes how far a session has advanced.
type Progress struct {
	Current      int `json:"current"`
	Total        int `json:"total"`
	CorrectCount int `json:"correctCount"`
}

// AnswerResult is returned by Service.SubmitAnswer. Next is nil once the
// final question has been answered.
type AnswerResult struct {
	IsCorrect    bool             `json:"isCorrect"`
	CorrectIndex int              `json:"correctIndex"`
	CorrectTitle string           `json:"correctTitle"`
	ScoreGained  int              `json:"scoreGained"`
	TotalScore   int              `json:"totalScore"`
	IsFinished   bool             `json:"isFinished"`
	Progress     Progress         `json:"progress"`
	Next         *QuestionDisplay `json:"next,omitempty"`
}

// FinishResult is returned by Service.Finish.
type FinishResult struct {
	TotalScore     int     `json:"totalScore"`
	CorrectCount   int     `json:"correctCount"`
	TotalQuestions int     `json:"totalQuestions"`
	Accuracy       float64 `json:"accuracy"`
	TotalTimeMs    int64   `json:"totalTimeMs"`
	AverageTimeMs  int64   `json:"averageTimeMs"`
	Rank           int     `json:"rank"`
	TotalPlayers   int     `json:"totalPlayers"`
	IsNewHighScore bool    `json:"isNewHighScore"`
}

// RankedEntry is a leaderboard entry with its absolute position.
type RankedEntry struct {
	Rank         int       `json:"rank"`
	Nickname     string    `json:"nickname"`
	TotalScore   int       `json:"totalScore"`
	CorrectCount int       `json:"correctCount"`
	TotalTimeMs  int64     `json:"totalTimeMs"`
	CreatedAt    time.Time `json:"createdAt"`
}

// LeaderboardPage is returned by Service.Leaderboard.
type LeaderboardPage struct {
	Entries []RankedEntry `json:"entries"`
	Total   int           `json:"total"`
	HasMore bool          `json:"hasMore"`
}
