package game

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"music-quiz-service/internal/domain"
)

// ExpiryBuffer is added on top of the total nominal question time so slow
// networks and page reloads don't kill an honest play-through.
const ExpiryBuffer = 5 * time.Minute

// unknownTitle stands in for option songs that vanished from the catalog
// between generation and display.
const unknownTitle = "Unknown song"

// SessionStore persists game sessions. Implementations must treat each row
// update as atomic; the service relies on answer-record uniqueness rather
// than locks for cross-request correctness.
type SessionStore interface {
	Create(ctx context.Context, session *domain.GameSession) error
	// Get returns domain.ErrSessionNotFound when the id has no row.
	Get(ctx context.Context, id string) (*domain.GameSession, error)
	Advance(ctx context.Context, id string, update SessionUpdate) error
}

// SessionUpdate carries the aggregate changes applied after an accepted
// answer. The values are absolute, not deltas.
type SessionUpdate struct {
	CurrentIndex int
	TotalScore   int
	CorrectCount int
	TotalTimeMs  int64
	Finished     bool
	FinishedAt   time.Time
}

// AnswerStore persists write-once answer records keyed by
// (session id, question index).
type AnswerStore interface {
	// Insert fails with domain.ErrAnswerExists when the key is taken.
	Insert(ctx context.Context, record domain.AnswerRecord) error
	// Get returns (nil, nil) when no record exists for the key.
	Get(ctx context.Context, sessionID string, questionIndex int) (*domain.AnswerRecord, error)
}

// LeaderboardStore persists at-most-one entry per session. Insert must be
// guarded by a storage-level uniqueness constraint on the session id: two
// concurrent finish calls can both pass the Exists pre-check.
type LeaderboardStore interface {
	// Insert fails with domain.ErrAlreadySubmitted on a duplicate session id.
	Insert(ctx context.Context, entry domain.LeaderboardEntry) error
	Exists(ctx context.Context, sessionID string) (bool, error)
	// CountBetter counts entries with a strictly higher score, or an equal
	// score and strictly lower total time.
	CountBetter(ctx context.Context, totalScore int, totalTimeMs int64) (int, error)
	Count(ctx context.Context) (int, error)
	// List returns a page ordered by score desc, total time asc, created
	// desc, plus the total entry count.
	List(ctx context.Context, limit, offset int) ([]domain.LeaderboardEntry, int, error)
}

// Catalog resolves the active song corpus, typically through a TTL cache.
type Catalog interface {
	Songs(ctx context.Context) (map[string]domain.Song, error)
}

// Service owns the session lifecycle: start, answer, finish, and the
// leaderboard queries derived from finished sessions.
type Service struct {
	sessions    SessionStore
	answers     AnswerStore
	leaderboard LeaderboardStore
	catalog     Catalog
	feed        *Feed
	now         func() time.Time
}

func NewService(sessions SessionStore, answers AnswerStore, leaderboard LeaderboardStore, catalog Catalog) *Service {
	return &Service{
		sessions:    sessions,
		answers:     answers,
		leaderboard: leaderboard,
		catalog:     catalog,
		now:         time.Now,
	}
}

// NewServiceWithClock is test-only for deterministic timestamps.
func NewServiceWithClock(sessions SessionStore, answers AnswerStore, leaderboard LeaderboardStore, catalog Catalog, now func() time.Time) *Service {
	s := NewService(sessions, answers, leaderboard, catalog)
	s.now = now
	return s
}

// AttachFeed wires a live leaderboard feed; Finish publishes a fresh top
// page to it after every new entry.
func (s *Service) AttachFeed(feed *Feed) {
	s.feed = feed
}

// Start creates a new session: generate a question sequence, mint the
// one-time submit token, persist, and resolve the first question's display
// payload.
func (s *Service) Start(ctx context.Context, nickname, clientIP, userAgent string) (*domain.StartResult, error) {
	if err := ValidateNickname(nickname); err != nil {
		return nil, err
	}

	songs, err := s.catalog.Songs(ctx)
	if err != nil {
		return nil, err
	}

	questions, seed, err := Generate(songs)
	if err != nil {
		return nil, err
	}

	token, err := newSubmitToken()
	if err != nil {
		return nil, domain.Internal("could not mint submit token", err)
	}

	now := s.now()
	session := &domain.GameSession{
		ID:          uuid.NewString(),
		Nickname:    SanitizeNickname(nickname),
		Status:      domain.StatusActive,
		Seed:        seed,
		Questions:   questions,
		SubmitToken: token,
		ClientIP:    clientIP,
		UserAgent:   userAgent,
		StartedAt:   now,
		ExpiresAt:   now.Add(QuestionCount*TimeLimitSec*time.Second + ExpiryBuffer),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, domain.Internal("could not create game", err)
	}

	display, err := questionDisplay(questions[0], songs)
	if err != nil {
		return nil, err
	}
	return &domain.StartResult{
		SessionID:      session.ID,
		SubmitToken:    token,
		TimeLimitSec:   TimeLimitSec,
		TotalQuestions: QuestionCount,
		Question:       display,
	}, nil
}

// SubmitAnswer scores one answer and advances the session. The operation is
// idempotent under at-least-once delivery: a repeated (session, index)
// submission replays the stored outcome instead of rescoring.
func (s *Service) SubmitAnswer(ctx context.Context, sessionID string, questionIndex, chosenIndex int, answerTimeMs int64) (*domain.AnswerResult, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := ValidateSession(session, s.now()); err != nil {
		return nil, err
	}
	if chosenIndex < -1 || chosenIndex >= OptionsPerQuestion {
		return nil, domain.NewError(domain.CodeInvalidChoice, "invalid option")
	}
	if answerTimeMs < 0 || answerTimeMs > TimeLimitMs+GraceMs {
		return nil, domain.NewError(domain.CodeInvalidChoice, "invalid answer time")
	}

	// Idempotency check comes before the ordering check: a resubmission of
	// an already-answered index must replay its result even though the
	// session has moved past it.
	existing, err := s.answers.Get(ctx, sessionID, questionIndex)
	if err != nil {
		return nil, domain.Internal("could not look up answer", err)
	}
	if existing != nil {
		return s.replayAnswer(ctx, session, existing)
	}

	if err := ValidateAnswer(session, questionIndex, chosenIndex, answerTimeMs); err != nil {
		return nil, err
	}

	question := session.Questions[questionIndex]
	isCorrect := chosenIndex == question.CorrectIndex
	score := Score(answerTimeMs, isCorrect)
	newIndex := questionIndex + 1
	isFinished := newIndex >= session.TotalQuestions()
	now := s.now()

	record := domain.AnswerRecord{
		SessionID:     sessionID,
		QuestionIndex: questionIndex,
		ChosenIndex:   chosenIndex,
		Correct:       isCorrect,
		AnswerTimeMs:  answerTimeMs,
		Score:         score,
		CreatedAt:     now,
	}
	// The record insert is the authoritative gate. A duplicate here means a
	// concurrent submission won the race; replay its result.
	if err := s.answers.Insert(ctx, record); err != nil {
		if errors.Is(err, domain.ErrAnswerExists) {
			winner, getErr := s.answers.Get(ctx, sessionID, questionIndex)
			if getErr != nil || winner == nil {
				return nil, domain.Internal("could not load concurrent answer", getErr)
			}
			fresh, getErr := s.sessions.Get(ctx, sessionID)
			if getErr != nil {
				return nil, getErr
			}
			return s.replayAnswer(ctx, fresh, winner)
		}
		return nil, domain.Internal("could not save answer", err)
	}

	correctCount := session.CorrectCount
	if isCorrect {
		correctCount++
	}
	update := SessionUpdate{
		CurrentIndex: newIndex,
		TotalScore:   session.TotalScore + score,
		CorrectCount: correctCount,
		TotalTimeMs:  session.TotalTimeMs + answerTimeMs,
		Finished:     isFinished,
		FinishedAt:   now,
	}
	if err := s.sessions.Advance(ctx, sessionID, update); err != nil {
		// The answer record is already the source of truth; a stale session
		// aggregate is logged for reconciliation, not surfaced.
		log.Printf("session %s: aggregate update failed after answer %d: %v", sessionID, questionIndex, err)
	}

	songs, err := s.catalog.Songs(ctx)
	if err != nil {
		return nil, err
	}

	result := &domain.AnswerResult{
		IsCorrect:    isCorrect,
		CorrectIndex: question.CorrectIndex,
		CorrectTitle: titleOf(question.SongID, songs),
		ScoreGained:  score,
		TotalScore:   update.TotalScore,
		IsFinished:   isFinished,
		Progress: domain.Progress{
			Current:      newIndex,
			Total:        session.TotalQuestions(),
			CorrectCount: update.CorrectCount,
		},
	}
	if !isFinished {
		next, err := questionDisplay(session.Questions[newIndex], songs)
		if err != nil {
			return nil, err
		}
		result.Next = &next
	}
	return result, nil
}

// replayAnswer rebuilds the response for an already-recorded answer from the
// stored record and the session's current aggregates, without mutating
// anything.
func (s *Service) replayAnswer(ctx context.Context, session *domain.GameSession, record *domain.AnswerRecord) (*domain.AnswerResult, error) {
	if record.QuestionIndex >= session.TotalQuestions() {
		return nil, domain.NewError(domain.CodeInvalidQuestionIndex, "question out of order, please reload")
	}
	songs, err := s.catalog.Songs(ctx)
	if err != nil {
		return nil, err
	}

	question := session.Questions[record.QuestionIndex]
	newIndex := record.QuestionIndex + 1
	isFinished := newIndex >= session.TotalQuestions()

	result := &domain.AnswerResult{
		IsCorrect:    record.Correct,
		CorrectIndex: question.CorrectIndex,
		CorrectTitle: titleOf(question.SongID, songs),
		ScoreGained:  record.Score,
		TotalScore:   session.TotalScore,
		IsFinished:   isFinished,
		Progress: domain.Progress{
			Current:      newIndex,
			Total:        session.TotalQuestions(),
			CorrectCount: session.CorrectCount,
		},
	}
	if !isFinished {
		next, err := questionDisplay(session.Questions[newIndex], songs)
		if err != nil {
			return nil, err
		}
		result.Next = &next
	}
	return result, nil
}

// Finish seals a completed session into the leaderboard exactly once and
// computes the player's rank.
func (s *Service) Finish(ctx context.Context, sessionID, submitToken string) (*domain.FinishResult, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := ValidateFinish(session, submitToken); err != nil {
		return nil, err
	}

	exists, err := s.leaderboard.Exists(ctx, sessionID)
	if err != nil {
		return nil, domain.Internal("could not check leaderboard", err)
	}
	if exists {
		return nil, domain.ErrAlreadySubmitted
	}

	entry := domain.LeaderboardEntry{
		SessionID:    sessionID,
		Nickname:     session.Nickname,
		TotalScore:   session.TotalScore,
		CorrectCount: session.CorrectCount,
		TotalTimeMs:  session.TotalTimeMs,
		CreatedAt:    s.now(),
	}
	if entry.Nickname == "" {
		entry.Nickname = DefaultNickname
	}
	// The unique constraint on session id closes the race two concurrent
	// finish calls open between the Exists check and this insert.
	if err := s.leaderboard.Insert(ctx, entry); err != nil {
		if errors.Is(err, domain.ErrAlreadySubmitted) {
			return nil, domain.ErrAlreadySubmitted
		}
		return nil, domain.Internal("could not submit to leaderboard", err)
	}

	better, err := s.leaderboard.CountBetter(ctx, entry.TotalScore, entry.TotalTimeMs)
	if err != nil {
		return nil, domain.Internal("could not compute rank", err)
	}
	totalPlayers, err := s.leaderboard.Count(ctx)
	if err != nil {
		return nil, domain.Internal("could not count players", err)
	}

	total := session.TotalQuestions()
	rank := better + 1
	result := &domain.FinishResult{
		TotalScore:     session.TotalScore,
		CorrectCount:   session.CorrectCount,
		TotalQuestions: total,
		Accuracy:       float64(session.CorrectCount) / float64(total),
		TotalTimeMs:    session.TotalTimeMs,
		AverageTimeMs:  session.TotalTimeMs / int64(total),
		Rank:           rank,
		TotalPlayers:   totalPlayers,
		IsNewHighScore: rank <= 10,
	}
	s.publishLeaderboard(ctx)
	return result, nil
}

// Leaderboard returns one page of the global ranking.
func (s *Service) Leaderboard(ctx context.Context, limit, offset int) (*domain.LeaderboardPage, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	entries, total, err := s.leaderboard.List(ctx, limit, offset)
	if err != nil {
		return nil, domain.Internal("could not load leaderboard", err)
	}

	ranked := make([]domain.RankedEntry, 0, len(entries))
	for i, entry := range entries {
		ranked = append(ranked, domain.RankedEntry{
			Rank:         offset + i + 1,
			Nickname:     entry.Nickname,
			TotalScore:   entry.TotalScore,
			CorrectCount: entry.CorrectCount,
			TotalTimeMs:  entry.TotalTimeMs,
			CreatedAt:    entry.CreatedAt,
		})
	}
	return &domain.LeaderboardPage{
		Entries: ranked,
		Total:   total,
		HasMore: total > offset+limit,
	}, nil
}

func (s *Service) publishLeaderboard(ctx context.Context) {
	if s.feed == nil {
		return
	}
	page, err := s.Leaderboard(ctx, 10, 0)
	if err != nil {
		log.Printf("leaderboard feed refresh failed: %v", err)
		return
	}
	s.feed.Publish(*page)
}

func questionDisplay(question domain.QuestionSpec, songs map[string]domain.Song) (domain.QuestionDisplay, error) {
	answer, ok := songs[question.SongID]
	if !ok {
		return domain.QuestionDisplay{}, domain.Internal("answer song missing from catalog", nil)
	}
	display := domain.QuestionDisplay{
		QuestionIndex: question.Index,
		Video: domain.VideoClip{
			VideoID:  answer.VideoID,
			StartSec: answer.StartSec,
		},
	}
	for i, id := range question.Options {
		display.Options[i] = titleOf(id, songs)
	}
	return display, nil
}

func titleOf(songID string, songs map[string]domain.Song) string {
	if song, ok := songs[songID]; ok {
		return song.Title
	}
	return unknownTitle
}

func newSubmitToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
