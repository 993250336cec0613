package memory

import (
	"context"
	"sort"
	"sync"

	"music-quiz-service/internal/domain"
	"music-quiz-service/internal/game"
)

// SessionStore is an in-memory implementation of game.SessionStore, used in
// tests and in demo mode without a database.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.GameSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*domain.GameSession)}
}

func (s *SessionStore) Create(_ context.Context, session *domain.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = copySession(session)
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return copySession(session), nil
}

func (s *SessionStore) Advance(_ context.Context, id string, update game.SessionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.CurrentIndex = update.CurrentIndex
	session.TotalScore = update.TotalScore
	session.CorrectCount = update.CorrectCount
	session.TotalTimeMs = update.TotalTimeMs
	if update.Finished {
		session.Status = domain.StatusFinished
		finishedAt := update.FinishedAt
		session.FinishedAt = &finishedAt
	}
	return nil
}

// copySession detaches the stored row from the caller, mirroring how a
// database round-trip behaves.
func copySession(session *domain.GameSession) *domain.GameSession {
	clone := *session
	clone.Questions = make([]domain.QuestionSpec, len(session.Questions))
	copy(clone.Questions, session.Questions)
	if session.FinishedAt != nil {
		finishedAt := *session.FinishedAt
		clone.FinishedAt = &finishedAt
	}
	return &clone
}

// AnswerStore is an in-memory implementation of game.AnswerStore enforcing
// the write-once (session, question) key.
type AnswerStore struct {
	mu      sync.RWMutex
	records map[string]map[int]domain.AnswerRecord
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{records: make(map[string]map[int]domain.AnswerRecord)}
}

func (s *AnswerStore) Insert(_ context.Context, record domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bySession, ok := s.records[record.SessionID]
	if !ok {
		bySession = make(map[int]domain.AnswerRecord)
		s.records[record.SessionID] = bySession
	}
	if _, exists := bySession[record.QuestionIndex]; exists {
		return domain.ErrAnswerExists
	}
	bySession[record.QuestionIndex] = record
	return nil
}

func (s *AnswerStore) Get(_ context.Context, sessionID string, questionIndex int) (*domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[sessionID][questionIndex]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// Count reports how many answers a session has recorded (test helper).
func (s *AnswerStore) Count(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[sessionID])
}

// LeaderboardStore is an in-memory implementation of game.LeaderboardStore
// mirroring the unique-session-id constraint of the relational schema.
type LeaderboardStore struct {
	mu        sync.RWMutex
	bySession map[string]struct{}
	entries   []domain.LeaderboardEntry
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{bySession: make(map[string]struct{})}
}

func (s *LeaderboardStore) Insert(_ context.Context, entry domain.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bySession[entry.SessionID]; exists {
		return domain.ErrAlreadySubmitted
	}
	s.bySession[entry.SessionID] = struct{}{}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *LeaderboardStore) Exists(_ context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.bySession[sessionID]
	return exists, nil
}

func (s *LeaderboardStore) CountBetter(_ context.Context, totalScore int, totalTimeMs int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, entry := range s.entries {
		if entry.TotalScore > totalScore ||
			(entry.TotalScore == totalScore && entry.TotalTimeMs < totalTimeMs) {
			count++
		}
	}
	return count, nil
}

func (s *LeaderboardStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *LeaderboardStore) List(_ context.Context, limit, offset int) ([]domain.LeaderboardEntry, int, error) {
	s.mu.RLock()
	sorted := make([]domain.LeaderboardEntry, len(s.entries))
	copy(sorted, s.entries)
	s.mu.RUnlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Better(sorted[j])
	})

	total := len(sorted)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return sorted[offset:end], total, nil
}
