package game

import (
	"crypto/subtle"
	"strings"
	"time"

	"music-quiz-service/internal/domain"
)

const (
	// MaxNicknameLen bounds nicknames in runes.
	MaxNicknameLen = 12
	// DefaultNickname replaces empty or fully-stripped nicknames at session
	// creation.
	DefaultNickname = "Anonymous"

	strippedChars = "<>'\"&"
)

// ValidateNickname checks a client-supplied nickname. Nicknames are
// optional; a present one must be at most MaxNicknameLen runes after
// trimming and must not contain markup-sensitive characters. Unlike
// SanitizeNickname this rejects instead of silently rewriting, so clients
// learn about bad input up front.
func ValidateNickname(nickname string) error {
	trimmed := strings.TrimSpace(nickname)
	if trimmed == "" {
		return nil
	}
	if len([]rune(trimmed)) > MaxNicknameLen {
		return domain.NewError(domain.CodeInvalidNickname, "nickname must be at most 12 characters")
	}
	if stripUnsafe(trimmed) != trimmed {
		return domain.NewError(domain.CodeInvalidNickname, "nickname contains disallowed characters")
	}
	return nil
}

// SanitizeNickname normalizes a nickname for storage: trim, strip unsafe
// characters, truncate, and fall back to DefaultNickname when nothing
// usable remains.
func SanitizeNickname(nickname string) string {
	cleaned := stripUnsafe(strings.TrimSpace(nickname))
	runes := []rune(cleaned)
	if len(runes) > MaxNicknameLen {
		cleaned = string(runes[:MaxNicknameLen])
	}
	if cleaned == "" {
		return DefaultNickname
	}
	return cleaned
}

func stripUnsafe(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(strippedChars, r) {
			return -1
		}
		return r
	}, s)
}

// ValidateSession guards operations on a loaded session. Expiry is lazy:
// a session past its deadline is rejected as expired even while the stored
// status still says active.
func ValidateSession(session *domain.GameSession, now time.Time) error {
	if session == nil {
		return domain.ErrSessionNotFound
	}
	if session.Status == domain.StatusFinished {
		return domain.ErrSessionFinished
	}
	if session.Status == domain.StatusExpired || !now.Before(session.ExpiresAt) {
		return domain.ErrSessionExpired
	}
	return nil
}

// ValidateAnswer checks an answer submission against the session's current
// position and the request bounds. chosenIndex -1 is the explicit
// timed-out-without-choosing sentinel and is valid.
func ValidateAnswer(session *domain.GameSession, questionIndex, chosenIndex int, answerTimeMs int64) error {
	if questionIndex != session.CurrentIndex {
		return domain.NewError(domain.CodeInvalidQuestionIndex, "question out of order, please reload")
	}
	if chosenIndex < -1 || chosenIndex >= OptionsPerQuestion {
		return domain.NewError(domain.CodeInvalidChoice, "invalid option")
	}
	if answerTimeMs < 0 || answerTimeMs > TimeLimitMs+GraceMs {
		return domain.NewError(domain.CodeInvalidChoice, "invalid answer time")
	}
	return nil
}

// ValidateFinish checks the one-time submit token and that every question
// has been answered.
func ValidateFinish(session *domain.GameSession, submitToken string) error {
	if subtle.ConstantTimeCompare([]byte(session.SubmitToken), []byte(submitToken)) != 1 {
		return domain.ErrInvalidToken
	}
	if session.CurrentIndex < session.TotalQuestions() {
		return domain.ErrSessionNotFinished
	}
	return nil
}
