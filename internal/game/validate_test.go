package game

import (
	"errors"
	"testing"
	"time"

	"music-quiz-service/internal/domain"
)

func TestValidateNickname(t *testing.T) {
	cases := []struct {
		name     string
		nickname string
		wantErr  bool
	}{
		{"empty is optional", "", false},
		{"whitespace only", "   ", false},
		{"plain name", "Alice", false},
		{"exactly twelve runes", "abcdefghijkl", false},
		{"thirteen runes", "abcdefghijklm", true},
		{"angle brackets", "<script>", true},
		{"quotes", `a"b`, true},
		{"ampersand", "a&b", true},
		{"multibyte within limit", "音楽クイズ", false},
	}
	for _, tc := range cases {
		err := ValidateNickname(tc.nickname)
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestSanitizeNickname(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", DefaultNickname},
		{"   ", DefaultNickname},
		{"<>'\"&", DefaultNickname},
		{"Alice", "Alice"},
		{"  Bob  ", "Bob"},
		{"a<b>c", "abc"},
		{"abcdefghijklmnop", "abcdefghijkl"},
	}
	for _, tc := range cases {
		if got := SanitizeNickname(tc.in); got != tc.want {
			t.Fatalf("SanitizeNickname(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidateSession(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	if err := ValidateSession(nil, now); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("nil session: got %v", err)
	}

	finished := &domain.GameSession{Status: domain.StatusFinished, ExpiresAt: now.Add(time.Hour)}
	if err := ValidateSession(finished, now); !errors.Is(err, domain.ErrSessionFinished) {
		t.Fatalf("finished session: got %v", err)
	}

	expired := &domain.GameSession{Status: domain.StatusExpired, ExpiresAt: now.Add(time.Hour)}
	if err := ValidateSession(expired, now); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expired status: got %v", err)
	}

	// Lazy expiry: stored status still active but the deadline has passed.
	stale := &domain.GameSession{Status: domain.StatusActive, ExpiresAt: now.Add(-time.Second)}
	if err := ValidateSession(stale, now); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("lazily expired session: got %v", err)
	}

	active := &domain.GameSession{Status: domain.StatusActive, ExpiresAt: now.Add(time.Minute)}
	if err := ValidateSession(active, now); err != nil {
		t.Fatalf("active session: unexpected %v", err)
	}
}

func TestValidateAnswer(t *testing.T) {
	session := &domain.GameSession{CurrentIndex: 3}

	if err := ValidateAnswer(session, 2, 0, 100); domain.CodeOf(err) != domain.CodeInvalidQuestionIndex {
		t.Fatalf("past index: got %v", err)
	}
	if err := ValidateAnswer(session, 4, 0, 100); domain.CodeOf(err) != domain.CodeInvalidQuestionIndex {
		t.Fatalf("skipped index: got %v", err)
	}
	if err := ValidateAnswer(session, 3, -2, 100); domain.CodeOf(err) != domain.CodeInvalidChoice {
		t.Fatalf("chosen below sentinel: got %v", err)
	}
	if err := ValidateAnswer(session, 3, 4, 100); domain.CodeOf(err) != domain.CodeInvalidChoice {
		t.Fatalf("chosen above range: got %v", err)
	}
	if err := ValidateAnswer(session, 3, 0, -1); domain.CodeOf(err) != domain.CodeInvalidChoice {
		t.Fatalf("negative time: got %v", err)
	}
	if err := ValidateAnswer(session, 3, 0, TimeLimitMs+GraceMs+1); domain.CodeOf(err) != domain.CodeInvalidChoice {
		t.Fatalf("time beyond grace: got %v", err)
	}
	if err := ValidateAnswer(session, 3, -1, TimeLimitMs+GraceMs); err != nil {
		t.Fatalf("timeout sentinel at max time: unexpected %v", err)
	}
	if err := ValidateAnswer(session, 3, 2, 0); err != nil {
		t.Fatalf("valid answer: unexpected %v", err)
	}
}

func TestValidateFinish(t *testing.T) {
	session := &domain.GameSession{
		SubmitToken:  "secret-token",
		CurrentIndex: QuestionCount,
		Questions:    make([]domain.QuestionSpec, QuestionCount),
	}

	if err := ValidateFinish(session, "wrong"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("wrong token: got %v", err)
	}

	incomplete := &domain.GameSession{
		SubmitToken:  "secret-token",
		CurrentIndex: QuestionCount - 1,
		Questions:    make([]domain.QuestionSpec, QuestionCount),
	}
	if err := ValidateFinish(incomplete, "secret-token"); !errors.Is(err, domain.ErrSessionNotFinished) {
		t.Fatalf("incomplete session: got %v", err)
	}

	if err := ValidateFinish(session, "secret-token"); err != nil {
		t.Fatalf("valid finish: unexpected %v", err)
	}
}
