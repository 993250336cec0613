package domain

import "errors"

// ErrorCode identifies a failure class in API responses.
type ErrorCode string

const (
	CodeInvalidNickname      ErrorCode = "INVALID_NICKNAME"
	CodeInvalidSession       ErrorCode = "INVALID_SESSION"
	CodeSessionExpired       ErrorCode = "SESSION_EXPIRED"
	CodeSessionFinished      ErrorCode = "SESSION_FINISHED"
	CodeInvalidQuestionIndex ErrorCode = "INVALID_QUESTION_INDEX"
	CodeInvalidChoice        ErrorCode = "INVALID_CHOICE"
	CodeInvalidToken         ErrorCode = "INVALID_TOKEN"
	CodeAlreadySubmitted     ErrorCode = "ALREADY_SUBMITTED"
	CodeSessionNotFinished   ErrorCode = "SESSION_NOT_FINISHED"
	CodeInsufficientSongs    ErrorCode = "INSUFFICIENT_SONGS"
	CodeInternalError        ErrorCode = "INTERNAL_ERROR"
	// CodeRateLimited is reserved for a throttling layer in front of the
	// service; nothing emits it yet.
	CodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Error is a coded error surfaced to API clients. Storage and other
// infrastructure failures are wrapped as CodeInternalError so their detail
// stays server-side.
type Error struct {
	Code    ErrorCode
	Message string
	cause   error
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches coded errors by code and message so wrapped variants (carrying
// a cause) still compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code && t.Message == e.Message
}

// NewError builds a coded error with a client-safe message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Internal wraps an infrastructure failure. The cause is kept for server-side
// logging; clients only ever see the generic message.
func Internal(message string, cause error) *Error {
	return &Error{Code: CodeInternalError, Message: message, cause: cause}
}

// CodeOf extracts the error code, defaulting to CodeInternalError for
// anything that is not a coded error.
func CodeOf(err error) ErrorCode {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternalError
}

var (
	// ErrSessionNotFound is returned when a session id has no stored row.
	ErrSessionNotFound = NewError(CodeInvalidSession, "game not found, please start a new one")
	// ErrSessionFinished is returned for operations on an already finished session.
	ErrSessionFinished = NewError(CodeSessionFinished, "game already finished")
	// ErrSessionExpired is returned when a session passed its deadline.
	ErrSessionExpired = NewError(CodeSessionExpired, "game expired, please start a new one")
	// ErrInsufficientSongs is returned when the active corpus is too small to
	// build a question set.
	ErrInsufficientSongs = NewError(CodeInsufficientSongs, "song corpus too small to build a quiz")
	// ErrCatalogUnavailable is returned when the song catalog cannot be refreshed.
	ErrCatalogUnavailable = NewError(CodeInternalError, "song catalog unavailable")
)

// CatalogUnavailable wraps a catalog refresh failure; errors.Is matches it
// against ErrCatalogUnavailable while keeping the cause for logs.
func CatalogUnavailable(cause error) *Error {
	return &Error{Code: CodeInternalError, Message: "song catalog unavailable", cause: cause}
}

var (
	// ErrAnswerExists signals a duplicate (session, question) answer insert.
	// The service absorbs it via the idempotent-replay path.
	ErrAnswerExists = errors.New("answer already recorded")
	// ErrAlreadySubmitted is returned when a leaderboard entry for the
	// session already exists.
	ErrAlreadySubmitted = NewError(CodeAlreadySubmitted, "result already submitted to the leaderboard")
	// ErrSessionNotFinished is returned when finish is called before all
	// questions are answered.
	ErrSessionNotFinished = NewError(CodeSessionNotFinished, "not all questions answered yet")
	// ErrInvalidToken is returned when the submit token does not match.
	ErrInvalidToken = NewError(CodeInvalidToken, "invalid submit token, please start a new game")
)
