package http

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"music-quiz-service/internal/domain"
	"music-quiz-service/internal/game"
)

// Handler exposes the game lifecycle as a JSON API. Every response uses the
// envelope {success:true,data:...} or {success:false,error:{code,message}}.
type Handler struct {
	service *game.Service
}

func NewHandler(service *game.Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/game/start", h.StartGame)
	mux.HandleFunc("/api/game/answer", h.SubmitAnswer)
	mux.HandleFunc("/api/game/finish", h.FinishGame)
	mux.HandleFunc("/api/leaderboard", h.Leaderboard)
}

type startRequest struct {
	Nickname string `json:"nickname"`
}

type answerRequest struct {
	SessionID     string `json:"sessionId"`
	QuestionIndex *int   `json:"questionIndex"`
	ChosenIndex   *int   `json:"chosenIndex"`
	AnswerTimeMs  *int64 `json:"answerTimeMs"`
}

type finishRequest struct {
	SessionID   string `json:"sessionId"`
	SubmitToken string `json:"submitToken"`
}

func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	// An empty or malformed body counts as "no nickname", matching the
	// permissive anonymous-start behavior.
	var req startRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	result, err := h.service.Start(r.Context(), req.Nickname, clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, result)
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewError(domain.CodeInvalidChoice, "malformed request body"))
		return
	}
	if req.SessionID == "" || req.QuestionIndex == nil || req.ChosenIndex == nil || req.AnswerTimeMs == nil {
		writeError(w, domain.NewError(domain.CodeInvalidChoice, "missing request fields"))
		return
	}

	result, err := h.service.SubmitAnswer(r.Context(), req.SessionID, *req.QuestionIndex, *req.ChosenIndex, *req.AnswerTimeMs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, result)
}

func (h *Handler) FinishGame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req finishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewError(domain.CodeInvalidToken, "malformed request body"))
		return
	}
	if req.SessionID == "" || req.SubmitToken == "" {
		writeError(w, domain.NewError(domain.CodeInvalidToken, "missing request fields"))
		return
	}

	result, err := h.service.Finish(r.Context(), req.SessionID, req.SubmitToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, result)
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit := intQuery(r, "limit", 50)
	offset := intQuery(r, "offset", 0)

	page, err := h.service.Leaderboard(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, page)
}

type errorBody struct {
	Code    domain.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

func writeData(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := domain.CodeOf(err)
	message := "something went wrong, please try again"
	var coded *domain.Error
	if e, ok := err.(*domain.Error); ok {
		coded = e
		message = e.Message
	}
	if code == domain.CodeInternalError {
		// Keep infrastructure detail out of the response body.
		log.Printf("internal error: %v", err)
		if coded != nil {
			message = coded.Message
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(code))
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &errorBody{Code: code, Message: message},
	})
}

func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeInternalError, domain.CodeInsufficientSongs:
		return http.StatusInternalServerError
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &errorBody{Code: domain.CodeInternalError, Message: "method not allowed"},
	})
}

func intQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// clientIP prefers proxy headers over the socket address, recorded as
// session provenance.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
