package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"music-quiz-service/internal/domain"
	"music-quiz-service/internal/game"
	"music-quiz-service/internal/infra/memory"
)

func TestStartRejectsBadNickname(t *testing.T) {
	env := newTestServer(t)
	defer env.server.Close()

	status, body := env.post(t, "/api/game/start", map[string]any{"nickname": "way-too-long-nickname"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if body.Success || body.Error == nil || body.Error.Code != domain.CodeInvalidNickname {
		t.Fatalf("unexpected envelope: %+v", body)
	}
}

func TestAnswerRejectsMissingFields(t *testing.T) {
	env := newTestServer(t)
	defer env.server.Close()

	status, body := env.post(t, "/api/game/answer", map[string]any{"sessionId": "s1"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if body.Error == nil || body.Error.Code != domain.CodeInvalidChoice {
		t.Fatalf("unexpected envelope: %+v", body)
	}
}

func TestFullGameOverREST(t *testing.T) {
	env := newTestServer(t)
	defer env.server.Close()

	// Start.
	status, body := env.post(t, "/api/game/start", map[string]any{"nickname": "Alice"})
	if status != http.StatusOK || !body.Success {
		t.Fatalf("start failed: status=%d body=%+v", status, body)
	}
	var started domain.StartResult
	decodeData(t, body, &started)
	if started.TotalQuestions != 20 || started.TimeLimitSec != 15 {
		t.Fatalf("unexpected start payload: %+v", started)
	}

	// Answer all questions correctly at zero latency.
	var last domain.AnswerResult
	for i := 0; i < 20; i++ {
		correct := env.correctIndex(t, started.SessionID, i)
		status, body = env.post(t, "/api/game/answer", map[string]any{
			"sessionId":     started.SessionID,
			"questionIndex": i,
			"chosenIndex":   correct,
			"answerTimeMs":  0,
		})
		if status != http.StatusOK || !body.Success {
			t.Fatalf("answer %d failed: status=%d body=%+v", i, status, body)
		}
		last = domain.AnswerResult{}
		decodeData(t, body, &last)
		if !last.IsCorrect || last.ScoreGained != 100 {
			t.Fatalf("answer %d: %+v", i, last)
		}
	}
	if !last.IsFinished || last.Next != nil {
		t.Fatalf("expected finished with no next: %+v", last)
	}
	if last.TotalScore != 2000 {
		t.Fatalf("expected 2000 points, got %d", last.TotalScore)
	}

	// Finish.
	status, body = env.post(t, "/api/game/finish", map[string]any{
		"sessionId":   started.SessionID,
		"submitToken": started.SubmitToken,
	})
	if status != http.StatusOK || !body.Success {
		t.Fatalf("finish failed: status=%d body=%+v", status, body)
	}
	var finished domain.FinishResult
	decodeData(t, body, &finished)
	if finished.Rank != 1 || finished.TotalPlayers != 1 || !finished.IsNewHighScore {
		t.Fatalf("unexpected finish payload: %+v", finished)
	}

	// Duplicate finish rejected.
	status, body = env.post(t, "/api/game/finish", map[string]any{
		"sessionId":   started.SessionID,
		"submitToken": started.SubmitToken,
	})
	if status != http.StatusBadRequest || body.Error == nil || body.Error.Code != domain.CodeAlreadySubmitted {
		t.Fatalf("duplicate finish: status=%d body=%+v", status, body)
	}

	// Leaderboard lists the run.
	resp, err := http.Get(env.server.URL + "/api/leaderboard?limit=10")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	defer resp.Body.Close()
	var lbEnvelope responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&lbEnvelope); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	var page domain.LeaderboardPage
	decodeData(t, &lbEnvelope, &page)
	if page.Total != 1 || len(page.Entries) != 1 || page.Entries[0].Nickname != "Alice" {
		t.Fatalf("unexpected leaderboard: %+v", page)
	}
	if page.Entries[0].Rank != 1 || page.Entries[0].TotalScore != 2000 {
		t.Fatalf("unexpected top entry: %+v", page.Entries[0])
	}
}

func TestLeaderboardFeedStreamsUpdates(t *testing.T) {
	env := newTestServer(t)
	defer env.server.Close()

	u := "ws" + env.server.URL[len("http"):] + "/ws/leaderboard"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Initial snapshot is empty.
	page := readFeedPage(t, conn)
	if page.Total != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", page)
	}

	// Finishing a game pushes an update.
	started := env.playThrough(t)
	status, body := env.post(t, "/api/game/finish", map[string]any{
		"sessionId":   started.SessionID,
		"submitToken": started.SubmitToken,
	})
	if status != http.StatusOK {
		t.Fatalf("finish failed: %+v", body)
	}

	page = readFeedPage(t, conn)
	if page.Total != 1 || len(page.Entries) != 1 {
		t.Fatalf("expected one entry in update, got %+v", page)
	}
}

// --- helpers ---

type testServer struct {
	server   *httptest.Server
	sessions *memory.SessionStore
}

type responseEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	sessions := memory.NewSessionStore()
	answers := memory.NewAnswerStore()
	leaderboard := memory.NewLeaderboardStore()
	catalog := memory.NewCatalog(memory.NewStaticSongLoader(sampleSongs(25)), time.Minute)

	service := game.NewService(sessions, answers, leaderboard, catalog)
	feed := game.NewFeed()
	service.AttachFeed(feed)

	mux := http.NewServeMux()
	NewHandler(service).Register(mux)
	mux.HandleFunc("/ws/leaderboard", NewFeedHandler(service, feed).ServeWS)

	return &testServer{
		server:   httptest.NewServer(mux),
		sessions: sessions,
	}
}

func (env *testServer) post(t *testing.T, path string, payload map[string]any) (int, *responseEnvelope) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(env.server.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	defer resp.Body.Close()

	var body responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return resp.StatusCode, &body
}

func (env *testServer) correctIndex(t *testing.T, sessionID string, questionIndex int) int {
	t.Helper()
	session, err := env.sessions.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return session.Questions[questionIndex].CorrectIndex
}

func (env *testServer) playThrough(t *testing.T) domain.StartResult {
	t.Helper()
	status, body := env.post(t, "/api/game/start", map[string]any{"nickname": "Bob"})
	if status != http.StatusOK {
		t.Fatalf("start failed: %+v", body)
	}
	var started domain.StartResult
	decodeData(t, body, &started)
	for i := 0; i < 20; i++ {
		status, answerBody := env.post(t, "/api/game/answer", map[string]any{
			"sessionId":     started.SessionID,
			"questionIndex": i,
			"chosenIndex":   env.correctIndex(t, started.SessionID, i),
			"answerTimeMs":  500,
		})
		if status != http.StatusOK {
			t.Fatalf("answer %d failed: %+v", i, answerBody)
		}
	}
	return started
}

func decodeData(t *testing.T, body *responseEnvelope, out any) {
	t.Helper()
	if err := json.Unmarshal(body.Data, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func readFeedPage(t *testing.T, conn *websocket.Conn) domain.LeaderboardPage {
	t.Helper()
	var msg feedMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read feed: %v", err)
	}
	if msg.Type != "leaderboard" {
		t.Fatalf("expected leaderboard message, got %s", msg.Type)
	}
	return msg.Payload
}

func sampleSongs(n int) []domain.Song {
	songs := make([]domain.Song, 0, n)
	for i := 0; i < n; i++ {
		songs = append(songs, domain.Song{
			ID:       fmt.Sprintf("song-%02d", i),
			Title:    fmt.Sprintf("Track %02d", i),
			VideoID:  fmt.Sprintf("video-%02d", i),
			StartSec: 15,
			Active:   true,
		})
	}
	return songs
}
