package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"music-quiz-service/internal/domain"
	"music-quiz-service/internal/game"
)

// FeedHandler streams leaderboard updates over a websocket. Clients receive
// a snapshot on connect and a fresh page whenever a player submits a result.
type FeedHandler struct {
	service  *game.Service
	feed     *game.Feed
	upgrader websocket.Upgrader
}

func NewFeedHandler(service *game.Service, feed *game.Feed) *FeedHandler {
	return &FeedHandler{
		service: service,
		feed:    feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type feedMessage struct {
	Type    string                 `json:"type"`
	Payload domain.LeaderboardPage `json:"payload"`
}

func (h *FeedHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.feed.Subscribe()
	defer cancel()

	initial, err := h.service.Leaderboard(r.Context(), 10, 0)
	if err != nil {
		log.Printf("ws initial leaderboard: %v", err)
		return
	}
	if err := conn.WriteJSON(feedMessage{Type: "leaderboard", Payload: *initial}); err != nil {
		return
	}

	// Reader goroutine only detects the client going away; all writes stay
	// on this goroutine.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case page, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(feedMessage{Type: "leaderboard", Payload: page}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
