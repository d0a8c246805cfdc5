// Package ws exposes the session protocol over a websocket: each inbound
// message is one request envelope, each state-changing operation on the
// observed game is pushed to the socket as a snapshot.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/chess-session-backend/internal/coordinator"
	"github.com/DoyleJ11/chess-session-backend/internal/protocol"
)

type pushMessage struct {
	Type  string         `json:"type"` // "snapshot" | "response"
	Data  *protocol.Data `json:"data,omitempty"`
	Error string         `json:"error,omitempty"`
}

func Handler(c *coordinator.Coordinator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := r.URL.Query().Get("game_id")
		clientID := r.URL.Query().Get("client_id")
		if gameID == "" || clientID == "" {
			http.Error(w, "missing game_id or client_id", http.StatusBadRequest)
			return
		}

		out := make(chan protocol.Data, 8)
		if err := c.Observe(gameID, clientID, out); err != nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			c.Unobserve(gameID, clientID)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		defer c.Unobserve(gameID, clientID)

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				payload, _ := json.Marshal(pushMessage{Type: "snapshot", Data: &snap})
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var req protocol.Request
			if err := json.Unmarshal(data, &req); err != nil {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"response","error":"bad json"}`))
				continue
			}
			if req.ClientID == "" {
				req.ClientID = clientID
			}

			resp := c.Handle(r.Context(), req)
			payload, _ := json.Marshal(pushMessage{Type: "response", Data: resp.Data, Error: resp.Error})
			if err := conn.Write(r.Context(), websocket.MessageText, payload); err != nil {
				log.Warn("websocket write failed",
					zap.String("game_id", gameID),
					zap.String("client_id", clientID),
					zap.Error(err))
				return
			}
		}
	}
}
