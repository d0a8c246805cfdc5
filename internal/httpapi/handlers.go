package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/chess-session-backend/internal/coordinator"
	"github.com/DoyleJ11/chess-session-backend/internal/protocol"
	"github.com/DoyleJ11/chess-session-backend/internal/store"
)

// SessionHandler serves the single envelope endpoint. The request rides
// in as query parameters (or form fields on POST); errors ride back in
// the envelope with a 200, never as HTTP status codes, so every failure
// stays uniformly inspectable by callers.
func SessionHandler(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		req := protocol.FromValues(r.Form)
		resp := c.Handle(r.Context(), req)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// CreateUser registers an account so that create requests pass the
// user check. Body: {"id": "...", "name": "..."}.
func CreateUser(st store.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := st.CreateUser(r.Context(), body.ID, body.Name); err != nil {
			log.Error("create user failed", zap.String("user_id", body.ID), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
