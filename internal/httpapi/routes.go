package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/chess-session-backend/internal/coordinator"
	"github.com/DoyleJ11/chess-session-backend/internal/store"
	"github.com/DoyleJ11/chess-session-backend/internal/transport/ws"
)

func SetupRoutes(c *coordinator.Coordinator, st store.Store, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/api/session", SessionHandler(c))
	r.Post("/api/session", SessionHandler(c))
	r.Post("/api/users", CreateUser(st, log))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(c, log))
	return r
}
