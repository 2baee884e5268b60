package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/gridrow/tictactoe-backend/internal/hub"
	"github.com/gridrow/tictactoe-backend/internal/ws"
)

func SetupRoutes(s *Server, h *hub.Hub, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(corsFromEnv)

	r.Get("/healthz", Healthz)

	r.Route("/api", func(api chi.Router) {
		// The websocket route stays outside the timeout group: push
		// connections are long-lived.
		api.Get("/ws/{gameID}/{playerID}", ws.Handler(h, s.sessions, log))

		api.Group(func(g chi.Router) {
			g.Use(chimw.Timeout(10 * time.Second))

			g.Post("/players", s.handleCreatePlayer)
			g.Get("/players/search/{query}", s.handleSearchPlayers)
			g.Get("/players/{playerID}", s.handleGetPlayer)
			g.Put("/players/{playerID}/username", s.handleRenamePlayer)
			g.Get("/players/{playerID}/stats", s.handlePlayerStats)
			g.Get("/players/{playerID}/history", s.handlePlayerHistory)
			g.Get("/players/{playerID}/games", s.handlePlayerGames)

			g.Post("/games", s.handleCreateGame)
			g.Get("/games/waiting", s.handleListWaiting)
			g.Get("/games/by-code/{code}", s.handleGetGameByCode)
			g.Post("/games/join-by-code", s.handleJoinByCode)
			g.Get("/games/{gameID}", s.handleGetGame)
			g.Post("/games/{gameID}/join", s.handleJoinGame)
			g.Post("/games/{gameID}/move", s.handleMove)
			g.Post("/games/{gameID}/rematch", s.handleRematch)
			g.Get("/games/{gameID}/replay", s.handleReplay)
		})
	})

	return r
}

// corsFromEnv enables credentialed CORS for the configured client origin.
func corsFromEnv(next http.Handler) http.Handler {
	origin := os.Getenv("CLIENT_ORIGIN")
	if origin == "" {
		origin = "http://localhost:3000"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
