package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gridrow/tictactoe-backend/internal/identity"
	"github.com/gridrow/tictactoe-backend/internal/model"
	"github.com/gridrow/tictactoe-backend/internal/replay"
	"github.com/gridrow/tictactoe-backend/internal/session"
	"github.com/gridrow/tictactoe-backend/internal/store"
)

type Server struct {
	sessions *session.Service
	players  *identity.Service
	validate *validator.Validate
	log      *zap.Logger
}

func NewServer(sessions *session.Service, players *identity.Service, log *zap.Logger) *Server {
	return &Server{
		sessions: sessions,
		players:  players,
		validate: validator.New(),
		log:      log,
	}
}

// decode unmarshals the body into v and runs struct validation. On failure
// it writes the 400 response itself and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeBadRequest(w, "bad_json", "malformed request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.writeBadRequest(w, "bad_request", err.Error())
		return false
	}
	return true
}

// ------------------------------ players ------------------------------

type createPlayerReq struct {
	Username string `json:"username" validate:"required"`
}

func (s *Server) handleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req createPlayerReq
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.players.CreateOrGet(r.Context(), req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := s.players.Get(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type renameReq struct {
	Username string `json:"username" validate:"required"`
}

func (s *Server) handleRenamePlayer(w http.ResponseWriter, r *http.Request) {
	var req renameReq
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.players.Rename(r.Context(), chi.URLParam(r, "playerID"), req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSearchPlayers(w http.ResponseWriter, r *http.Request) {
	results, err := s.players.Search(r.Context(), chi.URLParam(r, "query"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.players.StatsFor(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handlePlayerGames serves the legacy games listing, whose path segment is
// a player id or a username. Ids are tried first; they are uuids, so a
// username can never shadow one.
func (s *Server) handlePlayerGames(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "playerID")
	p, err := s.players.Get(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		p, err = s.players.GetByUsername(r.Context(), key)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	games, err := s.sessions.History(r.Context(), p.ID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) handlePlayerHistory(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if _, err := s.players.Get(r.Context(), playerID); err != nil {
		s.writeError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	games, err := s.sessions.History(r.Context(), playerID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// ------------------------------- games -------------------------------

type createGameReq struct {
	Mode     model.Mode `json:"mode" validate:"required,oneof=local online"`
	PlayerID string     `json:"player_id" validate:"required"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameReq
	if !s.decode(w, r, &req) {
		return
	}
	g, err := s.sessions.Create(r.Context(), req.Mode, req.PlayerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleListWaiting(w http.ResponseWriter, r *http.Request) {
	games, err := s.sessions.ListWaiting(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.sessions.Get(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleGetGameByCode(w http.ResponseWriter, r *http.Request) {
	g, err := s.sessions.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type joinGameReq struct {
	PlayerID string `json:"player_id" validate:"required"`
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	var req joinGameReq
	if !s.decode(w, r, &req) {
		return
	}
	g, err := s.sessions.Join(r.Context(), chi.URLParam(r, "gameID"), req.PlayerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type joinByCodeReq struct {
	PlayerID string `json:"player_id" validate:"required"`
	Code     string `json:"code" validate:"required,len=6"`
}

func (s *Server) handleJoinByCode(w http.ResponseWriter, r *http.Request) {
	var req joinByCodeReq
	if !s.decode(w, r, &req) {
		return
	}
	g, err := s.sessions.JoinByCode(r.Context(), req.Code, req.PlayerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type moveReq struct {
	PlayerID string `json:"player_id" validate:"required"`
	Cell     *int   `json:"cell" validate:"required,gte=0,lte=8"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveReq
	if !s.decode(w, r, &req) {
		return
	}
	g, err := s.sessions.Move(r.Context(), chi.URLParam(r, "gameID"), req.PlayerID, *req.Cell)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type rematchReq struct {
	PlayerID string     `json:"player_id" validate:"required"`
	Mode     model.Mode `json:"mode" validate:"omitempty,oneof=local online"`
}

func (s *Server) handleRematch(w http.ResponseWriter, r *http.Request) {
	var req rematchReq
	if !s.decode(w, r, &req) {
		return
	}
	g, err := s.sessions.Rematch(r.Context(), chi.URLParam(r, "gameID"), req.PlayerID, req.Mode)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

type replayRes struct {
	Game       *model.Game       `json:"game"`
	Snapshots  []replay.Snapshot `json:"snapshots"`
	TotalMoves int               `json:"total_moves"`
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	g, err := s.sessions.Get(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	snapshots, err := replay.Reconstruct(g)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, replayRes{Game: g, Snapshots: snapshots, TotalMoves: len(g.Moves)})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}
