package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/gridrow/tictactoe-backend/internal/engine"
	"github.com/gridrow/tictactoe-backend/internal/identity"
	"github.com/gridrow/tictactoe-backend/internal/session"
	"github.com/gridrow/tictactoe-backend/internal/store"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// kindOf maps domain sentinels to a machine-readable kind and an HTTP
// status: 404 for unknown ids/codes, 409 for conflicts, 400 for malformed
// input.
func kindOf(err error) (string, int) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, engine.ErrIllegalMove):
		return "illegal_move", http.StatusBadRequest
	case errors.Is(err, engine.ErrNotYourTurn):
		return "not_your_turn", http.StatusConflict
	case errors.Is(err, session.ErrGameOver):
		return "game_over", http.StatusConflict
	case errors.Is(err, session.ErrNotStarted):
		return "waiting_for_opponent", http.StatusConflict
	case errors.Is(err, session.ErrAlreadyFull):
		return "already_full", http.StatusConflict
	case errors.Is(err, session.ErrSelfJoin):
		return "self_join", http.StatusConflict
	case errors.Is(err, session.ErrNotJoinable):
		return "not_joinable", http.StatusConflict
	case errors.Is(err, session.ErrNotParticipant):
		return "not_participant", http.StatusConflict
	case errors.Is(err, session.ErrNotCompleted):
		return "not_completed", http.StatusConflict
	case errors.Is(err, store.ErrStaleWrite):
		return "stale_write", http.StatusConflict
	case errors.Is(err, identity.ErrUsernameRequired):
		return "username_required", http.StatusBadRequest
	case errors.Is(err, identity.ErrUsernameTaken):
		return "username_taken", http.StatusBadRequest
	default:
		return "internal", http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind, status := kindOf(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: kind, Message: err.Error()})
}

func (s *Server) writeBadRequest(w http.ResponseWriter, kind, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: kind, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
