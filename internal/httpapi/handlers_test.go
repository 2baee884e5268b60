package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gridrow/tictactoe-backend/internal/codes"
	"github.com/gridrow/tictactoe-backend/internal/engine"
	"github.com/gridrow/tictactoe-backend/internal/hub"
	"github.com/gridrow/tictactoe-backend/internal/identity"
	"github.com/gridrow/tictactoe-backend/internal/model"
	"github.com/gridrow/tictactoe-backend/internal/replay"
	"github.com/gridrow/tictactoe-backend/internal/session"
	"github.com/gridrow/tictactoe-backend/internal/store"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	st := store.NewMemory()
	log := zap.NewNop()
	h := hub.NewHub(ctx, log)
	sessions := session.New(st, codes.NewRegistry(st), h, log)
	players := identity.New(st, log)
	return SetupRoutes(NewServer(sessions, players, log), h, log)
}

func do(t *testing.T, router http.Handler, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func createPlayer(t *testing.T, router http.Handler, name string) *model.Player {
	t.Helper()
	var p model.Player
	rec := do(t, router, http.MethodPost, "/api/players", map[string]string{"username": name}, &p)
	require.Equal(t, http.StatusOK, rec.Code)
	return &p
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Error)
	require.NotEmpty(t, body.Message)
	return body
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	rec := do(t, router, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlayerEndpoints(t *testing.T) {
	router := newTestRouter(t)

	alice := createPlayer(t, router, "alice")
	again := createPlayer(t, router, "alice")
	assert.Equal(t, alice.ID, again.ID)

	var fetched model.Player
	rec := do(t, router, http.MethodGet, "/api/players/"+alice.ID, nil, &fetched)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", fetched.Username)

	rec = do(t, router, http.MethodGet, "/api/players/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Error)

	var renamed model.Player
	rec = do(t, router, http.MethodPut, "/api/players/"+alice.ID+"/username", map[string]string{"username": "alicia"}, &renamed)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alicia", renamed.Username)

	var found []*model.Player
	rec = do(t, router, http.MethodGet, "/api/players/search/ali", nil, &found)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, found, 1)
	assert.Equal(t, "alicia", found[0].Username)

	rec = do(t, router, http.MethodPost, "/api/players", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFullGameOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	alice := createPlayer(t, router, "alice")
	bob := createPlayer(t, router, "bob")

	var g model.Game
	rec := do(t, router, http.MethodPost, "/api/games",
		map[string]string{"mode": "online", "player_id": alice.ID}, &g)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.StatusWaiting, g.Status)

	var waiting []*model.Game
	rec = do(t, router, http.MethodGet, "/api/games/waiting", nil, &waiting)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, waiting, 1)

	var byCode model.Game
	rec = do(t, router, http.MethodGet, "/api/games/by-code/"+g.Code, nil, &byCode)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, g.ID, byCode.ID)

	var joined model.Game
	rec = do(t, router, http.MethodPost, "/api/games/join-by-code",
		map[string]string{"code": g.Code, "player_id": bob.ID}, &joined)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusInProgress, joined.Status)

	// X takes the left column: 0,1,3,4,6.
	turns := []struct {
		playerID string
		cell     int
	}{
		{alice.ID, 0}, {bob.ID, 1}, {alice.ID, 3}, {bob.ID, 4}, {alice.ID, 6},
	}
	var last model.Game
	for _, mv := range turns {
		rec = do(t, router, http.MethodPost, fmt.Sprintf("/api/games/%s/move", g.ID),
			map[string]any{"player_id": mv.playerID, "cell": mv.cell}, &last)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, model.StatusCompleted, last.Status)
	assert.Equal(t, engine.MarkX, last.Winner)
	assert.Equal(t, []int{0, 3, 6}, last.WinningLine)

	// Replay reproduces the whole game.
	var rep struct {
		Game       *model.Game       `json:"game"`
		Snapshots  []replay.Snapshot `json:"snapshots"`
		TotalMoves int               `json:"total_moves"`
	}
	rec = do(t, router, http.MethodGet, fmt.Sprintf("/api/games/%s/replay", g.ID), nil, &rep)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, rep.TotalMoves)
	require.Len(t, rep.Snapshots, 6)
	assert.Equal(t, rep.Game.Board, rep.Snapshots[5].Board)

	// Rematch swaps marks.
	var next model.Game
	rec = do(t, router, http.MethodPost, fmt.Sprintf("/api/games/%s/rematch", g.ID),
		map[string]string{"player_id": bob.ID}, &next)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, bob.ID, next.PlayerXID)

	// Stats reflect the completed game.
	var stats identity.Stats
	rec = do(t, router, http.MethodGet, "/api/players/"+alice.ID+"/stats", nil, &stats)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, stats.TotalGames)
	assert.Equal(t, 1, stats.Wins)

	var history []*model.Game
	rec = do(t, router, http.MethodGet, "/api/players/"+alice.ID+"/history", nil, &history)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, history, 1)
}

func TestPlayerGamesResolvesIDOrUsername(t *testing.T) {
	router := newTestRouter(t)
	alice := createPlayer(t, router, "alice")
	bob := createPlayer(t, router, "bob")

	var g model.Game
	rec := do(t, router, http.MethodPost, "/api/games",
		map[string]string{"mode": "online", "player_id": alice.ID}, &g)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, router, http.MethodPost, "/api/games/join-by-code",
		map[string]string{"code": g.Code, "player_id": bob.ID}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, mv := range []struct {
		playerID string
		cell     int
	}{{alice.ID, 0}, {bob.ID, 1}, {alice.ID, 3}, {bob.ID, 4}, {alice.ID, 6}} {
		rec = do(t, router, http.MethodPost, fmt.Sprintf("/api/games/%s/move", g.ID),
			map[string]any{"player_id": mv.playerID, "cell": mv.cell}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	var byName []*model.Game
	rec = do(t, router, http.MethodGet, "/api/players/alice/games", nil, &byName)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, byName, 1)
	assert.Equal(t, g.ID, byName[0].ID)

	var byID []*model.Game
	rec = do(t, router, http.MethodGet, "/api/players/"+alice.ID+"/games", nil, &byID)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, byID, 1)

	rec = do(t, router, http.MethodGet, "/api/players/nobody/games", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	router := newTestRouter(t)
	alice := createPlayer(t, router, "alice")
	bob := createPlayer(t, router, "bob")

	rec := do(t, router, http.MethodGet, "/api/games/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var g model.Game
	rec = do(t, router, http.MethodPost, "/api/games",
		map[string]string{"mode": "online", "player_id": alice.ID}, &g)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Self join.
	rec = do(t, router, http.MethodPost, fmt.Sprintf("/api/games/%s/join", g.ID),
		map[string]string{"player_id": alice.ID}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "self_join", decodeError(t, rec).Error)

	// Move before the opponent joined.
	rec = do(t, router, http.MethodPost, fmt.Sprintf("/api/games/%s/move", g.ID),
		map[string]any{"player_id": alice.ID, "cell": 0}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "waiting_for_opponent", decodeError(t, rec).Error)

	rec = do(t, router, http.MethodPost, fmt.Sprintf("/api/games/%s/join", g.ID),
		map[string]string{"player_id": bob.ID}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Out-of-range cell is rejected by validation.
	rec = do(t, router, http.MethodPost, fmt.Sprintf("/api/games/%s/move", g.ID),
		map[string]any{"player_id": alice.ID, "cell": 12}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Out of turn.
	rec = do(t, router, http.MethodPost, fmt.Sprintf("/api/games/%s/move", g.ID),
		map[string]any{"player_id": bob.ID, "cell": 0}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_your_turn", decodeError(t, rec).Error)

	// Occupied cell.
	rec = do(t, router, http.MethodPost, fmt.Sprintf("/api/games/%s/move", g.ID),
		map[string]any{"player_id": alice.ID, "cell": 0}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodPost, fmt.Sprintf("/api/games/%s/move", g.ID),
		map[string]any{"player_id": bob.ID, "cell": 0}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "illegal_move", decodeError(t, rec).Error)

	// Rematch before completion.
	rec = do(t, router, http.MethodPost, fmt.Sprintf("/api/games/%s/rematch", g.ID),
		map[string]string{"player_id": alice.ID}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_completed", decodeError(t, rec).Error)

	// Malformed body.
	req := httptest.NewRequest(http.MethodPost, "/api/games", bytes.NewBufferString("{"))
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}
