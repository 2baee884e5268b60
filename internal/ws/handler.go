package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridrow/tictactoe-backend/internal/engine"
	"github.com/gridrow/tictactoe-backend/internal/hub"
	"github.com/gridrow/tictactoe-backend/internal/model"
	"github.com/gridrow/tictactoe-backend/internal/session"
	"github.com/gridrow/tictactoe-backend/internal/store"
	"github.com/gridrow/tictactoe-backend/internal/types"
)

// readTimeout is the liveness window: a connection that sends neither a
// ping nor a move within it is treated as dead and reclaimed.
const readTimeout = 60 * time.Second

const writeTimeout = 3 * time.Second

func Handler(h *hub.Hub, sessions *session.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "gameID")
		playerID := chi.URLParam(r, "playerID")

		g, err := sessions.Get(r.Context(), gameID)
		if err != nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}
		if !g.IsParticipant(playerID) {
			http.Error(w, "not a participant", http.StatusForbidden)
			return
		}

		ch := h.Ensure(gameID)

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		out := make(chan hub.Event, 16)

		// Registration and the connected snapshot happen in one actor step,
		// so a move committed while the socket was being accepted still
		// reaches this connection. The player_joined announcement covers
		// the second participant's first-ever socket; reconnects stay
		// silent since the join operation already broadcast the pairing.
		joined := make(chan bool, 1)
		ch.Inbox() <- hub.Join{
			ConnID:   connID,
			PlayerID: playerID,
			Outbox:   out,
			Snapshot: func() *model.Game {
				cur, err := sessions.Get(r.Context(), gameID)
				if err != nil {
					return g
				}
				return cur
			},
			AnnounceJoin: g.Mode == model.ModeOnline && g.PlayerOID != nil && *g.PlayerOID == playerID,
			Reply:        joined,
		}
		<-joined
		defer func() { ch.Inbox() <- hub.Leave{ConnID: connID, PlayerID: playerID} }()

		log.Info("connection opened",
			zap.String("game_id", gameID), zap.String("player_id", playerID), zap.String("conn_id", connID))

		// Writer goroutine: everything fanned out by the channel.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for ev := range out {
				payload, _ := json.Marshal(toServerMessage(ev))
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop: liveness probes and move submissions.
		for {
			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				log.Info("connection closed",
					zap.String("game_id", gameID), zap.String("conn_id", connID))
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeMessage(r.Context(), conn, types.ServerMessage{Type: "error", Error: "bad_json", Message: "malformed message"})
				continue
			}

			switch cm.Type {
			case "ping":
				writeMessage(r.Context(), conn, types.ServerMessage{Type: "pong"})

			case "move":
				if cm.Cell == nil {
					writeMessage(r.Context(), conn, types.ServerMessage{Type: "error", Error: "bad_request", Message: "cell is required"})
					continue
				}
				// Success reaches everyone as game_update via the channel;
				// failures go only to this connection.
				if _, err := sessions.Move(r.Context(), gameID, playerID, *cm.Cell); err != nil {
					writeMessage(r.Context(), conn, types.ServerMessage{Type: "error", Error: errorKind(err), Message: err.Error()})
				}

			default:
				writeMessage(r.Context(), conn, types.ServerMessage{Type: "error", Error: "bad_request", Message: "unknown message type"})
			}
		}
	}
}

func toServerMessage(ev hub.Event) types.ServerMessage {
	return types.ServerMessage{
		Type:      string(ev.Type),
		Game:      ev.Game,
		PlayerID:  ev.PlayerID,
		NewGameID: ev.NewGameID,
	}
}

// writeMessage is used for replies addressed to a single connection.
// conn.Write is safe for concurrent use with the writer goroutine.
func writeMessage(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, _ := json.Marshal(msg)
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, engine.ErrIllegalMove):
		return "illegal_move"
	case errors.Is(err, engine.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, session.ErrGameOver):
		return "game_over"
	case errors.Is(err, session.ErrNotStarted):
		return "waiting_for_opponent"
	case errors.Is(err, session.ErrNotParticipant):
		return "not_participant"
	case errors.Is(err, store.ErrStaleWrite):
		return "stale_write"
	default:
		return "internal"
	}
}
