package types

import "github.com/gridrow/tictactoe-backend/internal/model"

type ClientMessage struct {
	Type string `json:"type"` // "move" | "ping"
	Cell *int   `json:"cell,omitempty"`
}

type ServerMessage struct {
	Type      string      `json:"type"` // "connected" | "game_update" | "player_joined" | "player_disconnected" | "rematch_created" | "pong" | "error"
	Game      *model.Game `json:"game,omitempty"`
	PlayerID  string      `json:"player_id,omitempty"`
	NewGameID string      `json:"new_game_id,omitempty"`
	Error     string      `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
}
