package model

import (
	"time"

	"github.com/gridrow/tictactoe-backend/internal/engine"
)

type Mode string

const (
	ModeLocal  Mode = "local"
	ModeOnline Mode = "online"
)

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

type Player struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Username  string    `json:"username" gorm:"uniqueIndex;size:64"`
	CreatedAt time.Time `json:"created_at"`
}

// Move is one entry of the append-only move log.
type Move struct {
	PlayerID string      `json:"player_id"`
	Mark     engine.Mark `json:"mark"`
	Cell     int         `json:"cell"`
	PlayedAt time.Time   `json:"played_at"`
}

// Game is the authoritative document for one session. The move log is the
// source of truth; Board, CurrentTurn, Winner, WinningLine and IsDraw are
// projections recomputed on every mutation. Version backs the conditional
// update in the store.
type Game struct {
	ID              string       `json:"id" gorm:"primaryKey;size:36"`
	Code            string       `json:"code" gorm:"uniqueIndex;size:6"`
	Mode            Mode         `json:"mode" gorm:"size:8"`
	Status          Status       `json:"status" gorm:"index;size:16"`
	PlayerXID       string       `json:"player_x_id" gorm:"index;size:36"`
	PlayerXUsername string       `json:"player_x_username" gorm:"size:64"`
	PlayerOID       *string      `json:"player_o_id" gorm:"index;size:36"`
	PlayerOUsername string       `json:"player_o_username" gorm:"size:64"`
	Board           engine.Board `json:"board" gorm:"serializer:json"`
	CurrentTurn     engine.Mark  `json:"current_turn" gorm:"size:1"`
	Winner          engine.Mark  `json:"winner" gorm:"size:1"`
	WinningLine     []int        `json:"winning_line" gorm:"serializer:json"`
	IsDraw          bool         `json:"is_draw"`
	Moves           []Move       `json:"moves" gorm:"serializer:json"`
	RematchID       *string      `json:"rematch_id" gorm:"size:36"`
	Version         int          `json:"version"`
	CreatedAt       time.Time    `json:"created_at"`
	CompletedAt     *time.Time   `json:"completed_at"`
}

func (g *Game) IsParticipant(playerID string) bool {
	if g.PlayerXID == playerID {
		return true
	}
	return g.PlayerOID != nil && *g.PlayerOID == playerID
}

// Clone returns a deep copy so callers can mutate freely without aliasing
// a stored document.
func (g *Game) Clone() *Game {
	cp := *g
	cp.Moves = append([]Move(nil), g.Moves...)
	cp.WinningLine = append([]int(nil), g.WinningLine...)
	if g.PlayerOID != nil {
		v := *g.PlayerOID
		cp.PlayerOID = &v
	}
	if g.RematchID != nil {
		v := *g.RematchID
		cp.RematchID = &v
	}
	if g.CompletedAt != nil {
		v := *g.CompletedAt
		cp.CompletedAt = &v
	}
	return &cp
}
