// Package store owns persistence for players and games. Implementations
// may be backed by memory (this package) or Postgres; the session layer
// relies on UpdateGame being a compare-and-swap on Version.
package store

import (
	"context"
	"errors"

	"github.com/gridrow/tictactoe-backend/internal/model"
)

var ErrNotFound = errors.New("not found")
var ErrStaleWrite = errors.New("stale write")
var ErrDuplicate = errors.New("duplicate key")

type Store interface {
	InsertPlayer(ctx context.Context, p *model.Player) error
	GetPlayer(ctx context.Context, id string) (*model.Player, error)
	GetPlayerByUsername(ctx context.Context, username string) (*model.Player, error)
	// UpdateUsername renames the player and rewrites the cached usernames
	// on every game the player appears in.
	UpdateUsername(ctx context.Context, id, username string) error
	SearchPlayers(ctx context.Context, query string, limit int) ([]*model.Player, error)

	InsertGame(ctx context.Context, g *model.Game) error
	// UpdateGame succeeds only if the stored Version equals expectedVersion;
	// otherwise it returns ErrStaleWrite. g carries the new Version.
	UpdateGame(ctx context.Context, g *model.Game, expectedVersion int) error
	GetGame(ctx context.Context, id string) (*model.Game, error)
	GetGameByCode(ctx context.Context, code string) (*model.Game, error)
	ListWaiting(ctx context.Context) ([]*model.Game, error)
	// ListCompletedByPlayer returns completed games for the player, most
	// recently completed first. limit <= 0 means no limit.
	ListCompletedByPlayer(ctx context.Context, playerID string, limit int) ([]*model.Game, error)
}
