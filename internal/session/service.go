// Package session is the single writer for game documents. Every mutation
// (create, join, move, rematch) goes through Service, which serializes
// access per game, delegates rules to the engine, persists through the
// store's conditional update, and pushes the committed document to the
// notifier before releasing the game's lock, so broadcast order always
// matches commit order.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/gridrow/tictactoe-backend/internal/codes"
	"github.com/gridrow/tictactoe-backend/internal/engine"
	"github.com/gridrow/tictactoe-backend/internal/model"
	"github.com/gridrow/tictactoe-backend/internal/store"
)

var ErrAlreadyFull = errors.New("game already has two players")
var ErrSelfJoin = errors.New("cannot join your own game")
var ErrNotJoinable = errors.New("game cannot be joined")
var ErrNotStarted = errors.New("waiting for opponent")
var ErrGameOver = errors.New("game already completed")
var ErrNotParticipant = errors.New("player is not in this game")
var ErrNotCompleted = errors.New("game is not completed yet")

// Notifier receives committed game documents for fan-out. The hub
// implements it; tests substitute recorders.
type Notifier interface {
	GameUpdated(g *model.Game)
	PlayerJoined(g *model.Game)
	RematchCreated(sourceID string, g *model.Game)
}

type NopNotifier struct{}

func (NopNotifier) GameUpdated(*model.Game)            {}
func (NopNotifier) PlayerJoined(*model.Game)           {}
func (NopNotifier) RematchCreated(string, *model.Game) {}

// maxStaleRetries bounds the internal re-read/re-apply loop on StaleWrite.
// With per-game locks in one process this only trips when several instances
// share a store.
const maxStaleRetries = 3

type Service struct {
	store     store.Store
	codes     *codes.Registry
	locks     *gameLocks
	notify    Notifier
	log       *zap.Logger
	rematches singleflight.Group
}

func New(st store.Store, reg *codes.Registry, n Notifier, log *zap.Logger) *Service {
	if n == nil {
		n = NopNotifier{}
	}
	return &Service{
		store:  st,
		codes:  reg,
		locks:  newGameLocks(),
		notify: n,
		log:    log,
	}
}

// Create starts a new game. Online games open in waiting; local games bind
// both marks to the creator and start immediately.
func (s *Service) Create(ctx context.Context, mode model.Mode, playerID string) (*model.Game, error) {
	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	code, err := s.codes.Allocate(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	g := &model.Game{
		ID:              uuid.NewString(),
		Code:            code,
		Mode:            mode,
		Status:          model.StatusWaiting,
		PlayerXID:       player.ID,
		PlayerXUsername: player.Username,
		CurrentTurn:     engine.MarkX,
		Version:         1,
		CreatedAt:       now,
	}
	if mode == model.ModeLocal {
		oID := player.ID
		g.PlayerOID = &oID
		g.PlayerOUsername = "Player O"
		g.Status = model.StatusInProgress
	}
	if err := s.store.InsertGame(ctx, g); err != nil {
		return nil, err
	}
	s.log.Info("game created",
		zap.String("game_id", g.ID),
		zap.String("code", g.Code),
		zap.String("mode", string(mode)))
	return g, nil
}

// Join binds playerID as O on a waiting online game and starts it.
func (s *Service) Join(ctx context.Context, gameID, playerID string) (*model.Game, error) {
	release, err := s.locks.acquire(ctx, gameID)
	if err != nil {
		return nil, err
	}
	defer release()

	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.Mode != model.ModeOnline {
		return nil, ErrNotJoinable
	}
	if g.PlayerXID == playerID {
		return nil, ErrSelfJoin
	}
	if g.Status != model.StatusWaiting || g.PlayerOID != nil {
		return nil, ErrAlreadyFull
	}
	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}

	oID := player.ID
	g.PlayerOID = &oID
	g.PlayerOUsername = player.Username
	g.Status = model.StatusInProgress
	prev := g.Version
	g.Version++
	if err := s.store.UpdateGame(ctx, g, prev); err != nil {
		return nil, err
	}
	s.log.Info("player joined", zap.String("game_id", g.ID), zap.String("player_id", playerID))
	s.notify.PlayerJoined(g.Clone())
	return g, nil
}

// JoinByCode resolves code through the registry and joins the game.
func (s *Service) JoinByCode(ctx context.Context, code, playerID string) (*model.Game, error) {
	g, err := s.codes.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.Join(ctx, g.ID, playerID)
}

// Move applies one move for playerID. The whole read-validate-apply-persist
// cycle runs under the game's lock; StaleWrite from the store is retried a
// bounded number of times since it only signals benign contention.
func (s *Service) Move(ctx context.Context, gameID, playerID string, cell int) (*model.Game, error) {
	release, err := s.locks.acquire(ctx, gameID)
	if err != nil {
		return nil, err
	}
	defer release()

	for attempt := 0; ; attempt++ {
		g, err := s.store.GetGame(ctx, gameID)
		if err != nil {
			return nil, err
		}
		switch g.Status {
		case model.StatusCompleted:
			return nil, ErrGameOver
		case model.StatusWaiting:
			return nil, ErrNotStarted
		}

		mark, err := actingMark(g, playerID)
		if err != nil {
			return nil, err
		}
		expected := engine.TurnOf(len(g.Moves))
		board, err := engine.Apply(g.Board, mark, expected, cell)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		g.Board = board
		g.Moves = append(g.Moves, model.Move{PlayerID: playerID, Mark: mark, Cell: cell, PlayedAt: now})

		switch outcome := engine.Evaluate(board); outcome.Result {
		case engine.ResultWin:
			g.Status = model.StatusCompleted
			g.Winner = outcome.Winner
			g.WinningLine = outcome.Line
			g.CompletedAt = &now
		case engine.ResultDraw:
			g.Status = model.StatusCompleted
			g.IsDraw = true
			g.CompletedAt = &now
		default:
			g.CurrentTurn = engine.TurnOf(len(g.Moves))
		}

		prev := g.Version
		g.Version++
		err = s.store.UpdateGame(ctx, g, prev)
		if errors.Is(err, store.ErrStaleWrite) {
			if attempt+1 >= maxStaleRetries {
				return nil, err
			}
			s.log.Warn("stale write on move, retrying",
				zap.String("game_id", gameID), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}
		s.notify.GameUpdated(g.Clone())
		return g, nil
	}
}

// Rematch creates the successor of a completed game with marks swapped and
// links it from the source exactly once. Concurrent requests from both
// participants collapse to a single creation.
func (s *Service) Rematch(ctx context.Context, gameID, playerID string, mode model.Mode) (*model.Game, error) {
	v, err, _ := s.rematches.Do(gameID, func() (any, error) {
		// The shared call must outlive the first caller's deadline, or a
		// cancellation would fail every piggybacked caller with it.
		return s.rematch(context.WithoutCancel(ctx), gameID, playerID, mode)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Game), nil
}

func (s *Service) rematch(ctx context.Context, gameID, playerID string, mode model.Mode) (*model.Game, error) {
	release, err := s.locks.acquire(ctx, gameID)
	if err != nil {
		return nil, err
	}
	defer release()

	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.Status != model.StatusCompleted {
		return nil, ErrNotCompleted
	}
	if !g.IsParticipant(playerID) {
		return nil, ErrNotParticipant
	}
	if g.RematchID != nil {
		return s.store.GetGame(ctx, *g.RematchID)
	}
	if mode == "" {
		mode = g.Mode
	}

	code, err := s.codes.Allocate(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	next := &model.Game{
		ID:          uuid.NewString(),
		Code:        code,
		Mode:        mode,
		Status:      model.StatusInProgress,
		CurrentTurn: engine.MarkX,
		Version:     1,
		CreatedAt:   now,
	}
	if mode == model.ModeLocal {
		// Single-controller game: the requester's name stays on X and the
		// O slot keeps its placeholder.
		next.PlayerXID = playerID
		next.PlayerXUsername = usernameOf(g, playerID)
		oID := playerID
		next.PlayerOID = &oID
		next.PlayerOUsername = "Player O"
	} else {
		// Previous O opens the rematch as X.
		xID := g.PlayerXID
		next.PlayerOID = &xID
		next.PlayerOUsername = g.PlayerXUsername
		if g.PlayerOID != nil {
			next.PlayerXID = *g.PlayerOID
			next.PlayerXUsername = g.PlayerOUsername
		} else {
			next.PlayerXID = g.PlayerXID
			next.PlayerXUsername = g.PlayerXUsername
		}
	}
	if err := s.store.InsertGame(ctx, next); err != nil {
		return nil, err
	}

	prev := g.Version
	g.RematchID = &next.ID
	g.Version++
	if err := s.store.UpdateGame(ctx, g, prev); err != nil {
		return nil, err
	}
	s.log.Info("rematch created",
		zap.String("source_game_id", g.ID), zap.String("game_id", next.ID))
	s.notify.RematchCreated(g.ID, next.Clone())
	return next, nil
}

func usernameOf(g *model.Game, playerID string) string {
	if g.PlayerXID == playerID {
		return g.PlayerXUsername
	}
	return g.PlayerOUsername
}

func actingMark(g *model.Game, playerID string) (engine.Mark, error) {
	if g.Mode == model.ModeLocal {
		if g.PlayerXID != playerID {
			return "", ErrNotParticipant
		}
		// The controlling participant plays both marks in turn.
		return engine.TurnOf(len(g.Moves)), nil
	}
	if g.PlayerXID == playerID {
		return engine.MarkX, nil
	}
	if g.PlayerOID != nil && *g.PlayerOID == playerID {
		return engine.MarkO, nil
	}
	return "", ErrNotParticipant
}

// Get returns the game by id.
func (s *Service) Get(ctx context.Context, gameID string) (*model.Game, error) {
	return s.store.GetGame(ctx, gameID)
}

// GetByCode returns the game bound to a join code.
func (s *Service) GetByCode(ctx context.Context, code string) (*model.Game, error) {
	return s.codes.Resolve(ctx, code)
}

// ListWaiting returns online games still waiting for a second participant.
func (s *Service) ListWaiting(ctx context.Context) ([]*model.Game, error) {
	return s.store.ListWaiting(ctx)
}

// History returns a participant's completed games, most recent first.
func (s *Service) History(ctx context.Context, playerID string, limit int) ([]*model.Game, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.ListCompletedByPlayer(ctx, playerID, limit)
}
