// Package identity resolves participants from bare usernames. There is no
// credential check: claiming a username that already exists returns the
// existing player.
package identity

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridrow/tictactoe-backend/internal/engine"
	"github.com/gridrow/tictactoe-backend/internal/model"
	"github.com/gridrow/tictactoe-backend/internal/store"
)

var ErrUsernameRequired = errors.New("username is required")
var ErrUsernameTaken = errors.New("username already taken")

type Stats struct {
	Username   string `json:"username"`
	TotalGames int    `json:"total_games"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
	Draws      int    `json:"draws"`
	WinRate    int    `json:"win_rate"`
}

type Service struct {
	store store.Store
	log   *zap.Logger
}

func New(st store.Store, log *zap.Logger) *Service {
	return &Service{store: st, log: log}
}

// CreateOrGet claims username, returning the existing player if it is
// already taken. Usernames are case-sensitive.
func (s *Service) CreateOrGet(ctx context.Context, username string) (*model.Player, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if p, err := s.store.GetPlayerByUsername(ctx, username); err == nil {
		return p, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	p := &model.Player{ID: uuid.NewString(), Username: username, CreatedAt: time.Now().UTC()}
	err := s.store.InsertPlayer(ctx, p)
	if errors.Is(err, store.ErrDuplicate) {
		// Lost the claim race to a concurrent first login.
		return s.store.GetPlayerByUsername(ctx, username)
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("player created", zap.String("player_id", p.ID), zap.String("username", username))
	return p, nil
}

func (s *Service) Get(ctx context.Context, playerID string) (*model.Player, error) {
	return s.store.GetPlayer(ctx, playerID)
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*model.Player, error) {
	return s.store.GetPlayerByUsername(ctx, strings.TrimSpace(username))
}

// Rename changes the player's username and cascades the cached usernames
// on their games.
func (s *Service) Rename(ctx context.Context, playerID, username string) (*model.Player, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if existing, err := s.store.GetPlayerByUsername(ctx, username); err == nil && existing.ID != playerID {
		return nil, ErrUsernameTaken
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateUsername(ctx, playerID, username); err != nil {
		return nil, err
	}
	p.Username = username
	return p, nil
}

// Search finds players whose username contains query, case-insensitively.
// Queries shorter than 2 characters return no results.
func (s *Service) Search(ctx context.Context, query string) ([]*model.Player, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []*model.Player{}, nil
	}
	return s.store.SearchPlayers(ctx, query, 20)
}

// StatsFor aggregates outcomes over the player's completed games.
func (s *Service) StatsFor(ctx context.Context, playerID string) (*Stats, error) {
	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	games, err := s.store.ListCompletedByPlayer(ctx, playerID, 0)
	if err != nil {
		return nil, err
	}

	st := &Stats{Username: p.Username, TotalGames: len(games)}
	for _, g := range games {
		if g.IsDraw {
			st.Draws++
			continue
		}
		asX := g.PlayerXID == playerID
		if (g.Winner == engine.MarkX && asX) || (g.Winner == engine.MarkO && !asX) {
			st.Wins++
		}
	}
	st.Losses = st.TotalGames - st.Wins - st.Draws
	if st.TotalGames > 0 {
		st.WinRate = int(math.Round(float64(st.Wins) / float64(st.TotalGames) * 100))
	}
	return st, nil
}
