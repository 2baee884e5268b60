package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gridrow/tictactoe-backend/internal/model"
)

// memory is a map-backed Store. Documents are deep-copied on the way in
// and out, so callers never alias stored state. Used when no DATABASE_URL
// is configured and in tests.
type memory struct {
	mu      sync.RWMutex
	players map[string]*model.Player
	byName  map[string]string // username -> player id
	games   map[string]*model.Game
	byCode  map[string]string // code -> game id
}

func NewMemory() Store {
	return &memory{
		players: make(map[string]*model.Player),
		byName:  make(map[string]string),
		games:   make(map[string]*model.Game),
		byCode:  make(map[string]string),
	}
}

func (m *memory) InsertPlayer(ctx context.Context, p *model.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[p.Username]; ok {
		return ErrDuplicate
	}
	cp := *p
	m.players[p.ID] = &cp
	m.byName[p.Username] = p.ID
	return nil
}

func (m *memory) GetPlayer(ctx context.Context, id string) (*model.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memory) GetPlayerByUsername(ctx context.Context, username string) (*model.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.players[id]
	return &cp, nil
}

func (m *memory) UpdateUsername(ctx context.Context, id, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return ErrNotFound
	}
	if other, taken := m.byName[username]; taken && other != id {
		return ErrDuplicate
	}
	delete(m.byName, p.Username)
	p.Username = username
	m.byName[username] = id
	for _, g := range m.games {
		if g.PlayerXID == id {
			g.PlayerXUsername = username
		}
		if g.PlayerOID != nil && *g.PlayerOID == id && g.Mode == model.ModeOnline {
			g.PlayerOUsername = username
		}
	}
	return nil
}

func (m *memory) SearchPlayers(ctx context.Context, query string, limit int) ([]*model.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := strings.ToLower(query)
	out := make([]*model.Player, 0)
	for _, p := range m.players {
		if !strings.Contains(strings.ToLower(p.Username), q) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memory) InsertGame(ctx context.Context, g *model.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byCode[g.Code]; ok {
		return ErrDuplicate
	}
	m.games[g.ID] = g.Clone()
	m.byCode[g.Code] = g.ID
	return nil
}

func (m *memory) UpdateGame(ctx context.Context, g *model.Game, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.games[g.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != expectedVersion {
		return ErrStaleWrite
	}
	m.games[g.ID] = g.Clone()
	return nil
}

func (m *memory) GetGame(ctx context.Context, id string) (*model.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (m *memory) GetGameByCode(ctx context.Context, code string) (*model.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return m.games[id].Clone(), nil
}

func (m *memory) ListWaiting(ctx context.Context) ([]*model.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Game, 0)
	for _, g := range m.games {
		if g.Status == model.StatusWaiting && g.Mode == model.ModeOnline {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memory) ListCompletedByPlayer(ctx context.Context, playerID string, limit int) ([]*model.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Game, 0)
	for _, g := range m.games {
		if g.Status != model.StatusCompleted {
			continue
		}
		if g.PlayerXID == playerID || (g.PlayerOID != nil && *g.PlayerOID == playerID) {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return completedAt(out[i]).After(completedAt(out[j]))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func completedAt(g *model.Game) (t time.Time) {
	if g.CompletedAt != nil {
		return *g.CompletedAt
	}
	return g.CreatedAt
}
