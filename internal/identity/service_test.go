package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gridrow/tictactoe-backend/internal/engine"
	"github.com/gridrow/tictactoe-backend/internal/model"
	"github.com/gridrow/tictactoe-backend/internal/store"
)

func newService() (*Service, store.Store) {
	st := store.NewMemory()
	return New(st, zap.NewNop()), st
}

func TestCreateOrGetIsIdempotent(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	p1, err := svc.CreateOrGet(ctx, "  alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", p1.Username)
	assert.NotEmpty(t, p1.ID)

	p2, err := svc.CreateOrGet(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)

	// Usernames are case-sensitive: a different casing is a new player.
	p3, err := svc.CreateOrGet(ctx, "Alice")
	require.NoError(t, err)
	assert.NotEqual(t, p1.ID, p3.ID)

	_, err = svc.CreateOrGet(ctx, "   ")
	assert.ErrorIs(t, err, ErrUsernameRequired)
}

func TestRename(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()

	alice, err := svc.CreateOrGet(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.CreateOrGet(ctx, "bob")
	require.NoError(t, err)

	renamed, err := svc.Rename(ctx, alice.ID, "alicia")
	require.NoError(t, err)
	assert.Equal(t, "alicia", renamed.Username)

	_, err = svc.Rename(ctx, alice.ID, "bob")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	// Renaming to your own current name is allowed.
	_, err = svc.Rename(ctx, alice.ID, "alicia")
	require.NoError(t, err)

	_, err = svc.Rename(ctx, "missing", "zed")
	assert.ErrorIs(t, err, store.ErrNotFound)

	fresh, err := st.GetPlayer(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alicia", fresh.Username)
}

func TestSearchRequiresTwoCharacters(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	_, err := svc.CreateOrGet(ctx, "alice")
	require.NoError(t, err)

	results, err := svc.Search(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = svc.Search(ctx, "AL")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alice", results[0].Username)
}

func completedGame(id string, xID, oID string, winner engine.Mark, draw bool) *model.Game {
	now := time.Now().UTC()
	return &model.Game{
		ID:          id,
		Code:        id,
		Mode:        model.ModeOnline,
		Status:      model.StatusCompleted,
		PlayerXID:   xID,
		PlayerOID:   &oID,
		Winner:      winner,
		IsDraw:      draw,
		Version:     1,
		CreatedAt:   now,
		CompletedAt: &now,
	}
}

func TestStatsAggregation(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()

	alice, err := svc.CreateOrGet(ctx, "alice")
	require.NoError(t, err)
	bob, err := svc.CreateOrGet(ctx, "bob")
	require.NoError(t, err)

	// alice wins as X, loses as O, draws one, wins as O.
	require.NoError(t, st.InsertGame(ctx, completedGame("AAAAAA", alice.ID, bob.ID, engine.MarkX, false)))
	require.NoError(t, st.InsertGame(ctx, completedGame("BBBBBB", bob.ID, alice.ID, engine.MarkX, false)))
	require.NoError(t, st.InsertGame(ctx, completedGame("CCCCCC", alice.ID, bob.ID, engine.Empty, true)))
	require.NoError(t, st.InsertGame(ctx, completedGame("DDDDDD", bob.ID, alice.ID, engine.MarkO, false)))

	stats, err := svc.StatsFor(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stats.Username)
	assert.Equal(t, 4, stats.TotalGames)
	assert.Equal(t, 2, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	assert.Equal(t, 1, stats.Draws)
	assert.Equal(t, 50, stats.WinRate)

	_, err = svc.StatsFor(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStatsEmptyHistory(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	alice, err := svc.CreateOrGet(ctx, "alice")
	require.NoError(t, err)

	stats, err := svc.StatsFor(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalGames)
	assert.Zero(t, stats.WinRate)
}
