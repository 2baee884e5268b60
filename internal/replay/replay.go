// Package replay derives the step-through playback sequence for a game
// from its move log.
package replay

import (
	"errors"
	"fmt"

	"github.com/gridrow/tictactoe-backend/internal/engine"
	"github.com/gridrow/tictactoe-backend/internal/model"
)

// ErrDiverged means the fold of the move log did not reproduce the stored
// board or outcome. The log is canonical, so this indicates a corrupted
// document, never a legitimate state.
var ErrDiverged = errors.New("replay diverged from stored game state")

// Snapshot is the board after Move was applied. Index 0 of a
// reconstruction is the empty board with a nil Move. Snapshots are plain
// values, so any index can be read independently for seek and step
// controls.
type Snapshot struct {
	Board engine.Board `json:"board"`
	Move  *model.Move  `json:"move"`
}

// Reconstruct folds the move log through the engine and returns
// len(moves)+1 snapshots. The final snapshot is checked against the game's
// stored board and outcome.
func Reconstruct(g *model.Game) ([]Snapshot, error) {
	snapshots := make([]Snapshot, 0, len(g.Moves)+1)
	var board engine.Board
	snapshots = append(snapshots, Snapshot{Board: board})

	for i := range g.Moves {
		mv := g.Moves[i]
		next, err := engine.Apply(board, mv.Mark, engine.TurnOf(i), mv.Cell)
		if err != nil {
			return nil, fmt.Errorf("replay move %d: %w", i, err)
		}
		board = next
		snapshots = append(snapshots, Snapshot{Board: board, Move: &mv})
	}

	if board != g.Board {
		return nil, ErrDiverged
	}
	if g.Status == model.StatusCompleted {
		outcome := engine.Evaluate(board)
		if g.IsDraw && outcome.Result != engine.ResultDraw {
			return nil, ErrDiverged
		}
		if g.Winner != engine.Empty &&
			(outcome.Result != engine.ResultWin || outcome.Winner != g.Winner) {
			return nil, ErrDiverged
		}
	}
	return snapshots, nil
}
