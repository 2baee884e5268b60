package engine

import "errors"

var ErrIllegalMove = errors.New("illegal move")
var ErrNotYourTurn = errors.New("not your turn")

type Mark string

const (
	MarkX Mark = "X"
	MarkO Mark = "O"
	Empty Mark = ""
)

// Board is the 9-cell grid in row-major order.
type Board [9]Mark

type Result string

const (
	ResultInProgress Result = "in_progress"
	ResultWin        Result = "win"
	ResultDraw       Result = "draw"
)

type Outcome struct {
	Result Result
	Winner Mark
	Line   []int
}

// Lines holds the 8 winning triples. Evaluate scans them in this order,
// so the reported triple is deterministic.
var Lines = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// TurnOf returns the mark expected to act after moveCount moves have been
// played. X always moves first.
func TurnOf(moveCount int) Mark {
	if moveCount%2 == 0 {
		return MarkX
	}
	return MarkO
}

func (m Mark) Opponent() Mark {
	if m == MarkX {
		return MarkO
	}
	return MarkX
}

// Apply places mark at cell and returns the new board. expected is the mark
// whose turn it is; the engine only ever looks at its arguments, so it is
// safe to call concurrently for any number of games.
func Apply(b Board, mark, expected Mark, cell int) (Board, error) {
	if mark != expected {
		return b, ErrNotYourTurn
	}
	if cell < 0 || cell > 8 {
		return b, ErrIllegalMove
	}
	if b[cell] != Empty {
		return b, ErrIllegalMove
	}
	next := b
	next[cell] = mark
	return next, nil
}

// Evaluate reports the terminal state of b. Win is checked before draw, so
// a board-filling move that also completes a line is always a win.
func Evaluate(b Board) Outcome {
	for _, line := range Lines {
		a, c, d := line[0], line[1], line[2]
		if b[a] != Empty && b[a] == b[c] && b[a] == b[d] {
			return Outcome{Result: ResultWin, Winner: b[a], Line: []int{a, c, d}}
		}
	}
	for _, cell := range b {
		if cell == Empty {
			return Outcome{Result: ResultInProgress}
		}
	}
	return Outcome{Result: ResultDraw}
}
