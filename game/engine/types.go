package engine

import "github.com/pkg/errors"

// Size is the width and height of the board.
const Size = 3

// NoSlot marks the absence of a slot, e.g. a cleared turn or no winner.
const NoSlot = -1

// Mark is the content of a single board cell.
type Mark byte

const (
	Empty Mark = iota
	X
	O
)

// String returns the wire form of the mark.
func (m Mark) String() string {
	switch m {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return " "
	}
}

// Outcome is the state of a round.
type Outcome int

const (
	// NotStarted is the outcome of a game that has never been reset.
	NotStarted Outcome = iota
	Running
	Won
	Draw
)

// String returns a human readable outcome name.
func (o Outcome) String() string {
	switch o {
	case Running:
		return "running"
	case Won:
		return "won"
	case Draw:
		return "draw"
	default:
		return "not_started"
	}
}

// Concluded reports whether the round ended with a win or a draw.
func (o Outcome) Concluded() bool {
	return o == Won || o == Draw
}

// Position addresses a cell. Row comes first on the wire.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Valid reports whether the position lies on the board.
func (p Position) Valid() bool {
	return p.Row >= 0 && p.Row < Size && p.Col >= 0 && p.Col < Size
}

// Board is the 3x3 grid, indexed [row][col].
type Board [Size][Size]Mark

// Placement is an occupied cell.
type Placement struct {
	Position
	Mark Mark `json:"mark"`
}

// Move rejections, checked in this order.
var (
	ErrGameNotStarted  = errors.New("game not started")
	ErrGameFinished    = errors.New("game finished")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrInvalidPosition = errors.New("invalid position")
	ErrOccupied        = errors.New("cell occupied")
)
