package engine

// lines lists every winning triple: rows, columns, then both diagonals.
var lines = [8][3]Position{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// Game is one round of tic-tac-toe between slot 0 and slot 1.
//
// Game performs no I/O and is not safe for concurrent use; callers
// serialize access (the room registry holds its lock around every call).
type Game struct {
	Board   Board   `json:"board"`
	Turn    int     `json:"turn"`
	Outcome Outcome `json:"outcome"`
	XSlot   int     `json:"x_slot"`
	Winner  int     `json:"winner"`
	Moves   int     `json:"moves"`
}

// NewGame returns a game that has not been started.
func NewGame() Game {
	return Game{Turn: NoSlot, XSlot: 0, Winner: NoSlot}
}

// Reset clears the board and starts a round. The starting slot plays X
// and moves first.
func (g *Game) Reset(starting int) {
	g.Board = Board{}
	g.Turn = starting
	g.XSlot = starting
	g.Outcome = Running
	g.Winner = NoSlot
	g.Moves = 0
}

// MarkFor returns the mark played by slot.
func (g *Game) MarkFor(slot int) Mark {
	if slot == g.XSlot {
		return X
	}
	return O
}

// SlotFor returns the slot that plays mark m.
func (g *Game) SlotFor(m Mark) int {
	if m == X {
		return g.XSlot
	}
	return 1 - g.XSlot
}

// Running reports whether moves are currently accepted.
func (g *Game) Running() bool {
	return g.Outcome == Running
}

// Move places slot's mark at pos. On success it returns the new outcome;
// on rejection the game is left untouched.
func (g *Game) Move(slot int, pos Position) (Outcome, error) {
	switch g.Outcome {
	case NotStarted:
		return g.Outcome, ErrGameNotStarted
	case Won, Draw:
		return g.Outcome, ErrGameFinished
	}
	if slot != g.Turn {
		return g.Outcome, ErrNotYourTurn
	}
	if !pos.Valid() {
		return g.Outcome, ErrInvalidPosition
	}
	if g.Board[pos.Row][pos.Col] != Empty {
		return g.Outcome, ErrOccupied
	}

	g.Board[pos.Row][pos.Col] = g.MarkFor(slot)
	g.Moves++

	switch Evaluate(g.Board) {
	case Won:
		g.Outcome = Won
		g.Winner = slot
	case Draw:
		g.Outcome = Draw
	default:
		g.Turn = 1 - slot
	}
	return g.Outcome, nil
}

// Forfeit ends a running round in favour of winner.
func (g *Game) Forfeit(winner int) {
	if g.Outcome != Running {
		return
	}
	g.Outcome = Won
	g.Winner = winner
}

// ClearTurn suspends the turn pointer. It reports whether slot held it.
func (g *Game) ClearTurn(slot int) bool {
	if g.Turn != slot {
		return false
	}
	g.Turn = NoSlot
	return true
}

// Placements lists the occupied cells in row-major order.
func (g *Game) Placements() []Placement {
	placed := make([]Placement, 0, g.Moves)
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if m := g.Board[r][c]; m != Empty {
				placed = append(placed, Placement{Position: Position{Row: r, Col: c}, Mark: m})
			}
		}
	}
	return placed
}

// Rows renders the board as three strings, one per row, using X, O and '.'.
func (g *Game) Rows() []string {
	rows := make([]string, Size)
	for r := 0; r < Size; r++ {
		buf := make([]byte, Size)
		for c := 0; c < Size; c++ {
			switch g.Board[r][c] {
			case X:
				buf[c] = 'X'
			case O:
				buf[c] = 'O'
			default:
				buf[c] = '.'
			}
		}
		rows[r] = string(buf)
	}
	return rows
}

// Evaluate returns Won if any line holds three identical marks, Draw if
// the board is full otherwise, and Running in every other case.
func Evaluate(b Board) Outcome {
	for _, line := range lines {
		first := b[line[0].Row][line[0].Col]
		if first == Empty {
			continue
		}
		if b[line[1].Row][line[1].Col] == first && b[line[2].Row][line[2].Col] == first {
			return Won
		}
	}
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b[r][c] == Empty {
				return Running
			}
		}
	}
	return Draw
}
