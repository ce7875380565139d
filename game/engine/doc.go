// Package engine provides the board logic for tic-tac-toe rounds.
//
// The engine package implements:
//   - A 3x3 board of X, O and empty cells
//   - Move validation (round running, mover's turn, bounds, empty cell)
//   - Win detection over rows, columns and both diagonals
//   - Draw detection on a full board
//   - Turn hand-over between the two slots of a room
//
// Core Types:
//
// Game holds the board, the slot whose turn it is, the round outcome and the
// slot that plays X. Slots are the integers 0 and 1; the engine never knows
// who occupies them. Evaluate is the stateless outcome check used by Game.
//
// Usage:
//
//	g := engine.NewGame()
//	g.Reset(0) // slot 0 plays X and moves first
//
//	outcome, err := g.Move(0, engine.Position{Row: 1, Col: 1})
//	if err != nil {
//		// engine.ErrNotYourTurn, engine.ErrOccupied, ...
//	}
//
// Rejected moves leave the game untouched. The engine performs no I/O;
// callers decide what to broadcast based on the returned outcome.
package engine
