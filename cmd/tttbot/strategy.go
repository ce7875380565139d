package main

import (
	"github.com/wricardo/mcp-training/tictactoe/game/engine"
)

// preference orders the cells tried when no line is decisive: centre,
// corners, then edges.
var preference = []engine.Position{
	{Row: 1, Col: 1},
	{Row: 0, Col: 0}, {Row: 0, Col: 2}, {Row: 2, Col: 0}, {Row: 2, Col: 2},
	{Row: 0, Col: 1}, {Row: 1, Col: 0}, {Row: 1, Col: 2}, {Row: 2, Col: 1},
}

// NextMove picks a cell for mark: a winning cell first, then a cell that
// blocks the opponent's win, then the first free cell by preference.
// It returns false on a full board.
func NextMove(board engine.Board, mark engine.Mark) (engine.Position, bool) {
	if pos, ok := completing(board, mark); ok {
		return pos, true
	}
	if pos, ok := completing(board, opponent(mark)); ok {
		return pos, true
	}
	for _, pos := range preference {
		if board[pos.Row][pos.Col] == engine.Empty {
			return pos, true
		}
	}
	return engine.Position{}, false
}

// completing returns a free cell that gives mark three in a line.
func completing(board engine.Board, mark engine.Mark) (engine.Position, bool) {
	for _, pos := range preference {
		if board[pos.Row][pos.Col] != engine.Empty {
			continue
		}
		next := board
		next[pos.Row][pos.Col] = mark
		if engine.Evaluate(next) == engine.Won {
			return pos, true
		}
	}
	return engine.Position{}, false
}

func opponent(mark engine.Mark) engine.Mark {
	if mark == engine.X {
		return engine.O
	}
	return engine.X
}
