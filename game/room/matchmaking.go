package room

import (
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/tictactoe/game/engine"
	"github.com/wricardo/mcp-training/tictactoe/game/protocol"
	"github.com/wricardo/mcp-training/tictactoe/game/session"
)

// Create opens a room with owner as its sole occupant.
func (g *Registry) Create(name string, owner Member) (Info, []session.Assignment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.rooms) >= g.capacity {
		return Info{}, nil, ErrLobbyFull
	}

	r := newRoom(g.nextID, name, owner, g.now())
	g.nextID++
	g.rooms[r.ID] = r
	g.order = append(g.order, r.ID)
	g.members[owner.SessionID] = r.ID

	g.send(owner.SessionID, protocol.VerbCreated, strconv.Itoa(r.ID), r.Name)

	logger.WithFields(logrus.Fields{"room": r.ID, "name": r.Name, "owner": owner.Name}).Info("room created")
	return r.info(), g.stamp([]session.Assignment{session.ToRoom(owner.SessionID, r.ID, session.Waiting)}), nil
}

// Join seats joiner in the free slot of a Waiting room and starts the
// first round. Slot 0 plays X and moves first.
func (g *Registry) Join(id int, joiner Member) (Info, []session.Assignment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[id]
	if !ok {
		return Info{}, nil, ErrNoSuchRoom
	}
	if r.slotOf(joiner.SessionID) >= 0 {
		return Info{}, nil, ErrOwnRoom
	}

	// A decline can leave slot 0 Vacant with the remaining player in slot 1.
	if r.Slots[0].State == Vacant && r.Slots[1].Live() {
		r.Slots[0], r.Slots[1] = r.Slots[1], r.Slots[0]
	}
	if r.State != Waiting || r.Slots[0].Occupied() && r.Slots[1].Occupied() {
		return Info{}, nil, ErrRoomFull
	}

	free := 1
	if !r.Slots[0].Occupied() {
		free = 0
	}
	r.Slots[free].bind(joiner)
	g.members[joiner.SessionID] = r.ID
	other := 1 - free

	r.Starting = 0
	r.Game.Reset(r.Starting)
	r.clearReplay()
	r.State = Playing

	g.send(joiner.SessionID, protocol.VerbJoinedRoom, strconv.Itoa(r.ID), r.Name)
	g.sendSlot(r, free, protocol.VerbStart, "Opponent:"+r.Slots[other].Name)
	g.sendSlot(r, other, protocol.VerbStart, "Opponent:"+joiner.Name)
	g.broadcast(r, protocol.VerbClear)
	g.announceSymbols(r)
	g.sendSlot(r, r.Game.Turn, protocol.VerbTurn, yourMove)

	logger.WithFields(logrus.Fields{"room": r.ID, "x": r.Slots[0].Name, "o": r.Slots[1].Name}).Info("game started")

	return r.info(), g.stamp([]session.Assignment{
		session.ToRoom(r.Slots[0].SessionID, r.ID, session.Playing),
		session.ToRoom(r.Slots[1].SessionID, r.ID, session.Playing),
	}), nil
}

// Leave handles a voluntary exit. The departing identity is not kept; a
// running game is awarded to the remaining player.
func (g *Registry) Leave(sessionID string) ([]session.Assignment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, slot, err := g.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	other := 1 - slot
	running := r.State == Playing && r.Game.Running()
	leaver := r.Slots[slot].Name

	g.release(r, slot)
	g.send(sessionID, protocol.VerbExited)

	if r.Slots[other].Live() {
		g.sendSlot(r, other, protocol.VerbInfo, "Opponent left")
		if running {
			r.Game.Forfeit(other)
			g.sendSlot(r, other, protocol.VerbWin, you)
			logger.WithFields(logrus.Fields{"room": r.ID, "winner": r.Slots[other].Name, "loser": leaver}).Info("game result: opponent left")
		}
	}

	out := []session.Assignment{session.ToLobby(sessionID)}
	return g.stamp(append(out, g.settle(r)...)), nil
}

// Decline handles REPLAY|NO after a round concluded. The decliner leaves
// without keeping its identity and the opponent waits for a new player.
func (g *Registry) Decline(sessionID string) ([]session.Assignment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, slot, err := g.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	if err := replayable(r); err != nil {
		return nil, err
	}
	other := 1 - slot

	g.send(sessionID, protocol.VerbInfo, "You declined replay")
	g.release(r, slot)
	g.send(sessionID, protocol.VerbExited)
	g.sendSlot(r, other, protocol.VerbInfo, "Opponent declined replay")

	out := []session.Assignment{session.ToLobby(sessionID)}
	return g.stamp(append(out, g.settle(r)...)), nil
}

// Confirm handles REPLAY|YES. Once both Live slots confirmed, the starting
// slot flips and a new round begins with the new starter playing X.
func (g *Registry) Confirm(sessionID string) ([]session.Assignment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, slot, err := g.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	if err := replayable(r); err != nil {
		return nil, err
	}

	r.Replay[slot] = true
	g.send(sessionID, protocol.VerbInfo, "Replay confirmed")

	if !(r.Slots[0].Live() && r.Slots[1].Live() && r.Replay[0] && r.Replay[1]) {
		return nil, nil
	}

	r.Starting = 1 - r.Starting
	r.Game.Reset(r.Starting)
	r.clearReplay()
	r.State = Playing

	g.broadcast(r, protocol.VerbRestart)
	g.broadcast(r, protocol.VerbClear)
	g.announceSymbols(r)
	g.sendSlot(r, r.Starting, protocol.VerbTurn, yourMove)

	logger.WithFields(logrus.Fields{"room": r.ID, "starter": r.Slots[r.Starting].Name}).Info("game restarted")

	return g.stamp([]session.Assignment{
		session.ToRoom(r.Slots[0].SessionID, r.ID, session.Playing),
		session.ToRoom(r.Slots[1].SessionID, r.ID, session.Playing),
	}), nil
}

// Move applies a move for the session's slot and broadcasts the result.
// Engine rejections are returned unchanged and nothing is sent.
func (g *Registry) Move(sessionID string, pos engine.Position) (engine.Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, slot, err := g.lookup(sessionID)
	if err != nil {
		return engine.NotStarted, err
	}

	outcome, err := r.Game.Move(slot, pos)
	if err != nil {
		return outcome, err
	}

	mover := r.Slots[slot].Name
	g.broadcast(r, protocol.VerbMove, mover, strconv.Itoa(pos.Row), strconv.Itoa(pos.Col))

	other := 1 - slot
	switch outcome {
	case engine.Won:
		r.clearReplay()
		g.sendSlot(r, slot, protocol.VerbWin, you)
		g.sendSlot(r, other, protocol.VerbLose, mover)
		if !r.Slots[other].Live() {
			g.sendSlot(r, slot, protocol.VerbInfo, "Game ended")
			r.State = Waiting
		}
		g.logResult(r)
	case engine.Draw:
		r.clearReplay()
		g.broadcast(r, protocol.VerbDraw)
		g.logResult(r)
	default:
		g.sendSlot(r, r.Game.Turn, protocol.VerbTurn, yourMove)
	}
	return outcome, nil
}

// replayable reports whether the room's last round concluded.
func replayable(r *Room) error {
	if r.Game.Outcome.Concluded() {
		return nil
	}
	if r.Game.Running() {
		return ErrGameInProgress
	}
	return engine.ErrGameNotStarted
}

func (g *Registry) announceSymbols(r *Room) {
	for i := range r.Slots {
		g.sendSlot(r, i, protocol.VerbSymbol, r.Game.MarkFor(i).String())
	}
}

func (g *Registry) logResult(r *Room) {
	entry := logger.WithFields(logrus.Fields{"room": r.ID, "name": r.Name})
	if r.Game.Outcome == engine.Draw {
		entry.Info("game result: draw")
		return
	}
	w := r.Game.Winner
	entry.WithFields(logrus.Fields{"winner": r.Slots[w].Name, "loser": r.Slots[1-w].Name}).Info("game result")
}
