package room

import (
	"crypto/subtle"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/tictactoe/game/protocol"
	"github.com/wricardo/mcp-training/tictactoe/game/session"
)

// Disconnect handles an involuntary departure. The slot keeps the name,
// secret and drop time so the player can reconnect within the grace
// period. A session that is not in a room is ignored.
func (g *Registry) Disconnect(sessionID string) []session.Assignment {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, slot, err := g.lookup(sessionID)
	if err != nil {
		return nil
	}
	other := 1 - slot

	held := r.Game.Running() && r.Game.ClearTurn(slot)
	delete(g.members, sessionID)
	r.Slots[slot].drop(g.now(), held)
	r.clearReplay()

	logger.WithFields(logrus.Fields{"room": r.ID, "player": r.Slots[slot].Name, "held_turn": held}).Info("player disconnected")

	g.sendSlot(r, other, protocol.VerbInfo,
		fmt.Sprintf("Opponent disconnected, reconnect window %ds", int(g.grace/time.Second)))

	out := []session.Assignment{session.ToLobby(sessionID)}
	return g.stamp(append(out, g.settle(r)...))
}

// Reconnect rebinds the first Disconnected slot whose stored name and
// secret both match to the new session, then replays the board to it.
func (g *Registry) Reconnect(name, secret string, m Member) (Info, []session.Assignment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range g.order {
		r := g.rooms[id]
		for slot := range r.Slots {
			s := &r.Slots[slot]
			if s.State != Disconnected || s.Name != name {
				continue
			}
			if subtle.ConstantTimeCompare([]byte(s.Secret), []byte(secret)) != 1 {
				continue
			}
			return g.rebind(r, slot, m)
		}
	}
	return Info{}, nil, ErrNoReconnectSlot
}

// rebind must be called with g.mu held.
func (g *Registry) rebind(r *Room, slot int, m Member) (Info, []session.Assignment, error) {
	s := &r.Slots[slot]
	held := s.HeldTurn
	s.bind(Member{SessionID: m.SessionID, Name: s.Name, Secret: s.Secret})
	g.members[m.SessionID] = r.ID
	if held && r.Game.Running() {
		r.Game.Turn = slot
	}

	other := 1 - slot
	opponent := "Unknown"
	if r.Slots[other].Occupied() {
		opponent = r.Slots[other].Name
	}

	g.send(m.SessionID, protocol.VerbReconnected, strconv.Itoa(r.ID), r.Name)
	g.send(m.SessionID, protocol.VerbStart, "Opponent:"+opponent)
	g.send(m.SessionID, protocol.VerbSymbol, r.Game.MarkFor(slot).String())
	for _, p := range r.Game.Placements() {
		mover := r.Slots[r.Game.SlotFor(p.Mark)].Name
		g.send(m.SessionID, protocol.VerbMove, mover, strconv.Itoa(p.Row), strconv.Itoa(p.Col))
	}
	if r.Game.Running() && r.Game.Turn == slot {
		g.send(m.SessionID, protocol.VerbTurn, yourMove)
	}
	g.sendSlot(r, other, protocol.VerbInfo, "Opponent reconnected")

	var out []session.Assignment
	if r.liveCount() == 2 {
		r.State = Playing
		out = append(out,
			session.ToRoom(r.Slots[0].SessionID, r.ID, session.Playing),
			session.ToRoom(r.Slots[1].SessionID, r.ID, session.Playing),
		)
	} else {
		r.State = Waiting
		out = append(out, session.ToRoom(m.SessionID, r.ID, session.Waiting))
	}

	logger.WithFields(logrus.Fields{"room": r.ID, "player": s.Name, "slot": slot}).Info("player reconnected")
	return r.info(), g.stamp(out), nil
}

// Prune forfeits every Disconnected slot whose grace period has elapsed
// at now. The slot identity is wiped, a Live opponent is awarded the win
// if the round was still running and is sent back to the lobby, and the room is reclaimed. It returns the
// resulting assignments and the number of forfeited slots.
func (g *Registry) Prune(grace time.Duration, now time.Time) ([]session.Assignment, int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []session.Assignment
	pruned := 0

	for _, id := range append([]int(nil), g.order...) {
		r := g.rooms[id]
		for slot := range r.Slots {
			s := &r.Slots[slot]
			if s.State != Disconnected || now.Sub(s.DisconnectedAt) < grace {
				continue
			}
			pruned++
			logger.WithFields(logrus.Fields{"room": r.ID, "player": s.Name, "after": now.Sub(s.DisconnectedAt).Round(time.Second)}).Info("reconnect window expired")
			s.vacate()

			other := 1 - slot
			if o := &r.Slots[other]; o.Live() {
				g.sendSlot(r, other, protocol.VerbInfo, "Opponent forfeited")
				// a concluded round already announced its result
				if r.Game.Running() {
					r.Game.Forfeit(other)
					g.sendSlot(r, other, protocol.VerbWin, you)
				}
				g.sendSlot(r, other, protocol.VerbExited)
				out = append(out, session.ToLobby(o.SessionID))
				g.release(r, other)
			}
		}
		if _, ok := g.rooms[id]; ok && r.liveCount() == 0 {
			g.reclaim(r)
		}
	}
	return g.stamp(out), pruned
}
