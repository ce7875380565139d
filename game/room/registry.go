package room

import (
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/tictactoe/game/protocol"
	"github.com/wricardo/mcp-training/tictactoe/game/session"
)

var (
	ErrLobbyFull       = errors.New("lobby full")
	ErrNoSuchRoom      = errors.New("no such room")
	ErrOwnRoom         = errors.New("cannot join your own room")
	ErrRoomFull        = errors.New("room full")
	ErrNotInRoom       = errors.New("not in room")
	ErrNoReconnectSlot = errors.New("no reconnect slot")
	ErrGameInProgress  = errors.New("game in progress")
)

// Fixed reply texts.
const (
	yourMove = "Your move"
	you      = "You"
)

var logger = logrus.WithField("component", "room")

// Registry is the bounded collection of active rooms.
//
// Every exported operation runs under the registry lock and emits its
// notifications through the Notifier before releasing it, so the two
// players of a room observe each event as one unit. Operations never touch
// the session registry; they return session.Assignment values for the
// caller to apply once the lock is released.
type Registry struct {
	mu       sync.Mutex
	rooms    map[int]*Room
	order    []int
	members  map[string]int
	nextID   int
	seq      uint64
	capacity int
	grace    time.Duration
	notifier protocol.Notifier
	now      func() time.Time
}

// NewRegistry creates a registry holding at most capacity rooms. grace is
// only used to tell the remaining player how long a dropped opponent may
// take to come back; expiry itself is driven by Prune.
func NewRegistry(capacity int, grace time.Duration, notifier protocol.Notifier) *Registry {
	return &Registry{
		rooms:    make(map[int]*Room),
		members:  make(map[string]int),
		capacity: capacity,
		grace:    grace,
		notifier: notifier,
		now:      time.Now,
	}
}

// List returns snapshots of the active rooms in creation order.
func (g *Registry) List() []Info {
	g.mu.Lock()
	defer g.mu.Unlock()

	return lo.Map(g.order, func(id int, _ int) Info { return g.rooms[id].info() })
}

// Get returns a snapshot of one room.
func (g *Registry) Get(id int) (Info, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[id]
	if !ok {
		return Info{}, ErrNoSuchRoom
	}
	return r.info(), nil
}

// Count returns the number of active rooms.
func (g *Registry) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Capacity returns the maximum number of active rooms.
func (g *Registry) Capacity() int {
	return g.capacity
}

// Grace returns the reconnect window announced to players.
func (g *Registry) Grace() time.Duration {
	return g.grace
}

// SecretReserved reports whether a Disconnected slot holds secret.
func (g *Registry) SecretReserved(secret string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, r := range g.rooms {
		for i := range r.Slots {
			if s := &r.Slots[i]; s.State == Disconnected && s.Secret == secret {
				return true
			}
		}
	}
	return false
}

// Listing renders the ROOMS reply: the room count followed by id, name,
// state and occupancy for each room.
func (g *Registry) Listing() protocol.Message {
	g.mu.Lock()
	defer g.mu.Unlock()

	args := []string{strconv.Itoa(len(g.order))}
	for _, id := range g.order {
		r := g.rooms[id]
		args = append(args,
			strconv.Itoa(r.ID),
			r.Name,
			r.State.String(),
			strconv.Itoa(r.occupiedCount())+"/2",
		)
	}
	return protocol.New(protocol.VerbRooms, args...)
}

// lookup returns the room and slot held by a Live session.
func (g *Registry) lookup(sessionID string) (*Room, int, error) {
	id, ok := g.members[sessionID]
	if !ok {
		return nil, -1, ErrNotInRoom
	}
	r, ok := g.rooms[id]
	if !ok {
		delete(g.members, sessionID)
		return nil, -1, ErrNotInRoom
	}
	slot := r.slotOf(sessionID)
	if slot < 0 {
		delete(g.members, sessionID)
		return nil, -1, ErrNotInRoom
	}
	return r, slot, nil
}

// send delivers a message to a session id.
func (g *Registry) send(sessionID, verb string, args ...string) {
	if sessionID == "" {
		return
	}
	g.notifier.Notify(sessionID, protocol.New(verb, args...))
}

// sendSlot delivers a message to a slot if a session holds it.
func (g *Registry) sendSlot(r *Room, slot int, verb string, args ...string) {
	if s := &r.Slots[slot]; s.Live() {
		g.send(s.SessionID, verb, args...)
	}
}

// broadcast delivers a message to every Live slot of the room.
func (g *Registry) broadcast(r *Room, verb string, args ...string) {
	for i := range r.Slots {
		g.sendSlot(r, i, verb, args...)
	}
}

// release vacates a Live slot and forgets its membership.
func (g *Registry) release(r *Room, slot int) {
	delete(g.members, r.Slots[slot].SessionID)
	r.Slots[slot].vacate()
	r.clearReplay()
}

// settle demotes a room with a single Live occupant to Waiting and
// reclaims a room without one. It returns the assignments for the
// remaining occupant, if any.
func (g *Registry) settle(r *Room) []session.Assignment {
	if r.liveCount() == 0 {
		g.reclaim(r)
		return nil
	}
	var out []session.Assignment
	if r.liveCount() == 1 {
		r.State = Waiting
		for i := range r.Slots {
			if r.Slots[i].Live() {
				out = append(out, session.ToRoom(r.Slots[i].SessionID, r.ID, session.Waiting))
			}
		}
	}
	return out
}

// stamp tags the assignments of one operation with the next sequence
// number. It must be called with g.mu held.
func (g *Registry) stamp(out []session.Assignment) []session.Assignment {
	if len(out) == 0 {
		return out
	}
	g.seq++
	for i := range out {
		out[i].Seq = g.seq
	}
	return out
}

// reclaim removes the room. Its id is never handed out again.
func (g *Registry) reclaim(r *Room) {
	for i := range r.Slots {
		if r.Slots[i].Live() {
			delete(g.members, r.Slots[i].SessionID)
		}
		r.Slots[i].vacate()
	}
	r.State = Empty
	delete(g.rooms, r.ID)
	g.order = lo.Without(g.order, r.ID)

	logger.WithFields(logrus.Fields{"room": r.ID, "name": r.Name, "active": len(g.rooms)}).Info("room reclaimed")
}
