package room

import (
	"time"

	"github.com/wricardo/mcp-training/tictactoe/game/engine"
)

// State is the lifecycle state of a room.
type State int

const (
	Empty State = iota
	Waiting
	Playing
)

// String returns the upper-case wire name of the state.
func (s State) String() string {
	switch s {
	case Waiting:
		return "WAITING"
	case Playing:
		return "PLAYING"
	default:
		return "EMPTY"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SlotState tells whether a slot is held by a connected session, reserved
// for a reconnect, or free.
type SlotState int

const (
	Vacant SlotState = iota
	Live
	Disconnected
)

// String returns a lower-case slot state name.
func (s SlotState) String() string {
	switch s {
	case Live:
		return "live"
	case Disconnected:
		return "disconnected"
	default:
		return "vacant"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s SlotState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Member identifies the session taking a slot.
type Member struct {
	SessionID string
	Name      string
	Secret    string
}

// Slot is one of the two player positions of a room.
//
// A Live slot carries the session id plus the identity used for reconnect.
// A Disconnected slot keeps the identity and the time of the drop, with
// SessionID cleared. A Vacant slot is the zero value.
type Slot struct {
	State          SlotState
	SessionID      string
	Name           string
	Secret         string
	DisconnectedAt time.Time
	// HeldTurn records that the turn was suspended when the slot dropped.
	HeldTurn bool
}

// Live reports whether a connected session holds the slot.
func (s *Slot) Live() bool { return s.State == Live }

// Occupied reports whether the slot is Live or Disconnected.
func (s *Slot) Occupied() bool { return s.State != Vacant }

func (s *Slot) bind(m Member) {
	*s = Slot{State: Live, SessionID: m.SessionID, Name: m.Name, Secret: m.Secret}
}

func (s *Slot) drop(at time.Time, heldTurn bool) {
	s.State = Disconnected
	s.SessionID = ""
	s.DisconnectedAt = at
	s.HeldTurn = heldTurn
}

func (s *Slot) vacate() {
	*s = Slot{}
}

// Room is one match between two slots.
type Room struct {
	ID        int
	Name      string
	State     State
	Slots     [2]Slot
	Game      engine.Game
	Replay    [2]bool
	Starting  int
	CreatedAt time.Time
}

func newRoom(id int, name string, owner Member, now time.Time) *Room {
	r := &Room{
		ID:        id,
		Name:      name,
		State:     Waiting,
		Game:      engine.NewGame(),
		CreatedAt: now,
	}
	r.Slots[0].bind(owner)
	return r
}

// slotOf returns the index of the Live slot held by sessionID, or -1.
func (r *Room) slotOf(sessionID string) int {
	for i := range r.Slots {
		if r.Slots[i].Live() && r.Slots[i].SessionID == sessionID {
			return i
		}
	}
	return -1
}

// liveCount returns the number of Live slots.
func (r *Room) liveCount() int {
	n := 0
	for i := range r.Slots {
		if r.Slots[i].Live() {
			n++
		}
	}
	return n
}

// occupiedCount returns the number of Live or Disconnected slots.
func (r *Room) occupiedCount() int {
	n := 0
	for i := range r.Slots {
		if r.Slots[i].Occupied() {
			n++
		}
	}
	return n
}

func (r *Room) clearReplay() {
	r.Replay = [2]bool{}
}

// SlotInfo is the public view of a slot. Secrets are never exposed.
type SlotInfo struct {
	State          SlotState  `json:"state"`
	Name           string     `json:"name,omitempty"`
	SessionID      string     `json:"session_id,omitempty"`
	Mark           string     `json:"mark,omitempty"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
}

// Info is a point-in-time snapshot of a room.
type Info struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	State     State       `json:"state"`
	Occupied  int         `json:"occupied"`
	Slots     [2]SlotInfo `json:"slots"`
	Board     []string    `json:"board"`
	Outcome   string      `json:"outcome"`
	Turn      string      `json:"turn,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

func (r *Room) info() Info {
	info := Info{
		ID:        r.ID,
		Name:      r.Name,
		State:     r.State,
		Occupied:  r.occupiedCount(),
		Board:     r.Game.Rows(),
		Outcome:   r.Game.Outcome.String(),
		CreatedAt: r.CreatedAt,
	}
	for i := range r.Slots {
		s := r.Slots[i]
		si := SlotInfo{State: s.State, Name: s.Name, SessionID: s.SessionID}
		if s.Occupied() && r.Game.Outcome != engine.NotStarted {
			si.Mark = r.Game.MarkFor(i).String()
		}
		if s.State == Disconnected {
			at := s.DisconnectedAt
			si.DisconnectedAt = &at
		}
		info.Slots[i] = si
	}
	if t := r.Game.Turn; r.Game.Running() && t != engine.NoSlot {
		info.Turn = r.Slots[t].Name
	}
	return info
}
