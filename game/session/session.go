package session

import "time"

// NoRoom is the RoomID of a session that is not in a room.
const NoRoom = -1

// Thresholds at which a session is forcibly disconnected.
const (
	MaxMissedProbes  = 3
	MaxInvalidInputs = 3
)

// State is the lifecycle state of a session.
type State int

const (
	Lobby State = iota
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
		return "LOBBY"
	}
}

// Session is one connected client. Values handed out by Manager are
// copies; mutate through Manager methods.
type Session struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Secret        string    `json:"-"`
	State         State     `json:"state"`
	RoomID        int       `json:"room_id"`
	Alive         bool      `json:"alive"`
	MissedProbes  int       `json:"missed_probes"`
	InvalidInputs int       `json:"invalid_inputs"`
	RemoteAddr    string    `json:"remote_addr"`
	ConnectedAt   time.Time `json:"connected_at"`
}

// InRoom reports whether the session is associated with a room.
func (s Session) InRoom() bool {
	return s.RoomID != NoRoom
}

// Assignment moves a session to a new lifecycle state. RoomID must be
// NoRoom exactly when State is Lobby.
//
// Seq orders assignments produced by the room registry: Manager.Apply
// ignores one older than the last it applied to the same session. Zero
// means unordered.
type Assignment struct {
	SessionID string
	State     State
	RoomID    int
	Seq       uint64
}

// ToLobby returns the assignment that detaches id from its room.
func ToLobby(id string) Assignment {
	return Assignment{SessionID: id, State: Lobby, RoomID: NoRoom}
}

// ToRoom returns the assignment that places id in room with state st.
func ToRoom(id string, roomID int, st State) Assignment {
	return Assignment{SessionID: id, State: st, RoomID: roomID}
}
