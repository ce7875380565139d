package service

import "time"

// Stats is a point-in-time summary of the server.
type Stats struct {
	Sessions        int `json:"sessions"`
	Connections     int `json:"connections"`
	SessionCapacity int `json:"session_capacity"`
	Named           int `json:"named"`
	Rooms           int `json:"rooms"`
	RoomCapacity    int `json:"room_capacity"`
	WaitingRooms    int `json:"waiting_rooms"`
	PlayingRooms    int `json:"playing_rooms"`
	Disconnected    int `json:"disconnected_slots"`
	GraceSeconds    int `json:"grace_seconds"`

	// Filled in by the admin API from its WebSocket gateway.
	WebSocketClients int `json:"websocket_clients"`

	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

// ProbeReport is the outcome of one liveness sweep.
type ProbeReport struct {
	Probed  int      `json:"probed"`
	Expired []string `json:"expired,omitempty"`
}
