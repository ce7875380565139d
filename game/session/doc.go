// Package session provides the registry of connected tic-tac-toe clients.
//
// The session package implements:
//   - Capacity-bounded admission of new connections
//   - Session identity: opaque id, display name and reconnect secret
//   - Lifecycle state (Lobby, Waiting, Playing) and room association
//   - Liveness bookkeeping (missed probes) and invalid-input counting
//
// Core Types:
//
// Manager is the registry. Session is a snapshot of one client; the manager
// hands out copies so callers never share mutable state with it.
// Assignment describes a state change produced elsewhere (the room
// registry) and applied through Manager.Apply.
//
// Reconnect Secrets:
//
// Each admitted session receives a 32 character hex secret derived from a
// random UUID. The manager guarantees the secret is unique among registered
// sessions. A session that reconnects into a preserved room slot adopts the
// secret stored in that slot.
//
// Concurrency:
//
// Manager guards its map with its own lock and never calls into another
// registry while holding it. Code that must update both rooms and sessions
// mutates the room registry first, releases that lock, then calls Apply.
//
// Usage:
//
//	sessions := session.NewManager(128)
//
//	s, err := sessions.Admit(conn.RemoteAddr().String())
//	if errors.Is(err, session.ErrServerFull) {
//		// reject the connection
//	}
//
//	sessions.Apply(session.ToRoom(s.ID, roomID, session.Waiting))
//	defer sessions.Remove(s.ID)
package session
