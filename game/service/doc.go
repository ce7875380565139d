// Package service provides the protocol dispatcher of the tic-tac-toe server.
//
// The service package implements:
//   - Connection admission and the HELLO greeting
//   - Per-line command interpretation for JOIN, RECONNECT, CREATE, JOINROOM,
//     EXIT, LIST, QUIT, PING, PONG, MOVE and REPLAY
//   - The invalid-input policy: after three counted errors the session is
//     terminated with "Too many invalid messages"
//   - Involuntary disconnect handling for closed, expired and kicked sessions
//   - The liveness probe and grace sweeps driven by the monitor package
//   - Read-only views and statistics for the admin surfaces
//
// Core Interfaces:
//
// GameService is the surface used by transports, the monitor, the REST API
// and the MCP tools. Outbox routes replies to the connection attached to a
// session id; the room registry sends through the same outbox.
//
// Architecture:
//
// The service sits between the transports and the two registries. It never
// holds a lock of its own. Room operations run first and return
// session.Assignment values, which the service applies to the session
// registry once the room lock has been released.
//
// Usage:
//
//	out := outbox.New()
//	sessions := session.NewManager(cfg.MaxClients)
//	rooms := room.NewRegistry(cfg.MaxRooms, cfg.Grace(), out)
//	svc := service.NewGameService(sessions, rooms, out)
//
//	sess, err := svc.Open(ctx, peer, conn.RemoteAddr().String())
//	if err != nil {
//		return // server full, already reported to the peer
//	}
//	defer svc.Close(ctx, sess.ID)
//
//	for scanner.Scan() {
//		if !svc.Handle(ctx, sess.ID, scanner.Text()) {
//			break
//		}
//	}
//
// Error Replies:
//
// Malformed lines, unknown verbs and commands sent in the wrong phase are
// counted against the session. Refusals from the game itself, such as
// "Not your turn" or "Room full", are reported but not counted.
package service
