package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/tictactoe/game/protocol"
	"github.com/wricardo/mcp-training/tictactoe/game/room"
	"github.com/wricardo/mcp-training/tictactoe/game/session"
)

// GameService defines every operation the transports, the monitor and the
// admin surfaces perform on the game server.
type GameService interface {
	// Connection lifecycle
	Open(ctx context.Context, peer protocol.Peer, remoteAddr string) (session.Session, error)
	Handle(ctx context.Context, sessionID, line string) bool
	Close(ctx context.Context, sessionID string)

	// Liveness
	Probe(ctx context.Context) ProbeReport
	Prune(ctx context.Context, now time.Time) int
	Expire(ctx context.Context, sessionID string)

	// Admin views
	Rooms(ctx context.Context) []room.Info
	Room(ctx context.Context, id int) (room.Info, error)
	Sessions(ctx context.Context) []session.Session
	Stats(ctx context.Context) Stats
	Kick(ctx context.Context, sessionID string) error
}

// Outbox routes outbound lines to the peer attached to a session id.
// Implementations must never call back into the service or a registry.
type Outbox interface {
	protocol.Notifier
	Attach(sessionID string, peer protocol.Peer)
	Detach(sessionID string)
	// Hangup closes the attached peer so its read loop terminates.
	Hangup(sessionID string)
	// Count returns the number of attached peers.
	Count() int
}
