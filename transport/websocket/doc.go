// Package websocket provides a WebSocket gateway for the tic-tac-toe line
// protocol.
//
// The websocket package implements:
//   - Upgrading HTTP requests on /ws to game sessions
//   - Splitting inbound text frames into protocol lines
//   - Coalescing queued outbound lines into text frames
//   - Keepalive pings and connection lifecycle management
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub tracks every
// WebSocket client. Each client runs a read pump that feeds lines to the
// game service and a write pump that drains its send buffer. A Client is a
// protocol.Peer, so the outbox addresses it exactly like a TCP connection.
//
// Message Protocol:
//
// Frames carry the same newline-separated lines as the TCP transport:
//   - Incoming: "##JOIN|alice\n##CREATE|lobby"
//   - Outgoing: "##JOINED|alice\n##SESSION|<secret>\n"
//
// Usage:
//
//	hub := websocket.NewHub(gameService)
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", hub.ServeWS)
//
// Connection Lifecycle:
//
// 1. Client connects and is greeted with HELLO
// 2. Connection registered with hub
// 3. Client sends lines, receives replies and room events
// 4. Disconnection runs the same handling as a dropped TCP connection
//
// Concurrency:
//
// A client that falls behind by more than its send buffer is closed rather
// than allowed to block the room that is notifying it.
package websocket
