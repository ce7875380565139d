// Package api provides the admin HTTP API of the tic-tac-toe server.
//
// The api package implements:
//   - Read-only views of rooms, sessions and server statistics
//   - Forced disconnect of a session
//   - Mounting points for the WebSocket gateway and the MCP endpoint
//
// Endpoints:
//
// Health:
//   - GET /health - Liveness check
//
// Rooms:
//   - GET /api/rooms - List active rooms (optional ?state=WAITING|PLAYING)
//   - GET /api/rooms/{id} - Get one room with its board and slots
//
// Sessions:
//   - GET /api/sessions - List connected sessions (optional ?state=LOBBY|WAITING|PLAYING)
//   - DELETE /api/sessions/{id} - Disconnect a session; its room slot stays
//     reserved for the reconnect window
//
// Statistics:
//   - GET /api/stats - Session and room counts, capacities and uptime; also
//     connected WebSocket clients when the /ws handler reports them
//
// ReadOnly wraps the router for public exposure: only GET and HEAD requests
// pass, everything else gets 403.
//
// Usage:
//
//	apiServer := api.NewServer(gameService, hub, mcpHandler)
//	http.ListenAndServe("127.0.0.1:8080", apiServer)
//
// Error Handling:
//
// Errors are returned as JSON with an appropriate HTTP status code:
//
//	{
//	  "error": "room 7: no such room"
//	}
//
// Reconnect secrets are never included in any response.
package api
