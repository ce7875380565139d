// Package mcp provides the Model Context Protocol interface to the admin API.
//
// The mcp package implements:
//   - An MCP server for AI agents that observe and moderate the game server
//   - Tool definitions backed by the admin REST API
//   - An HTTP handler for the /mcp endpoint; stdio is served by the caller
//
// MCP Tools:
//   - server_stats: Session and room counts, capacities and uptime
//   - list_rooms: Active rooms, optionally filtered by state
//   - get_room: One room with its slots and an ASCII board
//   - list_sessions: Connected sessions, optionally filtered by state
//   - kick_session: Disconnect a session; its room slot stays reserved
//   - protocol_reference: The client line protocol
//
// Every tool is a thin proxy: the client issues a REST call against the
// admin API and formats the JSON answer as text. API errors are returned as
// tool errors, never as Go errors.
//
// Usage:
//
//	client := mcp.NewClient("http://127.0.0.1:8080")
//
//	// Stdio mode
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode
//	router.Handle("/mcp", client).Methods("POST")
package mcp
