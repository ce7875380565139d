package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/tictactoe/game/service"
)

var logger = logrus.WithField("component", "mcp")

// Client is a thin MCP client that proxies to the admin REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the admin REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Tic-Tac-Toe Server Admin",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Tic-Tac-Toe Server - MCP Admin Interface

This is a thin client that proxies all requests to the admin REST API.
Players connect over TCP (or WebSocket) and speak a line protocol; these
tools observe and moderate the running server.

AVAILABLE TOOLS:
- server_stats: Session and room counts, capacities, uptime
- list_rooms: Active rooms, optionally filtered by state (WAITING/PLAYING)
- get_room: One room with its board, slots and whose turn it is
- list_sessions: Connected sessions, optionally filtered by state
- kick_session: Disconnect a session; its room slot stays reserved for the reconnect window
- protocol_reference: The client wire protocol`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Get server statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleStats)

	// Rooms
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List active rooms",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"state": map[string]interface{}{
					"type":        "string",
					"description": "Only rooms in this state (WAITING or PLAYING)",
					"enum":        []string{"WAITING", "PLAYING"},
				},
			},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "Get a room with its board",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "number",
					"description": "Room id as shown by list_rooms",
				},
			},
			Required: []string{"room_id"},
		},
	}, c.handleGetRoom)

	// Sessions
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List connected sessions",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"state": map[string]interface{}{
					"type":        "string",
					"description": "Only sessions in this state (LOBBY, WAITING or PLAYING)",
					"enum":        []string{"LOBBY", "WAITING", "PLAYING"},
				},
			},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "kick_session",
		Description: "Disconnect a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID to disconnect",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleKickSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "protocol_reference",
		Description: "Get the client wire protocol reference",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleProtocolReference)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// ServeHTTP answers one JSON-RPC message posted to the MCP endpoint.
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	response := c.mcpServer.HandleMessage(r.Context(), body)

	w.Header().Set("Content-Type", "application/json")
	if response == nil {
		// Notifications carry no response
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.WithError(err).Warn("failed to encode mcp response")
	}
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return errors.New(msg)
		}
		return errors.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// Tool handlers

func (c *Client) handleStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats service.Stats
	if err := c.apiCall(ctx, "GET", "/api/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatStats(stats)), nil
}

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/api/rooms"
	if state, _ := arguments(request)["state"].(string); state != "" {
		path += "?state=" + strings.ToUpper(state)
	}

	var response struct {
		Total int        `json:"total"`
		Rooms []roomView `json:"rooms"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Rooms (%d):\n\n", response.Total)
	for _, r := range response.Rooms {
		result += fmt.Sprintf("- #%d %s [%s] %d/2 players\n", r.ID, r.Name, r.State, r.Occupied)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := arguments(request)["room_id"].(float64)
	if !ok {
		return mcp.NewToolResultError("room_id is required"), nil
	}

	var r roomView
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/rooms/%d", int(id)), nil, &r); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRoom(r)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/api/sessions"
	if state, _ := arguments(request)["state"].(string); state != "" {
		path += "?state=" + strings.ToUpper(state)
	}

	var response struct {
		Total    int           `json:"total"`
		Sessions []sessionView `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Connected Sessions (%d):\n\n", response.Total)
	for _, s := range response.Sessions {
		name := lo.Ternary(s.Name == "", "(unnamed)", s.Name)
		line := fmt.Sprintf("- %s %s [%s]", s.ID, name, s.State)
		if s.RoomID > 0 {
			line += fmt.Sprintf(" room #%d", s.RoomID)
		}
		result += fmt.Sprintf("%s from %s since %s\n", line, s.RemoteAddr, s.ConnectedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleKickSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	var response map[string]string
	if err := c.apiCall(ctx, "DELETE", "/api/sessions/"+sessionID, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	logger.WithField("session", sessionID).Info("session kicked via mcp")
	return mcp.NewToolResultText(response["message"]), nil
}

func (c *Client) handleProtocolReference(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(protocolReference), nil
}

const protocolReference = `Tic-Tac-Toe Line Protocol

Every message is one line: ##VERB|arg1|arg2...
Verbs are case-insensitive. Inbound lines are limited to 512 bytes.
On connect the server sends HELLO.

LOBBY:
• JOIN|<name>               → JOINED|<name>, SESSION|<secret>
• RECONNECT|<name>|<secret> → RECONNECTED|<room_id>|<room_name>, START, SYMBOL,
                              one MOVE per placed mark, TURN if it is your move
• LIST                      → ROOMS|<count>|<id>|<name>|<state>|<n>/2...
• CREATE|<room_name>        → CREATED|<room_id>|<room_name>
• JOINROOM|<room_id>        → JOINEDROOM|<room_id>|<room_name>

GAME:
• START|Opponent:<name>, CLEAR, SYMBOL|X or SYMBOL|O, TURN|Your move
• MOVE|<row>|<col>          Rows and columns are 0..2
                            Both players receive MOVE|<name>|<row>|<col>
• WIN|You, LOSE|<winner>, DRAW
• REPLAY|YES or REPLAY|NO   After a finished round; RESTART when both agree
• EXIT                      → EXITED; leaving a running game forfeits it

ANY TIME:
• PING → PONG, PONG answers a server PING, QUIT → BYE

ERRORS:
ERROR|<text>. Three malformed or out-of-place messages end the connection
with ERROR|Too many invalid messages.

DISCONNECTS:
A dropped player keeps the room slot for the reconnect window. The opponent
sees INFO|Opponent disconnected and wins by forfeit when the window ends.`

// Views decoded from the admin API

type slotView struct {
	State string `json:"state"`
	Name  string `json:"name"`
	Mark  string `json:"mark"`
}

type roomView struct {
	ID       int         `json:"id"`
	Name     string      `json:"name"`
	State    string      `json:"state"`
	Occupied int         `json:"occupied"`
	Slots    [2]slotView `json:"slots"`
	Board    []string    `json:"board"`
	Outcome  string      `json:"outcome"`
	Turn     string      `json:"turn"`
}

type sessionView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	State       string    `json:"state"`
	RoomID      int       `json:"room_id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Formatting helpers

func formatStats(s service.Stats) string {
	var b strings.Builder
	b.WriteString("📊 Server Statistics\n\n")
	fmt.Fprintf(&b, "Sessions: %d/%d (%d named)\n", s.Sessions, s.SessionCapacity, s.Named)
	fmt.Fprintf(&b, "Connections: %d (%d WebSocket)\n", s.Connections, s.WebSocketClients)
	fmt.Fprintf(&b, "Rooms: %d/%d (%d waiting, %d playing)\n", s.Rooms, s.RoomCapacity, s.WaitingRooms, s.PlayingRooms)
	fmt.Fprintf(&b, "Reserved slots: %d (grace %ds)\n", s.Disconnected, s.GraceSeconds)
	fmt.Fprintf(&b, "Uptime: %s\n", s.Uptime)
	return b.String()
}

func formatRoom(r roomView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room #%d %q [%s]\n\n", r.ID, r.Name, r.State)

	for i, slot := range r.Slots {
		name := lo.Ternary(slot.Name == "", "-", slot.Name)
		mark := lo.Ternary(slot.Mark == "", "?", slot.Mark)
		fmt.Fprintf(&b, "Player %d: %s (%s) %s\n", i+1, name, mark, slot.State)
	}

	if len(r.Board) > 0 {
		b.WriteString("\n")
		b.WriteString(formatBoard(r.Board))
	}

	switch {
	case r.Turn != "":
		fmt.Fprintf(&b, "\nTurn: %s\n", r.Turn)
	case r.Outcome != "":
		fmt.Fprintf(&b, "\nOutcome: %s\n", r.Outcome)
	}
	return b.String()
}

// formatBoard draws the rows with separators; '.' cells are shown blank.
func formatBoard(rows []string) string {
	lines := lo.Map(rows, func(row string, _ int) string {
		cells := lo.Map([]rune(row), func(c rune, _ int) string {
			if c == '.' {
				return " "
			}
			return string(c)
		})
		return " " + strings.Join(cells, " | ")
	})
	return strings.Join(lines, "\n---+---+---\n") + "\n"
}
