package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/wricardo/mcp-training/tictactoe/game/protocol"
	"github.com/wricardo/mcp-training/tictactoe/game/room"
	"github.com/wricardo/mcp-training/tictactoe/game/service"
	"github.com/wricardo/mcp-training/tictactoe/game/session"
)

// MockGameService implements service.GameService for testing
type MockGameService struct {
	RoomsFunc    func(ctx context.Context) []room.Info
	RoomFunc     func(ctx context.Context, id int) (room.Info, error)
	SessionsFunc func(ctx context.Context) []session.Session
	StatsFunc    func(ctx context.Context) service.Stats
	KickFunc     func(ctx context.Context, sessionID string) error
}

// Connection lifecycle is not reachable over the admin API.
func (m *MockGameService) Open(ctx context.Context, peer protocol.Peer, remoteAddr string) (session.Session, error) {
	return session.Session{}, session.ErrServerFull
}

func (m *MockGameService) Handle(ctx context.Context, sessionID, line string) bool { return false }
func (m *MockGameService) Close(ctx context.Context, sessionID string)              {}
func (m *MockGameService) Probe(ctx context.Context) service.ProbeReport         { return service.ProbeReport{} }
func (m *MockGameService) Prune(ctx context.Context, now time.Time) int          { return 0 }
func (m *MockGameService) Expire(ctx context.Context, sessionID string)             {}

func (m *MockGameService) Rooms(ctx context.Context) []room.Info {
	if m.RoomsFunc != nil {
		return m.RoomsFunc(ctx)
	}
	return []room.Info{}
}

func (m *MockGameService) Room(ctx context.Context, id int) (room.Info, error) {
	if m.RoomFunc != nil {
		return m.RoomFunc(ctx, id)
	}
	return room.Info{}, errors.Wrapf(room.ErrNoSuchRoom, "room %d", id)
}

func (m *MockGameService) Sessions(ctx context.Context) []session.Session {
	if m.SessionsFunc != nil {
		return m.SessionsFunc(ctx)
	}
	return []session.Session{}
}

func (m *MockGameService) Stats(ctx context.Context) service.Stats {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return service.Stats{}
}

func (m *MockGameService) Kick(ctx context.Context, sessionID string) error {
	if m.KickFunc != nil {
		return m.KickFunc(ctx, sessionID)
	}
	return nil
}

// Test helpers
func setupTestServer(mockService *MockGameService) *Server {
	return NewServer(mockService, nil, nil)
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
}

func sampleRooms() []room.Info {
	return []room.Info{
		{ID: 1, Name: "alpha", State: room.Waiting, Occupied: 1, Board: []string{"...", "...", "..."}},
		{ID: 2, Name: "beta", State: room.Playing, Occupied: 2, Board: []string{"X..", ".O.", "..."}, Turn: "X"},
	}
}

func TestHealth(t *testing.T) {
	server := setupTestServer(&MockGameService{})
	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp map[string]string
	parseResponse(t, w, &resp)
	if resp["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %s", resp["status"])
	}
}

func TestListRooms(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		expectedTotal int
		expectedFirst string
	}{
		{name: "All rooms", path: "/api/rooms", expectedTotal: 2, expectedFirst: "alpha"},
		{name: "Waiting only", path: "/api/rooms?state=WAITING", expectedTotal: 1, expectedFirst: "alpha"},
		{name: "Playing only", path: "/api/rooms?state=PLAYING", expectedTotal: 1, expectedFirst: "beta"},
		{name: "Unknown state", path: "/api/rooms?state=NOPE", expectedTotal: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupTestServer(&MockGameService{RoomsFunc: func(ctx context.Context) []room.Info {
				return sampleRooms()
			}})
			w := httptest.NewRecorder()
			server.ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}

			var resp struct {
				Total int `json:"total"`
				Rooms []struct {
					Name  string `json:"name"`
					State string `json:"state"`
				} `json:"rooms"`
			}
			parseResponse(t, w, &resp)
			if resp.Total != tt.expectedTotal || len(resp.Rooms) != tt.expectedTotal {
				t.Fatalf("Expected %d rooms, got total=%d len=%d", tt.expectedTotal, resp.Total, len(resp.Rooms))
			}
			if tt.expectedTotal > 0 && resp.Rooms[0].Name != tt.expectedFirst {
				t.Errorf("Expected first room %s, got %s", tt.expectedFirst, resp.Rooms[0].Name)
			}
		})
	}
}

func TestGetRoom(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		setupMock      func(*MockGameService)
		expectedStatus int
	}{
		{
			name: "Existing room",
			path: "/api/rooms/2",
			setupMock: func(m *MockGameService) {
				m.RoomFunc = func(ctx context.Context, id int) (room.Info, error) {
					if id != 2 {
						t.Errorf("Expected room id 2, got %d", id)
					}
					return sampleRooms()[1], nil
				}
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Missing room",
			path:           "/api/rooms/99",
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "Service error",
			path: "/api/rooms/1",
			setupMock: func(m *MockGameService) {
				m.RoomFunc = func(ctx context.Context, id int) (room.Info, error) {
					return room.Info{}, fmt.Errorf("boom")
				}
			},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "Non-numeric id is not routed",
			path:           "/api/rooms/abc",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}

			server := setupTestServer(mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedStatus == http.StatusOK {
				var resp map[string]interface{}
				parseResponse(t, w, &resp)
				if resp["name"] != "beta" || resp["state"] != "PLAYING" || resp["turn"] != "X" {
					t.Errorf("Unexpected room payload: %v", resp)
				}
			}
		})
	}
}

func TestListSessions(t *testing.T) {
	server := setupTestServer(&MockGameService{SessionsFunc: func(ctx context.Context) []session.Session {
		return []session.Session{
			{ID: "s1", Name: "alice", Secret: "hunter2", State: session.Playing, RoomID: 2, Alive: true},
			{ID: "s2", State: session.Lobby, Alive: true},
		}
	}})

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("GET", "/api/sessions?state=PLAYING", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	var resp struct {
		Total    int                      `json:"total"`
		Sessions []map[string]interface{} `json:"sessions"`
	}
	parseResponse(t, w, &resp)
	if resp.Total != 1 || resp.Sessions[0]["id"] != "s1" {
		t.Fatalf("Expected only s1, got %v", resp.Sessions)
	}
	if _, leaked := resp.Sessions[0]["secret"]; leaked {
		t.Errorf("Secret must not be serialized: %s", body)
	}
}

func TestKickSession(t *testing.T) {
	tests := []struct {
		name           string
		kickErr        error
		expectedStatus int
	}{
		{name: "Kick connected session", expectedStatus: http.StatusOK},
		{name: "Unknown session", kickErr: errors.Wrap(session.ErrSessionNotFound, "kick s9"), expectedStatus: http.StatusNotFound},
		{name: "Service error", kickErr: fmt.Errorf("boom"), expectedStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var kicked string
			server := setupTestServer(&MockGameService{KickFunc: func(ctx context.Context, sessionID string) error {
				kicked = sessionID
				return tt.kickErr
			}})

			w := httptest.NewRecorder()
			server.ServeHTTP(w, httptest.NewRequest("DELETE", "/api/sessions/s9", nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if kicked != "s9" {
				t.Errorf("Expected kick of s9, got %q", kicked)
			}
		})
	}
}

func TestStats(t *testing.T) {
	server := setupTestServer(&MockGameService{StatsFunc: func(ctx context.Context) service.Stats {
		return service.Stats{Sessions: 3, SessionCapacity: 128, Rooms: 1, RoomCapacity: 16, GraceSeconds: 15}
	}})

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("GET", "/api/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp service.Stats
	parseResponse(t, w, &resp)
	if resp.Sessions != 3 || resp.RoomCapacity != 16 || resp.GraceSeconds != 15 {
		t.Errorf("Unexpected stats: %+v", resp)
	}
}

func TestMountedHandlers(t *testing.T) {
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ws")
	})
	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "mcp")
	})
	server := NewServer(&MockGameService{}, ws, mcp)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("GET", "/ws", nil))
	if w.Body.String() != "ws" {
		t.Errorf("Expected /ws to reach the websocket handler, got %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("POST", "/mcp", nil))
	if w.Body.String() != "mcp" {
		t.Errorf("Expected POST /mcp to reach the mcp handler, got %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("GET", "/mcp", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET /mcp, got %d", w.Code)
	}
}

// countingWS is a websocket handler that reports a fixed client count.
type countingWS struct {
	clients int
}

func (c countingWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {}

func (c countingWS) Count() int {
	return c.clients
}

func TestStatsWebSocketClients(t *testing.T) {
	server := NewServer(&MockGameService{StatsFunc: func(ctx context.Context) service.Stats {
		return service.Stats{Sessions: 2, Connections: 2}
	}}, countingWS{clients: 1}, nil)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("GET", "/api/stats", nil))

	var resp service.Stats
	parseResponse(t, w, &resp)
	if resp.Connections != 2 || resp.WebSocketClients != 1 {
		t.Errorf("Unexpected stats: %+v", resp)
	}
}

func TestReadOnly(t *testing.T) {
	kicked := false
	mock := &MockGameService{KickFunc: func(ctx context.Context, sessionID string) error {
		kicked = true
		return nil
	}}
	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "mcp")
	})
	handler := NewServer(mock, nil, mcp).ReadOnly()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/rooms", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for GET /api/rooms, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("DELETE", "/api/sessions/abc", nil))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for DELETE, got %d", w.Code)
	}
	if kicked {
		t.Error("Kick must not be reachable through the read-only handler")
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/mcp", strings.NewReader("{}")))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for POST /mcp, got %d", w.Code)
	}
}
