package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/wricardo/mcp-training/tictactoe/game/room"
	"github.com/wricardo/mcp-training/tictactoe/game/service"
	"github.com/wricardo/mcp-training/tictactoe/game/session"
)

// Server represents the admin REST API server
type Server struct {
	service service.GameService
	router  *mux.Router
	ws      http.Handler
}

// clientCounter is implemented by WebSocket gateways that report their
// connected clients.
type clientCounter interface {
	Count() int
}

// NewServer creates a new API server. ws, when not nil, is mounted on /ws
// and mcp, when not nil, on POST /mcp.
func NewServer(gameService service.GameService, ws, mcp http.Handler) *Server {
	s := &Server{
		service: gameService,
		router:  mux.NewRouter(),
		ws:      ws,
	}

	s.setupRoutes(ws, mcp)
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes(ws, mcp http.Handler) {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	// Rooms
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{id:[0-9]+}", s.handleGetRoom).Methods("GET")

	// Sessions
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleKickSession).Methods("DELETE")

	if ws != nil {
		s.router.Handle("/ws", ws)
	}
	if mcp != nil {
		s.router.Handle("/mcp", mcp).Methods("POST")
	}
}

// ReadOnly returns a handler that only serves GET and HEAD requests. The
// kick endpoint and /mcp are refused with 403.
func (s *Server) ReadOnly() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			respondError(w, http.StatusForbidden, "read-only endpoint")
			return
		}
		s.router.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Room Handlers

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.service.Rooms(r.Context())

	if state := r.URL.Query().Get("state"); state != "" {
		rooms = lo.Filter(rooms, func(info room.Info, _ int) bool {
			return info.State.String() == state
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total": len(rooms),
		"rooms": rooms,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid room id")
		return
	}

	info, err := s.service.Room(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, room.ErrNoSuchRoom) {
			status = http.StatusNotFound
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, info)
}

// Session Handlers

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.service.Sessions(r.Context())

	if state := r.URL.Query().Get("state"); state != "" {
		sessions = lo.Filter(sessions, func(sess session.Session, _ int) bool {
			return sess.State.String() == state
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":    len(sessions),
		"sessions": sessions,
	})
}

func (s *Server) handleKickSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.Kick(r.Context(), sessionID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s disconnected", sessionID),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.service.Stats(r.Context())
	if c, ok := s.ws.(clientCounter); ok {
		stats.WebSocketClients = c.Count()
	}
	respondJSON(w, http.StatusOK, stats)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
