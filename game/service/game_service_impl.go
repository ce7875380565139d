package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/tictactoe/game/engine"
	"github.com/wricardo/mcp-training/tictactoe/game/protocol"
	"github.com/wricardo/mcp-training/tictactoe/game/room"
	"github.com/wricardo/mcp-training/tictactoe/game/session"
	"github.com/wricardo/mcp-training/tictactoe/validate"
)

// Reply texts for rejected commands.
const (
	errServerFull       = "Server full"
	errUnknownCommand   = "UNKNOWN_CMD"
	errTooManyInvalid   = "Too many invalid messages"
	errInvalidName      = "Invalid name"
	errInvalidRoomName  = "Invalid room name"
	errInvalidRoomID    = "Invalid room id"
	errInvalidMove      = "Invalid MOVE format"
	errInvalidReconnect = "Invalid reconnect format"
	errInvalidReplay    = "Invalid REPLAY format"
	errJoinFirst        = "Join first"
	errAlreadyInRoom    = "Already in room"
	errNotInGameRoom    = "Not in game room"
	errNotInRoom        = "Not in room"
)

var logger = logrus.WithField("component", "service")

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions  *session.Manager
	rooms     *room.Registry
	outbox    Outbox
	startedAt time.Time
}

// NewGameService creates the protocol dispatcher. rooms must deliver its
// notifications through the same outbox.
func NewGameService(sessions *session.Manager, rooms *room.Registry, outbox Outbox) GameService {
	sessions.SetReserved(rooms.SecretReserved)
	return &gameServiceImpl{
		sessions:  sessions,
		rooms:     rooms,
		outbox:    outbox,
		startedAt: time.Now(),
	}
}

// Open admits a new connection and greets it. A full server is told so on
// the peer directly; the caller closes the connection.
func (s *gameServiceImpl) Open(ctx context.Context, peer protocol.Peer, remoteAddr string) (session.Session, error) {
	sess, err := s.sessions.Admit(remoteAddr)
	if err != nil {
		if errors.Is(err, session.ErrServerFull) {
			logger.WithField("remote", remoteAddr).Warn("connection rejected: server full")
			_ = peer.WriteLine(protocol.Format(protocol.VerbError, errServerFull))
		}
		return session.Session{}, err
	}

	s.outbox.Attach(sess.ID, peer)
	s.send(sess.ID, protocol.VerbHello)

	logger.WithFields(logrus.Fields{"session": sess.ID, "remote": remoteAddr}).Info("client connected")
	return sess, nil
}

// Handle interprets one inbound line. It returns false when the read loop
// must stop: after QUIT, after too many invalid messages, or when the
// session is gone.
func (s *gameServiceImpl) Handle(ctx context.Context, sessionID, line string) bool {
	sess, err := s.sessions.Get(sessionID)
	if err != nil || !sess.Alive {
		return false
	}

	cmd, err := protocol.Parse(line)
	if err != nil {
		logger.WithFields(logrus.Fields{"session": sessionID, "line": line}).Debug("malformed line")
		return s.invalid(sess, errUnknownCommand)
	}

	switch cmd.Verb {
	case protocol.VerbJoin:
		return s.handleJoin(sess, cmd)
	case protocol.VerbReconnect:
		return s.handleReconnect(sess, cmd)
	case protocol.VerbCreate:
		return s.handleCreate(sess, cmd)
	case protocol.VerbJoinRoom:
		return s.handleJoinRoom(sess, cmd)
	case protocol.VerbExit:
		return s.handleExit(sess)
	case protocol.VerbList:
		s.outbox.Notify(sess.ID, s.rooms.Listing())
		return true
	case protocol.VerbQuit:
		s.send(sess.ID, protocol.VerbBye)
		logger.WithField("session", sess.ID).Info("client quit")
		return false
	case protocol.VerbPing:
		s.send(sess.ID, protocol.VerbPong)
		return true
	case protocol.VerbPong:
		_ = s.sessions.Acknowledge(sess.ID)
		return true
	case protocol.VerbMove:
		return s.handleMove(sess, cmd)
	case protocol.VerbReplay:
		return s.handleReplay(sess, cmd)
	default:
		return s.invalid(sess, errUnknownCommand)
	}
}

func (s *gameServiceImpl) handleJoin(sess session.Session, cmd protocol.Command) bool {
	if sess.InRoom() {
		return s.invalid(sess, errAlreadyInRoom)
	}
	name, err := cmd.Arg(0)
	if err != nil || validate.PlayerName(name) != nil {
		return s.invalid(sess, errInvalidName)
	}

	named, err := s.sessions.SetName(sess.ID, name)
	if err != nil {
		return false
	}
	s.send(sess.ID, protocol.VerbJoined, named.Name)
	s.send(sess.ID, protocol.VerbSession, named.Secret)

	logger.WithFields(logrus.Fields{"session": sess.ID, "name": name}).Info("player joined")
	return true
}

func (s *gameServiceImpl) handleReconnect(sess session.Session, cmd protocol.Command) bool {
	name, nameErr := cmd.Arg(0)
	secret, secretErr := cmd.Arg(1)
	if nameErr != nil || secretErr != nil {
		return s.invalid(sess, errInvalidReconnect)
	}
	if sess.InRoom() {
		return s.invalid(sess, errAlreadyInRoom)
	}

	_, assignments, err := s.rooms.Reconnect(name, secret, room.Member{SessionID: sess.ID, Name: name, Secret: secret})
	if err != nil {
		s.reject(sess.ID, err)
		return true
	}
	if err := s.sessions.Rebind(sess.ID, name, secret); err != nil {
		return false
	}
	s.sessions.Apply(assignments...)
	return true
}

func (s *gameServiceImpl) handleCreate(sess session.Session, cmd protocol.Command) bool {
	if sess.InRoom() {
		return s.invalid(sess, errAlreadyInRoom)
	}
	if sess.Name == "" {
		return s.invalid(sess, errJoinFirst)
	}
	name, err := cmd.Arg(0)
	if err != nil || validate.RoomName(name) != nil {
		return s.invalid(sess, errInvalidRoomName)
	}

	_, assignments, err := s.rooms.Create(name, member(sess))
	if err != nil {
		s.reject(sess.ID, err)
		return true
	}
	s.sessions.Apply(assignments...)
	return true
}

func (s *gameServiceImpl) handleJoinRoom(sess session.Session, cmd protocol.Command) bool {
	id, err := cmd.Int(0)
	if sess.InRoom() {
		if err == nil && id == sess.RoomID {
			s.reject(sess.ID, room.ErrOwnRoom)
			return true
		}
		return s.invalid(sess, errAlreadyInRoom)
	}
	if sess.Name == "" {
		return s.invalid(sess, errJoinFirst)
	}
	if err != nil {
		return s.invalid(sess, errInvalidRoomID)
	}

	_, assignments, err := s.rooms.Join(id, member(sess))
	if err != nil {
		s.reject(sess.ID, err)
		return true
	}
	s.sessions.Apply(assignments...)
	return true
}

func (s *gameServiceImpl) handleExit(sess session.Session) bool {
	assignments, err := s.rooms.Leave(sess.ID)
	if err != nil {
		return s.invalid(sess, errNotInRoom)
	}
	s.sessions.Apply(assignments...)
	logger.WithField("session", sess.ID).Info("player left room")
	return true
}

func (s *gameServiceImpl) handleMove(sess session.Session, cmd protocol.Command) bool {
	if !sess.InRoom() {
		return s.invalid(sess, errNotInGameRoom)
	}
	row, rowErr := cmd.Int(0)
	col, colErr := cmd.Int(1)
	if rowErr != nil || colErr != nil {
		return s.invalid(sess, errInvalidMove)
	}

	if _, err := s.rooms.Move(sess.ID, engine.Position{Row: row, Col: col}); err != nil {
		if errors.Is(err, room.ErrNotInRoom) {
			return s.invalid(sess, errNotInGameRoom)
		}
		s.reject(sess.ID, err)
	}
	return true
}

func (s *gameServiceImpl) handleReplay(sess session.Session, cmd protocol.Command) bool {
	if !sess.InRoom() {
		return s.invalid(sess, errNotInRoom)
	}
	answer, err := cmd.Arg(0)
	if err != nil {
		return s.invalid(sess, errInvalidReplay)
	}

	var assignments []session.Assignment
	switch strings.ToUpper(strings.TrimSpace(answer)) {
	case "YES":
		assignments, err = s.rooms.Confirm(sess.ID)
	case "NO":
		assignments, err = s.rooms.Decline(sess.ID)
	default:
		return s.invalid(sess, errInvalidReplay)
	}
	if err != nil {
		if errors.Is(err, room.ErrNotInRoom) {
			return s.invalid(sess, errNotInRoom)
		}
		s.reject(sess.ID, err)
		return true
	}
	s.sessions.Apply(assignments...)
	return true
}

// invalid replies with an error and counts it. It returns false once the
// session reached MaxInvalidInputs.
func (s *gameServiceImpl) invalid(sess session.Session, text string) bool {
	s.send(sess.ID, protocol.VerbError, text)

	n, err := s.sessions.RecordInvalid(sess.ID)
	if err != nil {
		return false
	}
	if n < session.MaxInvalidInputs {
		return true
	}

	s.send(sess.ID, protocol.VerbError, errTooManyInvalid)
	logger.WithFields(logrus.Fields{"session": sess.ID, "name": sess.Name, "invalid": n}).Warn("too many invalid messages")
	return false
}

// reject replies to a command refused by the game state. It is not counted.
func (s *gameServiceImpl) reject(sessionID string, err error) {
	s.send(sessionID, protocol.VerbError, replyText(err))
}

// replyText maps a registry or engine error to its wire text.
func replyText(err error) string {
	switch {
	case errors.Is(err, room.ErrLobbyFull):
		return "Lobby full"
	case errors.Is(err, room.ErrNoSuchRoom):
		return "No such room"
	case errors.Is(err, room.ErrOwnRoom):
		return "Cannot join your own room"
	case errors.Is(err, room.ErrRoomFull):
		return "Room full"
	case errors.Is(err, room.ErrNoReconnectSlot):
		return "No reconnect slot"
	case errors.Is(err, room.ErrGameInProgress):
		return "Game in progress"
	case errors.Is(err, room.ErrNotInRoom):
		return errNotInRoom
	case errors.Is(err, engine.ErrGameNotStarted):
		return "Game not started"
	case errors.Is(err, engine.ErrGameFinished):
		return "Game finished"
	case errors.Is(err, engine.ErrNotYourTurn):
		return "Not your turn"
	case errors.Is(err, engine.ErrInvalidPosition):
		return "Invalid position"
	case errors.Is(err, engine.ErrOccupied):
		return "Occupied"
	}
	return err.Error()
}

// Close runs disconnect handling for a read loop that ended and forgets
// the session. The room slot, if any, stays reserved for a reconnect.
func (s *gameServiceImpl) Close(ctx context.Context, sessionID string) {
	s.sessions.MarkDead(sessionID)
	s.sessions.Apply(s.rooms.Disconnect(sessionID)...)
	s.outbox.Detach(sessionID)

	if err := s.sessions.Remove(sessionID); err == nil {
		logger.WithFields(logrus.Fields{"session": sessionID, "remaining": s.sessions.Count()}).Info("client disconnected")
	}
}

// Expire forces involuntary disconnect handling and hangs up the peer. The
// transport's read loop then ends and calls Close.
func (s *gameServiceImpl) Expire(ctx context.Context, sessionID string) {
	s.sessions.MarkDead(sessionID)
	s.sessions.Apply(s.rooms.Disconnect(sessionID)...)
	s.outbox.Hangup(sessionID)
}

// Probe runs one liveness sweep: every alive session is sent PING and
// those past the missed-probe threshold are expired.
func (s *gameServiceImpl) Probe(ctx context.Context) ProbeReport {
	probed, expired := s.sessions.Probe()

	for _, id := range lo.Without(probed, expired...) {
		s.send(id, protocol.VerbPing)
	}
	for _, id := range expired {
		logger.WithField("session", id).Warn("client unresponsive, disconnecting")
		s.Expire(ctx, id)
	}
	return ProbeReport{Probed: len(probed), Expired: expired}
}

// Prune forfeits reserved slots whose reconnect window elapsed at now.
func (s *gameServiceImpl) Prune(ctx context.Context, now time.Time) int {
	assignments, pruned := s.rooms.Prune(s.rooms.Grace(), now)
	s.sessions.Apply(assignments...)
	return pruned
}

// Rooms returns snapshots of the active rooms.
func (s *gameServiceImpl) Rooms(ctx context.Context) []room.Info {
	return s.rooms.List()
}

// Room returns the snapshot of one room.
func (s *gameServiceImpl) Room(ctx context.Context, id int) (room.Info, error) {
	info, err := s.rooms.Get(id)
	if err != nil {
		return room.Info{}, errors.Wrapf(err, "room %d", id)
	}
	return info, nil
}

// Sessions returns snapshots of the connected sessions.
func (s *gameServiceImpl) Sessions(ctx context.Context) []session.Session {
	return s.sessions.List()
}

// Stats summarizes the registries.
func (s *gameServiceImpl) Stats(ctx context.Context) Stats {
	rooms := s.rooms.List()
	sessions := s.sessions.List()

	stats := Stats{
		Sessions:        len(sessions),
		Connections:     s.outbox.Count(),
		SessionCapacity: s.sessions.Capacity(),
		Named:           lo.CountBy(sessions, func(sess session.Session) bool { return sess.Name != "" }),
		Rooms:           len(rooms),
		RoomCapacity:    s.rooms.Capacity(),
		WaitingRooms:    lo.CountBy(rooms, func(r room.Info) bool { return r.State == room.Waiting }),
		PlayingRooms:    lo.CountBy(rooms, func(r room.Info) bool { return r.State == room.Playing }),
		GraceSeconds:    int(s.rooms.Grace() / time.Second),
		StartedAt:       s.startedAt,
		Uptime:          time.Since(s.startedAt).Round(time.Second).String(),
	}
	for _, r := range rooms {
		stats.Disconnected += lo.CountBy(r.Slots[:], func(slot room.SlotInfo) bool { return slot.State == room.Disconnected })
	}
	return stats
}

// Kick forces involuntary disconnect handling for a session. Its room
// slot stays reserved for the grace period.
func (s *gameServiceImpl) Kick(ctx context.Context, sessionID string) error {
	if _, err := s.sessions.Get(sessionID); err != nil {
		return errors.Wrapf(err, "kick %s", sessionID)
	}
	logger.WithField("session", sessionID).Info("session kicked")
	s.Expire(ctx, sessionID)
	return nil
}

func (s *gameServiceImpl) send(sessionID, verb string, args ...string) {
	s.outbox.Notify(sessionID, protocol.New(verb, args...))
}

func member(sess session.Session) room.Member {
	return room.Member{SessionID: sess.ID, Name: sess.Name, Secret: sess.Secret}
}
