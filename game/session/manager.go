package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrServerFull      = errors.New("server full")

	errSecretInUse = errors.New("secret in use")
)

var logger = logrus.WithField("component", "session")

// Manager is the registry of connected sessions. It owns admission,
// identity and the per-session counters. All methods are safe for
// concurrent use; Manager never calls into other registries while
// holding its lock.
type Manager struct {
	sessions map[string]*Session
	applied  map[string]uint64
	capacity int
	mu       sync.RWMutex

	now       func() time.Time
	newID     func() string
	newSecret func() string
	reserved  func(secret string) bool
}

// NewManager creates a session registry admitting at most capacity
// sessions.
func NewManager(capacity int) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		applied:   make(map[string]uint64),
		capacity:  capacity,
		now:       time.Now,
		newID:     uuid.NewString,
		newSecret: generateSecret,
	}
}

// SetReserved installs a check for secrets held outside the registry,
// such as those kept in Disconnected room slots. reserved is called
// without m.mu held.
func (m *Manager) SetReserved(reserved func(secret string) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserved = reserved
}

// Admit registers a new session in the Lobby state. It fails with
// ErrServerFull once capacity sessions are registered. The secret is
// unique among registered sessions and reserved secrets.
func (m *Manager) Admit(remoteAddr string) (Session, error) {
	for {
		secret := m.freshSecret()
		s, err := m.admit(remoteAddr, secret)
		if errors.Is(err, errSecretInUse) {
			continue
		}
		return s, err
	}
}

// freshSecret returns a secret that is not reserved.
func (m *Manager) freshSecret() string {
	m.mu.RLock()
	gen, reserved := m.newSecret, m.reserved
	m.mu.RUnlock()

	for {
		secret := gen()
		if reserved == nil || !reserved(secret) {
			return secret
		}
	}
}

func (m *Manager) admit(remoteAddr, secret string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.capacity {
		return Session{}, ErrServerFull
	}
	if lo.ContainsBy(lo.Values(m.sessions), func(s *Session) bool { return s.Secret == secret }) {
		return Session{}, errSecretInUse
	}

	s := &Session{
		ID:          m.newID(),
		Secret:      secret,
		State:       Lobby,
		RoomID:      NoRoom,
		Alive:       true,
		RemoteAddr:  remoteAddr,
		ConnectedAt: m.now(),
	}
	m.sessions[s.ID] = s

	logger.WithFields(logrus.Fields{"session": s.ID, "remote": remoteAddr, "total": len(m.sessions)}).Debug("session admitted")
	return *s, nil
}

// Get returns a copy of the session.
func (m *Manager) Get(id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return *s, nil
}

// List returns copies of all sessions ordered by connection time.
func (m *Manager) List() []Session {
	m.mu.RLock()
	result := lo.MapToSlice(m.sessions, func(_ string, s *Session) Session { return *s })
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].ConnectedAt.Equal(result[j].ConnectedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].ConnectedAt.Before(result[j].ConnectedAt)
	})
	return result
}

// Remove unregisters a session.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	delete(m.applied, id)
	return nil
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Capacity returns the admission limit.
func (m *Manager) Capacity() int {
	return m.capacity
}

// SetName binds a display name to the session.
func (m *Manager) SetName(id, name string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	s.Name = name
	return *s, nil
}

// Rebind replaces the session identity with one restored from a room slot.
func (m *Manager) Rebind(id, name, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.Name = name
	s.Secret = secret
	return nil
}

// Apply records room membership changes produced by the room registry.
// Unknown sessions are skipped; they have already been removed. An
// assignment whose Seq is older than the last one applied to its session
// is stale and skipped.
func (m *Manager) Apply(assignments ...Assignment) {
	if len(assignments) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range assignments {
		s, ok := m.sessions[a.SessionID]
		if !ok {
			continue
		}
		if a.Seq != 0 {
			if a.Seq < m.applied[a.SessionID] {
				logger.WithFields(logrus.Fields{"session": a.SessionID, "seq": a.Seq}).Debug("stale assignment skipped")
				continue
			}
			m.applied[a.SessionID] = a.Seq
		}
		s.State = a.State
		s.RoomID = a.RoomID
		if a.State == Lobby {
			s.RoomID = NoRoom
		}
	}
}

// RecordInvalid increments the invalid-input counter and returns its new
// value.
func (m *Manager) RecordInvalid(id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return 0, ErrSessionNotFound
	}
	s.InvalidInputs++
	return s.InvalidInputs, nil
}

// Acknowledge handles a probe acknowledgement. The counter is reset to
// zero, never below.
func (m *Manager) Acknowledge(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.MissedProbes = 0
	return nil
}

// Probe increments the missed-probe counter of every alive session. It
// returns the probed ids and the subset whose counter now exceeds
// MaxMissedProbes; those are marked dead so later sweeps skip them.
func (m *Manager) Probe() (probed, expired []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if !s.Alive {
			continue
		}
		s.MissedProbes++
		probed = append(probed, id)
		if s.MissedProbes > MaxMissedProbes {
			s.Alive = false
			expired = append(expired, id)
		}
	}
	return probed, expired
}

// MarkDead flags a session whose connection is being torn down.
func (m *Manager) MarkDead(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.Alive = false
	}
}

// generateSecret returns 32 hex characters backed by a random UUID.
func generateSecret() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
