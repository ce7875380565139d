package outbox

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/tictactoe/game/protocol"
)

var logger = logrus.WithField("component", "outbox")

// Outbox maps session ids to the peers of their connections. Its lock is
// a leaf: Outbox never calls into any other component while holding it,
// so it may be used from inside the room registry lock.
type Outbox struct {
	mu    sync.RWMutex
	peers map[string]protocol.Peer
}

// New creates an empty outbox.
func New() *Outbox {
	return &Outbox{peers: make(map[string]protocol.Peer)}
}

// Attach routes messages for sessionID to peer.
func (o *Outbox) Attach(sessionID string, peer protocol.Peer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.peers[sessionID] = peer
}

// Detach stops routing messages for sessionID.
func (o *Outbox) Detach(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.peers, sessionID)
}

// Hangup closes the peer attached to sessionID. The route stays in place
// until the transport detaches it.
func (o *Outbox) Hangup(sessionID string) {
	peer, ok := o.peer(sessionID)
	if !ok {
		return
	}
	if err := peer.Close(); err != nil {
		logger.WithError(err).WithField("session", sessionID).Debug("hangup")
	}
}

// Notify writes msg to the peer attached to sessionID. Unknown sessions
// and write failures are logged and otherwise ignored; the read loop of a
// broken connection notices the failure on its own.
func (o *Outbox) Notify(sessionID string, msg protocol.Message) {
	peer, ok := o.peer(sessionID)
	if !ok {
		logger.WithFields(logrus.Fields{"session": sessionID, "verb": msg.Verb}).Debug("no peer attached")
		return
	}
	if err := peer.WriteLine(msg.String()); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{"session": sessionID, "verb": msg.Verb}).Warn("send failed")
	}
}

// Count returns the number of attached peers.
func (o *Outbox) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.peers)
}

func (o *Outbox) peer(sessionID string) (protocol.Peer, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.peers[sessionID]
	return p, ok
}
