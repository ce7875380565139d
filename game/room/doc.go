// Package room provides the bounded registry of tic-tac-toe rooms and the
// matchmaking, gameplay and recovery operations performed on them.
//
// The room package implements:
//   - Room creation and joining, with slot 0 playing X in the first round
//   - Move application and result broadcast through the engine package
//   - Voluntary exit, replay confirmation and replay decline
//   - Involuntary disconnect with slot preservation, reconnect with board
//     replay, and expiry of preserved slots after a grace period
//
// Core Types:
//
// Registry owns every Room. A Room has two Slots; each slot is Vacant, Live
// (held by a connected session) or Disconnected (identity kept for a
// reconnect). Info is the read-only snapshot handed to callers.
//
// Notifications:
//
// Operations emit their replies through a protocol.Notifier while the
// registry lock is held, then return session.Assignment values describing
// how the affected sessions moved. Callers apply those to the session
// registry after the call returns:
//
//	info, assignments, err := rooms.Join(id, room.Member{SessionID: s.ID, Name: s.Name, Secret: s.Secret})
//	if err != nil {
//		return err
//	}
//	sessions.Apply(assignments...)
//
// Each operation stamps its assignments with a sequence number taken under
// the lock, so session.Manager.Apply can skip one that arrives after a
// newer operation on the same session.
//
// A room with no Live slot left is reclaimed at once. Room ids come from a
// counter and are never reused.
package room
