// Package outbox routes outbound protocol lines to connections by session
// id. Transports attach a peer when a session opens and detach it when the
// read loop ends; the dispatcher and the room registry only ever address
// sessions by id.
package outbox
