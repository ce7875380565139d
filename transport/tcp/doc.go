// Package tcp serves the line protocol over plain TCP connections.
//
// Each accepted connection gets its own goroutine: the session is opened
// through the dispatcher, then every newline-terminated line is handed to
// GameService.Handle until it asks to stop or the stream fails. Disconnect
// handling always runs when the loop ends. Lines longer than
// protocol.MaxLineLength end the connection.
package tcp
