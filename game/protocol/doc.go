// Package protocol implements the line-oriented wire format spoken by
// tic-tac-toe clients.
//
// Every line, inbound and outbound, is "##" followed by a verb and zero or
// more pipe-separated arguments, terminated by a newline:
//
//	##JOIN|alice
//	##MOVE|0|2
//	##ROOMS|1|0|lobby|WAITING|1/2
//
// Parse turns an inbound line into a Command; Format and Message.String do
// the reverse for replies. The package also declares the two narrow
// interfaces that separate game logic from transports: Peer is a writable
// connection and Notifier routes a Message to a session id.
package protocol
