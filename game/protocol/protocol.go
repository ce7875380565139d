package protocol

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Prefix starts every line on the wire.
const Prefix = "##"

// MaxLineLength bounds a single inbound line, terminator excluded.
const MaxLineLength = 512

// Inbound verbs.
const (
	VerbJoin      = "JOIN"
	VerbReconnect = "RECONNECT"
	VerbCreate    = "CREATE"
	VerbJoinRoom  = "JOINROOM"
	VerbExit      = "EXIT"
	VerbList      = "LIST"
	VerbQuit      = "QUIT"
	VerbPing      = "PING"
	VerbPong      = "PONG"
	VerbMove      = "MOVE"
	VerbReplay    = "REPLAY"
)

// Outbound verbs not already listed above.
const (
	VerbHello       = "HELLO"
	VerbJoined      = "JOINED"
	VerbSession     = "SESSION"
	VerbCreated     = "CREATED"
	VerbJoinedRoom  = "JOINEDROOM"
	VerbStart       = "START"
	VerbSymbol      = "SYMBOL"
	VerbClear       = "CLEAR"
	VerbTurn        = "TURN"
	VerbWin         = "WIN"
	VerbLose        = "LOSE"
	VerbDraw        = "DRAW"
	VerbRestart     = "RESTART"
	VerbReconnected = "RECONNECTED"
	VerbExited      = "EXITED"
	VerbInfo        = "INFO"
	VerbError       = "ERROR"
	VerbRooms       = "ROOMS"
	VerbBye         = "BYE"
)

var (
	// ErrMalformed is returned for lines without the prefix or a verb.
	ErrMalformed = errors.New("malformed line")
	// ErrMissingArgument is returned when a required argument is absent or empty.
	ErrMissingArgument = errors.New("missing argument")
)

// Message is a verb with its arguments.
type Message struct {
	Verb string
	Args []string
}

// New builds a message.
func New(verb string, args ...string) Message {
	return Message{Verb: verb, Args: args}
}

// String renders the message without the line terminator. A message
// without arguments keeps a trailing separator ("##BYE|").
func (m Message) String() string {
	var b strings.Builder
	b.WriteString(Prefix)
	b.WriteString(m.Verb)
	if len(m.Args) == 0 {
		b.WriteByte('|')
		return b.String()
	}
	for _, a := range m.Args {
		b.WriteByte('|')
		b.WriteString(a)
	}
	return b.String()
}

// Format is shorthand for New(verb, args...).String().
func Format(verb string, args ...string) string {
	return New(verb, args...).String()
}

// Command is a parsed inbound line.
type Command struct {
	Verb string
	Args []string
}

// Parse decodes one inbound line. Trailing CR/LF are ignored, the verb is
// upper-cased and a single trailing empty argument ("##LIST|") is dropped.
func Parse(line string) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, Prefix) {
		return Command{}, ErrMalformed
	}
	parts := strings.Split(line[len(Prefix):], "|")
	verb := strings.ToUpper(strings.TrimSpace(parts[0]))
	if verb == "" {
		return Command{}, ErrMalformed
	}
	args := parts[1:]
	if n := len(args); n > 0 && args[n-1] == "" {
		args = args[:n-1]
	}
	return Command{Verb: verb, Args: args}, nil
}

// Arg returns argument i, or ErrMissingArgument when it is absent or blank.
func (c Command) Arg(i int) (string, error) {
	if i >= len(c.Args) || strings.TrimSpace(c.Args[i]) == "" {
		return "", errors.Wrapf(ErrMissingArgument, "%s argument %d", c.Verb, i)
	}
	return c.Args[i], nil
}

// Int returns argument i as a base-10 integer.
func (c Command) Int(i int) (int, error) {
	s, err := c.Arg(i)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(ErrMalformed, "%s argument %d: %q is not an integer", c.Verb, i, s)
	}
	return n, nil
}

// Peer is the writable half of a client connection.
type Peer interface {
	// WriteLine sends one line; the terminator is appended by the peer.
	WriteLine(line string) error
	// Close terminates the connection. It must be safe to call repeatedly.
	Close() error
}

// Notifier delivers messages to sessions by id. Delivery is best effort:
// implementations log failures and never block on a slow peer for long.
type Notifier interface {
	Notify(sessionID string, msg Message)
}
