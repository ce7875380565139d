package main

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/tictactoe/game/engine"
	"github.com/wricardo/mcp-training/tictactoe/game/protocol"
)

var (
	ErrRefused        = errors.New("server refused")
	ErrConnectionLost = errors.New("connection lost")
)

// Tally counts finished rounds from one bot's point of view.
type Tally struct {
	Wins   int
	Losses int
	Draws  int
}

// Rounds returns the number of finished rounds.
func (t Tally) Rounds() int {
	return t.Wins + t.Losses + t.Draws
}

// Listing is one entry of a ROOMS reply.
type Listing struct {
	ID       int
	Name     string
	State    string
	Occupied string
}

// Bot is a scripted player speaking the line protocol over TCP.
type Bot struct {
	name   string
	conn   net.Conn
	lines  *bufio.Scanner
	board  engine.Board
	mark   engine.Mark
	logger *logrus.Entry
}

// Dial connects, waits for the greeting and registers name.
func Dial(ctx context.Context, addr, name string) (*Bot, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}

	b := &Bot{
		name:   name,
		conn:   conn,
		lines:  bufio.NewScanner(conn),
		logger: logrus.WithFields(logrus.Fields{"component": "bot", "bot": name}),
	}

	if _, err := b.expect(protocol.VerbHello); err != nil {
		conn.Close()
		return nil, err
	}
	if err := b.send(protocol.VerbJoin, name); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := b.expect(protocol.VerbSession); err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

// Close hangs up without saying goodbye.
func (b *Bot) Close() error {
	return b.conn.Close()
}

// Quit says goodbye and closes the connection.
func (b *Bot) Quit() error {
	defer b.conn.Close()
	if err := b.send(protocol.VerbQuit); err != nil {
		return err
	}
	_, err := b.expect(protocol.VerbBye)
	return err
}

// Rooms asks for the room listing.
func (b *Bot) Rooms() ([]Listing, error) {
	if err := b.send(protocol.VerbList); err != nil {
		return nil, err
	}
	cmd, err := b.expect(protocol.VerbRooms)
	if err != nil {
		return nil, err
	}
	return parseListing(cmd)
}

// Host creates a room and returns its id.
func (b *Bot) Host(room string) (int, error) {
	if err := b.send(protocol.VerbCreate, room); err != nil {
		return 0, err
	}
	cmd, err := b.expect(protocol.VerbCreated)
	if err != nil {
		return 0, err
	}
	return cmd.Int(0)
}

// Join takes the free seat of room id.
func (b *Bot) Join(id int) error {
	if err := b.send(protocol.VerbJoinRoom, strconv.Itoa(id)); err != nil {
		return err
	}
	_, err := b.expect(protocol.VerbJoinedRoom)
	return err
}

// Play answers the server until rounds rounds are finished, confirming a
// replay between rounds, then leaves the room. Cancelling ctx closes the
// connection.
func (b *Bot) Play(ctx context.Context, rounds int) (Tally, error) {
	stop := context.AfterFunc(ctx, func() { b.conn.Close() })
	defer stop()

	var tally Tally
	for {
		cmd, err := b.next()
		if err != nil {
			if ctx.Err() != nil {
				return tally, ctx.Err()
			}
			return tally, err
		}

		switch cmd.Verb {
		case protocol.VerbClear, protocol.VerbStart:
			b.board = engine.Board{}
		case protocol.VerbSymbol:
			if s, _ := cmd.Arg(0); s == "O" {
				b.mark = engine.O
			} else {
				b.mark = engine.X
			}
		case protocol.VerbMove:
			b.place(cmd)
		case protocol.VerbTurn:
			pos, ok := NextMove(b.board, b.mark)
			if !ok {
				continue
			}
			if err := b.send(protocol.VerbMove, strconv.Itoa(pos.Row), strconv.Itoa(pos.Col)); err != nil {
				return tally, err
			}
		case protocol.VerbWin, protocol.VerbLose, protocol.VerbDraw:
			switch cmd.Verb {
			case protocol.VerbWin:
				tally.Wins++
			case protocol.VerbLose:
				tally.Losses++
			default:
				tally.Draws++
			}
			b.logger.WithFields(logrus.Fields{"result": strings.ToLower(cmd.Verb), "round": tally.Rounds()}).Info("round finished")
			if tally.Rounds() < rounds {
				err = b.send(protocol.VerbReplay, "YES")
			} else {
				err = b.send(protocol.VerbExit)
			}
			if err != nil {
				return tally, err
			}
		case protocol.VerbExited:
			return tally, nil
		case protocol.VerbPing:
			if err := b.send(protocol.VerbPong); err != nil {
				return tally, err
			}
		case protocol.VerbError:
			b.logger.WithField("error", strings.Join(cmd.Args, "|")).Warn("server error")
		case protocol.VerbInfo:
			b.logger.WithField("info", strings.Join(cmd.Args, "|")).Debug("server info")
		}
	}
}

// place records a MOVE broadcast; the bot's own moves carry its name.
func (b *Bot) place(cmd protocol.Command) {
	who, err := cmd.Arg(0)
	if err != nil {
		return
	}
	row, err := cmd.Int(1)
	if err != nil {
		return
	}
	col, err := cmd.Int(2)
	if err != nil {
		return
	}
	pos := engine.Position{Row: row, Col: col}
	if !pos.Valid() {
		return
	}
	if who == b.name {
		b.board[row][col] = b.mark
	} else {
		b.board[row][col] = opponent(b.mark)
	}
}

func (b *Bot) send(verb string, args ...string) error {
	b.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := b.conn.Write([]byte(protocol.Format(verb, args...) + "\n"))
	return errors.Wrapf(err, "send %s", verb)
}

func (b *Bot) next() (protocol.Command, error) {
	for b.lines.Scan() {
		cmd, err := protocol.Parse(b.lines.Text())
		if err != nil {
			continue
		}
		return cmd, nil
	}
	if err := b.lines.Err(); err != nil {
		return protocol.Command{}, errors.Wrap(err, "read")
	}
	return protocol.Command{}, ErrConnectionLost
}

// expect skips lines until verb arrives. An ERROR reply fails the wait;
// server PINGs are answered on the way.
func (b *Bot) expect(verb string) (protocol.Command, error) {
	for {
		cmd, err := b.next()
		if err != nil {
			return cmd, err
		}
		switch cmd.Verb {
		case verb:
			return cmd, nil
		case protocol.VerbError:
			return cmd, errors.Wrapf(ErrRefused, "waiting for %s: %s", verb, strings.Join(cmd.Args, "|"))
		case protocol.VerbPing:
			if err := b.send(protocol.VerbPong); err != nil {
				return cmd, err
			}
		}
	}
}

// parseListing decodes ROOMS|count|id|name|state|n/2...
func parseListing(cmd protocol.Command) ([]Listing, error) {
	count, err := cmd.Int(0)
	if err != nil {
		return nil, err
	}
	if len(cmd.Args) < 1+4*count {
		return nil, errors.Wrapf(protocol.ErrMalformed, "ROOMS announces %d rooms in %d fields", count, len(cmd.Args)-1)
	}
	out := make([]Listing, 0, count)
	for i := 0; i < count; i++ {
		base := 1 + 4*i
		id, err := cmd.Int(base)
		if err != nil {
			return nil, err
		}
		out = append(out, Listing{
			ID:       id,
			Name:     cmd.Args[base+1],
			State:    cmd.Args[base+2],
			Occupied: cmd.Args[base+3],
		})
	}
	return out, nil
}
