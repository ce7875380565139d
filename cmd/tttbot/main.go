// Command tttbot plays tic-tac-toe against a running server over the TCP
// line protocol. It joins the first waiting room (or hosts one), plays a
// number of rounds with a win/block/centre strategy and prints the tally.
// With --pair it starts two bots that play each other, which makes a quick
// end-to-end smoke test of a deployment.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/tictactoe/logging"
)

func main() {
	cmd := &cli.Command{
		Name:  "tttbot",
		Usage: "play tic-tac-toe against a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "127.0.0.1:10000", Usage: "server TCP address", Sources: cli.EnvVars("TTT_ADDR")},
			&cli.StringFlag{Name: "name", Value: "bot", Usage: "player name"},
			&cli.StringFlag{Name: "room", Value: "bot-room", Usage: "room to host when none is waiting"},
			&cli.IntFlag{Name: "join", Usage: "join this room id instead of searching"},
			&cli.IntFlag{Name: "rounds", Value: 1, Usage: "rounds to play"},
			&cli.BoolFlag{Name: "pair", Usage: "run two bots against each other"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "log level"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "tttbot: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if _, err := logging.Setup(cmd.String("log-level"), ""); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cmd.String("addr")
	rounds := max(int(cmd.Int("rounds")), 1)

	if cmd.Bool("pair") {
		host, guest, err := match(ctx, addr, cmd.String("room"), rounds)
		if err != nil {
			return err
		}
		fmt.Printf("host:  %s\nguest: %s\n", formatTally(host), formatTally(guest))
		return nil
	}

	bot, err := Dial(ctx, addr, cmd.String("name"))
	if err != nil {
		return err
	}
	defer bot.Quit()

	if err := seat(bot, int(cmd.Int("join")), cmd.String("room")); err != nil {
		return err
	}

	tally, err := bot.Play(ctx, rounds)
	if err != nil {
		return err
	}
	fmt.Println(formatTally(tally))
	return nil
}

// seat joins room id when given, else the first waiting room, else hosts
// a new room named room.
func seat(bot *Bot, id int, room string) error {
	if id > 0 {
		return bot.Join(id)
	}

	rooms, err := bot.Rooms()
	if err != nil {
		return err
	}
	if waiting, ok := lo.Find(rooms, func(l Listing) bool { return l.State == "WAITING" && l.Occupied == "1/2" }); ok {
		logrus.WithFields(logrus.Fields{"room": waiting.ID, "name": waiting.Name}).Info("joining waiting room")
		return bot.Join(waiting.ID)
	}

	created, err := bot.Host(room)
	if err != nil {
		return err
	}
	logrus.WithField("room", created).Info("hosting room")
	return nil
}

// match plays two bots against each other in a fresh room.
func match(ctx context.Context, addr, room string, rounds int) (Tally, Tally, error) {
	host, err := Dial(ctx, addr, "host-bot")
	if err != nil {
		return Tally{}, Tally{}, err
	}
	defer host.Quit()

	guest, err := Dial(ctx, addr, "guest-bot")
	if err != nil {
		return Tally{}, Tally{}, err
	}
	defer guest.Quit()

	id, err := host.Host(room)
	if err != nil {
		return Tally{}, Tally{}, err
	}
	if err := guest.Join(id); err != nil {
		return Tally{}, Tally{}, errors.Wrapf(err, "join room %d", id)
	}

	var hostTally, guestTally Tally
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		hostTally, err = host.Play(gCtx, rounds)
		return err
	})
	g.Go(func() (err error) {
		guestTally, err = guest.Play(gCtx, rounds)
		return err
	})
	return hostTally, guestTally, g.Wait()
}

func formatTally(t Tally) string {
	return fmt.Sprintf("%d rounds: %d won, %d lost, %d drawn", t.Rounds(), t.Wins, t.Losses, t.Draws)
}
