// Command roomstat prints a quick, human-readable view of a running
// tic-tac-toe server: the server statistics followed by a table of the
// active rooms, their players and whose turn it is. It reads the admin
// REST API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v3"
)

// RoomRow is the subset of a room the table shows.
type RoomRow struct {
	ID       int        `json:"id"`
	Name     string     `json:"name"`
	State    string     `json:"state"`
	Occupied int        `json:"occupied"`
	Slots    [2]SlotRow `json:"slots"`
	Turn     string     `json:"turn"`
	Outcome  string     `json:"outcome"`
}

// SlotRow is one seat of a room.
type SlotRow struct {
	State string `json:"state"`
	Name  string `json:"name"`
	Mark  string `json:"mark"`
}

// StatsView mirrors the /api/stats payload.
type StatsView struct {
	Sessions        int    `json:"sessions"`
	SessionCapacity int    `json:"session_capacity"`
	Named           int    `json:"named"`
	Rooms           int    `json:"rooms"`
	RoomCapacity    int    `json:"room_capacity"`
	WaitingRooms    int    `json:"waiting_rooms"`
	PlayingRooms    int    `json:"playing_rooms"`
	Disconnected    int    `json:"disconnected_slots"`
	GraceSeconds    int    `json:"grace_seconds"`
	Uptime          string `json:"uptime"`
}

func main() {
	cmd := &cli.Command{
		Name:  "roomstat",
		Usage: "show rooms and statistics of a running tic-tac-toe server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://127.0.0.1:8080",
				Usage:   "admin API base URL",
				Sources: cli.EnvVars("TTT_ADMIN_URL"),
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "only rooms in this state (WAITING or PLAYING)",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "disable coloured output",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, os.Stdout, cmd.String("url"), cmd.String("state"), !cmd.Bool("no-color"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "roomstat: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, baseURL, state string, colours bool) error {
	client := &http.Client{Timeout: 5 * time.Second}
	baseURL = strings.TrimRight(baseURL, "/")

	var stats StatsView
	if err := getJSON(ctx, client, baseURL+"/api/stats", &stats); err != nil {
		return err
	}

	path := "/api/rooms"
	if state != "" {
		path += "?state=" + strings.ToUpper(state)
	}
	var listing struct {
		Total int       `json:"total"`
		Rooms []RoomRow `json:"rooms"`
	}
	if err := getJSON(ctx, client, baseURL+path, &listing); err != nil {
		return err
	}

	printStats(w, stats)
	fmt.Fprintln(w)
	if len(listing.Rooms) == 0 {
		fmt.Fprintln(w, "No active rooms")
		return nil
	}
	printRooms(w, listing.Rooms, colours)
	return nil
}

func getJSON(ctx context.Context, client *http.Client, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("GET %s: %s", url, resp.Status)
	}
	return errors.Wrapf(json.NewDecoder(resp.Body).Decode(target), "decode %s", url)
}

func printStats(w io.Writer, s StatsView) {
	fmt.Fprintf(w, "Sessions: %d/%d (%d named)\n", s.Sessions, s.SessionCapacity, s.Named)
	fmt.Fprintf(w, "Rooms:    %d/%d (%d waiting, %d playing)\n", s.Rooms, s.RoomCapacity, s.WaitingRooms, s.PlayingRooms)
	fmt.Fprintf(w, "Reserved: %d slots, grace %ds\n", s.Disconnected, s.GraceSeconds)
	fmt.Fprintf(w, "Uptime:   %s\n", s.Uptime)
}

func printRooms(w io.Writer, rooms []RoomRow, colours bool) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Room", "State", "Players", "Player 1", "Player 2", "Turn"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, r := range rooms {
		turn := r.Turn
		if turn == "" {
			turn = lo.Ternary(r.Outcome == "" || r.Outcome == "not_started", "-", r.Outcome)
		}
		table.Append([]string{
			strconv.Itoa(r.ID),
			r.Name,
			paintState(r.State, colours),
			fmt.Sprintf("%d/2", r.Occupied),
			player(r.Slots[0], colours),
			player(r.Slots[1], colours),
			turn,
		})
	}
	table.Render()
}

// player renders a seat as "name (mark)"; reserved seats are flagged.
func player(slot SlotRow, colours bool) string {
	if slot.Name == "" {
		return "-"
	}
	name := slot.Name
	if slot.Mark != "" {
		name += " (" + slot.Mark + ")"
	}
	if slot.State != "disconnected" {
		return name
	}
	name += " away"
	if colours {
		return color.Gray.Render(name)
	}
	return name
}

func paintState(state string, colours bool) string {
	if !colours {
		return state
	}
	switch state {
	case "PLAYING":
		return color.Green.Render(state)
	case "WAITING":
		return color.Yellow.Render(state)
	default:
		return state
	}
}
