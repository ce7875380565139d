package room

import (
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/tictactoe/game/engine"
	"github.com/wricardo/mcp-training/tictactoe/game/protocol"
	"github.com/wricardo/mcp-training/tictactoe/game/session"
)

// recorder captures every line delivered to each session.
type recorder struct {
	mu    sync.Mutex
	lines map[string][]string
}

func newRecorder() *recorder {
	return &recorder{lines: make(map[string][]string)}
}

func (r *recorder) Notify(sessionID string, msg protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[sessionID] = append(r.lines[sessionID], msg.String())
}

func (r *recorder) take(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.lines[sessionID]
	delete(r.lines, sessionID)
	return out
}

var (
	alice = Member{SessionID: "a", Name: "alice", Secret: "secret-a"}
	bob   = Member{SessionID: "b", Name: "bob", Secret: "secret-b"}
	carol = Member{SessionID: "c", Name: "carol", Secret: "secret-c"}
)

func newTestRegistry(capacity int) (*Registry, *recorder) {
	rec := newRecorder()
	return NewRegistry(capacity, 15*time.Second, rec), rec
}

// startGame creates room "lobby" for alice, seats bob and drains the
// notifications.
func startGame(t *testing.T, g *Registry, rec *recorder) int {
	t.Helper()
	info, _, err := g.Create("lobby", alice)
	require.NoError(t, err)
	_, _, err = g.Join(info.ID, bob)
	require.NoError(t, err)
	rec.take(alice.SessionID)
	rec.take(bob.SessionID)
	return info.ID
}

func play(t *testing.T, g *Registry, moves ...struct {
	id       string
	row, col int
}) engine.Outcome {
	t.Helper()
	var outcome engine.Outcome
	for _, m := range moves {
		var err error
		outcome, err = g.Move(m.id, engine.Position{Row: m.row, Col: m.col})
		require.NoError(t, err)
	}
	return outcome
}

type mv = struct {
	id       string
	row, col int
}

func TestRegistry_CreateAndJoin(t *testing.T) {
	g, rec := newTestRegistry(4)

	info, assignments, err := g.Create("lobby", alice)
	require.NoError(t, err)
	assert.Equal(t, 0, info.ID)
	assert.Equal(t, Waiting, info.State)
	assert.Equal(t, []session.Assignment{session.ToRoom("a", 0, session.Waiting)}, unstamped(assignments))
	assert.Equal(t, []string{"##CREATED|0|lobby"}, rec.take("a"))
	assert.Equal(t, "##ROOMS|1|0|lobby|WAITING|1/2", g.Listing().String())

	info, assignments, err = g.Join(0, bob)
	require.NoError(t, err)
	assert.Equal(t, Playing, info.State)
	assert.Equal(t, "X", info.Slots[0].Mark)
	assert.Equal(t, "O", info.Slots[1].Mark)
	assert.Equal(t, "alice", info.Turn)
	assert.ElementsMatch(t, []session.Assignment{
		session.ToRoom("a", 0, session.Playing),
		session.ToRoom("b", 0, session.Playing),
	}, unstamped(assignments))

	assert.Equal(t, []string{
		"##START|Opponent:bob",
		"##CLEAR|",
		"##SYMBOL|X",
		"##TURN|Your move",
	}, rec.take("a"))
	assert.Equal(t, []string{
		"##JOINEDROOM|0|lobby",
		"##START|Opponent:alice",
		"##CLEAR|",
		"##SYMBOL|O",
	}, rec.take("b"))
	assert.Equal(t, "##ROOMS|1|0|lobby|PLAYING|2/2", g.Listing().String())
}

func TestRegistry_JoinErrors(t *testing.T) {
	g, _ := newTestRegistry(4)
	_, _, err := g.Create("lobby", alice)
	require.NoError(t, err)

	_, _, err = g.Join(9, bob)
	assert.ErrorIs(t, err, ErrNoSuchRoom)

	_, _, err = g.Join(0, alice)
	assert.ErrorIs(t, err, ErrOwnRoom)

	_, _, err = g.Join(0, bob)
	require.NoError(t, err)

	_, _, err = g.Join(0, carol)
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestRegistry_Capacity(t *testing.T) {
	g, _ := newTestRegistry(1)

	_, _, err := g.Create("one", alice)
	require.NoError(t, err)

	_, _, err = g.Create("two", bob)
	assert.ErrorIs(t, err, ErrLobbyFull)
}

func TestRegistry_IDsAreNeverReused(t *testing.T) {
	g, _ := newTestRegistry(4)

	first, _, err := g.Create("one", alice)
	require.NoError(t, err)
	_, err = g.Leave(alice.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Count())

	second, _, err := g.Create("two", alice)
	require.NoError(t, err)
	assert.Equal(t, first.ID+1, second.ID)
}

func TestRegistry_MoveWin(t *testing.T) {
	g, rec := newTestRegistry(4)
	id := startGame(t, g, rec)

	outcome := play(t, g, mv{"a", 0, 0}, mv{"b", 1, 0}, mv{"a", 0, 1}, mv{"b", 1, 1}, mv{"a", 0, 2})
	assert.Equal(t, engine.Won, outcome)

	a := rec.take("a")
	b := rec.take("b")
	assert.Equal(t, "##MOVE|alice|0|2", a[len(a)-2])
	assert.Equal(t, "##WIN|You", a[len(a)-1])
	assert.Equal(t, "##LOSE|alice", b[len(b)-1])
	assert.Contains(t, b, "##TURN|Your move")

	info, err := g.Get(id)
	require.NoError(t, err)
	assert.Equal(t, engine.Won.String(), info.Outcome)
	assert.Equal(t, []string{"XXX", "OO.", "..."}, info.Board)

	_, err = g.Move("b", engine.Position{Row: 2, Col: 2})
	assert.ErrorIs(t, err, engine.ErrGameFinished)
}

func TestRegistry_MoveRejections(t *testing.T) {
	g, rec := newTestRegistry(4)
	startGame(t, g, rec)

	_, err := g.Move("b", engine.Position{Row: 0, Col: 0})
	assert.ErrorIs(t, err, engine.ErrNotYourTurn)

	_, err = g.Move("a", engine.Position{Row: 3, Col: 0})
	assert.ErrorIs(t, err, engine.ErrInvalidPosition)

	play(t, g, mv{"a", 1, 1})
	_, err = g.Move("b", engine.Position{Row: 1, Col: 1})
	assert.ErrorIs(t, err, engine.ErrOccupied)

	_, err = g.Move("c", engine.Position{Row: 0, Col: 0})
	assert.ErrorIs(t, err, ErrNotInRoom)

	assert.Equal(t, []string{"##MOVE|alice|1|1", "##TURN|Your move"}, rec.take("b"), "rejections send nothing")
}

func TestRegistry_Draw(t *testing.T) {
	g, rec := newTestRegistry(4)
	startGame(t, g, rec)

	outcome := play(t, g,
		mv{"a", 0, 0}, mv{"b", 0, 1}, mv{"a", 0, 2},
		mv{"b", 1, 1}, mv{"a", 1, 0}, mv{"b", 1, 2},
		mv{"a", 2, 1}, mv{"b", 2, 0}, mv{"a", 2, 2},
	)
	assert.Equal(t, engine.Draw, outcome)

	a := rec.take("a")
	b := rec.take("b")
	assert.Equal(t, "##DRAW|", a[len(a)-1])
	assert.Equal(t, "##DRAW|", b[len(b)-1])
}

func TestRegistry_Replay(t *testing.T) {
	t.Run("both confirm flips the starter", func(t *testing.T) {
		g, rec := newTestRegistry(4)
		id := startGame(t, g, rec)
		play(t, g, mv{"a", 0, 0}, mv{"b", 1, 0}, mv{"a", 0, 1}, mv{"b", 1, 1}, mv{"a", 0, 2})
		rec.take("a")
		rec.take("b")

		assignments, err := g.Confirm("a")
		require.NoError(t, err)
		assert.Nil(t, assignments)
		assert.Equal(t, []string{"##INFO|Replay confirmed"}, rec.take("a"))

		assignments, err = g.Confirm("b")
		require.NoError(t, err)
		assert.Len(t, assignments, 2)

		assert.Equal(t, []string{
			"##INFO|Replay confirmed",
			"##RESTART|",
			"##CLEAR|",
			"##SYMBOL|X",
			"##TURN|Your move",
		}, rec.take("b"))
		assert.Equal(t, []string{"##RESTART|", "##CLEAR|", "##SYMBOL|O"}, rec.take("a"))

		info, err := g.Get(id)
		require.NoError(t, err)
		assert.Equal(t, "bob", info.Turn)
		assert.Equal(t, "O", info.Slots[0].Mark)
		assert.Equal(t, []string{"...", "...", "..."}, info.Board)
	})

	t.Run("replay is refused while the round runs", func(t *testing.T) {
		g, rec := newTestRegistry(4)
		startGame(t, g, rec)

		_, err := g.Confirm("a")
		assert.ErrorIs(t, err, ErrGameInProgress)
		_, err = g.Decline("a")
		assert.ErrorIs(t, err, ErrGameInProgress)
	})

	t.Run("replay is refused before a round started", func(t *testing.T) {
		g, _ := newTestRegistry(4)
		_, _, err := g.Create("solo", alice)
		require.NoError(t, err)

		_, err = g.Confirm("a")
		assert.ErrorIs(t, err, engine.ErrGameNotStarted)
	})

	t.Run("decline leaves the opponent waiting in slot 0", func(t *testing.T) {
		g, rec := newTestRegistry(4)
		id := startGame(t, g, rec)
		play(t, g, mv{"a", 0, 0}, mv{"b", 1, 0}, mv{"a", 0, 1}, mv{"b", 1, 1}, mv{"a", 0, 2})
		rec.take("a")
		rec.take("b")

		assignments, err := g.Decline("a")
		require.NoError(t, err)
		assert.Equal(t, []session.Assignment{
			session.ToLobby("a"),
			session.ToRoom("b", id, session.Waiting),
		}, unstamped(assignments))
		assert.Equal(t, []string{"##INFO|You declined replay", "##EXITED|"}, rec.take("a"))
		assert.Equal(t, []string{"##INFO|Opponent declined replay"}, rec.take("b"))
		assert.Equal(t, "##ROOMS|1|0|lobby|WAITING|1/2", g.Listing().String())

		_, _, err = g.Join(id, carol)
		require.NoError(t, err)
		info, _ := g.Get(id)
		assert.Equal(t, "bob", info.Slots[0].Name)
		assert.Equal(t, "X", info.Slots[0].Mark)
		assert.Equal(t, "carol", info.Slots[1].Name)
		assert.Contains(t, rec.take("b"), "##TURN|Your move")
	})
}

func TestRegistry_Leave(t *testing.T) {
	t.Run("leaving a running game awards the win", func(t *testing.T) {
		g, rec := newTestRegistry(4)
		id := startGame(t, g, rec)

		assignments, err := g.Leave("a")
		require.NoError(t, err)
		assert.Equal(t, []session.Assignment{
			session.ToLobby("a"),
			session.ToRoom("b", id, session.Waiting),
		}, unstamped(assignments))
		assert.Equal(t, []string{"##EXITED|"}, rec.take("a"))
		assert.Equal(t, []string{"##INFO|Opponent left", "##WIN|You"}, rec.take("b"))

		info, err := g.Get(id)
		require.NoError(t, err)
		assert.Equal(t, Waiting, info.State)
		assert.Equal(t, Vacant, info.Slots[0].State)
	})

	t.Run("last occupant reclaims the room", func(t *testing.T) {
		g, _ := newTestRegistry(4)
		_, _, err := g.Create("solo", alice)
		require.NoError(t, err)

		assignments, err := g.Leave("a")
		require.NoError(t, err)
		assert.Equal(t, []session.Assignment{session.ToLobby("a")}, unstamped(assignments))
		assert.Equal(t, 0, g.Count())
		assert.Equal(t, "##ROOMS|0", g.Listing().String())
	})

	t.Run("not in room", func(t *testing.T) {
		g, _ := newTestRegistry(4)
		_, err := g.Leave("nobody")
		assert.ErrorIs(t, err, ErrNotInRoom)
	})
}

func TestRegistry_DisconnectAndReconnect(t *testing.T) {
	g, rec := newTestRegistry(4)
	id := startGame(t, g, rec)
	play(t, g, mv{"a", 2, 2}, mv{"b", 0, 1}, mv{"a", 1, 0})
	rec.take("a")
	rec.take("b")

	// bob drops while holding the turn
	assignments := g.Disconnect("b")
	assert.Equal(t, []session.Assignment{
		session.ToLobby("b"),
		session.ToRoom("a", id, session.Waiting),
	}, unstamped(assignments))
	assert.Equal(t, []string{"##INFO|Opponent disconnected, reconnect window 15s"}, rec.take("a"))
	assert.Equal(t, "##ROOMS|1|0|lobby|WAITING|2/2", g.Listing().String())

	info, _ := g.Get(id)
	assert.Equal(t, Disconnected, info.Slots[1].State)
	assert.Empty(t, info.Slots[1].SessionID)
	assert.NotNil(t, info.Slots[1].DisconnectedAt)
	assert.Empty(t, info.Turn)

	_, err := g.Move("a", engine.Position{Row: 0, Col: 0})
	assert.ErrorIs(t, err, engine.ErrNotYourTurn)

	_, _, err = g.Join(id, carol)
	assert.ErrorIs(t, err, ErrRoomFull, "a preserved slot is not free")

	_, _, err = g.Reconnect("bob", "wrong", Member{SessionID: "b2"})
	assert.ErrorIs(t, err, ErrNoReconnectSlot)
	_, _, err = g.Reconnect("alice", "secret-a", Member{SessionID: "b2"})
	assert.ErrorIs(t, err, ErrNoReconnectSlot)

	info, assignments, err = g.Reconnect("bob", "secret-b", Member{SessionID: "b2", Name: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, Playing, info.State)
	assert.Equal(t, "bob", info.Slots[1].Name)
	assert.Equal(t, "bob", info.Turn)
	assert.ElementsMatch(t, []session.Assignment{
		session.ToRoom("a", id, session.Playing),
		session.ToRoom("b2", id, session.Playing),
	}, unstamped(assignments))

	assert.Equal(t, []string{
		"##RECONNECTED|0|lobby",
		"##START|Opponent:alice",
		"##SYMBOL|O",
		"##MOVE|bob|0|1",
		"##MOVE|alice|1|0",
		"##MOVE|alice|2|2",
		"##TURN|Your move",
	}, rec.take("b2"))
	assert.Equal(t, []string{"##INFO|Opponent reconnected"}, rec.take("a"))

	_, err = g.Move("b2", engine.Position{Row: 0, Col: 0})
	assert.NoError(t, err)
}

func TestRegistry_DisconnectWithoutRoom(t *testing.T) {
	g, _ := newTestRegistry(4)
	assert.Nil(t, g.Disconnect("nobody"))
}

func TestRegistry_DisconnectLastLiveReclaims(t *testing.T) {
	g, _ := newTestRegistry(4)
	_, _, err := g.Create("solo", alice)
	require.NoError(t, err)

	assignments := g.Disconnect("a")
	assert.Equal(t, []session.Assignment{session.ToLobby("a")}, unstamped(assignments))
	assert.Equal(t, 0, g.Count())

	_, _, err = g.Reconnect("alice", "secret-a", Member{SessionID: "a2"})
	assert.ErrorIs(t, err, ErrNoReconnectSlot)
}

func TestRegistry_Prune(t *testing.T) {
	g, rec := newTestRegistry(4)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return start }

	id := startGame(t, g, rec)
	play(t, g, mv{"a", 0, 0})
	g.Disconnect("b")
	rec.take("a")

	assignments, pruned := g.Prune(15*time.Second, start.Add(10*time.Second))
	assert.Empty(t, assignments)
	assert.Zero(t, pruned)
	assert.Equal(t, 1, g.Count())

	assignments, pruned = g.Prune(15*time.Second, start.Add(16*time.Second))
	assert.Equal(t, 1, pruned)
	assert.Equal(t, []session.Assignment{session.ToLobby("a")}, unstamped(assignments))
	assert.Equal(t, []string{"##INFO|Opponent forfeited", "##WIN|You", "##EXITED|"}, rec.take("a"))

	_, err := g.Get(id)
	assert.ErrorIs(t, err, ErrNoSuchRoom)
	assert.Equal(t, 0, g.Count())

	_, _, err = g.Reconnect("bob", "secret-b", Member{SessionID: "b2"})
	assert.ErrorIs(t, err, ErrNoReconnectSlot)
}

func TestRegistry_PruneAfterConcludedRound(t *testing.T) {
	g, rec := newTestRegistry(4)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return start }

	startGame(t, g, rec)
	outcome := play(t, g, mv{"a", 0, 0}, mv{"b", 1, 0}, mv{"a", 0, 1}, mv{"b", 1, 1}, mv{"a", 0, 2})
	require.Equal(t, engine.Won, outcome)
	g.Disconnect("b")
	rec.take("a")

	assignments, pruned := g.Prune(15*time.Second, start.Add(16*time.Second))
	assert.Equal(t, 1, pruned)
	assert.Equal(t, []session.Assignment{session.ToLobby("a")}, unstamped(assignments))
	assert.Equal(t, []string{"##INFO|Opponent forfeited", "##EXITED|"}, rec.take("a"))
	assert.Equal(t, 0, g.Count())
}

func TestRegistry_StaleAssignmentsSkipped(t *testing.T) {
	setup := func(t *testing.T) (*Registry, *session.Manager, Member, Member) {
		g, _ := newTestRegistry(4)
		m := session.NewManager(4)
		a, err := m.Admit("a")
		require.NoError(t, err)
		b, err := m.Admit("b")
		require.NoError(t, err)
		owner := Member{SessionID: a.ID, Name: "alice", Secret: a.Secret}
		joiner := Member{SessionID: b.ID, Name: "bob", Secret: b.Secret}

		_, created, err := g.Create("lobby", owner)
		require.NoError(t, err)
		m.Apply(created...)
		return g, m, owner, joiner
	}

	assertLeft := func(t *testing.T, m *session.Manager, owner, joiner Member) {
		got, err := m.Get(owner.SessionID)
		require.NoError(t, err)
		assert.Equal(t, session.Lobby, got.State)
		assert.False(t, got.InRoom())

		got, err = m.Get(joiner.SessionID)
		require.NoError(t, err)
		assert.Equal(t, session.Waiting, got.State)
		assert.Equal(t, 0, got.RoomID)
	}

	t.Run("join applied after leave", func(t *testing.T) {
		g, m, owner, joiner := setup(t)

		_, joined, err := g.Join(0, joiner)
		require.NoError(t, err)
		left, err := g.Leave(owner.SessionID)
		require.NoError(t, err)

		m.Apply(left...)
		m.Apply(joined...)
		assertLeft(t, m, owner, joiner)
	})

	t.Run("in order", func(t *testing.T) {
		g, m, owner, joiner := setup(t)

		_, joined, err := g.Join(0, joiner)
		require.NoError(t, err)
		m.Apply(joined...)
		left, err := g.Leave(owner.SessionID)
		require.NoError(t, err)
		m.Apply(left...)
		assertLeft(t, m, owner, joiner)
	})

	t.Run("join applied after prune", func(t *testing.T) {
		g, m, owner, joiner := setup(t)
		start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		g.now = func() time.Time { return start }

		_, joined, err := g.Join(0, joiner)
		require.NoError(t, err)
		m.Apply(g.Disconnect(owner.SessionID)...)
		pruned, n := g.Prune(15*time.Second, start.Add(16*time.Second))
		require.Equal(t, 1, n)

		m.Apply(pruned...)
		m.Apply(joined...)

		got, err := m.Get(joiner.SessionID)
		require.NoError(t, err)
		assert.Equal(t, session.Lobby, got.State)
		assert.False(t, got.InRoom())
		assert.Equal(t, 0, g.Count())
	})
}

func TestRegistry_SecretReserved(t *testing.T) {
	g, rec := newTestRegistry(4)
	startGame(t, g, rec)

	assert.False(t, g.SecretReserved("secret-b"), "live slot secrets belong to the session registry")
	g.Disconnect("b")
	assert.True(t, g.SecretReserved("secret-b"))
	assert.False(t, g.SecretReserved("secret-a"))

	_, _, err := g.Reconnect("bob", "secret-b", Member{SessionID: "b2"})
	require.NoError(t, err)
	assert.False(t, g.SecretReserved("secret-b"))
}

func TestRegistry_ConcurrentRooms(t *testing.T) {
	g, _ := newTestRegistry(64)
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := Member{SessionID: "owner-" + string(rune('A'+i)), Name: "o"}
			joiner := Member{SessionID: "joiner-" + string(rune('A'+i)), Name: "j"}
			info, _, err := g.Create("r", owner)
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			if _, _, err := g.Join(info.ID, joiner); err != nil {
				t.Errorf("join: %v", err)
				return
			}
			g.Listing()
			g.Disconnect(joiner.SessionID)
			g.Leave(owner.SessionID)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, g.Count())
}

// unstamped drops the sequence numbers so assignments compare by content.
func unstamped(in []session.Assignment) []session.Assignment {
	return lo.Map(in, func(a session.Assignment, _ int) session.Assignment {
		a.Seq = 0
		return a
	})
}
