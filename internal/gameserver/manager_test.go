package gameserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/raid"
	"github.com/cory-johannsen/raid/internal/gameserver"
	"github.com/cory-johannsen/raid/internal/protocol"
)

type envelope struct {
	T  string          `json:"t"`
	ID string          `json:"id"`
	D  json.RawMessage `json:"d"`
}

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (f *fakeConn) Send(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("closed")
	}
	f.frames = append(f.frames, b)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) messages(t testing.TB) []envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]envelope, 0, len(f.frames))
	for _, b := range f.frames {
		var e envelope
		require.NoError(t, json.Unmarshal(b, &e))
		out = append(out, e)
	}
	return out
}

func (f *fakeConn) count(t testing.TB, typ string) int {
	n := 0
	for _, e := range f.messages(t) {
		if e.T == typ {
			n++
		}
	}
	return n
}

func (f *fakeConn) last(t testing.TB, typ string) (envelope, bool) {
	msgs := f.messages(t)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].T == typ {
			return msgs[i], true
		}
	}
	return envelope{}, false
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

type recordedRaid struct {
	roomID, code string
	summary      raid.Summary
}

type memResults struct {
	mu    sync.Mutex
	raids []recordedRaid
}

func (m *memResults) SaveRaid(_ context.Context, roomID, code string, s raid.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raids = append(m.raids, recordedRaid{roomID: roomID, code: code, summary: s})
	return nil
}

func (m *memResults) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.raids)
}

type harness struct {
	m       *gameserver.Manager
	ticks   *gameserver.TickSource
	clock   *clock
	results *memResults
	t0      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t0 := time.Unix(1_700_000_000, 0)
	h := &harness{
		ticks:   gameserver.NewTickSource(60),
		clock:   &clock{t: t0},
		results: &memResults{},
		t0:      t0,
	}
	h.m = gameserver.NewManager(gameserver.Config{
		Raid:     raid.Config{Duration: time.Second},
		Registry: character.DefaultRegistry(),
		Codec:    protocol.JSON{},
		Ticks:    h.ticks,
		Results:  h.results,
		Now:      h.clock.Now,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, h.m.Shutdown(ctx))
	})
	return h
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 2*time.Millisecond, msg)
}

// tick broadcasts one tick at t0+offset and waits until conn has seen one more state frame.
func (h *harness) tick(t *testing.T, conn *fakeConn, offset time.Duration) {
	t.Helper()
	before := conn.count(t, protocol.TypeState)
	h.ticks.Broadcast(h.t0.Add(offset))
	eventually(t, func() bool { return conn.count(t, protocol.TypeState) > before }, "state frame")
}

// startSolo creates a one-player room and starts its raid.
func (h *harness) startSolo(t *testing.T) (*fakeConn, protocol.RoomEntered) {
	t.Helper()
	conn := &fakeConn{}
	res, err := h.m.CreateRoom("Solo", character.Arcanist, 1, conn)
	require.NoError(t, err)
	require.NoError(t, h.m.StartRaid(res.PlayerID))
	eventually(t, func() bool { return conn.count(t, protocol.TypeRaidStarted) == 1 }, "raid_started")
	return conn, res
}

func TestCreateRoom_AssignsCodeAndHost(t *testing.T) {
	h := newHarness(t)
	res, err := h.m.CreateRoom("  Ana  ", character.Oracle, 4, &fakeConn{})
	require.NoError(t, err)

	assert.Len(t, res.Room.Code, 6)
	for _, r := range res.Room.Code {
		assert.True(t, strings.ContainsRune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789", r), "code rune %q", r)
	}
	assert.Equal(t, 4, res.Room.Capacity)
	assert.Equal(t, string(gameserver.StatusWaiting), res.Room.Status)
	assert.Equal(t, res.PlayerID, res.Room.HostID)
	require.Len(t, res.Room.Players, 1)
	assert.Equal(t, "Ana", res.Room.Players[0].Name)
	assert.True(t, res.Room.Players[0].Host)

	r, ok := h.m.RoomOf(res.PlayerID)
	require.True(t, ok)
	assert.Equal(t, res.Room.ID, r.ID)
	assert.Equal(t, 1, h.m.RoomCount())
}

func TestCreateRoom_DefaultsCapacityAndName(t *testing.T) {
	h := newHarness(t)
	res, err := h.m.CreateRoom("", "VANGUARD", 0, &fakeConn{})
	require.NoError(t, err)
	assert.Equal(t, gameserver.MaxCapacity, res.Room.Capacity)
	assert.Equal(t, "vanguard", res.Room.Players[0].Character)
	assert.NotEmpty(t, res.Room.Players[0].Name)
}

func TestCreateRoom_RejectsInvalidInput(t *testing.T) {
	h := newHarness(t)
	_, err := h.m.CreateRoom("a", character.Oracle, 7, &fakeConn{})
	assert.ErrorIs(t, err, gameserver.ErrInvalidCapacity)
	_, err = h.m.CreateRoom("a", character.Oracle, -1, &fakeConn{})
	assert.ErrorIs(t, err, gameserver.ErrInvalidCapacity)
	_, err = h.m.CreateRoom("a", "necromancer", 2, &fakeConn{})
	assert.ErrorIs(t, err, gameserver.ErrInvalidCharacter)
	assert.Zero(t, h.m.RoomCount())
	assert.Zero(t, h.m.PlayerCount())
}

func TestJoinRoom_NotifiesExistingMembers(t *testing.T) {
	h := newHarness(t)
	hostConn := &fakeConn{}
	host, err := h.m.CreateRoom("Host", character.Vanguard, 3, hostConn)
	require.NoError(t, err)

	joinConn := &fakeConn{}
	res, err := h.m.JoinRoom(strings.ToLower(host.Room.Code), "Guest", character.Gunslinger, joinConn)
	require.NoError(t, err)
	require.Len(t, res.Room.Players, 2)
	assert.Equal(t, host.PlayerID, res.Room.Players[0].ID)
	assert.Equal(t, res.PlayerID, res.Room.Players[1].ID)

	e, ok := hostConn.last(t, protocol.TypePlayerJoined)
	require.True(t, ok)
	var pj protocol.PlayerJoined
	require.NoError(t, json.Unmarshal(e.D, &pj))
	assert.Equal(t, "Guest", pj.Player.Name)
	assert.Zero(t, joinConn.count(t, protocol.TypePlayerJoined), "joiner is not told about itself")
}

func TestJoinRoom_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.m.JoinRoom("ZZZZZZ", "x", character.Oracle, &fakeConn{})
	assert.ErrorIs(t, err, gameserver.ErrRoomNotFound)
}

func TestJoinRoom_FullLeavesRosterUnchanged(t *testing.T) {
	h := newHarness(t)
	host, err := h.m.CreateRoom("h", character.Oracle, 2, &fakeConn{})
	require.NoError(t, err)
	_, err = h.m.JoinRoom(host.Room.Code, "a", character.Oracle, &fakeConn{})
	require.NoError(t, err)

	_, err = h.m.JoinRoom(host.Room.Code, "b", character.Oracle, &fakeConn{})
	assert.ErrorIs(t, err, gameserver.ErrRoomFull)
	assert.Equal(t, 2, h.m.PlayerCount())
	stats := h.m.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].Players)
}

func TestProperty_RoomNeverExceedsCapacity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := newHarness(t)
		capacity := rapid.IntRange(1, gameserver.MaxCapacity).Draw(rt, "capacity")
		attempts := rapid.IntRange(0, 10).Draw(rt, "attempts")

		host, err := h.m.CreateRoom("h", character.Bloodreaver, capacity, &fakeConn{})
		require.NoError(rt, err)
		for i := 0; i < attempts; i++ {
			before := h.m.PlayerCount()
			_, err := h.m.JoinRoom(host.Room.Code, "p", character.Oracle, &fakeConn{})
			if before >= capacity {
				require.ErrorIs(rt, err, gameserver.ErrRoomFull)
				require.Equal(rt, before, h.m.PlayerCount())
			} else {
				require.NoError(rt, err)
			}
			require.LessOrEqual(rt, h.m.PlayerCount(), capacity)
		}
		want := attempts + 1
		if want > capacity {
			want = capacity
		}
		assert.Equal(rt, want, h.m.PlayerCount())
	})
}

func TestStartRaid_HostAndReadyRules(t *testing.T) {
	h := newHarness(t)
	hostConn, guestConn := &fakeConn{}, &fakeConn{}
	host, err := h.m.CreateRoom("h", character.Oracle, 3, hostConn)
	require.NoError(t, err)
	guest, err := h.m.JoinRoom(host.Room.Code, "g", character.Arcanist, guestConn)
	require.NoError(t, err)

	assert.ErrorIs(t, h.m.StartRaid(guest.PlayerID), gameserver.ErrNotHost)
	assert.ErrorIs(t, h.m.StartRaid(host.PlayerID), gameserver.ErrNotAllReady)
	assert.ErrorIs(t, h.m.StartRaid("nobody"), gameserver.ErrNotInRoom)

	require.NoError(t, h.m.SetReady(guest.PlayerID, true))
	assert.Equal(t, 1, hostConn.count(t, protocol.TypePlayerReady))
	require.NoError(t, h.m.StartRaid(host.PlayerID))

	r, ok := h.m.RoomOf(host.PlayerID)
	require.True(t, ok)
	assert.Equal(t, gameserver.StatusActive, r.Status())
	eventually(t, func() bool { return guestConn.count(t, protocol.TypeRaidStarted) == 1 }, "guest raid_started")

	assert.ErrorIs(t, h.m.StartRaid(host.PlayerID), gameserver.ErrRaidStarted)
	assert.ErrorIs(t, h.m.SetReady(guest.PlayerID, false), gameserver.ErrRaidStarted)
	_, err = h.m.JoinRoom(host.Room.Code, "late", character.Oracle, &fakeConn{})
	assert.ErrorIs(t, err, gameserver.ErrRaidStarted)
}

func TestRaid_StreamsStateAndCompletesOnTimeout(t *testing.T) {
	h := newHarness(t)
	conn, res := h.startSolo(t)

	h.tick(t, conn, 500*time.Millisecond)
	e, ok := conn.last(t, protocol.TypeState)
	require.True(t, ok)
	var st struct {
		RoomID    string  `json:"roomId"`
		Completed bool    `json:"completed"`
		Remaining float64 `json:"remaining"`
		Players   []struct {
			ID string `json:"id"`
		} `json:"players"`
	}
	require.NoError(t, json.Unmarshal(e.D, &st))
	assert.Equal(t, res.Room.ID, st.RoomID)
	assert.False(t, st.Completed)
	assert.InDelta(t, 0.5, st.Remaining, 0.01)
	require.Len(t, st.Players, 1)
	assert.Equal(t, res.PlayerID, st.Players[0].ID)

	h.tick(t, conn, 1100*time.Millisecond)
	eventually(t, func() bool { return conn.count(t, protocol.TypeRaidCompleted) == 1 }, "raid_completed")

	done, _ := conn.last(t, protocol.TypeRaidCompleted)
	var cp gameserver.CompletedPayload
	require.NoError(t, json.Unmarshal(done.D, &cp))
	assert.Equal(t, raid.WinnerBoss, cp.Summary.Winner)
	assert.False(t, cp.Errored)

	r, _ := h.m.RoomOf(res.PlayerID)
	eventually(t, func() bool { return r.Status() == gameserver.StatusCompleted }, "completed status")
	assert.Zero(t, h.ticks.Subscribers(), "completed rooms stop ticking")
	eventually(t, func() bool { return h.results.len() == 1 }, "result persisted")
	assert.Equal(t, res.Room.Code, h.results.raids[0].code)
}

func TestAct_RequiresActiveRaid(t *testing.T) {
	h := newHarness(t)
	res, err := h.m.CreateRoom("h", character.Oracle, 1, &fakeConn{})
	require.NoError(t, err)
	noop := func(*raid.GameRoom, string, time.Time) error { return nil }
	assert.ErrorIs(t, h.m.Act(res.PlayerID, "", noop), gameserver.ErrRaidNotActive)
	assert.ErrorIs(t, h.m.Act("ghost", "", noop), gameserver.ErrNotInRoom)
}

func TestAct_RejectionGoesToSenderOnly(t *testing.T) {
	h := newHarness(t)
	hostConn, guestConn := &fakeConn{}, &fakeConn{}
	host, err := h.m.CreateRoom("h", character.Oracle, 2, hostConn)
	require.NoError(t, err)
	guest, err := h.m.JoinRoom(host.Room.Code, "g", character.Vanguard, guestConn)
	require.NoError(t, err)
	require.NoError(t, h.m.SetReady(guest.PlayerID, true))
	require.NoError(t, h.m.StartRaid(host.PlayerID))
	eventually(t, func() bool { return guestConn.count(t, protocol.TypeRaidStarted) == 1 }, "raid_started")

	reject := func(*raid.GameRoom, string, time.Time) error { return raid.ErrDodgeNotReady }
	require.NoError(t, h.m.Act(guest.PlayerID, "42", reject))
	eventually(t, func() bool { return guestConn.count(t, protocol.TypeError) == 1 }, "error envelope")

	e, _ := guestConn.last(t, protocol.TypeError)
	assert.Equal(t, "42", e.ID)
	var ep protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(e.D, &ep))
	assert.Equal(t, protocol.CodeRejected, ep.Code)
	assert.Zero(t, hostConn.count(t, protocol.TypeError))
}

func TestLeave_PassesHostAndDestroysEmptyRoom(t *testing.T) {
	h := newHarness(t)
	hostConn, guestConn := &fakeConn{}, &fakeConn{}
	host, err := h.m.CreateRoom("h", character.Oracle, 2, hostConn)
	require.NoError(t, err)
	guest, err := h.m.JoinRoom(host.Room.Code, "g", character.Oracle, guestConn)
	require.NoError(t, err)

	require.NoError(t, h.m.Leave(host.PlayerID))
	r, ok := h.m.RoomOf(guest.PlayerID)
	require.True(t, ok)
	assert.Equal(t, guest.PlayerID, r.HostID())

	e, ok := guestConn.last(t, protocol.TypePlayerLeft)
	require.True(t, ok)
	var pl protocol.PlayerLeft
	require.NoError(t, json.Unmarshal(e.D, &pl))
	assert.Equal(t, host.PlayerID, pl.PlayerID)
	assert.Equal(t, guest.PlayerID, pl.HostID)

	assert.ErrorIs(t, h.m.Leave(host.PlayerID), gameserver.ErrNotInRoom)
	require.NoError(t, h.m.Leave(guest.PlayerID))
	assert.Zero(t, h.m.RoomCount())
	_, ok = h.m.RoomByCode(host.Room.Code)
	assert.False(t, ok)
}

func TestLeave_LastPlayerDuringRaidDestroysRoom(t *testing.T) {
	h := newHarness(t)
	_, res := h.startSolo(t)
	require.NoError(t, h.m.Leave(res.PlayerID))
	assert.Zero(t, h.m.RoomCount())
	eventually(t, func() bool { return h.ticks.Subscribers() == 0 }, "unsubscribed")
}

func TestRoomPanic_IsolatedToOneRoom(t *testing.T) {
	h := newHarness(t)
	badConn, bad := h.startSolo(t)
	goodConn, good := h.startSolo(t)

	boom := func(*raid.GameRoom, string, time.Time) error { panic("boom") }
	require.NoError(t, h.m.Act(bad.PlayerID, "", boom))

	badRoom, _ := h.m.RoomOf(bad.PlayerID)
	eventually(t, badRoom.Errored, "room marked errored")
	assert.Equal(t, gameserver.StatusCompleted, badRoom.Status())
	eventually(t, func() bool { return badConn.count(t, protocol.TypeRaidCompleted) == 1 }, "errored summary")
	e, ok := badConn.last(t, protocol.TypeError)
	require.True(t, ok)
	assert.Contains(t, string(e.D), protocol.CodeInternal)

	h.tick(t, goodConn, 100*time.Millisecond)
	goodRoom, _ := h.m.RoomOf(good.PlayerID)
	assert.Equal(t, gameserver.StatusActive, goodRoom.Status())
	assert.False(t, goodRoom.Errored())
}

func TestStats_SortedByCode(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 4; i++ {
		_, err := h.m.CreateRoom("h", character.Oracle, 2, &fakeConn{})
		require.NoError(t, err)
	}
	stats := h.m.Stats()
	require.Len(t, stats, 4)
	for i := 1; i < len(stats); i++ {
		assert.Less(t, stats[i-1].Code, stats[i].Code)
	}
	for _, s := range stats {
		assert.Equal(t, gameserver.StatusWaiting, s.Status)
		assert.Equal(t, 1, s.Players)
		assert.Equal(t, h.t0, s.CreatedAt)
	}
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{gameserver.ErrRoomFull, protocol.CodeRoomFull},
		{gameserver.ErrRoomNotFound, protocol.CodeRoomNotFound},
		{gameserver.ErrNotHost, protocol.CodeNotHost},
		{gameserver.ErrNotAllReady, protocol.CodeNotAllReady},
		{gameserver.ErrInvalidCapacity, protocol.CodeInvalidCapacity},
		{raid.ErrRaidOver, protocol.CodeRaidNotActive},
		{protocol.ErrMalformed, protocol.CodeBadRequest},
		{errors.New("anything else"), protocol.CodeRejected},
	}
	for _, tc := range cases {
		wrapped := errors.Join(errors.New("context"), tc.err)
		assert.Equal(t, tc.code, gameserver.ErrorCode(wrapped), tc.err.Error())
	}
}
