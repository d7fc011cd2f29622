package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/raid/internal/config"
	"github.com/cory-johannsen/raid/internal/frontend/ws"
	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/raid"
	"github.com/cory-johannsen/raid/internal/gameserver"
	"github.com/cory-johannsen/raid/internal/protocol"
	"github.com/cory-johannsen/raid/internal/testutil"
)

func wsConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		Host:         "127.0.0.1",
		Port:         0,
		Encoding:     "json",
		WriteTimeout: time.Second,
		OutboxSize:   16,
		ReadLimit:    4096,
	}
}

func newManager(t *testing.T, codec protocol.Codec) *gameserver.Manager {
	t.Helper()
	m := gameserver.NewManager(gameserver.Config{
		Registry: character.DefaultRegistry(),
		Codec:    codec,
		Ticks:    gameserver.NewTickSource(60),
		Logger:   zaptest.NewLogger(t),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

func startServer(t *testing.T, cfg config.WebSocketConfig, m *gameserver.Manager) (*ws.Server, *httptest.Server) {
	t.Helper()
	srv := ws.NewServer(cfg, false, m, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + ws.PathSocket
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

type envelope struct {
	Type    string          `json:"t"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"d"`
}

func readJSON(t *testing.T, c *websocket.Conn) envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	typ, data, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func write(t *testing.T, c *websocket.Conn, typ websocket.MessageType, frame []byte) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, typ, frame))
}

func health(t *testing.T, ts *httptest.Server) ws.Health {
	t.Helper()
	resp, err := http.Get(ts.URL + ws.PathHealth)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var h ws.Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	return h
}

func TestServer_CreateRoomOverJSON(t *testing.T) {
	m := newManager(t, protocol.JSON{})
	srv, ts := startServer(t, wsConfig(), m)
	c := dial(t, ts)

	write(t, c, websocket.MessageText, []byte(`{"t":"create_room","id":"1","d":{"name":"Ada","character":"arcanist"}}`))
	env := readJSON(t, c)
	assert.Equal(t, protocol.TypeRoomCreated, env.Type)
	assert.Equal(t, "1", env.ID)

	var entered protocol.RoomEntered
	require.NoError(t, json.Unmarshal(env.Payload, &entered))
	assert.Len(t, entered.Room.Code, 6)
	assert.Equal(t, entered.PlayerID, entered.Room.HostID)

	h := health(t, ts)
	assert.Equal(t, "ok", h.Status)
	assert.EqualValues(t, 1, h.Connections)
	assert.Equal(t, 1, h.Rooms)
	assert.Equal(t, 1, h.Players)
	assert.EqualValues(t, 1, srv.Connections())
}

func TestServer_MalformedFrameKeepsConnection(t *testing.T) {
	m := newManager(t, protocol.JSON{})
	_, ts := startServer(t, wsConfig(), m)
	c := dial(t, ts)

	write(t, c, websocket.MessageText, []byte(`not json`))
	env := readJSON(t, c)
	assert.Equal(t, protocol.TypeError, env.Type)
	var e protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &e))
	assert.Equal(t, protocol.CodeBadRequest, e.Code)

	write(t, c, websocket.MessageText, []byte(`{"t":"start_raid","id":"2"}`))
	env = readJSON(t, c)
	assert.Equal(t, protocol.TypeError, env.Type)
	assert.Equal(t, "2", env.ID)
}

func TestServer_MsgpackUsesBinaryFrames(t *testing.T) {
	m := newManager(t, protocol.Msgpack{})
	cfg := wsConfig()
	cfg.Encoding = "msgpack"
	_, ts := startServer(t, cfg, m)
	c := dial(t, ts)

	frame, err := protocol.Msgpack{}.Encode(protocol.TypeCreateRoom, "7", protocol.CreateRoom{Name: "Bo", Character: "vanguard"})
	require.NoError(t, err)
	write(t, c, websocket.MessageBinary, frame)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	typ, data, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageBinary, typ)

	in, err := protocol.Msgpack{}.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeRoomCreated, in.Type)
	assert.Equal(t, "7", in.ID)
	var entered protocol.RoomEntered
	require.NoError(t, in.Payload(&entered))
	assert.NotEmpty(t, entered.PlayerID)

	var raw map[string]any
	require.NoError(t, msgpack.Unmarshal(data, &raw))
	assert.Contains(t, raw, "t")
}

func TestServer_DisconnectLeavesRoom(t *testing.T) {
	m := newManager(t, protocol.JSON{})
	srv, ts := startServer(t, wsConfig(), m)
	c := dial(t, ts)

	write(t, c, websocket.MessageText, []byte(`{"t":"create_room","d":{"name":"Ada","character":"oracle"}}`))
	readJSON(t, c)
	require.Equal(t, 1, m.RoomCount())

	require.NoError(t, c.Close(websocket.StatusNormalClosure, "bye"))
	assert.Eventually(t, func() bool {
		return m.RoomCount() == 0 && srv.Connections() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_IdleTimeoutClosesConnection(t *testing.T) {
	m := newManager(t, protocol.JSON{})
	cfg := wsConfig()
	cfg.ReadTimeout = 50 * time.Millisecond
	srv, ts := startServer(t, cfg, m)
	c := dial(t, ts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	require.Error(t, err)
	assert.Eventually(t, func() bool { return srv.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_StopClosesConnections(t *testing.T) {
	m := newManager(t, protocol.JSON{})
	srv, ts := startServer(t, wsConfig(), m)
	c := dial(t, ts)
	assert.Eventually(t, func() bool { return srv.Connections() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	readErr := make(chan error, 1)
	go func() {
		_, _, err := c.Read(ctx)
		readErr <- err
	}()

	require.NoError(t, srv.Stop(ctx))
	assert.EqualValues(t, 0, srv.Connections())
	assert.Error(t, <-readErr)

	resp, err := http.Get(ts.URL + ws.PathSocket)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.NoError(t, srv.Stop(ctx), "stop is idempotent")
}

func TestServer_ListenAndServe(t *testing.T) {
	m := newManager(t, protocol.JSON{})
	srv := ws.NewServer(wsConfig(), false, m, zaptest.NewLogger(t))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	require.Eventually(t, srv.IsRunning, 2*time.Second, 10*time.Millisecond)
	require.NotEmpty(t, srv.Addr())

	resp, err := http.Get("http://" + srv.Addr() + ws.PathHealth)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	assert.False(t, srv.IsRunning())
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return")
	}
}

func TestServer_SoloRaidStreamsStateUntilCompletion(t *testing.T) {
	ticks := gameserver.NewTickSource(60)
	stop := ticks.Start()
	t.Cleanup(stop)
	m := gameserver.NewManager(gameserver.Config{
		Raid:     raid.Config{Duration: 300 * time.Millisecond},
		Registry: character.DefaultRegistry(),
		Ticks:    ticks,
		Logger:   zaptest.NewLogger(t),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	_, ts := startServer(t, wsConfig(), m)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + ws.PathSocket
	c := testutil.NewWSClient(t, url, protocol.JSON{})

	c.Send(protocol.TypeCreateRoom, "1", protocol.CreateRoom{Name: "Ada", Character: "gunslinger", MaxPlayers: 1})
	c.ReadUntil(protocol.TypeRoomCreated, 2*time.Second)
	c.Send(protocol.TypeStartRaid, "2", nil)

	started := c.ReadUntil(protocol.TypeRaidStarted, 2*time.Second)
	var rs protocol.RaidStarted
	require.NoError(t, started.Payload(&rs))
	assert.Equal(t, 60, rs.TickHz)

	state := c.ReadUntil(protocol.TypeState, 2*time.Second)
	var sp gameserver.StatePayload
	require.NoError(t, state.Payload(&sp))
	assert.Len(t, sp.Players, 1)

	done := c.ReadUntil(protocol.TypeRaidCompleted, 3*time.Second)
	var cp gameserver.CompletedPayload
	require.NoError(t, done.Payload(&cp))
	assert.Equal(t, raid.WinnerBoss, cp.Summary.Winner)
	assert.False(t, cp.Errored)
	c.Close()
}
