package gameserver

import (
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/boss"
	"github.com/cory-johannsen/raid/internal/game/raid"
	"github.com/cory-johannsen/raid/internal/game/session"
	"github.com/cory-johannsen/raid/internal/protocol"
)

// Status is a room's lifecycle phase.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

const (
	inboxSize   = 256
	saveTimeout = 5 * time.Second
)

// StatePayload is the body of a state envelope.
type StatePayload struct {
	RoomID string `json:"roomId" msgpack:"roomId"`
	raid.Snapshot
}

// CompletedPayload is the body of a raid_completed envelope.
type CompletedPayload struct {
	RoomID  string       `json:"roomId" msgpack:"roomId"`
	Errored bool         `json:"errored,omitempty" msgpack:"errored,omitempty"`
	Summary raid.Summary `json:"summary" msgpack:"summary"`
}

// Room is one lobby plus, once started, the goroutine that owns its GameRoom.
// Lobby fields are guarded by mu; game state is touched only by the run goroutine.
type Room struct {
	ID        string
	Code      string
	Capacity  int
	CreatedAt time.Time

	m      *Manager
	logger *zap.Logger
	inbox  chan func()
	ticks  chan time.Time
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	status    Status
	hostID    string
	errored   bool
	startedAt time.Time

	game     *raid.GameRoom
	script   boss.Script
	reported bool
}

func newRoom(m *Manager, id, code string, capacity int, hostID string, now time.Time) *Room {
	return &Room{
		ID:        id,
		Code:      code,
		Capacity:  capacity,
		CreatedAt: now,
		m:         m,
		logger:    m.logger.With(zap.String("room", code)),
		inbox:     make(chan func(), inboxSize),
		ticks:     make(chan time.Time, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		status:    StatusWaiting,
		hostID:    hostID,
	}
}

// Status returns the room's lifecycle phase.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// HostID returns the current host's player id.
func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// Errored reports whether the room was completed by a recovered fault.
func (r *Room) Errored() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errored
}

// run owns the GameRoom: inbox actions and ticks are applied strictly one at a time.
func (r *Room) run() {
	defer close(r.done)
	for {
		select {
		case <-r.quit:
			return
		case fn := <-r.inbox:
			r.safely("action", fn)
		case now := <-r.ticks:
			r.safely("tick", func() { r.tick(now) })
		}
	}
}

// safely runs fn and converts a panic into a completed, errored room.
func (r *Room) safely(stage string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("recovered room panic",
				zap.String("stage", stage),
				zap.Any("panic", p),
				zap.Stack("stack"),
			)
			r.fail()
		}
	}()
	fn()
}

// post queues fn for the run goroutine.
//
// Postcondition: Returns ErrRaidNotActive when the room has stopped.
func (r *Room) post(fn func()) error {
	select {
	case <-r.quit:
		return ErrRaidNotActive
	default:
	}
	select {
	case r.inbox <- fn:
		return nil
	case <-r.quit:
		return ErrRaidNotActive
	}
}

// start installs the raid and subscribes to ticks. Runs on the room goroutine.
func (r *Room) start(g *raid.GameRoom, script boss.Script, started protocol.RaidStarted) {
	r.game = g
	r.script = script
	r.broadcast(protocol.TypeRaidStarted, started, "")
	r.m.cfg.Ticks.Subscribe(r.ticks)
	r.logger.Info("raid started",
		zap.Int("players", g.PlayerCount()),
		zap.Int("max_bars", g.Boss().Health().MaxBars()),
	)
}

func (r *Room) tick(now time.Time) {
	if r.game == nil || r.reported {
		return
	}
	snap := r.game.Tick(now)
	r.broadcast(protocol.TypeState, StatePayload{RoomID: r.ID, Snapshot: snap}, "")
	if r.game.Completed() {
		r.finish(false)
	}
}

// finish reports the summary once and detaches the room from the tick source.
func (r *Room) finish(errored bool) {
	if r.reported {
		return
	}
	r.reported = true
	r.m.cfg.Ticks.Unsubscribe(r.ticks)
	r.mu.Lock()
	r.status = StatusCompleted
	r.errored = errored
	r.mu.Unlock()

	if r.game == nil {
		return
	}
	sum, ok := r.game.Summary()
	if !ok {
		return
	}
	r.broadcast(protocol.TypeRaidCompleted, CompletedPayload{RoomID: r.ID, Errored: errored, Summary: sum}, "")
	r.logger.Info("raid summary",
		zap.String("winner", string(sum.Winner)),
		zap.Float64("boss_damage", sum.BossDamage),
		zap.Int("bars", sum.BarsDefeated),
		zap.Bool("errored", errored),
	)
	r.m.save(r.ID, r.Code, sum)
}

// fail completes the room after a recovered fault. The raid is aborted so the
// summary reflects the state at the fault.
func (r *Room) fail() {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("recovered panic while failing room", zap.Any("panic", p))
			r.reported = true
			r.m.cfg.Ticks.Unsubscribe(r.ticks)
			r.mu.Lock()
			r.status = StatusCompleted
			r.errored = true
			r.mu.Unlock()
		}
	}()
	r.broadcast(protocol.TypeError, protocol.ErrorPayload{Message: "room encountered an internal error", Code: protocol.CodeInternal}, "")
	if r.game != nil && !r.reported {
		r.game.Abort(r.m.now())
	}
	r.mu.Lock()
	r.errored = true
	r.mu.Unlock()
	r.finish(true)
}

// removePlayer drops a departed participant from the raid. Runs on the room goroutine.
func (r *Room) removePlayer(playerID string, now time.Time) {
	if r.game == nil || r.reported {
		return
	}
	r.game.RemovePlayer(playerID)
	if r.game.PlayerCount() == 0 {
		r.game.Abort(now)
		r.finish(false)
	}
}

// broadcast encodes once and sends to every member except exclude.
func (r *Room) broadcast(typ string, payload any, exclude string) {
	frame, err := r.m.cfg.Codec.Encode(typ, "", payload)
	if err != nil {
		r.logger.Error("encoding broadcast", zap.String("type", typ), zap.Error(err))
		return
	}
	r.sendFrame(r.m.sessions.InRoom(r.ID), frame, exclude, typ == protocol.TypeState)
}

// sendFrame delivers frame to members. Lossy frames go through SendLossy where the
// connection supports it, so they never crowd out one-shot frames.
func (r *Room) sendFrame(members []session.Session, frame []byte, exclude string, lossy bool) {
	for _, s := range members {
		if s.PlayerID == exclude || s.Conn == nil {
			continue
		}
		send := s.Conn.Send
		if lc, ok := s.Conn.(session.LossyConn); ok && lossy {
			send = lc.SendLossy
		}
		if err := send(frame); err != nil {
			r.logger.Debug("send to player failed",
				zap.String("player", s.PlayerID),
				zap.Error(err),
			)
		}
	}
}

// stop terminates the run goroutine and releases the boss script.
func (r *Room) stop() {
	r.once.Do(func() {
		r.m.cfg.Ticks.Unsubscribe(r.ticks)
		close(r.quit)
		go func() {
			<-r.done
			closeScript(r, r.script)
		}()
	})
}

// closeScript releases a per-room boss script that holds resources.
func closeScript(r *Room, s boss.Script) {
	c, ok := s.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		r.logger.Warn("closing boss script", zap.Error(err))
	}
}
