// Package gameserver hosts raid rooms: the lobby registry, one goroutine per room
// driven by a shared tick source, and the dispatch of client messages.
package gameserver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/boss"
	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/dice"
	"github.com/cory-johannsen/raid/internal/game/raid"
	"github.com/cory-johannsen/raid/internal/game/session"
	"github.com/cory-johannsen/raid/internal/protocol"
)

const (
	// MaxCapacity is the largest allowed room.
	MaxCapacity = 6
	codeLength  = 6
	maxNameLen  = 24
	codeChars   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Conn is the transport handle used to reach one participant.
type Conn = session.Conn

// ScriptFactory builds the boss script for a new raid. It may return a nil script.
type ScriptFactory func(roomCode string) (boss.Script, error)

// ResultStore persists completed raids.
type ResultStore interface {
	SaveRaid(ctx context.Context, roomID, code string, s raid.Summary) error
}

// Action is a gameplay intent applied on the room goroutine between ticks.
type Action func(g *raid.GameRoom, playerID string, now time.Time) error

// Config wires a Manager.
type Config struct {
	// Raid is the template for every raid; per-room logger and script are filled in.
	Raid     raid.Config
	Registry *character.Registry
	Codec    protocol.Codec
	Ticks    *TickSource
	// Scripts may be nil.
	Scripts ScriptFactory
	// Results may be nil.
	Results ResultStore
	Now     func() time.Time
	Logger  *zap.Logger
}

// RoomStats is a point-in-time view of one room.
type RoomStats struct {
	ID        string
	Code      string
	Status    Status
	Players   int
	Capacity  int
	HostID    string
	Errored   bool
	CreatedAt time.Time
	StartedAt time.Time
}

// Manager is the process-wide room registry. Create, join, leave, ready and
// start are serialised by one mutex; gameplay is delegated to room goroutines.
type Manager struct {
	cfg      Config
	logger   *zap.Logger
	sessions *session.Manager
	newCode  func(n int) string

	mu    sync.Mutex
	rooms map[string]*Room
	codes map[string]*Room

	wg sync.WaitGroup
}

// NewManager creates an empty Manager.
//
// Precondition: cfg.Registry and cfg.Ticks must be non-nil.
// Postcondition: Returns a Manager with no rooms.
func NewManager(cfg Config) *Manager {
	if cfg.Registry == nil || cfg.Ticks == nil {
		panic("gameserver.NewManager: Registry and Ticks must be non-nil")
	}
	if cfg.Codec == nil {
		cfg.Codec = protocol.JSON{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: session.NewManager(),
		newCode:  generateCode,
		rooms:    make(map[string]*Room),
		codes:    make(map[string]*Room),
	}
}

// Codec returns the wire codec used for every frame.
func (m *Manager) Codec() protocol.Codec { return m.cfg.Codec }

func (m *Manager) now() time.Time { return m.cfg.Now() }

// CreateRoom opens a waiting room hosted by a new participant.
//
// Precondition: conn must be non-nil.
// Postcondition: Returns ErrInvalidCharacter or ErrInvalidCapacity without mutation;
// otherwise the room exists under a unique code with the host as its only member.
// A maxPlayers of 0 selects MaxCapacity.
func (m *Manager) CreateRoom(name string, char character.ID, maxPlayers int, conn Conn) (protocol.RoomEntered, error) {
	def, err := m.character(char)
	if err != nil {
		return protocol.RoomEntered{}, err
	}
	if maxPlayers == 0 {
		maxPlayers = MaxCapacity
	}
	if maxPlayers < 1 || maxPlayers > MaxCapacity {
		return protocol.RoomEntered{}, fmt.Errorf("%w: got %d", ErrInvalidCapacity, maxPlayers)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	code := m.uniqueCode()
	pid := uuid.NewString()
	r := newRoom(m, uuid.NewString(), code, maxPlayers, pid, m.now())
	m.rooms[r.ID] = r
	m.codes[code] = r
	if err := m.sessions.Add(&session.Session{
		PlayerID:  pid,
		Name:      displayName(name, def),
		Character: def.ID,
		RoomID:    r.ID,
		Conn:      conn,
	}); err != nil {
		delete(m.rooms, r.ID)
		delete(m.codes, code)
		return protocol.RoomEntered{}, err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		r.run()
	}()
	r.logger.Info("room created",
		zap.String("host", pid),
		zap.Int("capacity", maxPlayers),
	)
	return protocol.RoomEntered{PlayerID: pid, Room: m.info(r)}, nil
}

// JoinRoom adds a participant to the waiting room with code.
//
// Precondition: conn must be non-nil.
// Postcondition: Returns ErrInvalidCharacter, ErrRoomNotFound, ErrRaidStarted or
// ErrRoomFull without mutating any roster; otherwise the participant is a member
// and the other members receive player_joined.
func (m *Manager) JoinRoom(code, name string, char character.ID, conn Conn) (protocol.RoomEntered, error) {
	def, err := m.character(char)
	if err != nil {
		return protocol.RoomEntered{}, err
	}
	code = strings.ToUpper(strings.TrimSpace(code))

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.codes[code]
	if !ok {
		return protocol.RoomEntered{}, fmt.Errorf("%w: %q", ErrRoomNotFound, code)
	}
	if r.Status() != StatusWaiting {
		return protocol.RoomEntered{}, fmt.Errorf("room %s: %w", code, ErrRaidStarted)
	}
	if m.sessions.RoomCount(r.ID) >= r.Capacity {
		return protocol.RoomEntered{}, fmt.Errorf("room %s: %w", code, ErrRoomFull)
	}

	s := &session.Session{
		PlayerID:  uuid.NewString(),
		Name:      displayName(name, def),
		Character: def.ID,
		RoomID:    r.ID,
		Conn:      conn,
	}
	if err := m.sessions.Add(s); err != nil {
		return protocol.RoomEntered{}, err
	}
	r.broadcast(protocol.TypePlayerJoined, protocol.PlayerJoined{Player: playerInfo(*s, r.HostID())}, s.PlayerID)
	r.logger.Info("player joined room",
		zap.String("player", s.PlayerID),
		zap.String("character", string(s.Character)),
	)
	return protocol.RoomEntered{PlayerID: s.PlayerID, Room: m.info(r)}, nil
}

// Leave removes a participant from its room. Disconnects are handled the same way.
//
// Postcondition: Returns ErrNotInRoom for an unknown player. The room is destroyed
// when it becomes empty; otherwise the host passes to the earliest remaining member
// and the rest of the room receives player_left.
func (m *Manager) Leave(playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.sessions.Remove(playerID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotInRoom, err)
	}
	r, ok := m.rooms[s.RoomID]
	if !ok {
		return nil
	}
	remaining := m.sessions.InRoom(r.ID)
	if len(remaining) == 0 {
		m.destroy(r)
		return nil
	}

	r.mu.Lock()
	if r.hostID == playerID {
		r.hostID = remaining[0].PlayerID
	}
	host := r.hostID
	r.mu.Unlock()

	if r.Status() == StatusActive {
		now := m.now()
		if err := r.post(func() { r.removePlayer(playerID, now) }); err != nil {
			r.logger.Debug("removing player from stopped raid", zap.Error(err))
		}
	}
	r.broadcast(protocol.TypePlayerLeft, protocol.PlayerLeft{PlayerID: playerID, HostID: host}, "")
	r.logger.Info("player left room", zap.String("player", playerID), zap.String("host", host))
	return nil
}

// SetReady sets a participant's ready flag while the room is waiting.
//
// Postcondition: Returns ErrNotInRoom or ErrRaidStarted without mutation; otherwise
// every member receives player_ready.
func (m *Manager) SetReady(playerID string, ready bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.roomOf(playerID)
	if err != nil {
		return err
	}
	if r.Status() != StatusWaiting {
		return fmt.Errorf("room %s: %w", r.Code, ErrRaidStarted)
	}
	if err := m.sessions.SetReady(playerID, ready); err != nil {
		return fmt.Errorf("%w: %v", ErrNotInRoom, err)
	}
	r.broadcast(protocol.TypePlayerReady, protocol.PlayerReady{PlayerID: playerID, Ready: ready}, "")
	return nil
}

// StartRaid begins the simulation. Only the host may start, and every other
// member must be ready.
//
// Postcondition: Returns ErrNotInRoom, ErrNotHost, ErrRaidStarted or ErrNotAllReady
// without mutation; otherwise the room is active and every member receives
// raid_started followed by a state frame per tick.
func (m *Manager) StartRaid(playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.roomOf(playerID)
	if err != nil {
		return err
	}
	if r.HostID() != playerID {
		return fmt.Errorf("room %s: %w", r.Code, ErrNotHost)
	}
	if r.Status() != StatusWaiting {
		return fmt.Errorf("room %s: %w", r.Code, ErrRaidStarted)
	}
	members := m.sessions.InRoom(r.ID)
	parts := make([]raid.Participant, 0, len(members))
	for _, s := range members {
		if s.PlayerID != playerID && !s.Ready {
			return fmt.Errorf("room %s: %w", r.Code, ErrNotAllReady)
		}
		parts = append(parts, raid.Participant{ID: s.PlayerID, Name: s.Name, Character: s.Character})
	}

	cfg := m.cfg.Raid.WithDefaults()
	cfg.Logger = r.logger
	script := m.script(r)
	if script != nil {
		cfg.Script = script
	}
	now := m.now()
	g, err := raid.New(cfg, m.cfg.Registry, parts, now)
	if err != nil {
		closeScript(r, script)
		return fmt.Errorf("room %s: starting raid: %w", r.Code, err)
	}

	started := protocol.RaidStarted{
		Duration: cfg.Duration.Seconds(),
		Width:    cfg.World.Width,
		Height:   cfg.World.Height,
		TickHz:   m.cfg.Ticks.Hz(),
	}
	if err := r.post(func() { r.start(g, script, started) }); err != nil {
		closeScript(r, script)
		return err
	}
	r.mu.Lock()
	r.status = StatusActive
	r.startedAt = now
	r.mu.Unlock()
	return nil
}

// Act applies a gameplay action for playerID on its room goroutine. A rejection
// is reported to the player's connection as an error envelope carrying requestID.
//
// Postcondition: Returns ErrNotInRoom or ErrRaidNotActive when the action cannot
// be queued.
func (m *Manager) Act(playerID, requestID string, a Action) error {
	m.mu.Lock()
	s, ok := m.sessions.Get(playerID)
	r := m.rooms[s.RoomID]
	m.mu.Unlock()
	if !ok || r == nil {
		return ErrNotInRoom
	}
	if r.Status() != StatusActive {
		return ErrRaidNotActive
	}
	return r.post(func() {
		if r.game == nil || r.reported {
			m.sendError(s.Conn, requestID, ErrRaidNotActive)
			return
		}
		if err := a(r.game, playerID, m.now()); err != nil {
			r.logger.Debug("action rejected", zap.String("player", playerID), zap.Error(err))
			m.sendError(s.Conn, requestID, err)
		}
	})
}

// RoomOf returns the room playerID occupies.
func (m *Manager) RoomOf(playerID string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.roomOf(playerID)
	return r, err == nil
}

// RoomByCode returns the room with the given join code.
func (m *Manager) RoomByCode(code string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.codes[strings.ToUpper(code)]
	return r, ok
}

// Stats returns a view of every room, sorted by code.
func (m *Manager) Stats() []RoomStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RoomStats, 0, len(m.rooms))
	for _, r := range m.rooms {
		r.mu.Lock()
		out = append(out, RoomStats{
			ID:        r.ID,
			Code:      r.Code,
			Status:    r.status,
			Players:   m.sessions.RoomCount(r.ID),
			Capacity:  r.Capacity,
			HostID:    r.hostID,
			Errored:   r.errored,
			CreatedAt: r.CreatedAt,
			StartedAt: r.startedAt,
		})
		r.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// RoomCount returns the number of live rooms.
func (m *Manager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// PlayerCount returns the number of participants across all rooms.
func (m *Manager) PlayerCount() int {
	return m.sessions.PlayerCount()
}

// RegisterHousekeeping adds the manager's periodic tasks to h.
func (m *Manager) RegisterHousekeeping(h *Housekeeper) {
	h.Register("room_stats", func(time.Time) {
		var active int
		stats := m.Stats()
		for _, s := range stats {
			if s.Status == StatusActive {
				active++
			}
		}
		m.logger.Info("room stats",
			zap.Int("rooms", len(stats)),
			zap.Int("active", active),
			zap.Int("players", m.PlayerCount()),
			zap.Uint64("dropped_ticks", m.cfg.Ticks.Dropped()),
		)
	})
}

// Shutdown stops every room and waits for room goroutines and pending result
// writes until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, r := range m.rooms {
		m.destroy(r)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// destroy unregisters r and stops its goroutine. Caller holds m.mu.
func (m *Manager) destroy(r *Room) {
	delete(m.rooms, r.ID)
	delete(m.codes, r.Code)
	r.stop()
	r.logger.Info("room destroyed")
}

// roomOf resolves playerID to its room. Caller holds m.mu.
func (m *Manager) roomOf(playerID string) (*Room, error) {
	roomID, ok := m.sessions.RoomOf(playerID)
	if !ok {
		return nil, ErrNotInRoom
	}
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotInRoom
	}
	return r, nil
}

func (m *Manager) character(id character.ID) (*character.Definition, error) {
	id = character.ID(strings.ToLower(strings.TrimSpace(string(id))))
	def, ok := m.cfg.Registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCharacter, id)
	}
	return def, nil
}

func (m *Manager) script(r *Room) boss.Script {
	if m.cfg.Scripts == nil {
		return nil
	}
	s, err := m.cfg.Scripts(r.Code)
	if err != nil {
		r.logger.Warn("loading boss script; starting without hooks", zap.Error(err))
		return nil
	}
	return s
}

// save persists a completed raid without blocking the room goroutine.
func (m *Manager) save(roomID, code string, sum raid.Summary) {
	if m.cfg.Results == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := m.cfg.Results.SaveRaid(ctx, roomID, code, sum); err != nil {
			m.logger.Warn("saving raid result", zap.String("room", code), zap.Error(err))
			return
		}
		m.logger.Debug("raid result saved", zap.String("room", code))
	}()
}

// uniqueCode returns a code not held by any live room. Caller holds m.mu.
func (m *Manager) uniqueCode() string {
	for {
		code := m.newCode(codeLength)
		if _, exists := m.codes[code]; !exists {
			return code
		}
	}
}

var codeSource = dice.NewCryptoSource()

func generateCode(n int) string {
	return randomCode(codeSource, n)
}

// randomCode draws n characters of codeChars from src.
func randomCode(src dice.Source, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = codeChars[src.Intn(len(codeChars))]
	}
	return string(b)
}

// info builds the lobby view of r.
func (m *Manager) info(r *Room) protocol.RoomInfo {
	host := r.HostID()
	members := m.sessions.InRoom(r.ID)
	players := make([]protocol.PlayerInfo, 0, len(members))
	for _, s := range members {
		players = append(players, playerInfo(s, host))
	}
	return protocol.RoomInfo{
		ID:       r.ID,
		Code:     r.Code,
		Capacity: r.Capacity,
		Status:   string(r.Status()),
		HostID:   host,
		Players:  players,
	}
}

func playerInfo(s session.Session, hostID string) protocol.PlayerInfo {
	return protocol.PlayerInfo{
		ID:        s.PlayerID,
		Name:      s.Name,
		Character: string(s.Character),
		Ready:     s.Ready,
		Host:      s.PlayerID == hostID,
	}
}

func displayName(name string, def *character.Definition) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return def.Name
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		name = string([]rune(name)[:maxNameLen])
	}
	return name
}

// send encodes and delivers one envelope to conn.
func (m *Manager) send(conn Conn, typ, requestID string, payload any) {
	if conn == nil {
		return
	}
	frame, err := m.cfg.Codec.Encode(typ, requestID, payload)
	if err != nil {
		m.logger.Error("encoding message", zap.String("type", typ), zap.Error(err))
		return
	}
	if err := conn.Send(frame); err != nil {
		m.logger.Debug("send failed", zap.String("type", typ), zap.Error(err))
	}
}

// sendError delivers an error envelope for err to conn.
func (m *Manager) sendError(conn Conn, requestID string, err error) {
	m.send(conn, protocol.TypeError, requestID, protocol.Error(ErrorCode(err), err))
}
