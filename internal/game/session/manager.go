package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cory-johannsen/raid/internal/game/character"
)

var (
	// ErrAlreadyConnected is returned when a player id is registered twice.
	ErrAlreadyConnected = errors.New("player already connected")
	// ErrNotFound is returned for an unknown player id.
	ErrNotFound = errors.New("player not found")
)

// Session is one participant's presence in a room.
type Session struct {
	// PlayerID is the unique participant identifier.
	PlayerID string
	// Name is the display name chosen on entry.
	Name string
	// Character is the selected character.
	Character character.ID
	// RoomID is the room the participant occupies.
	RoomID string
	// Ready is the lobby ready flag.
	Ready bool
	// Conn reaches the participant's transport.
	Conn Conn
}

// Manager tracks all sessions and room occupancy.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	players  map[string]*Session
	roomSets map[string]map[string]bool
	order    map[string][]string
}

// NewManager creates an empty session Manager.
func NewManager() *Manager {
	return &Manager{
		players:  make(map[string]*Session),
		roomSets: make(map[string]map[string]bool),
		order:    make(map[string][]string),
	}
}

// Add registers a session in its room.
//
// Precondition: s must be non-nil with non-empty PlayerID and RoomID.
// Postcondition: Returns ErrAlreadyConnected if PlayerID is registered; otherwise the session is
// tracked and listed last in its room's join order.
func (m *Manager) Add(s *Session) error {
	if s == nil || s.PlayerID == "" || s.RoomID == "" {
		panic("session.Manager.Add: session must have a player id and room id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.players[s.PlayerID]; exists {
		return fmt.Errorf("player %q: %w", s.PlayerID, ErrAlreadyConnected)
	}
	m.players[s.PlayerID] = s
	if m.roomSets[s.RoomID] == nil {
		m.roomSets[s.RoomID] = make(map[string]bool)
	}
	m.roomSets[s.RoomID][s.PlayerID] = true
	m.order[s.RoomID] = append(m.order[s.RoomID], s.PlayerID)
	return nil
}

// Remove drops a session and cleans up room occupancy. The session's Conn is not
// closed; the caller owns the transport.
//
// Postcondition: Returns the removed session, or ErrNotFound.
func (m *Manager) Remove(playerID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.players[playerID]
	if !exists {
		return nil, fmt.Errorf("player %q: %w", playerID, ErrNotFound)
	}
	if rs, ok := m.roomSets[s.RoomID]; ok {
		delete(rs, playerID)
		if len(rs) == 0 {
			delete(m.roomSets, s.RoomID)
			delete(m.order, s.RoomID)
		} else {
			m.order[s.RoomID] = without(m.order[s.RoomID], playerID)
		}
	}
	delete(m.players, playerID)
	return s, nil
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// SetReady updates a session's ready flag.
//
// Postcondition: Returns ErrNotFound for an unknown player.
func (m *Manager) SetReady(playerID string, ready bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.players[playerID]
	if !ok {
		return fmt.Errorf("player %q: %w", playerID, ErrNotFound)
	}
	s.Ready = ready
	return nil
}

// Get returns a copy of the session for playerID.
func (m *Manager) Get(playerID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.players[playerID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// RoomOf returns the room id a player occupies.
func (m *Manager) RoomOf(playerID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.players[playerID]
	if !ok {
		return "", false
	}
	return s.RoomID, true
}

// InRoom returns copies of the sessions in roomID in join order.
//
// Postcondition: Returns an empty slice for an unknown or empty room.
func (m *Manager) InRoom(roomID string) []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.order[roomID]
	out := make([]Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.players[id]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// RoomCount returns the number of sessions in roomID.
func (m *Manager) RoomCount(roomID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.roomSets[roomID])
}

// Rooms returns the ids of all occupied rooms, sorted.
func (m *Manager) Rooms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.roomSets))
	for id := range m.roomSets {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PlayerCount returns the total number of sessions.
func (m *Manager) PlayerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}
