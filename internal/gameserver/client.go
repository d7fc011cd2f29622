package gameserver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/geom"
	"github.com/cory-johannsen/raid/internal/game/player"
	"github.com/cory-johannsen/raid/internal/game/raid"
	"github.com/cory-johannsen/raid/internal/game/skill"
	"github.com/cory-johannsen/raid/internal/protocol"
)

var errUnknownType = errors.New("unknown message type")

// Client is one transport connection. Frames from a single connection must be
// handled sequentially; Handle and Disconnect are safe to call from different
// goroutines.
type Client struct {
	m    *Manager
	conn Conn

	mu       sync.Mutex
	playerID string
}

// Connect binds a new transport connection to the manager.
//
// Precondition: conn must be non-nil.
func (m *Manager) Connect(conn Conn) *Client {
	if conn == nil {
		panic("gameserver.Manager.Connect: conn must be non-nil")
	}
	return &Client{m: m, conn: conn}
}

// PlayerID returns the participant id bound by create_room or join_room.
func (c *Client) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

func (c *Client) bind(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = id
}

// Handle decodes one inbound frame and applies it. Replies and rejections go to
// this connection only.
func (c *Client) Handle(frame []byte) {
	in, err := c.m.cfg.Codec.Decode(frame)
	if err != nil {
		c.m.sendError(c.conn, "", err)
		return
	}
	typ, payload, err := c.dispatch(in)
	if err != nil {
		c.m.logger.Debug("request rejected",
			zap.String("type", in.Type),
			zap.String("player", c.PlayerID()),
			zap.Error(err),
		)
		c.m.sendError(c.conn, in.ID, err)
		return
	}
	if typ != "" {
		c.m.send(c.conn, typ, in.ID, payload)
	}
}

// Disconnect treats a dropped transport as an explicit leave.
func (c *Client) Disconnect() {
	id := c.PlayerID()
	if id == "" {
		return
	}
	c.bind("")
	if err := c.m.Leave(id); err != nil && !errors.Is(err, ErrNotInRoom) {
		c.m.logger.Warn("leaving on disconnect", zap.String("player", id), zap.Error(err))
	}
}

// dispatch routes an inbound envelope to its handler and returns the reply, if any.
func (c *Client) dispatch(in protocol.Inbound) (string, any, error) {
	switch in.Type {
	case protocol.TypeCreateRoom:
		return c.handleCreate(in)
	case protocol.TypeJoinRoom:
		return c.handleJoin(in)
	case protocol.TypeLeaveRoom:
		return c.handleLeave()
	case protocol.TypeSetReady:
		return c.handleReady(in)
	case protocol.TypeStartRaid:
		return "", nil, c.m.StartRaid(c.PlayerID())
	case protocol.TypeMove:
		return c.handleMove(in)
	case protocol.TypeDodge:
		return "", nil, c.act(in.ID, func(g *raid.GameRoom, id string, now time.Time) error {
			return g.HandleDodge(id, now)
		})
	case protocol.TypeAttack:
		return c.handleAttack(in)
	case protocol.TypeSkill:
		return c.handleSkill(in)
	case protocol.TypeRightClick:
		return c.handleRightClick(in)
	case protocol.TypeAllocateStat:
		return c.handleAllocate(in)
	default:
		return "", nil, fmt.Errorf("%w: %q", errUnknownType, in.Type)
	}
}

// leaveCurrent drops any room this connection already occupies before it enters another.
func (c *Client) leaveCurrent() {
	if id := c.PlayerID(); id != "" {
		c.bind("")
		_ = c.m.Leave(id)
	}
}

func (c *Client) handleCreate(in protocol.Inbound) (string, any, error) {
	var req protocol.CreateRoom
	if err := in.Payload(&req); err != nil {
		return "", nil, err
	}
	c.leaveCurrent()
	res, err := c.m.CreateRoom(req.Name, character.ID(req.Character), req.MaxPlayers, c.conn)
	if err != nil {
		return "", nil, err
	}
	c.bind(res.PlayerID)
	return protocol.TypeRoomCreated, res, nil
}

func (c *Client) handleJoin(in protocol.Inbound) (string, any, error) {
	var req protocol.JoinRoom
	if err := in.Payload(&req); err != nil {
		return "", nil, err
	}
	c.leaveCurrent()
	res, err := c.m.JoinRoom(req.Code, req.Name, character.ID(req.Character), c.conn)
	if err != nil {
		return "", nil, err
	}
	c.bind(res.PlayerID)
	return protocol.TypeRoomJoined, res, nil
}

func (c *Client) handleLeave() (string, any, error) {
	id := c.PlayerID()
	if err := c.m.Leave(id); err != nil {
		return "", nil, err
	}
	c.bind("")
	return protocol.TypePlayerLeft, protocol.PlayerLeft{PlayerID: id}, nil
}

func (c *Client) handleReady(in protocol.Inbound) (string, any, error) {
	var req protocol.SetReady
	if err := in.Payload(&req); err != nil {
		return "", nil, err
	}
	ready := true
	if req.Ready != nil {
		ready = *req.Ready
	}
	return "", nil, c.m.SetReady(c.PlayerID(), ready)
}

func (c *Client) handleMove(in protocol.Inbound) (string, any, error) {
	var req protocol.Move
	if err := in.Payload(&req); err != nil {
		return "", nil, err
	}
	input := player.Input{Up: req.Up, Down: req.Down, Left: req.Left, Right: req.Right}
	return "", nil, c.act(in.ID, func(g *raid.GameRoom, id string, _ time.Time) error {
		return g.HandleMovement(id, input)
	})
}

func (c *Client) handleAttack(in protocol.Inbound) (string, any, error) {
	var req protocol.Attack
	if err := in.Payload(&req); err != nil {
		return "", nil, err
	}
	kind := raid.AttackKind(req.Kind)
	target := geom.V(req.X, req.Y)
	if !target.Finite() {
		return "", nil, fmt.Errorf("%w: %v", raid.ErrInvalidAim, target)
	}
	return "", nil, c.act(in.ID, func(g *raid.GameRoom, id string, now time.Time) error {
		return g.HandleAttack(id, kind, target, now)
	})
}

// skillSlots accepts both the short and the long spelling of each slot.
var skillSlots = map[string]skill.Slot{
	"1":        skill.SlotSkill1,
	"2":        skill.SlotSkill2,
	"ultimate": skill.SlotUltimate,
	"skill1":   skill.SlotSkill1,
	"skill2":   skill.SlotSkill2,
}

func (c *Client) handleSkill(in protocol.Inbound) (string, any, error) {
	var req protocol.Skill
	if err := in.Payload(&req); err != nil {
		return "", nil, err
	}
	slot, ok := skillSlots[req.Slot]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", skill.ErrUnknownSlot, req.Slot)
	}
	aim, err := aimAt(req.X, req.Y)
	if err != nil {
		return "", nil, err
	}
	return "", nil, c.act(in.ID, func(g *raid.GameRoom, id string, now time.Time) error {
		return g.HandleSkill(id, slot, aim, now)
	})
}

func (c *Client) handleRightClick(in protocol.Inbound) (string, any, error) {
	var req protocol.RightClick
	if err := in.Payload(&req); err != nil {
		return "", nil, err
	}
	aim, err := aimAt(req.X, req.Y)
	if err != nil {
		return "", nil, err
	}
	return "", nil, c.act(in.ID, func(g *raid.GameRoom, id string, now time.Time) error {
		return g.HandlePlayerRightClick(id, aim, now)
	})
}

func (c *Client) handleAllocate(in protocol.Inbound) (string, any, error) {
	var req protocol.AllocateStat
	if err := in.Payload(&req); err != nil {
		return "", nil, err
	}
	return "", nil, c.act(in.ID, func(g *raid.GameRoom, id string, _ time.Time) error {
		return g.HandleAllocateStat(id, req.Stat)
	})
}

func (c *Client) act(requestID string, a Action) error {
	return c.m.Act(c.PlayerID(), requestID, a)
}

// aimAt returns the optional aim point of a request.
//
// Postcondition: Returns raid.ErrInvalidAim for NaN or infinite coordinates.
func aimAt(x, y *float64) (*geom.Vec, error) {
	if x == nil || y == nil {
		return nil, nil
	}
	v := geom.V(*x, *y)
	if !v.Finite() {
		return nil, fmt.Errorf("%w: %v", raid.ErrInvalidAim, v)
	}
	return &v, nil
}
