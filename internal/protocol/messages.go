// Package protocol defines the client/server message envelope, the payload of each
// message type and the codecs that put them on the wire.
package protocol

// Inbound message types.
const (
	TypeCreateRoom   = "create_room"
	TypeJoinRoom     = "join_room"
	TypeLeaveRoom    = "leave_room"
	TypeSetReady     = "set_ready"
	TypeStartRaid    = "start_raid"
	TypeMove         = "move"
	TypeDodge        = "dodge"
	TypeAttack       = "attack"
	TypeSkill        = "skill"
	TypeRightClick   = "right_click"
	TypeAllocateStat = "allocate_stat"
)

// Outbound message types.
const (
	TypeRoomCreated   = "room_created"
	TypeRoomJoined    = "room_joined"
	TypePlayerJoined  = "player_joined"
	TypePlayerLeft    = "player_left"
	TypePlayerReady   = "player_ready"
	TypeRaidStarted   = "raid_started"
	TypeState         = "state"
	TypeRaidCompleted = "raid_completed"
	TypeError         = "error"
)

// Error codes carried by ErrorPayload.
const (
	CodeBadRequest       = "bad_request"
	CodeUnknownType      = "unknown_type"
	CodeRoomNotFound     = "room_not_found"
	CodeRoomFull         = "room_full"
	CodeRaidStarted      = "raid_started"
	CodeNotHost          = "not_host"
	CodeNotAllReady      = "not_all_ready"
	CodeInvalidCharacter = "invalid_character"
	CodeInvalidCapacity  = "invalid_capacity"
	CodeNotInRoom        = "not_in_room"
	CodeRaidNotActive    = "raid_not_active"
	CodeRejected         = "rejected"
	CodeInternal         = "internal"
)

// CreateRoom asks for a new room hosted by the sender.
type CreateRoom struct {
	Name       string `json:"name" msgpack:"name"`
	Character  string `json:"character" msgpack:"character"`
	MaxPlayers int    `json:"maxPlayers" msgpack:"maxPlayers"`
}

// JoinRoom asks to enter the waiting room with Code.
type JoinRoom struct {
	Code      string `json:"code" msgpack:"code"`
	Name      string `json:"name" msgpack:"name"`
	Character string `json:"character" msgpack:"character"`
}

// SetReady toggles the sender's ready flag. A missing payload means ready.
type SetReady struct {
	Ready *bool `json:"ready,omitempty" msgpack:"ready,omitempty"`
}

// Move is the full current movement intent.
type Move struct {
	Up    bool `json:"up" msgpack:"up"`
	Down  bool `json:"down" msgpack:"down"`
	Left  bool `json:"left" msgpack:"left"`
	Right bool `json:"right" msgpack:"right"`
}

// Attack issues a basic attack toward (X, Y).
type Attack struct {
	Kind string  `json:"kind" msgpack:"kind"`
	X    float64 `json:"x" msgpack:"x"`
	Y    float64 `json:"y" msgpack:"y"`
}

// Skill activates slot "1", "2" or "ultimate", optionally aimed at (X, Y).
type Skill struct {
	Slot string   `json:"slot" msgpack:"slot"`
	X    *float64 `json:"x,omitempty" msgpack:"x,omitempty"`
	Y    *float64 `json:"y,omitempty" msgpack:"y,omitempty"`
}

// RightClick activates the right-click skill, optionally aimed at (X, Y).
type RightClick struct {
	X *float64 `json:"x,omitempty" msgpack:"x,omitempty"`
	Y *float64 `json:"y,omitempty" msgpack:"y,omitempty"`
}

// AllocateStat spends a stat point.
type AllocateStat struct {
	Stat string `json:"stat" msgpack:"stat"`
}

// PlayerInfo describes a room member in lobby messages.
type PlayerInfo struct {
	ID        string `json:"id" msgpack:"id"`
	Name      string `json:"name" msgpack:"name"`
	Character string `json:"character" msgpack:"character"`
	Ready     bool   `json:"ready" msgpack:"ready"`
	Host      bool   `json:"host" msgpack:"host"`
}

// RoomInfo describes a room in lobby messages.
type RoomInfo struct {
	ID       string       `json:"id" msgpack:"id"`
	Code     string       `json:"code" msgpack:"code"`
	Capacity int          `json:"capacity" msgpack:"capacity"`
	Status   string       `json:"status" msgpack:"status"`
	HostID   string       `json:"hostId" msgpack:"hostId"`
	Players  []PlayerInfo `json:"players" msgpack:"players"`
}

// RoomEntered answers create_room and join_room.
type RoomEntered struct {
	PlayerID string   `json:"playerId" msgpack:"playerId"`
	Room     RoomInfo `json:"room" msgpack:"room"`
}

// PlayerJoined announces a new member to the rest of the room.
type PlayerJoined struct {
	Player PlayerInfo `json:"player" msgpack:"player"`
}

// PlayerLeft announces a departure and the (possibly new) host.
type PlayerLeft struct {
	PlayerID string `json:"playerId" msgpack:"playerId"`
	HostID   string `json:"hostId" msgpack:"hostId"`
}

// PlayerReady announces a ready flag change.
type PlayerReady struct {
	PlayerID string `json:"playerId" msgpack:"playerId"`
	Ready    bool   `json:"ready" msgpack:"ready"`
}

// RaidStarted announces the start of the simulation.
type RaidStarted struct {
	Duration float64 `json:"duration" msgpack:"duration"`
	Width    float64 `json:"width" msgpack:"width"`
	Height   float64 `json:"height" msgpack:"height"`
	TickHz   int     `json:"tickHz" msgpack:"tickHz"`
}

// ErrorPayload reports a rejected request to its sender only.
type ErrorPayload struct {
	Message string `json:"message" msgpack:"message"`
	Code    string `json:"code" msgpack:"code"`
}
