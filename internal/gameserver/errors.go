package gameserver

import (
	"errors"

	"github.com/cory-johannsen/raid/internal/game/raid"
	"github.com/cory-johannsen/raid/internal/protocol"
)

// Room management errors. Each is returned wrapped; compare with errors.Is.
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrRaidStarted      = errors.New("raid already started")
	ErrNotHost          = errors.New("only the host can start the raid")
	ErrNotAllReady      = errors.New("not all players are ready")
	ErrInvalidCharacter = errors.New("invalid character")
	ErrInvalidCapacity  = errors.New("max players must be between 1 and 6")
	ErrNotInRoom        = errors.New("not in a room")
	ErrRaidNotActive    = errors.New("raid is not active")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrRoomNotFound, protocol.CodeRoomNotFound},
	{ErrRoomFull, protocol.CodeRoomFull},
	{ErrRaidStarted, protocol.CodeRaidStarted},
	{ErrNotHost, protocol.CodeNotHost},
	{ErrNotAllReady, protocol.CodeNotAllReady},
	{ErrInvalidCharacter, protocol.CodeInvalidCharacter},
	{ErrInvalidCapacity, protocol.CodeInvalidCapacity},
	{ErrNotInRoom, protocol.CodeNotInRoom},
	{ErrRaidNotActive, protocol.CodeRaidNotActive},
	{raid.ErrRaidOver, protocol.CodeRaidNotActive},
	{raid.ErrInvalidAim, protocol.CodeBadRequest},
	{protocol.ErrMalformed, protocol.CodeBadRequest},
	{errUnknownType, protocol.CodeUnknownType},
}

// ErrorCode maps err to the code carried in an error envelope. Gameplay
// rejections that have no dedicated code map to protocol.CodeRejected.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return protocol.CodeRejected
}
