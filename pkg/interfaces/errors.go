package interfaces

import "errors"

// ErrRoomNotFound is returned by RoomStore when a room code does not resolve.
var ErrRoomNotFound = errors.New("room not found")
