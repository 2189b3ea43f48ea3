package coordinator

import "errors"

// Coordinator error types. Authorization errors are also reported to the
// requester as kick-error events; nothing here escalates past the
// originating connection.
var (
	ErrNotConnected    = errors.New("connection not registered with coordinator")
	ErrNotInRoom       = errors.New("connection is not a member of the room")
	ErrNotModerator    = errors.New("not authorized: moderator role required")
	ErrSelfKick        = errors.New("cannot kick yourself")
	ErrTargetNotInRoom = errors.New("kick target is not in the room")
	ErrRateLimited     = errors.New("chat rate limit exceeded")
)
