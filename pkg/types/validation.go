package types

import "regexp"

// Compiled once at package initialization; validation sits on the join and
// chat paths.
var roomCodeRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidRoomCode checks the shareable room code format.
func IsValidRoomCode(code string) bool {
	if len(code) < 1 || len(code) > 50 {
		return false
	}
	return roomCodeRegex.MatchString(code)
}

// Validate ensures a join payload is usable before it touches room state.
func (p *JoinRoomPayload) Validate() error {
	if !IsValidRoomCode(p.RoomCode) {
		return ErrInvalidRoomCode
	}
	if len(p.DisplayName) < 1 || len(p.DisplayName) > 100 {
		return ErrInvalidDisplayName
	}
	return nil
}

// Validate ensures a chat payload is within relay limits. 8KB keeps a full
// flush batch comfortably inside a single transaction.
func (p *ChatMessagePayload) Validate() error {
	if !IsValidRoomCode(p.RoomCode) {
		return ErrInvalidRoomCode
	}
	if len(p.Text) == 0 {
		return ErrEmptyChatText
	}
	if len(p.Text) > 8192 {
		return ErrChatTextTooLarge
	}
	return nil
}

// Validate ensures a signal payload names a target.
func (p *SignalPayload) Validate() error {
	if p.TargetConnectionID == "" {
		return ErrMissingTarget
	}
	return nil
}

// Validate ensures a kick payload is complete.
func (p *KickUserPayload) Validate() error {
	if !IsValidRoomCode(p.RoomCode) {
		return ErrInvalidRoomCode
	}
	if p.TargetConnectionID == "" {
		return ErrMissingTarget
	}
	return nil
}
