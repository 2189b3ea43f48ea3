package types

import "errors"

// Validation error types shared across components.
var (
	ErrInvalidRoomCode    = errors.New("room code must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidDisplayName = errors.New("display name must be 1-100 characters")
	ErrEmptyChatText      = errors.New("chat text cannot be empty")
	ErrChatTextTooLarge   = errors.New("chat text exceeds 8KB limit")
	ErrMissingTarget      = errors.New("signal missing target connection id")
	ErrInvalidEvent       = errors.New("unknown event name")
)
