package chat

import "errors"

// Flusher lifecycle errors.
var (
	ErrFlusherAlreadyRunning = errors.New("flusher is already running")
	ErrFlusherNotRunning     = errors.New("flusher is not running")
)
