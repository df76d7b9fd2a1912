package chat

import "errors"

// Error kinds surfaced by the dispatcher. Handlers map these to HTTP
// statuses with errors.Is; the underlying cause is wrapped alongside.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUpstream        = errors.New("model gateway failure")
	ErrPersistence     = errors.New("storage failure")
)
