package errs

import (
	"errors"
	"fmt"
)

// Domain sentinel errors, mapped to HTTP codes by serverutils.
var (
	ErrNotFound            = errors.New("not found")
	ErrInactive            = errors.New("session is not active")
	ErrNotAuthorized       = errors.New("not authorized for this session")
	ErrChatDisabled        = errors.New("chat is disabled for this session")
	ErrBroadcasterConflict = errors.New("another broadcaster is already active")
	ErrTranslationFailed   = errors.New("translation failed")
	ErrCancelled           = errors.New("request superseded")

	// ErrConcurrentModification is returned when a versioned write lost a
	// race. It never leaves the store layer; the transaction is retried.
	ErrConcurrentModification = errors.New("concurrent modification")
)

var (
	ErrSessionNotFound = fmt.Errorf("session %w", ErrNotFound)
	ErrRoomNotFound    = fmt.Errorf("room %w", ErrNotFound)
	ErrMemberNotFound  = fmt.Errorf("member %w", ErrNotFound)
)
