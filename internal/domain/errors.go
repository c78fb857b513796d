package domain

import "errors"

// Domain errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrThreadNotFound  = errors.New("thread not found")
	ErrNoPages         = errors.New("thread has no readable pages")
	ErrNoThreadLoaded  = errors.New("no thread loaded")
	ErrInvalidSort     = errors.New("invalid sort spec")
	ErrInvalidDelay    = errors.New("delay must be a non-negative number of milliseconds")
	ErrInvalidSlider   = errors.New("slider must be between 0 and 100")
	ErrCacheMiss       = errors.New("thread not cached")
)

// Error codes reported to clients
const (
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeThreadNotFound  = "THREAD_NOT_FOUND"
	CodeNoPages         = "NO_PAGES"
	CodeNoThreadLoaded  = "NO_THREAD_LOADED"
	CodeInvalidSort     = "INVALID_SORT"
	CodeInvalidDelay    = "INVALID_DELAY"
	CodeInvalidSlider   = "INVALID_SLIDER"
	CodeInternal        = "INTERNAL_ERROR"
)

// ErrorCode maps an error to the code reported to clients
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return CodeSessionNotFound
	case errors.Is(err, ErrThreadNotFound):
		return CodeThreadNotFound
	case errors.Is(err, ErrNoPages):
		return CodeNoPages
	case errors.Is(err, ErrNoThreadLoaded):
		return CodeNoThreadLoaded
	case errors.Is(err, ErrInvalidSort):
		return CodeInvalidSort
	case errors.Is(err, ErrInvalidDelay):
		return CodeInvalidDelay
	case errors.Is(err, ErrInvalidSlider):
		return CodeInvalidSlider
	default:
		return CodeInternal
	}
}
