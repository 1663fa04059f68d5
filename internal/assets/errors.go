package assets

import (
	"errors"
	"fmt"
)

// Kind is the stage at which a load failed.
type Kind string

const (
	KindFetch   Kind = "Fetch"
	KindDecrypt Kind = "Decrypt"
	KindParse   Kind = "Parse"
)

// ErrFetch matches (via errors.Is) any load failure of KindFetch.
// Fetch failures are retryable by calling Load again.
var ErrFetch = errors.New("assets: fetch failed")

// Error describes a failed load. Decrypt failures unwrap to
// crypto.ErrAuthentication or crypto.ErrFormat, parse failures to scene.ErrParse.
type Error struct {
	Kind   Kind
	URL    string
	Status int // HTTP status for KindFetch, 0 when no response arrived
	Cause  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("assets: %s %s", e.Kind, e.URL)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *Error) Is(target error) bool {
	return target == ErrFetch && e.Kind == KindFetch
}

// KindOf reports the failure stage of err, or "" if err is not a load error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether reloading the same URL may succeed.
func IsRetryable(err error) bool { return KindOf(err) == KindFetch }
