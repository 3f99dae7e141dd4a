package vcursor

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressNotFound is returned when an address cannot be resolved
	// against the current document. Functions that clamp still return
	// their fallback value alongside it.
	ErrAddressNotFound = errors.New("address not found")

	// ErrTransformFailed is returned when a stale address could not be
	// relocated onto a new document.
	ErrTransformFailed = errors.New("address transformation failed")

	ErrBaseHashMismatch   = errors.New("base hash mismatch")
	ErrNoSelection        = errors.New("no local selection")
	ErrUnknownAddressKind = errors.New("unknown address kind")
	ErrClosed             = errors.New("closed")
)

func errInvalidPath(s string) error {
	return fmt.Errorf("invalid node path %q", s)
}
