package attr

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by Operator.Supported when the immutable
// attribute cannot be toggled on this host.
var ErrUnsupported = errors.New("immutable attribute mechanism unavailable")

// Operator toggles the immutable attribute of a single filesystem entry.
//
// Implementations must be safe for concurrent use. Setting or clearing the
// attribute is idempotent, so callers may toggle the same path repeatedly.
type Operator interface {
	// SetImmutable makes path immutable.
	SetImmutable(path string) error

	// ClearImmutable makes path writable again.
	ClearImmutable(path string) error

	// IsImmutable reports whether path currently carries the attribute.
	IsImmutable(path string) (bool, error)

	// Supported returns nil if the mechanism can be used, or an error
	// wrapping ErrUnsupported explaining why not.
	Supported(ctx context.Context) error

	// Name identifies the implementation in logs.
	Name() string
}
