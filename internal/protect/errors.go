package protect

import "errors"

var (
	// ErrAttributeUnavailable is returned by ProcessSites when the immutable
	// attribute mechanism cannot be used. No site is touched in that case.
	ErrAttributeUnavailable = errors.New("cannot change the immutable attribute on this host")

	// ErrUnknownOperation is returned for an operation other than lock or unlock.
	ErrUnknownOperation = errors.New("unknown protection operation")

	// ErrInvalidPattern is returned by New when a lock file pattern does not compile.
	ErrInvalidPattern = errors.New("invalid lock file pattern")
)
