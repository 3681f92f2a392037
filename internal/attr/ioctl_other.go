//go:build !linux

package attr

import (
	"context"
	"fmt"
	"runtime"
)

// IoctlOperator is unavailable outside Linux. Every method fails with
// ErrUnsupported so the protection engine refuses to start.
type IoctlOperator struct{}

// NewIoctlOperator returns an IoctlOperator that reports itself unsupported.
func NewIoctlOperator(_ string) *IoctlOperator {
	return &IoctlOperator{}
}

// Name returns "ioctl".
func (o *IoctlOperator) Name() string {
	return "ioctl"
}

// SetImmutable always fails.
func (o *IoctlOperator) SetImmutable(_ string) error {
	return o.unsupported()
}

// ClearImmutable always fails.
func (o *IoctlOperator) ClearImmutable(_ string) error {
	return o.unsupported()
}

// IsImmutable always fails.
func (o *IoctlOperator) IsImmutable(_ string) (bool, error) {
	return false, o.unsupported()
}

// Supported always fails.
func (o *IoctlOperator) Supported(_ context.Context) error {
	return o.unsupported()
}

func (o *IoctlOperator) unsupported() error {
	return fmt.Errorf("%w: inode flags are not available on %s", ErrUnsupported, runtime.GOOS)
}
